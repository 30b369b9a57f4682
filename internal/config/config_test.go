package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) *viper.Viper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestLoad_Defaults(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".local/share/clientdesk/desk.db"), cfg.Database.Path)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryDelay)
	assert.Equal(t, 5, cfg.Audit.MaxReferences)
	assert.Equal(t, "law_library_docs", cfg.Library.Index)
	assert.Equal(t, 15*time.Minute, cfg.Vault.LinkTTL)
	assert.Equal(t, "127.0.0.1:8787", cfg.Functions.Addr)
	assert.False(t, cfg.Migration.Checkpoint)
}

func TestLoad_FileValues(t *testing.T) {
	v := writeConfig(t, `
database:
  path: /tmp/desk-test.db
llm:
  provider: anthropic
  model: claude-test
  retry_delay: 250ms
audit:
  max_references: 2
vault:
  endpoint: localhost:9000
  use_ssl: true
migration:
  checkpoint: true
`)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/desk-test.db", cfg.Database.Path)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.RetryDelay)
	assert.Equal(t, 2, cfg.Audit.MaxReferences)
	assert.True(t, cfg.Vault.UseSSL)
	assert.True(t, cfg.Migration.Checkpoint)
	assert.Equal(t, "client-documents", cfg.Vault.Bucket)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DESK_LLM_API_KEY", "sk-env")
	t.Setenv("DESK_FUNCTIONS_ADDR", ":9999")
	t.Setenv("DESK_DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, ":9999", cfg.Functions.Addr)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown provider", body: "llm:\n  provider: mystery\n"},
		{name: "negative references", body: "audit:\n  max_references: -1\n"},
		{name: "negative rate limit", body: "llm:\n  rate_limit: -5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestConversions(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	cfg := &Config{
		LLM:    LLMConfig{Provider: "gemini", APIKey: "k", RateLimit: 10},
		Vault:  VaultConfig{Endpoint: "minio:9000", Bucket: "docs", UseSSL: true},
		Sheets: SheetsConfig{ServiceAccountPath: "/keys/sa.json", SpreadsheetName: "Roster 2024"},
	}

	llmCfg := cfg.LLMClientConfig()
	assert.Equal(t, "gemini", llmCfg.Provider)
	assert.Equal(t, 10, llmCfg.RateLimit)

	minioCfg := cfg.MinioConfig()
	assert.Equal(t, "minio:9000", minioCfg.Endpoint)
	assert.Equal(t, "docs", minioCfg.Bucket)
	assert.True(t, minioCfg.UseSSL)

	sheetsCfg := cfg.SheetsWriterConfig()
	assert.Equal(t, "/keys/sa.json", sheetsCfg.ServiceAccountPath)
	assert.Equal(t, "Roster 2024", sheetsCfg.SpreadsheetName)
	assert.NoError(t, sheetsCfg.Validate())
}
