package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/clientdesk/internal/common"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DESK_LLM_API_KEY.
const EnvPrefix = "DESK"

// Config is the typed view of the desk configuration file.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Library   LibraryConfig   `mapstructure:"library"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Functions FunctionsConfig `mapstructure:"functions"`
	Migration MigrationConfig `mapstructure:"migration"`
}

// DatabaseConfig locates the document database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig enables cross-process change fan-out when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LLMConfig selects the inference provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   int           `mapstructure:"rate_limit"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// AuditConfig tunes the forensic audit.
type AuditConfig struct {
	MaxReferences int `mapstructure:"max_references"`
}

// LibraryConfig points at the optional Meilisearch index.
type LibraryConfig struct {
	MeiliURL    string `mapstructure:"meili_url"`
	MeiliAPIKey string `mapstructure:"meili_api_key"`
	Index       string `mapstructure:"index"`
}

// VaultConfig addresses the S3-compatible document bucket.
type VaultConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	LinkTTL   time.Duration `mapstructure:"link_ttl"`
}

// SheetsConfig holds roster export credentials.
type SheetsConfig struct {
	ServiceAccountPath string `mapstructure:"service_account_path"`
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	RefreshToken       string `mapstructure:"refresh_token"`
	TokenFile          string `mapstructure:"token_file"`
	SpreadsheetID      string `mapstructure:"spreadsheet_id"`
	SpreadsheetName    string `mapstructure:"spreadsheet_name"`
}

// FunctionsConfig configures the callable functions server.
type FunctionsConfig struct {
	Addr    string `mapstructure:"addr"`
	CertDir string `mapstructure:"cert_dir"`
	TLS     bool   `mapstructure:"tls"`
}

// MigrationConfig controls the legacy funding migration.
type MigrationConfig struct {
	Checkpoint bool `mapstructure:"checkpoint"`
}

var envKeys = []string{
	"database.path",
	"redis.url",
	"llm.provider", "llm.api_key", "llm.model", "llm.base_url", "llm.max_retries",
	"llm.retry_delay", "llm.timeout", "llm.rate_limit", "llm.temperature", "llm.max_tokens",
	"audit.max_references",
	"library.meili_url", "library.meili_api_key", "library.index",
	"vault.endpoint", "vault.access_key", "vault.secret_key", "vault.bucket", "vault.region",
	"vault.use_ssl", "vault.link_ttl",
	"sheets.service_account_path", "sheets.client_id", "sheets.client_secret",
	"sheets.refresh_token", "sheets.token_file", "sheets.spreadsheet_id", "sheets.spreadsheet_name",
	"functions.addr", "functions.tls", "functions.cert_dir",
	"migration.checkpoint",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/clientdesk/desk.db")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.rate_limit", 60)
	v.SetDefault("audit.max_references", 5)
	v.SetDefault("library.index", "law_library_docs")
	v.SetDefault("vault.bucket", "client-documents")
	v.SetDefault("vault.link_ttl", 15*time.Minute)
	v.SetDefault("sheets.spreadsheet_name", "Client Roster")
	v.SetDefault("sheets.token_file", "~/.config/clientdesk/sheets-token.json")
	v.SetDefault("functions.addr", "127.0.0.1:8787")
	v.SetDefault("functions.cert_dir", "~/.config/clientdesk/certs")
}

// Load decodes v into a Config, applying defaults and DESK_ environment overrides.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about.
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Sheets.ServiceAccountPath = ExpandPath(cfg.Sheets.ServiceAccountPath)
	cfg.Sheets.TokenFile = ExpandPath(cfg.Sheets.TokenFile)
	cfg.Functions.CertDir = ExpandPath(cfg.Functions.CertDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrInvalidConfig)
	}
	if c.Audit.MaxReferences < 0 {
		return fmt.Errorf("%w: audit.max_references cannot be negative", common.ErrInvalidConfig)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "", "openai", "anthropic", "gemini", "google":
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", common.ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.RateLimit < 0 {
		return fmt.Errorf("%w: llm.rate_limit cannot be negative", common.ErrInvalidConfig)
	}
	return nil
}
