package config

import (
	"github.com/Veraticus/clientdesk/internal/llm"
	"github.com/Veraticus/clientdesk/internal/sheets"
	"github.com/Veraticus/clientdesk/internal/vault"
)

// SheetsWriterConfig converts the sheets section, falling back to GOOGLE_SHEETS_* variables.
func (c *Config) SheetsWriterConfig() sheets.Config {
	cfg := sheets.DefaultConfig()
	cfg.ServiceAccountPath = c.Sheets.ServiceAccountPath
	cfg.ClientID = c.Sheets.ClientID
	cfg.ClientSecret = c.Sheets.ClientSecret
	cfg.RefreshToken = c.Sheets.RefreshToken
	cfg.SpreadsheetID = c.Sheets.SpreadsheetID
	if c.Sheets.SpreadsheetName != "" {
		cfg.SpreadsheetName = c.Sheets.SpreadsheetName
	}
	cfg.LoadFromEnv()
	cfg.ServiceAccountPath = ExpandPath(cfg.ServiceAccountPath)

	// A stored token from the interactive flow stands in for a configured refresh token.
	if cfg.RefreshToken == "" && cfg.ServiceAccountPath == "" && c.Sheets.TokenFile != "" {
		if token, err := sheets.LoadToken(c.Sheets.TokenFile); err == nil {
			cfg.RefreshToken = token.RefreshToken
		}
	}
	return cfg
}

// LLMClientConfig converts the llm section.
func (c *Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		BaseURL:     c.LLM.BaseURL,
		MaxRetries:  c.LLM.MaxRetries,
		RetryDelay:  c.LLM.RetryDelay,
		Timeout:     c.LLM.Timeout,
		RateLimit:   c.LLM.RateLimit,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// MinioConfig converts the vault section.
func (c *Config) MinioConfig() vault.MinioConfig {
	return vault.MinioConfig{
		Endpoint:  c.Vault.Endpoint,
		AccessKey: c.Vault.AccessKey,
		SecretKey: c.Vault.SecretKey,
		Bucket:    c.Vault.Bucket,
		Region:    c.Vault.Region,
		UseSSL:    c.Vault.UseSSL,
	}
}
