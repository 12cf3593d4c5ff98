package config

import (
	"time"

	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

// Config holds runtime settings for the zkvault CLI.
type Config struct {
	ServerURL          string
	RequestTimeout     time.Duration
	VaultKeyIterations int
	VerifierIterations int
	CommitRetries      int
	AtomicRotation     bool
	LogLevel           string
}

// LoadDefaults populates c with defaults suitable for a local server.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.VaultKeyIterations = cryptox.VaultKeyIterations
	c.VerifierIterations = cryptox.VerifierIterations
	c.CommitRetries = 3
	c.AtomicRotation = true
	c.LogLevel = "warn"
}

// KDFParams returns the configured key-derivation policy.
func (c *Config) KDFParams() cryptox.KDFParams {
	return cryptox.KDFParams{
		VaultKeyIterations: c.VaultKeyIterations,
		VerifierIterations: c.VerifierIterations,
	}
}

// LoadConfig applies defaults, then the JSON file, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
