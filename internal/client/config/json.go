package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/zkvault/internal/flagx"
	"github.com/dmitrijs2005/zkvault/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI configuration. Zero values
// mean "not set", so a partial file only overrides what it names.
type JsonConfig struct {
	ServerURL          string         `json:"server_url"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	VaultKeyIterations int            `json:"vault_key_iterations"`
	VerifierIterations int            `json:"verifier_iterations"`
	CommitRetries      int            `json:"commit_retries"`
	AtomicRotation     *bool          `json:"atomic_rotation"`
	LogLevel           string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c/-config on cfg. Nothing
// happens when no file is named. It panics when the file cannot be read or
// parsed.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerURL != "" {
		cfg.ServerURL = c.ServerURL
	}
	if c.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.VaultKeyIterations > 0 {
		cfg.VaultKeyIterations = c.VaultKeyIterations
	}
	if c.VerifierIterations > 0 {
		cfg.VerifierIterations = c.VerifierIterations
	}
	if c.CommitRetries > 0 {
		cfg.CommitRetries = c.CommitRetries
	}
	if c.AtomicRotation != nil {
		cfg.AtomicRotation = *c.AtomicRotation
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
}
