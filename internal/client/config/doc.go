// Package config loads runtime configuration for the zkvault CLI.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Flags
//
//	-a string   base URL of the zkvault server
//	-t int      HTTP request timeout (seconds)
//	-k int      PBKDF2 iterations for the vault key
//	-v int      PBKDF2 iterations for the login verifier
//	-r int      write attempts per record during a staged rotation commit
//	-atomic     commit rotations through the server's single-transaction endpoint
//
// JSON example (durations accept "10s" or integer nanoseconds):
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "10s",
//	  "vault_key_iterations": 100000,
//	  "verifier_iterations": 10000,
//	  "commit_retries": 3,
//	  "atomic_rotation": true,
//	  "log_level": "warn"
//	}
package config
