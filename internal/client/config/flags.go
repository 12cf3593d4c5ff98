package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/zkvault/internal/flagx"
)

// parseFlags overlays command-line flags on cfg. Only the flags listed in
// the package documentation are considered. It panics on malformed values.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-k", "-v", "-r", "-atomic"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "zkvault server base URL")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.VaultKeyIterations, "k", cfg.VaultKeyIterations, "vault key PBKDF2 iterations")
	fs.IntVar(&cfg.VerifierIterations, "v", cfg.VerifierIterations, "verifier PBKDF2 iterations")
	fs.IntVar(&cfg.CommitRetries, "r", cfg.CommitRetries, "write attempts per record during rotation commit")
	fs.BoolVar(&cfg.AtomicRotation, "atomic", cfg.AtomicRotation, "use the server's transactional rotation endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
