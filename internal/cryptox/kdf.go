package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the length of every derived key in bytes (AES-256).
	KeySize = 32
	// SaltSize is the length of a freshly generated login salt.
	SaltSize = 16

	// VaultKeyIterations is the default PBKDF2 cost for the vault key.
	VaultKeyIterations = 100_000
	// VerifierIterations is the default PBKDF2 cost for the login verifier.
	VerifierIterations = 10_000
)

// KDFParams carries the iteration policy used by the client.
type KDFParams struct {
	VaultKeyIterations int
	VerifierIterations int
}

// DefaultKDFParams returns the built-in iteration policy.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		VaultKeyIterations: VaultKeyIterations,
		VerifierIterations: VerifierIterations,
	}
}

// DeriveKey stretches password with PBKDF2-HMAC-SHA-256 into a 32-byte key.
// The result is deterministic for (password, salt, iterations). Iteration
// counts below 1 are treated as 1.
func DeriveKey(password, salt []byte, iterations int, extractable bool) *Key {
	if iterations < 1 {
		iterations = 1
	}
	material := pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
	return newKey(material, extractable)
}
