package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeriveVerifier computes the login proof sent to the server in place of the
// password. The salt is the normalized email, so the verifier can be
// recomputed before the login salt is known.
func DeriveVerifier(password []byte, email string, iterations int) string {
	k := DeriveKey(password, []byte(NormalizeEmail(email)), iterations, true)
	defer k.Wipe()

	raw, err := k.Export()
	if err != nil {
		// unreachable: the key was just derived as extractable
		return ""
	}
	defer wipe(raw)

	return base64.StdEncoding.EncodeToString(raw)
}

// UsernameHash returns base64(SHA-256(normalized email)).
func UsernameHash(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
