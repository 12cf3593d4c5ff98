package auth

import "golang.org/x/crypto/bcrypt"

// VerifierCost is the bcrypt cost applied to stored password verifiers.
const VerifierCost = 10

// dummyHash is compared against when the account does not exist so that
// unknown emails and wrong passwords take the same time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("zkvault-dummy-verifier"), VerifierCost)

// HashVerifier returns the bcrypt hash stored for a client verifier.
func HashVerifier(verifier string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(verifier), VerifierCost)
}

// CheckVerifier reports whether verifier matches hash. A nil hash is
// checked against a dummy value and never matches.
func CheckVerifier(hash []byte, verifier string) bool {
	if hash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(verifier))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(verifier)) == nil
}
