package cryptox

import "errors"

var (
	// ErrIntegrity is returned for every decryption failure: wrong key,
	// tampered ciphertext or tag, malformed nonce, or a record decrypted
	// under the wrong owner/record id. The cause is deliberately not
	// distinguished.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrKeyUnavailable is returned when a nil or wiped key is used.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrNotExtractable is returned by Export for vault keys.
	ErrNotExtractable = errors.New("key is not extractable")
)
