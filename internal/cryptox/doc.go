// Package cryptox is the client-side cryptographic core of zkvault.
//
// It turns a password into a vault key (DeriveKey) and into a login verifier
// (DeriveVerifier) using PBKDF2-HMAC-SHA-256 with different salts and
// iteration counts, so the value the server sees is computationally
// independent of the key protecting the notes.
//
// Records are sealed with AES-256-GCM (EncryptRecord / DecryptRecord). Each
// ciphertext is bound to its owner and record id through associated data;
// moving a ciphertext to another slot makes decryption fail with
// ErrIntegrity.
//
// The separation between verifier and vault key assumes the code computing
// the verifier is not compromised into forwarding the vault key instead.
// That is inherent to any client-side zero-knowledge design.
package cryptox
