package models

import "time"

// Note is one encrypted record. The server stores the three AEAD parts as
// opaque bytes and never sees plaintext or keys.
type Note struct {
	OwnerID    int64
	ID         int64
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
