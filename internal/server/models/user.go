// Package models holds the server's persisted entities.
package models

import "time"

// User is a registered account. Verifier is the bcrypt hash of the
// client-side password verifier, never the verifier itself.
type User struct {
	ID            int64
	Email         string
	UsernameHash  string
	Verifier      []byte
	LoginSalt     []byte
	KeyGeneration int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
