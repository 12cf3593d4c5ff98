// Package models defines the client-side note and record types.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/zkvault/internal/cryptox"
)

const untitled = "Untitled Note"

// Record is an encrypted note as returned by the server, with the
// server-maintained timestamps.
type Record struct {
	Sealed    *cryptox.EncryptedRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ID returns the record id, or 0 for a record without a sealed payload.
func (r Record) ID() int64 {
	if r.Sealed == nil {
		return 0
	}
	return r.Sealed.RecordID
}

// Note is a decrypted note. Its plaintext form is the title on the first
// line followed by the body.
type Note struct {
	ID        int64
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseNote splits a decrypted plaintext into title and body.
func ParseNote(plaintext []byte) Note {
	title, body, _ := strings.Cut(string(plaintext), "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		title = untitled
	}
	return Note{Title: title, Body: body}
}

// Plaintext renders the note in the form ParseNote reads.
func (n Note) Plaintext() []byte {
	return []byte(strings.TrimSpace(n.Title) + "\n" + n.Body)
}

// Preview returns up to max runes of the body on a single line.
func (n Note) Preview(max int) string {
	p := strings.Join(strings.Fields(n.Body), " ")
	r := []rune(p)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return p
}
