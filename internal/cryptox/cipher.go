package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16

	aadVersion = "zkv1"
	aadSize    = len(aadVersion) + 8 + 8
)

var randReader io.Reader = rand.Reader

// EncryptedRecord is the stored form of a note. OwnerID and RecordID are
// not part of the wire encoding; they are bound to the ciphertext through
// associated data.
type EncryptedRecord struct {
	OwnerID    int64  `json:"-"`
	RecordID   int64  `json:"-"`
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"authenticationTag"`
}

// AssociatedData returns the fixed 20-byte encoding "zkv1" || be64(owner) ||
// be64(record) that binds a ciphertext to its slot.
func AssociatedData(ownerID, recordID int64) []byte {
	ad := make([]byte, aadSize)
	copy(ad, aadVersion)
	binary.BigEndian.PutUint64(ad[4:12], uint64(ownerID))
	binary.BigEndian.PutUint64(ad[12:20], uint64(recordID))
	return ad
}

func newGCM(material []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptRecord seals plaintext under key with a fresh random nonce and
// binds it to (ownerID, recordID).
func EncryptRecord(plaintext []byte, key *Key, ownerID, recordID int64) (*EncryptedRecord, error) {
	var rec *EncryptedRecord

	err := key.withMaterial(func(material []byte) error {
		aead, err := newGCM(material)
		if err != nil {
			return fmt.Errorf("init cipher: %w", err)
		}

		nonce := make([]byte, NonceSize)
		if _, err := io.ReadFull(randReader, nonce); err != nil {
			return fmt.Errorf("generate nonce: %w", err)
		}

		sealed := aead.Seal(nil, nonce, plaintext, AssociatedData(ownerID, recordID))
		split := len(sealed) - TagSize

		rec = &EncryptedRecord{
			OwnerID:    ownerID,
			RecordID:   recordID,
			Ciphertext: sealed[:split:split],
			Nonce:      nonce,
			Tag:        append([]byte(nil), sealed[split:]...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DecryptRecord opens rec under key. The associated data is rebuilt from the
// ownerID and recordID arguments, never from the record itself. All failures
// other than an unusable key collapse to ErrIntegrity.
func DecryptRecord(rec *EncryptedRecord, key *Key, ownerID, recordID int64) ([]byte, error) {
	var plaintext []byte

	err := key.withMaterial(func(material []byte) error {
		if rec == nil || len(rec.Nonce) != NonceSize || len(rec.Tag) != TagSize {
			return ErrIntegrity
		}

		aead, err := newGCM(material)
		if err != nil {
			return ErrIntegrity
		}

		sealed := make([]byte, 0, len(rec.Ciphertext)+TagSize)
		sealed = append(sealed, rec.Ciphertext...)
		sealed = append(sealed, rec.Tag...)

		out, err := aead.Open(nil, rec.Nonce, sealed, AssociatedData(ownerID, recordID))
		if err != nil {
			return ErrIntegrity
		}
		plaintext = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// NewSalt returns SaltSize random bytes for a login salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(randReader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
