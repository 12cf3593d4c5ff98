package cryptox

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

const redacted = "[REDACTED]"

// Key is an opaque symmetric key handle. Its material never leaves the
// package unless the key was derived as extractable, and its textual,
// JSON and log representations never contain the material.
type Key struct {
	mu          sync.RWMutex
	material    []byte
	extractable bool
	release     func()
}

// newKey moves material into memory owned by the key and zeroes the
// caller's copy. Material lives on pages of its own where the platform
// allows, so wiping one key never unlocks another.
func newKey(material []byte, extractable bool) *Key {
	k := &Key{extractable: extractable, material: make([]byte, len(material))}
	if len(material) > 0 {
		if buf, release, err := allocSecret(len(material)); err == nil {
			k.material, k.release = buf, release
			// Keys dropped without Wipe still give their mapping back.
			runtime.AddCleanup(k, func(release func()) { release() }, release)
		}
	}
	copy(k.material, material)
	clear(material)
	return k
}

// Export returns a copy of the raw key bytes. Vault keys are derived
// non-extractable and always return ErrNotExtractable.
func (k *Key) Export() ([]byte, error) {
	if k == nil {
		return nil, ErrKeyUnavailable
	}
	k.mu.RLock()
	defer k.mu.RUnlock()

	if !k.extractable {
		return nil, ErrNotExtractable
	}
	if k.material == nil {
		return nil, ErrKeyUnavailable
	}
	return append([]byte(nil), k.material...), nil
}

// Equal reports in constant time whether k and other hold the same material.
// Wiped or nil keys are never equal to anything.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return false
	}
	if k == other {
		k.mu.RLock()
		defer k.mu.RUnlock()
		return k.material != nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if k.material == nil || other.material == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.material, other.material) == 1
}

// Wipe zeroes the key material and releases its memory lock and mapping.
// The key is unusable afterwards. Wipe is idempotent and safe on a nil key.
func (k *Key) Wipe() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.material == nil {
		return
	}
	clear(k.material)
	k.material = nil
	if k.release != nil {
		k.release()
		k.release = nil
	}
}

// Wiped reports whether the key has been wiped.
func (k *Key) Wiped() bool {
	if k == nil {
		return true
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.material == nil
}

// withMaterial runs fn with the raw key bytes under a read lock.
func (k *Key) withMaterial(fn func(material []byte) error) error {
	if k == nil {
		return ErrKeyUnavailable
	}
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.material == nil {
		return ErrKeyUnavailable
	}
	return fn(k.material)
}

func (k *Key) String() string   { return "cryptox.Key" + redacted }
func (k *Key) GoString() string { return "&cryptox.Key{" + redacted + "}" }

// LogValue keeps keys out of structured logs.
func (k *Key) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalJSON always fails: keys are never serialized.
func (k *Key) MarshalJSON() ([]byte, error) {
	return nil, errors.New("cryptox: keys cannot be serialized")
}

// MarshalText always fails for the same reason as MarshalJSON.
func (k *Key) MarshalText() ([]byte, error) {
	return nil, errors.New("cryptox: keys cannot be serialized")
}
