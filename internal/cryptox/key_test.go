package cryptox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Redaction(t *testing.T) {
	k := DeriveKey([]byte("pw"), []byte("salt"), 1, true)
	raw, err := k.Export()
	require.NoError(t, err)
	hexRaw := fmt.Sprintf("%x", raw)

	for _, s := range []string{
		k.String(),
		fmt.Sprintf("%v", k),
		fmt.Sprintf("%+v", k),
		fmt.Sprintf("%#v", k),
		fmt.Sprintf("%s", k),
	} {
		assert.Contains(t, s, "REDACTED")
		assert.NotContains(t, s, hexRaw)
	}

	_, err = json.Marshal(k)
	assert.Error(t, err)
	_, err = json.Marshal(struct{ K *Key }{k})
	assert.Error(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("derived", "key", k)
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestKey_Wipe(t *testing.T) {
	k := DeriveKey([]byte("pw"), []byte("salt"), 1, true)
	same := DeriveKey([]byte("pw"), []byte("salt"), 1, true)
	require.True(t, k.Equal(same))
	require.False(t, k.Wiped())

	k.Wipe()
	assert.True(t, k.Wiped())
	assert.False(t, k.Equal(same))
	assert.False(t, k.Equal(k))

	_, err := k.Export()
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	_, err = EncryptRecord([]byte("x"), k, 1, 1)
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	k.Wipe()
}

func TestKey_WipeLeavesOtherKeysIntact(t *testing.T) {
	a := DeriveKey([]byte("pw"), []byte("salt-a"), 1, true)
	b := DeriveKey([]byte("pw"), []byte("salt-b"), 1, true)
	want, err := b.Export()
	require.NoError(t, err)

	a.Wipe()

	got, err := b.Export()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	sealed, err := EncryptRecord([]byte("still here"), b, 1, 1)
	require.NoError(t, err)
	plain, err := DecryptRecord(sealed, b, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), plain)
	b.Wipe()
}

func TestNewKey_ZeroesSource(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	k := newKey(src, true)
	assert.Equal(t, []byte{0, 0, 0, 0}, src)

	raw, err := k.Export()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
	k.Wipe()
}

func TestKey_Nil(t *testing.T) {
	var k *Key
	assert.True(t, k.Wiped())
	assert.False(t, k.Equal(nil))
	k.Wipe()

	_, err := k.Export()
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}
