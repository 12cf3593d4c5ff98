//go:build linux || darwin

package cryptox

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) / uintptr(os.Getpagesize())
}

func TestKey_MaterialOnPagesOfItsOwn(t *testing.T) {
	keys := make([]*Key, 8)
	pages := map[uintptr]bool{}
	for i := range keys {
		keys[i] = DeriveKey([]byte("pw"), []byte{byte(i)}, 1, false)
		require.NotNil(t, keys[i].release)

		p := pageOf(keys[i].material)
		assert.False(t, pages[p], "key %d shares a page", i)
		pages[p] = true
	}
	for _, k := range keys {
		k.Wipe()
	}
}

func TestAllocSecret_ReleaseTwice(t *testing.T) {
	buf, release, err := allocSecret(KeySize)
	require.NoError(t, err)
	require.Len(t, buf, KeySize)
	assert.Equal(t, KeySize, cap(buf))

	copy(buf, "secret")
	release()
	release()
}
