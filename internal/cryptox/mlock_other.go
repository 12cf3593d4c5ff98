//go:build !linux && !darwin

package cryptox

func allocSecret(size int) ([]byte, func(), error) {
	b := make([]byte, size)
	return b, func() { clear(b) }, nil
}
