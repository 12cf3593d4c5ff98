package services

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
)

var maxRecordID = big.NewInt(math.MaxInt64)

// NewRecordID returns a random id in [1, MaxInt64].
func NewRecordID() (int64, error) {
	n, err := rand.Int(rand.Reader, maxRecordID)
	if err != nil {
		return 0, fmt.Errorf("generate record id: %w", err)
	}
	return n.Int64() + 1, nil
}
