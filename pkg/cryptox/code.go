package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateNumericCode produces a random numeric one-time code of the given
// length. The first digit is never zero so the code survives any lossy
// round-trip through an integer representation.
func GenerateNumericCode(length int) (string, error) {
	if length < 4 || length > 10 {
		return "", fmt.Errorf("code length must be between 4 and 10, got %d", length)
	}

	min := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}

	return n.Add(n, min).String(), nil
}
