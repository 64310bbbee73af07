package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const base36Charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomBase36 returns a lowercase base36 string of the given length drawn
// from crypto/rand. It is used for order and product id suffixes.
func RandomBase36(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	max := big.NewInt(int64(len(base36Charset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("random base36: %w", err)
		}
		out[i] = base36Charset[n.Int64()]
	}
	return string(out), nil
}
