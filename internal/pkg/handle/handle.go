package handle

import (
	"crypto/rand"
	"math/big"
)

const (
	prefix   = "nx-"
	alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	length   = 6
)

// New generates a public identity handle of the form nx-xxxxxx.
func New() (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return prefix + string(b), nil
}
