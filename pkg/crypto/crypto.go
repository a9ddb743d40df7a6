package crypto

import (
	"crypto/rand"
	"math/big"
)

const labelAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomLabel returns n characters drawn from upper-case letters and
// digits.
func GenerateRandomLabel(n uint) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = labelAlphabet[RandIntn(len(labelAlphabet))]
	}
	return string(b)
}

// RandIntn returns a uniform random value in [0, n). It panics if got a
// non-positive parameter.
func RandIntn(n int) int {
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}

	return int(r.Int64())
}
