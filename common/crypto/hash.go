package crypto

import (
	"bytes"

	"golang.org/x/crypto/sha3"
)

const HashLen = 32

// SHA3Sum256 returns the SHA3-256 digest of the data.
func SHA3Sum256(m []byte) []byte {
	d := sha3.Sum256(m)
	return d[:]
}

// XORBytes folds b into a, truncated to the shorter length.
func XORBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// VerifyCommitment reports whether revealed is the pre-image of the
// recorded commitment. Empty inputs never verify.
func VerifyCommitment(revealed, commitment []byte) bool {
	if len(revealed) == 0 || len(commitment) == 0 {
		return false
	}
	return bytes.Equal(SHA3Sum256(revealed), commitment)
}
