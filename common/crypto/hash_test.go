package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSHA3Sum256(t *testing.T) {
	h := SHA3Sum256([]byte("value"))
	assert.Len(t, h, HashLen)
	assert.True(t, bytes.Equal(h, SHA3Sum256([]byte("value"))))
	assert.False(t, bytes.Equal(h, SHA3Sum256([]byte("other"))))
}

func TestXORBytes(t *testing.T) {
	a := []byte{0xff, 0x0f, 0x00}
	b := []byte{0x0f, 0x0f, 0xf0}
	assert.Equal(t, []byte{0xf0, 0x00, 0xf0}, XORBytes(a, b))
	// Self-inverse.
	assert.Equal(t, a, XORBytes(XORBytes(a, b), b))
}

func TestVerifyCommitment(t *testing.T) {
	secret := SHA3Sum256([]byte("secret"))
	commitment := SHA3Sum256(secret)

	assert.True(t, VerifyCommitment(secret, commitment))
	assert.False(t, VerifyCommitment(SHA3Sum256([]byte("wrong")), commitment))
	assert.False(t, VerifyCommitment(nil, commitment))
	assert.False(t, VerifyCommitment(secret, nil))
}
