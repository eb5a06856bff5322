package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/rondochain/rondo/common/errors"
)

const (
	PublicKeyLenCompressed   = 33
	PublicKeyLenUncompressed = 65
)

// ValidatePublicKey checks that pk is a well-formed compressed secp256k1
// public key on the curve. Every public key arriving from outside the node
// (proposals, election results, main-chain pushes) must pass this before
// any byte of it is used for ordering or address derivation.
func ValidatePublicKey(pk []byte) error {
	switch len(pk) {
	case 0:
		return errors.IllegalArgumentError.New("public key bytes are empty")
	case PublicKeyLenCompressed:
		if _, err := secp256k1.ParsePubKey(pk); err != nil {
			return errors.IllegalArgumentError.Wrapf(err, "invalid public key %x", pk)
		}
		return nil
	default:
		return errors.IllegalArgumentError.Errorf(
			"invalid public key length %d", len(pk))
	}
}

// PubKeyToAddrBytes extracts the 20-byte account address of the public key.
func PubKeyToAddrBytes(pk []byte) ([]byte, error) {
	if err := ValidatePublicKey(pk); err != nil {
		return nil, err
	}
	digest := SHA3Sum256(pk[1:])
	return digest[len(digest)-20:], nil
}
