// Package secretsharing implements Shamir threshold secret sharing over
// the prime field GF(2^521 - 1). Any threshold-sized subset of shares
// reconstructs the secret exactly; fewer reveal nothing.
package secretsharing

import (
	"crypto/rand"
	"math/big"

	"github.com/rondochain/rondo/common/errors"
)

// fieldPrime is the 13th Mersenne prime 2^521 - 1. It is strictly larger
// than any 64-byte secret interpreted as a big-endian integer.
var fieldPrime = new(big.Int).Sub(
	new(big.Int).Lsh(big.NewInt(1), 521), big.NewInt(1))

const maxSecretLen = 64

// EncodeSecret splits the secret into totalShares shares of which any
// threshold reconstruct it. Share i corresponds to evaluation point x=i+1.
func EncodeSecret(secret []byte, totalShares, threshold int) ([][]byte, error) {
	if len(secret) == 0 || len(secret) > maxSecretLen {
		return nil, errors.IllegalArgumentError.Errorf(
			"InvalidSecretLength(len=%d)", len(secret))
	}
	if threshold < 1 || threshold > totalShares {
		return nil, errors.IllegalArgumentError.Errorf(
			"InvalidThreshold(threshold=%d,total=%d)", threshold, totalShares)
	}

	// coefficients[0] is the secret itself.
	coefficients := make([]*big.Int, threshold)
	coefficients[0] = new(big.Int).SetBytes(secret)
	for i := 1; i < threshold; i++ {
		c, err := rand.Int(rand.Reader, fieldPrime)
		if err != nil {
			return nil, errors.CriticalIOError.Wrap(err, "FailToReadRandom")
		}
		coefficients[i] = c
	}

	shares := make([][]byte, totalShares)
	for i := 0; i < totalShares; i++ {
		x := big.NewInt(int64(i + 1))
		shares[i] = evaluate(coefficients, x).Bytes()
	}
	return shares, nil
}

// DecodeSecret reconstructs the secret from exactly threshold shares.
// orders holds the 1-based evaluation point of each share. Passing any
// other number of shares is a caller bug and fails.
func DecodeSecret(shares [][]byte, orders []int, threshold int) ([]byte, error) {
	if len(shares) != threshold || len(orders) != threshold {
		return nil, errors.IllegalArgumentError.Errorf(
			"ShareCountMismatch(shares=%d,orders=%d,threshold=%d)",
			len(shares), len(orders), threshold)
	}
	seen := make(map[int]bool, threshold)
	for _, o := range orders {
		if o < 1 || seen[o] {
			return nil, errors.IllegalArgumentError.Errorf(
				"InvalidShareOrder(order=%d)", o)
		}
		seen[o] = true
	}

	// Lagrange interpolation at x=0.
	secret := new(big.Int)
	for j := 0; j < threshold; j++ {
		num := big.NewInt(1)
		den := big.NewInt(1)
		xj := big.NewInt(int64(orders[j]))
		for m := 0; m < threshold; m++ {
			if m == j {
				continue
			}
			xm := big.NewInt(int64(orders[m]))
			num.Mul(num, new(big.Int).Neg(xm))
			num.Mod(num, fieldPrime)
			den.Mul(den, new(big.Int).Sub(xj, xm))
			den.Mod(den, fieldPrime)
		}
		term := new(big.Int).SetBytes(shares[j])
		term.Mul(term, num)
		term.Mul(term, new(big.Int).ModInverse(den, fieldPrime))
		secret.Add(secret, term)
		secret.Mod(secret, fieldPrime)
	}
	return secret.Bytes(), nil
}

func evaluate(coefficients []*big.Int, x *big.Int) *big.Int {
	// Horner's method.
	result := new(big.Int)
	for i := len(coefficients) - 1; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, coefficients[i])
		result.Mod(result, fieldPrime)
	}
	return result
}
