package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rondochain/rondo/common/crypto"
)

func setImplied(m *MinerInRound, height int64) {
	m.OutValue = crypto.SHA3Sum256(m.PublicKey)
	m.ImpliedIrreversibleBlockHeight = height
}

func TestCalculateLIBWithQuorum(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	// Consent for five miners is four.
	setImplied(minerByOrder(t, round, 1), 13)
	setImplied(minerByOrder(t, round, 2), 10)
	setImplied(minerByOrder(t, round, 3), 12)
	setImplied(minerByOrder(t, round, 4), 11)

	height, ok := CalculateLIB(round)
	assert.True(t, ok)
	assert.Equal(t, int64(10), height)

	// A fifth attestation lifts the fourth-highest height.
	setImplied(minerByOrder(t, round, 5), 14)
	height, ok = CalculateLIB(round)
	assert.True(t, ok)
	assert.Equal(t, int64(11), height)
}

func TestCalculateLIBWithoutQuorum(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	setImplied(minerByOrder(t, round, 1), 13)
	setImplied(minerByOrder(t, round, 2), 10)
	setImplied(minerByOrder(t, round, 3), 12)

	_, ok := CalculateLIB(round)
	assert.False(t, ok)
}

func TestCalculateLIBIgnoresNonMiners(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	setImplied(minerByOrder(t, round, 1), 13)
	setImplied(minerByOrder(t, round, 2), 10)
	setImplied(minerByOrder(t, round, 3), 12)
	// Carried-forward height without a mined block does not count toward
	// the quorum.
	minerByOrder(t, round, 4).ImpliedIrreversibleBlockHeight = 11
	// Mined with no height information does not count either.
	minerByOrder(t, round, 5).OutValue = crypto.SHA3Sum256([]byte("x"))

	_, ok := CalculateLIB(round)
	assert.False(t, ok)
}

func TestCalculateLIBLargerSet(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(10), 1000)
	// Consent for ten miners is seven.
	for order := int32(1); order <= 7; order++ {
		setImplied(minerByOrder(t, round, order), int64(100+order))
	}
	height, ok := CalculateLIB(round)
	assert.True(t, ok)
	assert.Equal(t, int64(101), height)
}
