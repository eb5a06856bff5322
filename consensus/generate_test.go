package consensus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondochain/rondo/common/crypto"
)

func markMined(m *MinerInRound, seed string, finalOrder int32) {
	m.OutValue = crypto.SHA3Sum256([]byte(seed))
	m.Signature = crypto.SHA3Sum256([]byte(seed + "/sig"))
	m.FinalOrderOfNextRound = finalOrder
}

func assertOrderPermutation(t *testing.T, round *Round) {
	seen := make(map[int32]bool, round.MinersCount())
	for _, m := range round.Miners {
		assert.GreaterOrEqual(t, m.Order, int32(1))
		assert.LessOrEqual(t, m.Order, int32(round.MinersCount()))
		assert.False(t, seen[m.Order], "order %d assigned twice", m.Order)
		seen[m.Order] = true
	}
}

func TestGenerateNextRoundKeepsMinerSet(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	markMined(minerByOrder(t, round, 1), "m1", 3)
	markMined(minerByOrder(t, round, 2), "m2", 1)

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	assert.Equal(t, round.RoundNumber+1, next.RoundNumber)
	assert.Equal(t, round.TermNumber, next.TermNumber)
	assert.True(t, round.HasSameMinerSet(next))
	assertOrderPermutation(t, next)
}

func TestGenerateNextRoundHonorsEarnedOrders(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	first := minerByOrder(t, round, 1)
	second := minerByOrder(t, round, 2)
	markMined(first, "m1", 4)
	markMined(second, "m2", 2)

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	assert.Equal(t, int32(4), next.MinerByKey(first.PublicKey).Order)
	assert.Equal(t, int32(2), next.MinerByKey(second.PublicKey).Order)
	for _, m := range next.Miners {
		assert.Equal(t, int64(50000)+int64(m.Order)*cfg.MiningIntervalMs,
			m.ExpectedMiningTime)
	}
}

func TestGenerateNextRoundChargesMissedSlots(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(4), 1000)
	mined := minerByOrder(t, round, 1)
	markMined(mined, "m1", 1)
	mined.MissedTimeSlots = 2
	missed := minerByOrder(t, round, 3)
	missed.MissedTimeSlots = 5

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.MinerByKey(mined.PublicKey).MissedTimeSlots)
	assert.Equal(t, int64(6), next.MinerByKey(missed.PublicKey).MissedTimeSlots)
}

func TestGenerateNextRoundCarriesIrreversibilityData(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(4), 1000)
	round.ConfirmedIrreversibleBlockHeight = 77
	round.ConfirmedIrreversibleBlockRoundNumber = 1
	for i, m := range round.Miners {
		m.ImpliedIrreversibleBlockHeight = int64(70 + i)
	}
	markMined(minerByOrder(t, round, 2), "m2", 1)

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(77), next.ConfirmedIrreversibleBlockHeight)
	assert.Equal(t, int64(1), next.ConfirmedIrreversibleBlockRoundNumber)
	for i, m := range round.Miners {
		carried := next.MinerByKey(m.PublicKey)
		require.NotNil(t, carried)
		assert.Equal(t, int64(70+i), carried.ImpliedIrreversibleBlockHeight,
			"implied height reset for miner %d", i)
	}
}

func TestGenerateNextRoundResolvesOrderCollisions(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	// Two miners claim the same earned order; one falls into the leftover
	// pool and the result is still a permutation.
	markMined(minerByOrder(t, round, 1), "m1", 2)
	markMined(minerByOrder(t, round, 3), "m3", 2)
	markMined(minerByOrder(t, round, 4), "m4", 9)

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	assert.True(t, round.HasSameMinerSet(next))
	assertOrderPermutation(t, next)
}

func TestGenerateNextRoundSelectsExtraBlockProducer(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	markMined(minerByOrder(t, round, 1), "m1", 1)
	markMined(minerByOrder(t, round, 2), "m2", 2)

	next, err := round.GenerateNextRound(cfg, 50000)
	require.NoError(t, err)
	ebp := next.ExtraBlockProducer()
	require.NotNil(t, ebp)
	// The selection is pinned to the previous round's signature fold.
	assert.Equal(t, round.NextExtraBlockProducerOrder(), ebp.Order)
	prev := round.ExtraBlockProducer()
	require.NotNil(t, prev)
	assert.True(t, bytes.Equal(prev.PublicKey, next.ExtraBlockProducerOfPreviousRound))
}

func TestGenerateNextRoundRejectsEmptyRound(t *testing.T) {
	cfg := newTestConfig()
	empty := &Round{RoundNumber: 1, TermNumber: 1}
	_, err := empty.GenerateNextRound(cfg, 1000)
	assert.Error(t, err)
}
