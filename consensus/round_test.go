package consensus

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondochain/rondo/common/codec"
	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/errors"
)

func TestGenerateFirstRoundOfNewTerm(t *testing.T) {
	cfg := newTestConfig()
	keys := testKeys(5)
	// Shuffled input must not affect the result.
	shuffled := [][]byte{keys[3], keys[0], keys[4], keys[2], keys[1]}

	round, err := GenerateFirstRoundOfNewTerm(cfg, shuffled, 1000, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.RoundNumber)
	assert.Equal(t, int64(1), round.TermNumber)
	require.Equal(t, 5, round.MinersCount())

	for i := 1; i < len(round.Miners); i++ {
		assert.True(t, lessBytes(round.Miners[i-1].PublicKey, round.Miners[i].PublicKey))
	}
	for i, m := range round.Miners {
		assert.Equal(t, int32(i+1), m.Order)
		assert.Equal(t, int64(1000)+int64(i)*cfg.MiningIntervalMs, m.ExpectedMiningTime)
		assert.Equal(t, m.Order == 1, m.IsExtraBlockProducer)
	}
}

func TestGenerateFirstRoundOfNewTermRejectsBadInput(t *testing.T) {
	cfg := newTestConfig()
	keys := testKeys(3)

	_, err := GenerateFirstRoundOfNewTerm(cfg, nil, 1000, 1, 1)
	assert.Error(t, err)
	_, err = GenerateFirstRoundOfNewTerm(cfg, [][]byte{keys[0], keys[0]}, 1000, 1, 1)
	assert.Error(t, err)
	_, err = GenerateFirstRoundOfNewTerm(cfg, [][]byte{keys[0], {0x01, 0x02}}, 1000, 1, 1)
	assert.Error(t, err)
}

func TestRoundMinerLookups(t *testing.T) {
	cfg := newTestConfig()
	keys := testKeys(4)
	round := newTestRound(t, cfg, keys, 1000)

	for _, pk := range keys {
		m := round.MinerByKey(pk)
		require.NotNil(t, m)
		assert.True(t, bytes.Equal(pk, m.PublicKey))
		assert.Equal(t, m, round.MinerByHexKey(hex.EncodeToString(pk)))
	}
	assert.Nil(t, round.MinerByKey(testKeys(5)[4]))
	assert.Nil(t, round.MinerByOrder(5))
	assert.NotNil(t, round.MinerByOrder(3))
}

func TestRoundAddMinerRejectsDuplicate(t *testing.T) {
	cfg := newTestConfig()
	keys := testKeys(3)
	round := newTestRound(t, cfg, keys, 1000)

	err := round.AddMiner(&MinerInRound{PublicKey: keys[1], Order: 4})
	assert.Error(t, err)
	assert.Equal(t, 3, round.MinersCount())
}

func TestRoundIDStableWithinRound(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	id := round.RoundID()

	// Mining inside the round touches values, not expected times.
	mined := round.Clone()
	slot := minerByOrder(t, mined, 2)
	slot.OutValue = crypto.SHA3Sum256([]byte("in"))
	slot.Signature = crypto.SHA3Sum256([]byte("sig"))
	slot.ProducedTinyBlocks = 3
	assert.Equal(t, id, mined.RoundID())

	next, err := round.GenerateNextRound(cfg, 100000)
	require.NoError(t, err)
	assert.NotEqual(t, id, next.RoundID())
}

func TestRoundCheckTimeSlots(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), 1000)
	require.NoError(t, round.CheckTimeSlots(cfg.MiningIntervalMs))

	minerByOrder(t, round, 3).ExpectedMiningTime += 50
	err := round.CheckTimeSlots(cfg.MiningIntervalMs)
	require.Error(t, err)
	assert.Equal(t, CodeTimeSlot, errors.CodeOf(err))
}

func TestRoundIsTimeSlotPassedBoundary(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), 1000)
	m := minerByOrder(t, round, 2)
	slotEnd := m.ExpectedMiningTime + cfg.MiningIntervalMs

	assert.False(t, round.IsTimeSlotPassed(m.PublicKey, slotEnd-1, cfg.MiningIntervalMs))
	assert.True(t, round.IsTimeSlotPassed(m.PublicKey, slotEnd, cfg.MiningIntervalMs))
	assert.True(t, round.IsTimeSlotPassed(m.PublicKey, slotEnd+1, cfg.MiningIntervalMs))
}

func TestRoundSerializationDeterminism(t *testing.T) {
	cfg := newTestConfig()
	keys := testKeys(5)
	round := newTestRound(t, cfg, keys, 1000)

	slot := minerByOrder(t, round, 1)
	slot.OutValue = crypto.SHA3Sum256([]byte("in"))
	slot.EncryptedPieces = map[string][]byte{}
	for _, m := range round.Miners[1:] {
		slot.EncryptedPieces[m.HexKey()] = crypto.SHA3Sum256(m.PublicKey)
	}

	first, err := codec.MarshalToBytes(round)
	require.NoError(t, err)
	second, err := codec.MarshalToBytes(round.Clone())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	// The same logical round assembled in a different insertion order
	// serializes identically.
	rebuilt := &Round{RoundNumber: 1, TermNumber: 1}
	for i := len(round.Miners) - 1; i >= 0; i-- {
		require.NoError(t, rebuilt.AddMiner(round.Miners[i].Clone()))
	}
	third, err := codec.MarshalToBytes(rebuilt)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, third))
}

func TestRoundCodecRoundTrip(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), 1000)
	minerByOrder(t, round, 1).OutValue = crypto.SHA3Sum256([]byte("v"))

	bs, err := codec.MarshalToBytes(round)
	require.NoError(t, err)
	var decoded Round
	_, err = codec.UnmarshalFromBytes(bs, &decoded)
	require.NoError(t, err)
	assert.Equal(t, round.RoundNumber, decoded.RoundNumber)
	assert.Equal(t, round.MinersCount(), decoded.MinersCount())
	assert.Equal(t, round.RoundID(), decoded.RoundID())
	m := decoded.MinerByOrder(1)
	require.NotNil(t, m)
	assert.True(t, bytes.Equal(round.MinerByOrder(1).OutValue, m.OutValue))
}

func TestCalculateSignatureMixesAllSignatures(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), 1000)
	sigs := [][]byte{
		crypto.SHA3Sum256([]byte("a")),
		crypto.SHA3Sum256([]byte("b")),
		crypto.SHA3Sum256([]byte("c")),
	}
	for i, m := range round.Miners {
		m.Signature = sigs[i]
	}

	inValue := crypto.SHA3Sum256([]byte("in"))
	expected := crypto.XORBytes(inValue,
		crypto.XORBytes(sigs[0], crypto.XORBytes(sigs[1], sigs[2])))
	assert.True(t, bytes.Equal(expected, round.CalculateSignature(inValue)))

	// Dropping one signature changes the result.
	round.Miners[1].Signature = nil
	assert.False(t, bytes.Equal(expected, round.CalculateSignature(inValue)))
}

func TestNextExtraBlockProducerOrderInRange(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(7), 1000)
	for i, m := range round.Miners {
		m.Signature = crypto.SHA3Sum256([]byte{byte(i)})
	}
	order := round.NextExtraBlockProducerOrder()
	assert.GreaterOrEqual(t, order, int32(1))
	assert.LessOrEqual(t, order, int32(7))
}
