package consensus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/module"
)

func TestRoundTransitionRoundTrip(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(5), testStartMs)
	sender := minerByOrder(t, round, 2)

	trans, err := BuildUpdateValueTransition(
		round, nil, sender.PublicKey,
		crypto.SHA3Sum256([]byte("in")), nil,
		sender.ExpectedMiningTime+100, 10)
	require.NoError(t, err)

	bs, err := trans.Bytes()
	require.NoError(t, err)
	decoded, err := ParseRoundTransition(bs)
	require.NoError(t, err)
	assert.Equal(t, module.BehaviorUpdateValue, decoded.Behavior)
	assert.True(t, bytes.Equal(trans.SenderPublicKey, decoded.SenderPublicKey))
	assert.Equal(t, trans.ActualMiningTime, decoded.ActualMiningTime)
	assert.Equal(t, round.RoundID(), decoded.Round.RoundID())
}

func TestParseRoundTransitionRejectsGarbage(t *testing.T) {
	_, err := ParseRoundTransition([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}

func TestParseRoundTransitionRejectsMissingRound(t *testing.T) {
	trans := &RoundTransition{
		SenderPublicKey: testKeys(1)[0],
		Behavior:        module.BehaviorUpdateValue,
	}
	bs, err := trans.Bytes()
	require.NoError(t, err)
	_, err = ParseRoundTransition(bs)
	assert.Error(t, err)
}

func TestParseRoundTransitionRejectsInvalidBehavior(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), testStartMs)
	trans := &RoundTransition{
		SenderPublicKey: round.Miners[0].PublicKey,
		Behavior:        module.BehaviorNothing,
		Round:           round,
	}
	bs, err := trans.Bytes()
	require.NoError(t, err)
	_, err = ParseRoundTransition(bs)
	assert.Error(t, err)
}

func TestParseRoundTransitionRejectsBadMinerKey(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), testStartMs)
	round.Miners[1].PublicKey = []byte{0x01}
	trans := &RoundTransition{
		SenderPublicKey: round.Miners[0].PublicKey,
		Behavior:        module.BehaviorTinyBlock,
		Round:           round,
	}
	bs, err := trans.Bytes()
	require.NoError(t, err)
	_, err = ParseRoundTransition(bs)
	assert.Error(t, err)
}

func TestParseRoundTransitionRejectsNonCanonicalOrder(t *testing.T) {
	cfg := newTestConfig()
	round := newTestRound(t, cfg, testKeys(3), testStartMs)
	round.Miners[0], round.Miners[2] = round.Miners[2], round.Miners[0]
	trans := &RoundTransition{
		SenderPublicKey: round.Miners[0].PublicKey,
		Behavior:        module.BehaviorTinyBlock,
		Round:           round,
	}
	bs, err := trans.Bytes()
	require.NoError(t, err)
	_, err = ParseRoundTransition(bs)
	assert.Error(t, err)
}
