package consensus

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/rondochain/rondo/common/db"
)

// testKeys returns n deterministic compressed secp256k1 public keys.
func testKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		var seed [32]byte
		seed[30] = byte((i + 1) >> 8)
		seed[31] = byte(i + 1)
		priv := secp256k1.PrivKeyFromBytes(seed[:])
		keys[i] = priv.PubKey().SerializeCompressed()
	}
	return keys
}

func newTestConfig() *Config {
	return &Config{
		MiningIntervalMs: 4000,
		TinyBlocksCount:  8,
		TimeEachTermMs:   7 * 24 * 60 * 60 * 1000,
	}
}

func newTestRound(t *testing.T, cfg *Config, keys [][]byte, startMs int64) *Round {
	round, err := GenerateFirstRoundOfNewTerm(cfg, keys, startMs, 1, 1)
	require.NoError(t, err)
	return round
}

func newTestManager(t *testing.T, cfg *Config, election *fakeElection) *Manager {
	mgr, err := NewManager(cfg, db.NewMapDB(), election, nil)
	require.NoError(t, err)
	return mgr
}

// minerByOrder fails the test instead of returning nil.
func minerByOrder(t *testing.T, round *Round, order int32) *MinerInRound {
	m := round.MinerByOrder(order)
	require.NotNil(t, m, "no miner with order %d", order)
	return m
}

type fakeElection struct {
	victories   [][]byte
	minersCount int
}

func (e *fakeElection) GetVictories(current [][]byte) ([][]byte, error) {
	if e.victories != nil {
		return e.victories, nil
	}
	return current, nil
}

func (e *fakeElection) UpdateMinersCount(count int) error {
	e.minersCount = count
	return nil
}
