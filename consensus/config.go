package consensus

import (
	"github.com/rondochain/rondo/common/errors"
)

const (
	DefaultMiningIntervalMs = int64(4000)
	DefaultTinyBlocksCount  = int32(8)
	// DefaultTimeEachTermMs is one week.
	DefaultTimeEachTermMs = int64(7 * 24 * 60 * 60 * 1000)
)

type Config struct {
	// MiningIntervalMs is the duration of one miner's time slot.
	MiningIntervalMs int64 `json:"miningInterval" mapstructure:"mining_interval"`

	// TinyBlocksCount caps the blocks a miner may produce inside its own
	// slot, the full block included.
	TinyBlocksCount int32 `json:"tinyBlocksCount" mapstructure:"tiny_blocks_count"`

	// TimeEachTermMs bounds a term; once elapsed the extra block producer
	// terminates the term instead of the round.
	TimeEachTermMs int64 `json:"timeEachTerm" mapstructure:"time_each_term"`

	// IsSideChain collapses NextTerm into NextRound; side chains never
	// run their own elections.
	IsSideChain bool `json:"isSideChain" mapstructure:"is_side_chain"`
}

func NewDefaultConfig() *Config {
	return &Config{
		MiningIntervalMs: DefaultMiningIntervalMs,
		TinyBlocksCount:  DefaultTinyBlocksCount,
		TimeEachTermMs:   DefaultTimeEachTermMs,
	}
}

func (c *Config) Validate() error {
	if c.MiningIntervalMs <= 0 {
		return errors.IllegalArgumentError.Errorf(
			"InvalidMiningInterval(interval=%d)", c.MiningIntervalMs)
	}
	if c.TinyBlocksCount < 1 {
		return errors.IllegalArgumentError.Errorf(
			"InvalidTinyBlocksCount(count=%d)", c.TinyBlocksCount)
	}
	if c.TimeEachTermMs <= 0 {
		return errors.IllegalArgumentError.Errorf(
			"InvalidTimeEachTerm(time=%d)", c.TimeEachTermMs)
	}
	return nil
}
