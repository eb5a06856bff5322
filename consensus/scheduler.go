package consensus

import (
	"github.com/rondochain/rondo/module"
)

// BehaviorScheduler decides what a miner should do next. It is a pure
// function of the round, the miner identity and the wall clock; nothing
// here mutates state, and nothing is cached between invocations.
type BehaviorScheduler struct {
	cfg *Config

	// blockchainStartTimeMs anchors term-boundary arithmetic.
	blockchainStartTimeMs int64
}

func NewBehaviorScheduler(cfg *Config, blockchainStartTimeMs int64) *BehaviorScheduler {
	return &BehaviorScheduler{
		cfg:                   cfg,
		blockchainStartTimeMs: blockchainStartTimeMs,
	}
}

// GetConsensusBehavior decides the next action for the miner at nowMs.
func (s *BehaviorScheduler) GetConsensusBehavior(round *Round, pk []byte, nowMs int64) module.ConsensusBehavior {
	m := round.MinerByKey(pk)
	if m == nil {
		return module.BehaviorNothing
	}

	slotPassed := round.IsTimeSlotPassed(pk, nowMs, s.cfg.MiningIntervalMs)

	if !m.HasMined() {
		// While genesis timing stabilizes, later miners seeing no block
		// from the first slot terminate the round rather than mine ahead
		// of it.
		if round.RoundNumber == 1 && m.Order != 1 {
			if first := round.MinerByOrder(1); first != nil && !first.HasMined() {
				return s.terminationBehavior(round, nowMs)
			}
		}
		if !slotPassed {
			return module.BehaviorUpdateValue
		}
		return s.maybeTerminate(round, m, nowMs)
	}

	if !slotPassed && m.ProducedTinyBlocks < s.cfg.TinyBlocksCount {
		return module.BehaviorTinyBlock
	}
	return s.maybeTerminate(round, m, nowMs)
}

func (s *BehaviorScheduler) maybeTerminate(round *Round, m *MinerInRound, nowMs int64) module.ConsensusBehavior {
	if !m.IsExtraBlockProducer {
		return module.BehaviorNothing
	}
	if nowMs < round.ExtraBlockMiningTime(s.cfg.MiningIntervalMs) {
		return module.BehaviorNothing
	}
	return s.terminationBehavior(round, nowMs)
}

func (s *BehaviorScheduler) terminationBehavior(round *Round, nowMs int64) module.ConsensusBehavior {
	if s.cfg.IsSideChain {
		return module.BehaviorNextRound
	}
	if s.needsNextTerm(round, nowMs) {
		return module.BehaviorNextTerm
	}
	return module.BehaviorNextRound
}

func (s *BehaviorScheduler) needsNextTerm(round *Round, nowMs int64) bool {
	if nowMs <= s.blockchainStartTimeMs {
		return false
	}
	expectedTerm := (nowMs-s.blockchainStartTimeMs)/s.cfg.TimeEachTermMs + 1
	return expectedTerm > round.TermNumber
}

// GetConsensusCommand turns the behavior decision into a command for the
// block production infrastructure.
func (s *BehaviorScheduler) GetConsensusCommand(round *Round, pk []byte, nowMs int64) *module.ConsensusCommand {
	behavior := s.GetConsensusBehavior(round, pk, nowMs)
	cmd := &module.ConsensusCommand{
		Behavior:         behavior,
		LimitBlocksCount: 1,
	}
	m := round.MinerByKey(pk)
	switch behavior {
	case module.BehaviorUpdateValue:
		cmd.ArrangedMiningTime = m.ExpectedMiningTime
		if cmd.ArrangedMiningTime < nowMs {
			cmd.ArrangedMiningTime = nowMs
		}
		cmd.LimitBlocksCount = s.cfg.TinyBlocksCount
	case module.BehaviorTinyBlock:
		cmd.ArrangedMiningTime = nowMs
		cmd.LimitBlocksCount = s.cfg.TinyBlocksCount - m.ProducedTinyBlocks
	case module.BehaviorNextRound, module.BehaviorNextTerm:
		cmd.ArrangedMiningTime = round.ExtraBlockMiningTime(s.cfg.MiningIntervalMs)
		if cmd.ArrangedMiningTime < nowMs {
			cmd.ArrangedMiningTime = nowMs
		}
	default:
		cmd.ArrangedMiningTime = 0
		cmd.LimitBlocksCount = 0
	}
	return cmd
}
