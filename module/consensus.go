package module

import "fmt"

// ConsensusBehavior is the action a miner should take next, as decided by
// the behavior scheduler.
type ConsensusBehavior int

const (
	BehaviorNothing ConsensusBehavior = iota
	BehaviorUpdateValue
	BehaviorTinyBlock
	BehaviorNextRound
	BehaviorNextTerm
)

func (b ConsensusBehavior) String() string {
	switch b {
	case BehaviorNothing:
		return "Nothing"
	case BehaviorUpdateValue:
		return "UpdateValue"
	case BehaviorTinyBlock:
		return "TinyBlock"
	case BehaviorNextRound:
		return "NextRound"
	case BehaviorNextTerm:
		return "NextTerm"
	default:
		return fmt.Sprintf("ConsensusBehavior(%d)", b)
	}
}

// Terminates reports whether the behavior ends the current round or term.
func (b ConsensusBehavior) Terminates() bool {
	return b == BehaviorNextRound || b == BehaviorNextTerm
}

// ConsensusCommand tells the block production infrastructure what to do
// and when.
type ConsensusCommand struct {
	Behavior           ConsensusBehavior
	ArrangedMiningTime int64 // unix milliseconds
	LimitBlocksCount   int32
}

// ValidationResult is the outcome of validating a proposed round
// transition before execution. IsReTrigger marks failures that may
// succeed on retry with a fresh command (e.g. time slot already passed).
type ValidationResult struct {
	Success     bool
	Message     string
	IsReTrigger bool
}
