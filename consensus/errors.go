package consensus

import (
	"github.com/rondochain/rondo/common/errors"
)

const (
	CodeMiningPermission errors.Code = errors.CodeConsensus + iota
	CodeContinuousBlocks
	CodeUpdateValue
	CodeTimeSlot
	CodeRoundTermination
	CodeMinerList
	CodeLIBRollback
	CodeSecretPieces
	CodeInvalidProposal
	CodeRoundNotFound
)

var (
	ErrMiningPermission = errors.NewBase(CodeMiningPermission, "MiningPermission")
	ErrContinuousBlocks = errors.NewBase(CodeContinuousBlocks, "ContinuousBlocks")
	ErrUpdateValue      = errors.NewBase(CodeUpdateValue, "UpdateValue")
	ErrTimeSlot         = errors.NewBase(CodeTimeSlot, "TimeSlot")
	ErrRoundTermination = errors.NewBase(CodeRoundTermination, "RoundTermination")
	ErrMinerList        = errors.NewBase(CodeMinerList, "MinerList")
	ErrLIBRollback      = errors.NewBase(CodeLIBRollback, "LIBRollback")
	ErrSecretPieces     = errors.NewBase(CodeSecretPieces, "SecretPieces")
	ErrInvalidProposal  = errors.NewBase(CodeInvalidProposal, "InvalidProposal")
	ErrRoundNotFound    = errors.NewBase(CodeRoundNotFound, "RoundNotFound")
)

// IsReTriggerable reports whether the validation failure may succeed if
// the miner requests a fresh consensus command and retries. Only the
// time-slot family is recoverable that way; everything else is a
// permanent rejection of the proposal.
func IsReTriggerable(err error) bool {
	return errors.CodeOf(err) == CodeTimeSlot
}
