package consensus

import (
	"bytes"

	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/errors"
	"github.com/rondochain/rondo/module"
)

// ValidationContext carries everything a validator may read. BaseRound is
// the locally stored current round (ground truth), ProvidedRound the
// proposed image from the incoming block, PreviousRound the stored round
// before BaseRound (nil at genesis). Rounds are passed explicitly; no
// validator reaches into shared state.
type ValidationContext struct {
	Config *Config

	BaseRound     *Round
	PreviousRound *Round
	ProvidedRound *Round

	Behavior         module.ConsensusBehavior
	SenderPublicKey  []byte
	ActualMiningTime int64

	// ExpectedNextTermMiners is the authoritative election output; it is
	// consulted only for NextTerm proposals.
	ExpectedNextTermMiners [][]byte

	// MainChainMiners is the pending miner list pushed from the main
	// chain; it is consulted only for side-chain NextRound proposals.
	MainChainMiners [][]byte
}

type Validator interface {
	Name() string
	Validate(ctx *ValidationContext) error
}

// ValidationPipeline short-circuits on the first failing validator.
type ValidationPipeline struct {
	validators []Validator
}

func NewValidationPipeline() *ValidationPipeline {
	return &ValidationPipeline{
		validators: []Validator{
			miningPermissionValidator{},
			continuousBlocksValidator{},
			updateValueValidator{},
			timeSlotValidator{},
			roundTerminationValidator{},
			minerListValidator{},
			libMonotonicityValidator{},
			secretPiecesValidator{},
		},
	}
}

func (p *ValidationPipeline) Validate(ctx *ValidationContext) error {
	for _, v := range p.validators {
		if err := v.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run wraps Validate into the external result form.
func (p *ValidationPipeline) Run(ctx *ValidationContext) *module.ValidationResult {
	if err := p.Validate(ctx); err != nil {
		return &module.ValidationResult{
			Success:     false,
			Message:     errors.ToString(err),
			IsReTrigger: IsReTriggerable(err),
		}
	}
	return &module.ValidationResult{Success: true}
}

// verifyPreviousInValues enforces the commitment invariant for every
// miner whose previous in-value appears in the round image, not only the
// sender's own. This single helper serves every ingestion path: direct
// proposals and secret-sharing recovery alike.
func verifyPreviousInValues(provided, previous *Round) error {
	if previous == nil {
		return nil
	}
	for _, m := range provided.Miners {
		if len(m.PreviousInValue) == 0 {
			continue
		}
		pm := previous.MinerByKey(m.PublicKey)
		if pm == nil || len(pm.OutValue) == 0 {
			// A reveal with no matching commitment carries arbitrary data.
			return CodeUpdateValue.Errorf(
				"RevealWithoutCommitment(miner=%x)", m.PublicKey)
		}
		if !crypto.VerifyCommitment(m.PreviousInValue, pm.OutValue) {
			return CodeUpdateValue.Errorf(
				"CommitmentMismatch(miner=%x)", m.PublicKey)
		}
	}
	return nil
}

//----------------------------------------
// MiningPermission

type miningPermissionValidator struct{}

func (miningPermissionValidator) Name() string {
	return "MiningPermission"
}

func (miningPermissionValidator) Validate(ctx *ValidationContext) error {
	if err := crypto.ValidatePublicKey(ctx.SenderPublicKey); err != nil {
		return CodeMiningPermission.Wrap(err, "InvalidSenderKey")
	}
	if ctx.BaseRound.MinerByKey(ctx.SenderPublicKey) == nil {
		return CodeMiningPermission.Errorf(
			"NotAMiner(sender=%x)", ctx.SenderPublicKey)
	}
	return nil
}

//----------------------------------------
// ContinuousBlocks

type continuousBlocksValidator struct{}

func (continuousBlocksValidator) Name() string {
	return "ContinuousBlocks"
}

func (continuousBlocksValidator) Validate(ctx *ValidationContext) error {
	m := ctx.ProvidedRound.MinerByKey(ctx.SenderPublicKey)
	if m == nil {
		// The terminator need not survive into the round it installs.
		if ctx.Behavior.Terminates() {
			return nil
		}
		return CodeContinuousBlocks.Errorf(
			"SenderNotInProvidedRound(sender=%x)", ctx.SenderPublicKey)
	}
	if m.ProducedTinyBlocks > ctx.Config.TinyBlocksCount {
		return CodeContinuousBlocks.Errorf(
			"TooManyBlocksInOneSlot(produced=%d,limit=%d)",
			m.ProducedTinyBlocks, ctx.Config.TinyBlocksCount)
	}
	return nil
}

//----------------------------------------
// UpdateValue

type updateValueValidator struct{}

func (updateValueValidator) Name() string {
	return "UpdateValue"
}

func (updateValueValidator) Validate(ctx *ValidationContext) error {
	if ctx.Behavior != module.BehaviorUpdateValue {
		return nil
	}
	m := ctx.ProvidedRound.MinerByKey(ctx.SenderPublicKey)
	if m == nil {
		return CodeUpdateValue.New("SenderNotInProvidedRound")
	}
	if len(m.OutValue) == 0 || len(m.Signature) == 0 {
		return CodeUpdateValue.New("EmptyOutValueOrSignature")
	}
	return verifyPreviousInValues(ctx.ProvidedRound, ctx.PreviousRound)
}

//----------------------------------------
// TimeSlot

type timeSlotValidator struct{}

func (timeSlotValidator) Name() string {
	return "TimeSlot"
}

func (timeSlotValidator) Validate(ctx *ValidationContext) error {
	sameID := ctx.ProvidedRound.RoundID() == ctx.BaseRound.RoundID()
	if ctx.Behavior.Terminates() {
		if sameID {
			return CodeTimeSlot.New("RoundIDUnchangedOnTermination")
		}
		if err := ctx.ProvidedRound.CheckTimeSlots(ctx.Config.MiningIntervalMs); err != nil {
			return err
		}
		return nil
	}
	if !sameID {
		return CodeTimeSlot.Errorf(
			"RoundIDChanged(base=%d,provided=%d)",
			ctx.BaseRound.RoundID(), ctx.ProvidedRound.RoundID())
	}
	// Same inequality as the scheduler: the slot is over at its end
	// timestamp exactly.
	if ctx.BaseRound.IsTimeSlotPassed(
		ctx.SenderPublicKey, ctx.ActualMiningTime, ctx.Config.MiningIntervalMs) {
		return CodeTimeSlot.Errorf(
			"TimeSlotPassed(actual=%d)", ctx.ActualMiningTime)
	}
	m := ctx.BaseRound.MinerByKey(ctx.SenderPublicKey)
	if m != nil && m.ExpectedMiningTime > 0 &&
		ctx.ActualMiningTime < m.ExpectedMiningTime {
		return CodeTimeSlot.Errorf(
			"MinedBeforeSlot(actual=%d,expected=%d)",
			ctx.ActualMiningTime, m.ExpectedMiningTime)
	}
	return nil
}

//----------------------------------------
// RoundTermination

type roundTerminationValidator struct{}

func (roundTerminationValidator) Name() string {
	return "RoundTermination"
}

func (roundTerminationValidator) Validate(ctx *ValidationContext) error {
	if !ctx.Behavior.Terminates() {
		return nil
	}
	if ctx.ProvidedRound.RoundNumber != ctx.BaseRound.RoundNumber+1 {
		return CodeRoundTermination.Errorf(
			"InvalidRoundNumber(base=%d,provided=%d)",
			ctx.BaseRound.RoundNumber, ctx.ProvidedRound.RoundNumber)
	}
	switch ctx.Behavior {
	case module.BehaviorNextRound:
		if ctx.ProvidedRound.TermNumber != ctx.BaseRound.TermNumber {
			return CodeRoundTermination.Errorf(
				"TermChangedOnNextRound(base=%d,provided=%d)",
				ctx.BaseRound.TermNumber, ctx.ProvidedRound.TermNumber)
		}
	case module.BehaviorNextTerm:
		if ctx.ProvidedRound.TermNumber != ctx.BaseRound.TermNumber+1 {
			return CodeRoundTermination.Errorf(
				"InvalidTermNumber(base=%d,provided=%d)",
				ctx.BaseRound.TermNumber, ctx.ProvidedRound.TermNumber)
		}
	}
	// A fresh round starts with no commitments yet.
	for _, m := range ctx.ProvidedRound.Miners {
		if len(m.InValue) != 0 {
			return CodeRoundTermination.Errorf(
				"InValueSetInFreshRound(miner=%x)", m.PublicKey)
		}
	}
	return nil
}

//----------------------------------------
// MinerListConsistency

// minerListValidator pins the miner set across NextRound transitions: no
// additions, no removals, reordering permitted. The one exception is a
// side-chain NextRound installing the exact miner list pushed from the
// main chain. NextTerm replaces the set but only with the authoritative
// election output.
type minerListValidator struct{}

func (minerListValidator) Name() string {
	return "MinerListConsistency"
}

func (minerListValidator) Validate(ctx *ValidationContext) error {
	switch ctx.Behavior {
	case module.BehaviorNextRound:
		if ctx.BaseRound.HasSameMinerSet(ctx.ProvidedRound) {
			return nil
		}
		pushed := ctx.MainChainMiners
		if len(pushed) == 0 {
			return CodeMinerList.New("MinerSetChangedOnNextRound")
		}
		if len(pushed) != ctx.ProvidedRound.MinersCount() {
			return CodeMinerList.Errorf(
				"MinerCountMismatch(pushed=%d,provided=%d)",
				len(pushed), ctx.ProvidedRound.MinersCount())
		}
		for _, pk := range pushed {
			if ctx.ProvidedRound.MinerByKey(pk) == nil {
				return CodeMinerList.Errorf(
					"UnpushedMiner(expected=%x)", pk)
			}
		}
	case module.BehaviorNextTerm:
		expected := ctx.ExpectedNextTermMiners
		if len(expected) == 0 {
			return CodeMinerList.New("NoElectionResult")
		}
		if len(expected) != ctx.ProvidedRound.MinersCount() {
			return CodeMinerList.Errorf(
				"MinerCountMismatch(expected=%d,provided=%d)",
				len(expected), ctx.ProvidedRound.MinersCount())
		}
		for _, pk := range expected {
			if ctx.ProvidedRound.MinerByKey(pk) == nil {
				return CodeMinerList.Errorf(
					"UnelectedMiner(expected=%x)", pk)
			}
		}
	}
	return nil
}

//----------------------------------------
// LIBMonotonicity

// libMonotonicityValidator runs for every behavior. Any transition path
// that could reset the irreversibility data backward, NextTerm included,
// is rejected here.
type libMonotonicityValidator struct{}

func (libMonotonicityValidator) Name() string {
	return "LIBMonotonicity"
}

func (libMonotonicityValidator) Validate(ctx *ValidationContext) error {
	if ctx.ProvidedRound.ConfirmedIrreversibleBlockHeight <
		ctx.BaseRound.ConfirmedIrreversibleBlockHeight {
		return CodeLIBRollback.Errorf(
			"HeightRollback(base=%d,provided=%d)",
			ctx.BaseRound.ConfirmedIrreversibleBlockHeight,
			ctx.ProvidedRound.ConfirmedIrreversibleBlockHeight)
	}
	if ctx.ProvidedRound.ConfirmedIrreversibleBlockRoundNumber <
		ctx.BaseRound.ConfirmedIrreversibleBlockRoundNumber {
		return CodeLIBRollback.Errorf(
			"RoundNumberRollback(base=%d,provided=%d)",
			ctx.BaseRound.ConfirmedIrreversibleBlockRoundNumber,
			ctx.ProvidedRound.ConfirmedIrreversibleBlockRoundNumber)
	}
	return nil
}

//----------------------------------------
// SecretSharingFields

// secretPiecesValidator guards the secret-sharing side channel. Pieces
// may only reference miners of the base round, and previous in-values
// present for non-sender miners must satisfy the same commitment check
// as the primary path; arriving as trigger information exempts nothing.
type secretPiecesValidator struct{}

func (secretPiecesValidator) Name() string {
	return "SecretSharingFields"
}

func (secretPiecesValidator) Validate(ctx *ValidationContext) error {
	for _, m := range ctx.ProvidedRound.Miners {
		for key, piece := range m.EncryptedPieces {
			if len(piece) == 0 {
				return CodeSecretPieces.Errorf(
					"EmptyEncryptedPiece(miner=%x)", m.PublicKey)
			}
			if ctx.BaseRound.MinerByHexKey(key) == nil {
				return CodeSecretPieces.Errorf(
					"UnknownPieceReceiver(key=%s)", key)
			}
		}
		for key, piece := range m.DecryptedPieces {
			if len(piece) == 0 {
				return CodeSecretPieces.Errorf(
					"EmptyDecryptedPiece(miner=%x)", m.PublicKey)
			}
			if ctx.BaseRound.MinerByHexKey(key) == nil {
				return CodeSecretPieces.Errorf(
					"UnknownPieceDecryptor(key=%s)", key)
			}
		}
		if !bytes.Equal(m.PublicKey, ctx.SenderPublicKey) {
			if len(m.PreviousInValue) > 0 {
				if err := verifyPreviousInValue(
					m, ctx.PreviousRound); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func verifyPreviousInValue(m *MinerInRound, previous *Round) error {
	if previous == nil {
		return nil
	}
	pm := previous.MinerByKey(m.PublicKey)
	if pm == nil || len(pm.OutValue) == 0 {
		return CodeSecretPieces.Errorf(
			"RevealWithoutCommitment(miner=%x)", m.PublicKey)
	}
	if !crypto.VerifyCommitment(m.PreviousInValue, pm.OutValue) {
		return CodeSecretPieces.Errorf(
			"CommitmentMismatch(miner=%x)", m.PublicKey)
	}
	return nil
}
