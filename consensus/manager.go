package consensus

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/db"
	"github.com/rondochain/rondo/common/errors"
	"github.com/rondochain/rondo/common/log"
	"github.com/rondochain/rondo/consensus/secretsharing"
	"github.com/rondochain/rondo/module"
)

// Manager owns all consensus state mutation. Validation of candidate
// blocks is read-only and may run concurrently, but Execute serializes
// the apply step and commits a whole round transition through one
// staged-database flush; partial writes are never observable.
type Manager struct {
	mu sync.Mutex

	cfg      *Config
	database db.Database
	election module.Election
	log      log.Logger

	pipeline  *ValidationPipeline
	scheduler *BehaviorScheduler

	startTimeMs int64

	// mainChainMiners is the latest list pushed from the main chain;
	// side chains use it instead of an election. Guarded by minersMu so
	// pushes never contend with the apply path.
	minersMu        sync.Mutex
	mainChainMiners [][]byte
}

func NewManager(cfg *Config, database db.Database, election module.Election, logger log.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GlobalLogger()
	}
	m := &Manager{
		cfg:      cfg,
		database: database,
		election: election,
		log:      logger.WithFields(log.Fields{log.FieldKeyModule: "CS"}),
		pipeline: NewValidationPipeline(),
	}
	store := newRoundStore(database)
	startTime, err := store.StartTime()
	if err != nil {
		return nil, err
	}
	m.startTimeMs = startTime
	m.scheduler = NewBehaviorScheduler(cfg, startTime)
	return m, nil
}

// Initialize writes the genesis round for the miner list. It is a no-op
// failure if the chain already has state.
func (m *Manager) Initialize(minerList [][]byte, startTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	store := newRoundStore(m.database)
	if n, err := store.CurrentRoundNumber(); err != nil {
		return err
	} else if n != 0 {
		return errors.InvalidStateError.Errorf("AlreadyInitialized(round=%d)", n)
	}

	startMs := startTime.UnixMilli()
	round, err := GenerateFirstRoundOfNewTerm(m.cfg, minerList, startMs, 1, 1)
	if err != nil {
		return err
	}

	ldb := db.NewLayerDB(m.database)
	staged := newRoundStore(ldb)
	if err := staged.PutRound(round); err != nil {
		return err
	}
	if err := staged.SetCurrentRoundNumber(1); err != nil {
		return err
	}
	if err := staged.SetCurrentTermNumber(1); err != nil {
		return err
	}
	if err := staged.SetStartTime(startMs); err != nil {
		return err
	}
	if err := ldb.Flush(true); err != nil {
		return err
	}
	m.startTimeMs = startMs
	m.scheduler = NewBehaviorScheduler(m.cfg, startMs)
	m.log.Infof("initialized genesis round miners=%d start=%d", len(minerList), startMs)
	return nil
}

func (m *Manager) GetCurrentRound() (*Round, error) {
	store := newRoundStore(m.database)
	n, err := store.CurrentRoundNumber()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.InvalidStateError.New("NotInitialized")
	}
	return store.GetRound(n)
}

func (m *Manager) GetRound(n int64) (*Round, error) {
	return newRoundStore(m.database).GetRound(n)
}

func (m *Manager) LIBHeight() (int64, error) {
	return newRoundStore(m.database).LIBHeight()
}

// GetConsensusCommand decides what the miner should do next, recomputed
// fresh from the wall clock on every call.
func (m *Manager) GetConsensusCommand(pk []byte, now time.Time) (*module.ConsensusCommand, error) {
	if err := crypto.ValidatePublicKey(pk); err != nil {
		return nil, err
	}
	round, err := m.GetCurrentRound()
	if err != nil {
		return nil, err
	}
	return m.scheduler.GetConsensusCommand(round, pk, now.UnixMilli()), nil
}

// ValidateBeforeExecution runs the validation pipeline against the
// proposal without touching state.
func (m *Manager) ValidateBeforeExecution(proposal []byte) *module.ValidationResult {
	t, err := ParseRoundTransition(proposal)
	if err != nil {
		return &module.ValidationResult{Success: false, Message: errors.ToString(err)}
	}
	ctx, err := m.buildContext(t)
	if err != nil {
		return &module.ValidationResult{Success: false, Message: errors.ToString(err)}
	}
	return m.pipeline.Run(ctx)
}

// Execute validates and applies a round transition atomically.
func (m *Manager) Execute(proposal []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := ParseRoundTransition(proposal)
	if err != nil {
		return err
	}
	ctx, err := m.buildContext(t)
	if err != nil {
		return err
	}
	if err := m.pipeline.Validate(ctx); err != nil {
		m.log.Debugf("reject transition behavior=%s err=%v", t.Behavior, err)
		return err
	}
	if !t.Behavior.Terminates() &&
		t.Round.RoundNumber != ctx.BaseRound.RoundNumber {
		return CodeInvalidProposal.Errorf(
			"RoundNumberMismatch(base=%d,provided=%d)",
			ctx.BaseRound.RoundNumber, t.Round.RoundNumber)
	}

	ldb := db.NewLayerDB(m.database)
	staged := newRoundStore(ldb)
	switch t.Behavior {
	case module.BehaviorUpdateValue, module.BehaviorTinyBlock:
		err = m.applyMining(staged, ctx, t)
	case module.BehaviorNextRound, module.BehaviorNextTerm:
		err = m.applyTermination(staged, ctx, t)
	}
	if err != nil {
		return err
	}
	if err := ldb.Flush(true); err != nil {
		return errors.CriticalIOError.Wrap(err, "FailToCommitTransition")
	}
	return nil
}

func (m *Manager) buildContext(t *RoundTransition) (*ValidationContext, error) {
	store := newRoundStore(m.database)
	n, err := store.CurrentRoundNumber()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.InvalidStateError.New("NotInitialized")
	}
	base, err := store.GetRound(n)
	if err != nil {
		return nil, err
	}
	var previous *Round
	if n > 1 {
		if previous, err = store.GetRound(n - 1); err != nil {
			return nil, err
		}
	}
	ctx := &ValidationContext{
		Config:           m.cfg,
		BaseRound:        base,
		PreviousRound:    previous,
		ProvidedRound:    t.Round,
		Behavior:         t.Behavior,
		SenderPublicKey:  t.SenderPublicKey,
		ActualMiningTime: t.ActualMiningTime,
	}
	if t.Behavior == module.BehaviorNextRound && m.cfg.IsSideChain {
		ctx.MainChainMiners = m.MainChainMinerList()
	}
	if t.Behavior == module.BehaviorNextTerm {
		if m.cfg.IsSideChain {
			return nil, CodeRoundTermination.New("NextTermOnSideChain")
		}
		if m.election == nil {
			return nil, errors.InvalidStateError.New("NoElection")
		}
		victories, err := m.election.GetVictories(base.MinerKeys())
		if err != nil {
			return nil, errors.InterruptedError.Wrap(err, "FailToGetVictories")
		}
		ctx.ExpectedNextTermMiners = victories
	}
	return ctx, nil
}

// applyMining merges an UpdateValue or TinyBlock proposal into the
// stored current round.
func (m *Manager) applyMining(staged *roundStore, ctx *ValidationContext, t *RoundTransition) error {
	round := ctx.BaseRound.Clone()
	slot := round.MinerByKey(t.SenderPublicKey)
	provided := t.Round.MinerByKey(t.SenderPublicKey)
	if slot == nil || provided == nil {
		return CodeMiningPermission.New("SenderSlotMissing")
	}

	slot.ProducedBlocks++
	slot.ActualMiningTimes = append(slot.ActualMiningTimes, t.ActualMiningTime)
	if t.Behavior == module.BehaviorUpdateValue {
		slot.OutValue = cloneBytes(provided.OutValue)
		slot.Signature = cloneBytes(provided.Signature)
		slot.ProducedTinyBlocks = 1
		slot.ImpliedIrreversibleBlockHeight = provided.ImpliedIrreversibleBlockHeight
		slot.SupposedOrderOfNextRound = provided.SupposedOrderOfNextRound
		slot.FinalOrderOfNextRound = provided.FinalOrderOfNextRound
		if len(provided.PreviousInValue) > 0 && len(slot.PreviousInValue) == 0 {
			slot.PreviousInValue = cloneBytes(provided.PreviousInValue)
		}
	} else {
		slot.ProducedTinyBlocks++
	}

	// Other miners' revealed previous in-values, already validated
	// against their commitments by the pipeline. First writer wins. Only
	// a miner's own UpdateValue may claim a next-round order; order
	// claims a proposal makes for other miners are not merged.
	for _, pm := range t.Round.Miners {
		if bytes.Equal(pm.PublicKey, t.SenderPublicKey) {
			continue
		}
		target := round.MinerByKey(pm.PublicKey)
		if target == nil {
			continue
		}
		if len(pm.PreviousInValue) > 0 && len(target.PreviousInValue) == 0 {
			target.PreviousInValue = cloneBytes(pm.PreviousInValue)
		}
	}

	m.performSecretSharing(round, t.Round)
	if ctx.PreviousRound != nil {
		prev := ctx.PreviousRound.Clone()
		m.revealSharedInValues(round, prev, t.SenderPublicKey)
		m.backfillInValues(round, prev)
		if err := staged.PutRound(prev); err != nil {
			return err
		}
	}
	if err := m.updateLIB(staged, round); err != nil {
		return err
	}
	return staged.PutRound(round)
}

// applyTermination installs the next round (or the first round of the
// next term) as current.
func (m *Manager) applyTermination(staged *roundStore, ctx *ValidationContext, t *RoundTransition) error {
	round := t.Round.Clone()

	// Irreversibility data survives every termination path. Attestations
	// of miners that the proposal failed to carry forward are restored
	// from the base round.
	base := ctx.BaseRound
	if round.ConfirmedIrreversibleBlockHeight < base.ConfirmedIrreversibleBlockHeight {
		round.ConfirmedIrreversibleBlockHeight = base.ConfirmedIrreversibleBlockHeight
		round.ConfirmedIrreversibleBlockRoundNumber = base.ConfirmedIrreversibleBlockRoundNumber
	}
	for _, slot := range round.Miners {
		if prev := base.MinerByKey(slot.PublicKey); prev != nil {
			if slot.ImpliedIrreversibleBlockHeight == 0 {
				slot.ImpliedIrreversibleBlockHeight = prev.ImpliedIrreversibleBlockHeight
			}
		}
	}

	if err := staged.PutRound(round); err != nil {
		return err
	}
	if err := staged.SetCurrentRoundNumber(round.RoundNumber); err != nil {
		return err
	}
	if t.Behavior == module.BehaviorNextRound && m.cfg.IsSideChain &&
		!base.HasSameMinerSet(round) {
		// The pushed main-chain list was installed; consume it.
		m.consumeMainChainMinerList()
		m.log.Infof("main chain miner list installed round=%d miners=%d",
			round.RoundNumber, round.MinersCount())
	}
	if t.Behavior == module.BehaviorNextTerm {
		if err := staged.SetCurrentTermNumber(round.TermNumber); err != nil {
			return err
		}
		if round.MinersCount() != base.MinersCount() {
			if err := m.election.UpdateMinersCount(round.MinersCount()); err != nil {
				return errors.InterruptedError.Wrap(err, "FailToUpdateMinersCount")
			}
		}
		m.log.Infof("term %d started round=%d miners=%d",
			round.TermNumber, round.RoundNumber, round.MinersCount())
	}
	return nil
}

// performSecretSharing merges encrypted and decrypted pieces from the
// proposal into the stored round. The pieces themselves were already
// screened by the pipeline; merged values never overwrite existing ones.
func (m *Manager) performSecretSharing(round, provided *Round) {
	for _, pm := range provided.Miners {
		target := round.MinerByKey(pm.PublicKey)
		if target == nil {
			continue
		}
		target.EncryptedPieces = mergePieces(target.EncryptedPieces, pm.EncryptedPieces)
		target.DecryptedPieces = mergePieces(target.DecryptedPieces, pm.DecryptedPieces)
	}
}

func mergePieces(dst, src map[string][]byte) map[string][]byte {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string][]byte, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = cloneBytes(v)
		}
	}
	return dst
}

// revealSharedInValues reconstructs, for every other miner present in
// both rounds, the in-value that miner failed to reveal directly, using
// the threshold shares collected in the previous round. Both the
// enough-pieces gate and the reconstruction use the same 2/3 threshold;
// a single withholding miner can never block revelation. Not reaching
// the threshold is a silent skip, not an error.
func (m *Manager) revealSharedInValues(round, previous *Round, publisher []byte) {
	threshold := SharesThreshold(previous.MinersCount())

	for _, slot := range round.Miners {
		if bytes.Equal(slot.PublicKey, publisher) {
			continue
		}
		if len(slot.PreviousInValue) > 0 {
			// First writer wins; a legitimately revealed value is never
			// overwritten by a reconstruction.
			continue
		}
		pm := previous.MinerByKey(slot.PublicKey)
		if pm == nil || len(pm.OutValue) == 0 {
			continue
		}
		if len(pm.EncryptedPieces) < threshold || len(pm.DecryptedPieces) < threshold {
			continue
		}

		keys := make([]string, 0, len(pm.DecryptedPieces))
		for k := range pm.DecryptedPieces {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		shares := make([][]byte, 0, threshold)
		orders := make([]int, 0, threshold)
		for _, k := range keys {
			holder := previous.MinerByHexKey(k)
			if holder == nil {
				continue
			}
			shares = append(shares, pm.DecryptedPieces[k])
			orders = append(orders, int(holder.Order))
			if len(shares) == threshold {
				break
			}
		}
		if len(shares) < threshold {
			continue
		}

		revealed, err := secretsharing.DecodeSecret(shares, orders, threshold)
		if err != nil {
			m.log.Warnf("reconstruction failed miner=%s err=%v", slot.HexKey(), err)
			continue
		}
		revealed = leftPad(revealed, crypto.HashLen)
		// The reconstruction side channel gets the same commitment check
		// as a direct reveal.
		if !crypto.VerifyCommitment(revealed, pm.OutValue) {
			m.log.Warnf("reconstructed value mismatches commitment miner=%s", slot.HexKey())
			continue
		}
		slot.PreviousInValue = revealed
	}
}

// backfillInValues records revealed secrets into the originating round
// so that historical rounds carry their own in-values once known.
func (m *Manager) backfillInValues(round, previous *Round) {
	for _, slot := range round.Miners {
		if len(slot.PreviousInValue) == 0 {
			continue
		}
		if pm := previous.MinerByKey(slot.PublicKey); pm != nil && len(pm.InValue) == 0 {
			pm.InValue = cloneBytes(slot.PreviousInValue)
		}
	}
}

func (m *Manager) updateLIB(staged *roundStore, round *Round) error {
	candidate, ok := CalculateLIB(round)
	if !ok {
		return nil
	}
	current, err := staged.LIBHeight()
	if err != nil {
		return err
	}
	if candidate <= current {
		return nil
	}
	if err := staged.SetLIBHeight(candidate); err != nil {
		return err
	}
	if err := staged.SetLIBRoundNumber(round.RoundNumber); err != nil {
		return err
	}
	round.ConfirmedIrreversibleBlockHeight = candidate
	round.ConfirmedIrreversibleBlockRoundNumber = round.RoundNumber
	m.log.Debugf("LIB advanced height=%d round=%d", candidate, round.RoundNumber)
	return nil
}

// HandleMainChainMinerList accepts a miner list pushed from the main
// chain. Every key is validated the same way as any other external key.
// The list stays pending until a NextRound built over it passes the
// pipeline and is applied; see BuildMinerReplacementTransition.
func (m *Manager) HandleMainChainMinerList(minerList [][]byte) error {
	if !m.cfg.IsSideChain {
		return errors.UnsupportedError.New("NotASideChain")
	}
	for _, pk := range minerList {
		if err := crypto.ValidatePublicKey(pk); err != nil {
			return err
		}
	}
	m.minersMu.Lock()
	defer m.minersMu.Unlock()
	m.mainChainMiners = make([][]byte, len(minerList))
	for i, pk := range minerList {
		m.mainChainMiners[i] = cloneBytes(pk)
	}
	m.log.Infof("main chain miner list updated miners=%d", len(minerList))
	return nil
}

// MainChainMinerList returns a snapshot of the pending pushed list, nil
// when none is pending.
func (m *Manager) MainChainMinerList() [][]byte {
	m.minersMu.Lock()
	defer m.minersMu.Unlock()
	if len(m.mainChainMiners) == 0 {
		return nil
	}
	keys := make([][]byte, len(m.mainChainMiners))
	for i, pk := range m.mainChainMiners {
		keys[i] = cloneBytes(pk)
	}
	return keys
}

func (m *Manager) consumeMainChainMinerList() {
	m.minersMu.Lock()
	m.mainChainMiners = nil
	m.minersMu.Unlock()
}

func leftPad(bs []byte, size int) []byte {
	if len(bs) >= size {
		return bs
	}
	padded := make([]byte, size)
	copy(padded[size-len(bs):], bs)
	return padded
}
