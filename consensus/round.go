package consensus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/rondochain/rondo/common"
	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/errors"
)

// Round is one full rotation of the miner set. Miners is kept sorted by
// public key; every consensus-affecting iteration goes over that slice,
// never over a native map, so two nodes holding the same round always
// fold, serialize and select in the same order.
type Round struct {
	RoundNumber int64           `json:"roundNumber"`
	TermNumber  int64           `json:"termNumber"`
	Miners      []*MinerInRound `json:"miners"`

	ExtraBlockProducerOfPreviousRound common.HexBytes `json:"extraBlockProducerOfPreviousRound,omitempty"`

	ConfirmedIrreversibleBlockHeight      int64 `json:"confirmedIrreversibleBlockHeight"`
	ConfirmedIrreversibleBlockRoundNumber int64 `json:"confirmedIrreversibleBlockRoundNumber"`
}

// timeSlotToleranceMs is the spacing tolerance for expected mining times.
const timeSlotToleranceMs = int64(10)

func (r *Round) MinersCount() int {
	return len(r.Miners)
}

// MinerByKey returns the slot of the miner with the public key, or nil.
func (r *Round) MinerByKey(pk []byte) *MinerInRound {
	n := len(r.Miners)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(r.Miners[i].PublicKey, pk) >= 0
	})
	if i < n && bytes.Equal(r.Miners[i].PublicKey, pk) {
		return r.Miners[i]
	}
	return nil
}

// MinerByOrder returns the slot holding the order, or nil.
func (r *Round) MinerByOrder(order int32) *MinerInRound {
	for _, m := range r.Miners {
		if m.Order == order {
			return m
		}
	}
	return nil
}

// AddMiner inserts the slot keeping Miners sorted by public key.
func (r *Round) AddMiner(m *MinerInRound) error {
	if err := crypto.ValidatePublicKey(m.PublicKey); err != nil {
		return err
	}
	n := len(r.Miners)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(r.Miners[i].PublicKey, m.PublicKey) >= 0
	})
	if i < n && bytes.Equal(r.Miners[i].PublicKey, m.PublicKey) {
		return errors.IllegalArgumentError.Errorf(
			"DuplicateMiner(key=%x)", m.PublicKey)
	}
	r.Miners = append(r.Miners, nil)
	copy(r.Miners[i+1:], r.Miners[i:])
	r.Miners[i] = m
	return nil
}

// MinersByOrder returns the slots sorted by mining order.
func (r *Round) MinersByOrder() []*MinerInRound {
	miners := make([]*MinerInRound, len(r.Miners))
	copy(miners, r.Miners)
	sort.SliceStable(miners, func(i, j int) bool {
		return miners[i].Order < miners[j].Order
	})
	return miners
}

// MinerKeys returns the public keys in canonical order.
func (r *Round) MinerKeys() [][]byte {
	keys := make([][]byte, len(r.Miners))
	for i, m := range r.Miners {
		keys[i] = m.PublicKey
	}
	return keys
}

// HasSameMinerSet reports whether the other round has exactly the same
// key set, reordering permitted.
func (r *Round) HasSameMinerSet(other *Round) bool {
	if len(r.Miners) != len(other.Miners) {
		return false
	}
	for i, m := range r.Miners {
		if !bytes.Equal(m.PublicKey, other.Miners[i].PublicKey) {
			return false
		}
	}
	return true
}

// ExtraBlockProducer returns the designated round terminator, or nil.
func (r *Round) ExtraBlockProducer() *MinerInRound {
	for _, m := range r.Miners {
		if m.IsExtraBlockProducer {
			return m
		}
	}
	return nil
}

// RoundID is derived from the sum of all expected mining times when all
// are present; otherwise it falls back to the validation id. Proposals
// that keep the round (UpdateValue/TinyBlock) must keep the id, and
// proposals that terminate it must change it.
func (r *Round) RoundID() int64 {
	var sum int64
	for _, m := range r.Miners {
		if m.ExpectedMiningTime == 0 {
			return r.roundIDForValidation()
		}
		sum += m.ExpectedMiningTime
	}
	return sum
}

func (r *Round) roundIDForValidation() int64 {
	return r.RoundNumber
}

// CalculateSignature mixes the revealed in-value with the XOR fold of
// every miner's current signature. Every miner's signature feeds every
// other miner's next one, so the result is unpredictable until the last
// reveal. The last miner to reveal can still grind its own contribution
// after observing the others; that residual risk is accepted, see the
// round design notes in DESIGN.md.
func (r *Round) CalculateSignature(inValue []byte) []byte {
	fold := make([]byte, crypto.HashLen)
	for _, m := range r.Miners {
		if len(m.Signature) == crypto.HashLen {
			fold = crypto.XORBytes(fold, m.Signature)
		}
	}
	if len(inValue) != crypto.HashLen {
		inValue = crypto.SHA3Sum256(inValue)
	}
	return crypto.XORBytes(inValue, fold)
}

// SignatureFold returns the XOR fold of all present signatures. It seeds
// the next round's extra-block-producer selection.
func (r *Round) SignatureFold() []byte {
	fold := make([]byte, crypto.HashLen)
	for _, m := range r.Miners {
		if len(m.Signature) == crypto.HashLen {
			fold = crypto.XORBytes(fold, m.Signature)
		}
	}
	return fold
}

// NextExtraBlockProducerOrder derives the order of the next round's
// extra block producer from the aggregate signature data.
func (r *Round) NextExtraBlockProducerOrder() int32 {
	count := len(r.Miners)
	if count == 0 {
		return 1
	}
	fold := r.SignatureFold()
	v := binary.BigEndian.Uint64(fold[:8])
	return int32(v%uint64(count)) + 1
}

// CheckTimeSlots validates that expected mining times are evenly spaced
// by the mining interval, independent of who actually mined.
func (r *Round) CheckTimeSlots(miningIntervalMs int64) error {
	miners := r.MinersByOrder()
	for i := 1; i < len(miners); i++ {
		distance := miners[i].ExpectedMiningTime - miners[i-1].ExpectedMiningTime
		diff := distance - miningIntervalMs
		if diff < -timeSlotToleranceMs || diff > timeSlotToleranceMs {
			return CodeTimeSlot.Errorf(
				"UnevenTimeSlot(order=%d,distance=%d,interval=%d)",
				miners[i].Order, distance, miningIntervalMs)
		}
	}
	return nil
}

// IsTimeSlotPassed reports whether now is at or past the end of the
// miner's slot. The scheduler and the time-slot validator both call this
// one function so the boundary convention cannot diverge between them.
func (r *Round) IsTimeSlotPassed(pk []byte, nowMs int64, miningIntervalMs int64) bool {
	m := r.MinerByKey(pk)
	if m == nil || m.ExpectedMiningTime == 0 {
		return false
	}
	return nowMs >= m.ExpectedMiningTime+miningIntervalMs
}

// ExtraBlockMiningTime is when the whole round's mining time has elapsed
// and the extra block producer may terminate the round.
func (r *Round) ExtraBlockMiningTime(miningIntervalMs int64) int64 {
	var last int64
	for _, m := range r.Miners {
		if m.ExpectedMiningTime > last {
			last = m.ExpectedMiningTime
		}
	}
	return last + miningIntervalMs
}

// RoundStartTime is the expected mining time of the first-order miner.
func (r *Round) RoundStartTime() int64 {
	if m := r.MinerByOrder(1); m != nil {
		return m.ExpectedMiningTime
	}
	return 0
}

func (r *Round) Clone() *Round {
	c := &Round{
		RoundNumber: r.RoundNumber,
		TermNumber:  r.TermNumber,
		Miners:      make([]*MinerInRound, len(r.Miners)),

		ExtraBlockProducerOfPreviousRound: cloneBytes(r.ExtraBlockProducerOfPreviousRound),

		ConfirmedIrreversibleBlockHeight:      r.ConfirmedIrreversibleBlockHeight,
		ConfirmedIrreversibleBlockRoundNumber: r.ConfirmedIrreversibleBlockRoundNumber,
	}
	for i, m := range r.Miners {
		c.Miners[i] = m.Clone()
	}
	return c
}

// MinerByHexKey resolves a pieces-map key to a slot, guarding against
// malformed keys from external data.
func (r *Round) MinerByHexKey(key string) *MinerInRound {
	pk, err := hex.DecodeString(key)
	if err != nil {
		return nil
	}
	return r.MinerByKey(pk)
}
