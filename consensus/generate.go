package consensus

import (
	"sort"

	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/errors"
)

// GenerateNextRound builds round N+1 from this round. Miners who mined
// keep the order they earned (FinalOrderOfNextRound); miners who did not
// are charged a missed slot and fill the unused orders in canonical key
// order. Irreversibility data is copied forward unchanged for every
// miner; it is never recomputed here and only the state manager may move
// it, upward.
func (r *Round) GenerateNextRound(cfg *Config, currentTimeMs int64) (*Round, error) {
	if len(r.Miners) == 0 {
		return nil, errors.InvalidStateError.New("EmptyRound")
	}

	next := &Round{
		RoundNumber: r.RoundNumber + 1,
		TermNumber:  r.TermNumber,

		ConfirmedIrreversibleBlockHeight:      r.ConfirmedIrreversibleBlockHeight,
		ConfirmedIrreversibleBlockRoundNumber: r.ConfirmedIrreversibleBlockRoundNumber,
	}
	if ebp := r.ExtraBlockProducer(); ebp != nil {
		next.ExtraBlockProducerOfPreviousRound = cloneBytes(ebp.PublicKey)
	}

	count := len(r.Miners)
	usedOrders := make(map[int32]bool, count)

	var mined, missed []*MinerInRound
	for _, m := range r.Miners {
		if m.HasMined() {
			mined = append(mined, m)
		} else {
			missed = append(missed, m)
		}
	}
	// Ascending earned order; ties broken by canonical key order, which
	// the stable sort preserves from r.Miners.
	sort.SliceStable(mined, func(i, j int) bool {
		return mined[i].FinalOrderOfNextRound < mined[j].FinalOrderOfNextRound
	})

	assign := func(m *MinerInRound, order int32) *MinerInRound {
		slot := &MinerInRound{
			PublicKey:          cloneBytes(m.PublicKey),
			Order:              order,
			ExpectedMiningTime: currentTimeMs + int64(order)*cfg.MiningIntervalMs,

			ProducedBlocks:     m.ProducedBlocks,
			MissedTimeSlots:    m.MissedTimeSlots,

			ImpliedIrreversibleBlockHeight: m.ImpliedIrreversibleBlockHeight,
		}
		usedOrders[order] = true
		return slot
	}

	var slots []*MinerInRound
	for _, m := range mined {
		order := m.FinalOrderOfNextRound
		if order < 1 || int(order) > count || usedOrders[order] {
			// Broken or colliding earned order; the miner falls into the
			// leftover assignment below instead.
			missed = append(missed, m)
			continue
		}
		slots = append(slots, assign(m, order))
	}

	// Leftover orders in ascending sequence for the remaining miners in
	// canonical key order.
	sort.SliceStable(missed, func(i, j int) bool {
		return lessBytes(missed[i].PublicKey, missed[j].PublicKey)
	})
	nextFree := int32(1)
	for _, m := range missed {
		for usedOrders[nextFree] {
			nextFree++
		}
		slot := assign(m, nextFree)
		if !m.HasMined() {
			slot.MissedTimeSlots = m.MissedTimeSlots + 1
		}
		slots = append(slots, slot)
	}

	ebpOrder := r.NextExtraBlockProducerOrder()
	for _, slot := range slots {
		if slot.Order == ebpOrder {
			slot.IsExtraBlockProducer = true
		}
		if err := next.AddMiner(slot); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// GenerateFirstRoundOfNewTerm builds the opening round of a term for a
// possibly entirely different miner set supplied by the election result.
// Every supplied public key is validated before any byte of it is used.
func GenerateFirstRoundOfNewTerm(
	cfg *Config, minerList [][]byte,
	startTimeMs int64, roundNumber, termNumber int64,
) (*Round, error) {
	if len(minerList) == 0 {
		return nil, errors.IllegalArgumentError.New("EmptyMinerList")
	}
	for _, pk := range minerList {
		if err := crypto.ValidatePublicKey(pk); err != nil {
			return nil, err
		}
	}

	keys := make([][]byte, len(minerList))
	for i, pk := range minerList {
		keys[i] = cloneBytes(pk)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessBytes(keys[i], keys[j])
	})
	for i := 1; i < len(keys); i++ {
		if !lessBytes(keys[i-1], keys[i]) {
			return nil, errors.IllegalArgumentError.Errorf(
				"DuplicateMiner(key=%x)", keys[i])
		}
	}

	round := &Round{
		RoundNumber: roundNumber,
		TermNumber:  termNumber,
	}
	for i, pk := range keys {
		order := int32(i + 1)
		slot := &MinerInRound{
			PublicKey:          pk,
			Order:              order,
			ExpectedMiningTime: startTimeMs + int64(i)*cfg.MiningIntervalMs,
		}
		if order == 1 {
			slot.IsExtraBlockProducer = true
		}
		if err := round.AddMiner(slot); err != nil {
			return nil, err
		}
	}
	return round, nil
}

func lessBytes(a, b []byte) bool {
	return string(a) < string(b)
}
