package consensus

import (
	"encoding/binary"

	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/common/errors"
	"github.com/rondochain/rondo/consensus/secretsharing"
	"github.com/rondochain/rondo/module"
)

// BuildUpdateValueTransition constructs the sender's full-block proposal:
// the commitment to a fresh in-value, the reveal of the previous one, the
// mixed signature and the threshold shares of the new secret for the
// other miners. Encryption of the shares for their receivers happens in
// the transport layer; here each piece is keyed by its receiver.
func BuildUpdateValueTransition(
	current, previous *Round, pk, inValue, previousInValue []byte,
	nowMs, impliedLIBHeight int64,
) (*RoundTransition, error) {
	if err := crypto.ValidatePublicKey(pk); err != nil {
		return nil, err
	}
	if len(inValue) != crypto.HashLen {
		return nil, errors.IllegalArgumentError.Errorf(
			"InvalidInValueLength(len=%d)", len(inValue))
	}
	provided := current.Clone()
	slot := provided.MinerByKey(pk)
	if slot == nil {
		return nil, CodeMiningPermission.Errorf("NotAMiner(key=%x)", pk)
	}

	slot.OutValue = crypto.SHA3Sum256(inValue)
	if len(previousInValue) > 0 {
		slot.PreviousInValue = cloneBytes(previousInValue)
	}
	if previous != nil && len(previousInValue) > 0 {
		slot.Signature = previous.CalculateSignature(previousInValue)
	} else {
		slot.Signature = crypto.SHA3Sum256(inValue)
	}
	slot.ImpliedIrreversibleBlockHeight = impliedLIBHeight
	slot.ProducedTinyBlocks = 1
	slot.ActualMiningTimes = append(slot.ActualMiningTimes, nowMs)

	supposed := orderFromSignature(slot.Signature, provided.MinersCount())
	slot.SupposedOrderOfNextRound = supposed
	slot.FinalOrderOfNextRound = resolveOrderConflict(provided, pk, supposed)

	count := provided.MinersCount()
	if count > 1 {
		threshold := SharesThreshold(count)
		shares, err := secretsharing.EncodeSecret(inValue, count, threshold)
		if err != nil {
			return nil, err
		}
		slot.EncryptedPieces = make(map[string][]byte, count-1)
		for i, m := range provided.MinersByOrder() {
			if m.HexKey() == slot.HexKey() {
				continue
			}
			slot.EncryptedPieces[m.HexKey()] = shares[i]
		}
	}

	return &RoundTransition{
		SenderPublicKey:  cloneBytes(pk),
		Behavior:         module.BehaviorUpdateValue,
		Round:            provided,
		ActualMiningTime: nowMs,
	}, nil
}

// BuildTinyBlockTransition constructs a follow-up block inside the same
// slot.
func BuildTinyBlockTransition(current *Round, pk []byte, nowMs int64) (*RoundTransition, error) {
	provided := current.Clone()
	slot := provided.MinerByKey(pk)
	if slot == nil {
		return nil, CodeMiningPermission.Errorf("NotAMiner(key=%x)", pk)
	}
	slot.ProducedTinyBlocks++
	slot.ActualMiningTimes = append(slot.ActualMiningTimes, nowMs)
	return &RoundTransition{
		SenderPublicKey:  cloneBytes(pk),
		Behavior:         module.BehaviorTinyBlock,
		Round:            provided,
		ActualMiningTime: nowMs,
	}, nil
}

// BuildTerminationTransition generates the next round (or the first
// round of the next term when a fresh miner list is supplied) and wraps
// it into a proposal.
func BuildTerminationTransition(
	cfg *Config, current *Round, pk []byte,
	nextTermMiners [][]byte, nowMs int64,
) (*RoundTransition, error) {
	var (
		next     *Round
		behavior module.ConsensusBehavior
		err      error
	)
	if nextTermMiners != nil {
		behavior = module.BehaviorNextTerm
		next, err = GenerateFirstRoundOfNewTerm(
			cfg, nextTermMiners, nowMs+cfg.MiningIntervalMs,
			current.RoundNumber+1, current.TermNumber+1)
		if err == nil {
			next.ConfirmedIrreversibleBlockHeight = current.ConfirmedIrreversibleBlockHeight
			next.ConfirmedIrreversibleBlockRoundNumber = current.ConfirmedIrreversibleBlockRoundNumber
			if ebp := current.ExtraBlockProducer(); ebp != nil {
				next.ExtraBlockProducerOfPreviousRound = cloneBytes(ebp.PublicKey)
			}
		}
	} else {
		behavior = module.BehaviorNextRound
		next, err = current.GenerateNextRound(cfg, nowMs)
	}
	if err != nil {
		return nil, err
	}
	return &RoundTransition{
		SenderPublicKey:  cloneBytes(pk),
		Behavior:         behavior,
		Round:            next,
		ActualMiningTime: nowMs,
	}, nil
}

// BuildMinerReplacementTransition builds the side-chain NextRound that
// installs the miner list pushed from the main chain. The term stays the
// same; irreversibility data is carried forward like on any other
// termination.
func BuildMinerReplacementTransition(
	cfg *Config, current *Round, pk []byte,
	minerList [][]byte, nowMs int64,
) (*RoundTransition, error) {
	next, err := GenerateFirstRoundOfNewTerm(
		cfg, minerList, nowMs+cfg.MiningIntervalMs,
		current.RoundNumber+1, current.TermNumber)
	if err != nil {
		return nil, err
	}
	next.ConfirmedIrreversibleBlockHeight = current.ConfirmedIrreversibleBlockHeight
	next.ConfirmedIrreversibleBlockRoundNumber = current.ConfirmedIrreversibleBlockRoundNumber
	if ebp := current.ExtraBlockProducer(); ebp != nil {
		next.ExtraBlockProducerOfPreviousRound = cloneBytes(ebp.PublicKey)
	}
	return &RoundTransition{
		SenderPublicKey:  cloneBytes(pk),
		Behavior:         module.BehaviorNextRound,
		Round:            next,
		ActualMiningTime: nowMs,
	}, nil
}

func orderFromSignature(signature []byte, count int) int32 {
	if count == 0 || len(signature) < 8 {
		return 1
	}
	v := binary.BigEndian.Uint64(signature[:8])
	return int32(v%uint64(count)) + 1
}

// resolveOrderConflict walks forward from the supposed order until an
// order no other miner has claimed for the next round.
func resolveOrderConflict(round *Round, pk []byte, supposed int32) int32 {
	count := int32(round.MinersCount())
	taken := make(map[int32]bool, count)
	for _, m := range round.Miners {
		if string(m.PublicKey) != string(pk) && m.FinalOrderOfNextRound > 0 {
			taken[m.FinalOrderOfNextRound] = true
		}
	}
	order := supposed
	for i := int32(0); i < count; i++ {
		if !taken[order] {
			return order
		}
		order = order%count + 1
	}
	return supposed
}
