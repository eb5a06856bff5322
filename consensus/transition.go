package consensus

import (
	"github.com/rondochain/rondo/common"
	"github.com/rondochain/rondo/common/codec"
	"github.com/rondochain/rondo/common/crypto"
	"github.com/rondochain/rondo/module"
)

// RoundTransition is the consensus header data attached to a block: the
// proposed round image, the declared behavior and the sender identity.
type RoundTransition struct {
	SenderPublicKey  common.HexBytes          `json:"senderPublicKey"`
	Behavior         module.ConsensusBehavior `json:"behavior"`
	Round            *Round                   `json:"round"`
	ActualMiningTime int64                    `json:"actualMiningTime"`
}

func (t *RoundTransition) Bytes() ([]byte, error) {
	return codec.MarshalToBytes(t)
}

// ParseRoundTransition decodes and structurally validates a proposal.
// Every public key in it is checked before any use; a malformed proposal
// must surface as a rejection, never as a crash.
func ParseRoundTransition(bs []byte) (*RoundTransition, error) {
	var t RoundTransition
	if _, err := codec.UnmarshalFromBytes(bs, &t); err != nil {
		return nil, CodeInvalidProposal.Wrap(err, "FailToDecodeTransition")
	}
	if t.Round == nil {
		return nil, CodeInvalidProposal.New("MissingRound")
	}
	if err := crypto.ValidatePublicKey(t.SenderPublicKey); err != nil {
		return nil, CodeInvalidProposal.Wrap(err, "InvalidSenderKey")
	}
	switch t.Behavior {
	case module.BehaviorUpdateValue, module.BehaviorTinyBlock,
		module.BehaviorNextRound, module.BehaviorNextTerm:
	default:
		return nil, CodeInvalidProposal.Errorf("InvalidBehavior(%d)", t.Behavior)
	}
	for _, m := range t.Round.Miners {
		if err := crypto.ValidatePublicKey(m.PublicKey); err != nil {
			return nil, CodeInvalidProposal.Wrap(err, "InvalidMinerKey")
		}
	}
	for i := 1; i < len(t.Round.Miners); i++ {
		if !lessBytes(t.Round.Miners[i-1].PublicKey, t.Round.Miners[i].PublicKey) {
			return nil, CodeInvalidProposal.New("MinersNotCanonical")
		}
	}
	return &t, nil
}
