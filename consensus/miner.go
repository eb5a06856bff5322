package consensus

import (
	"encoding/hex"

	"github.com/rondochain/rondo/common"
)

// MinerInRound is one miner's state within a round. PublicKey is a
// compressed secp256k1 key validated on every external ingestion.
// Pieces maps are keyed by the hex form of the counterpart miner's
// public key so that serialization stays canonical.
type MinerInRound struct {
	PublicKey          common.HexBytes `json:"publicKey"`
	Order              int32           `json:"order"`
	ExpectedMiningTime int64           `json:"expectedMiningTime"`

	OutValue        common.HexBytes `json:"outValue,omitempty"`
	Signature       common.HexBytes `json:"signature,omitempty"`
	InValue         common.HexBytes `json:"inValue,omitempty"`
	PreviousInValue common.HexBytes `json:"previousInValue,omitempty"`

	EncryptedPieces map[string][]byte `json:"encryptedPieces,omitempty"`
	DecryptedPieces map[string][]byte `json:"decryptedPieces,omitempty"`

	ProducedBlocks     int64   `json:"producedBlocks"`
	MissedTimeSlots    int64   `json:"missedTimeSlots"`
	ProducedTinyBlocks int32   `json:"producedTinyBlocks"`
	ActualMiningTimes  []int64 `json:"actualMiningTimes,omitempty"`

	ImpliedIrreversibleBlockHeight int64 `json:"impliedIrreversibleBlockHeight"`

	SupposedOrderOfNextRound int32 `json:"supposedOrderOfNextRound"`
	FinalOrderOfNextRound    int32 `json:"finalOrderOfNextRound"`
	IsExtraBlockProducer     bool  `json:"isExtraBlockProducer"`
}

// HasMined reports whether the miner produced its full block this round.
func (m *MinerInRound) HasMined() bool {
	return len(m.OutValue) > 0
}

func (m *MinerInRound) HexKey() string {
	return hex.EncodeToString(m.PublicKey)
}

func (m *MinerInRound) Clone() *MinerInRound {
	c := *m
	c.PublicKey = cloneBytes(m.PublicKey)
	c.OutValue = cloneBytes(m.OutValue)
	c.Signature = cloneBytes(m.Signature)
	c.InValue = cloneBytes(m.InValue)
	c.PreviousInValue = cloneBytes(m.PreviousInValue)
	c.EncryptedPieces = clonePieces(m.EncryptedPieces)
	c.DecryptedPieces = clonePieces(m.DecryptedPieces)
	if m.ActualMiningTimes != nil {
		c.ActualMiningTimes = make([]int64, len(m.ActualMiningTimes))
		copy(c.ActualMiningTimes, m.ActualMiningTimes)
	}
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func clonePieces(pieces map[string][]byte) map[string][]byte {
	if pieces == nil {
		return nil
	}
	c := make(map[string][]byte, len(pieces))
	for k, v := range pieces {
		c[k] = cloneBytes(v)
	}
	return c
}
