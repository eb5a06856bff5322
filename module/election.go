package module

// Election is the membership collaborator consulted on term boundaries.
// GetVictories returns the authoritative miner set for the next term;
// consensus must cross-check any self-reported NextTerm miner list
// against it instead of trusting the proposal.
type Election interface {
	GetVictories(currentMiners [][]byte) ([][]byte, error)
	UpdateMinersCount(count int) error
}

// MainChainMinerSource supplies the main-chain miner list to side chains,
// which never run their own elections.
type MainChainMinerSource interface {
	GetMainChainCurrentMinerList() ([][]byte, error)
}
