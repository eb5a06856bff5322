package consensus

// SharesThreshold is the 2/3 threshold used for secret-sharing, both for
// the enough-pieces-collected gate and for the reconstruction call. The
// two usages must never diverge; requiring full participation for either
// would let a single withholding miner block revelation for everyone.
func SharesThreshold(minersCount int) int {
	t := minersCount * 2 / 3
	if t == 0 {
		t = 1
	}
	return t
}

// MinersCountOfConsent is the strictly-more-than-2/3 quorum used for LIB
// computation.
func MinersCountOfConsent(minersCount int) int {
	return minersCount*2/3 + 1
}
