package consensus

import (
	"sort"
)

// CalculateLIB derives a candidate Last-Irreversible-Block height from
// the heights implied by miners of the round who actually mined. When
// fewer than the consent quorum contributed, the pass simply yields
// nothing; low participation is an expected outcome, not an error.
func CalculateLIB(round *Round) (int64, bool) {
	consent := MinersCountOfConsent(round.MinersCount())

	var heights []int64
	for _, m := range round.Miners {
		if m.HasMined() && m.ImpliedIrreversibleBlockHeight > 0 {
			heights = append(heights, m.ImpliedIrreversibleBlockHeight)
		}
	}
	if len(heights) < consent {
		return 0, false
	}
	sort.Slice(heights, func(i, j int) bool {
		return heights[i] > heights[j]
	})
	return heights[consent-1], true
}
