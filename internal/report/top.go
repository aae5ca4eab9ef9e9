package report

import (
	"cmp"
	"slices"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// topPeers returns up to n peers ordered by appearances, most frequent
// first, ties broken by provider ID.
func topPeers(peers []model.PeerResult, n int) []model.PeerResult {
	sorted := slices.Clone(peers)
	slices.SortFunc(sorted, func(a, b model.PeerResult) int {
		if c := cmp.Compare(b.Appearances, a.Appearances); c != 0 {
			return c
		}
		return cmp.Compare(a.ProviderID, b.ProviderID)
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
