package syncmanager

import (
	"sort"

	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/consensushashing"
)

// sortedHashes returns a lexicographically sorted clone of hashes.
func sortedHashes(hashes []*externalapi.DomainHash) []*externalapi.DomainHash {
	sorted := externalapi.CloneHashes(hashes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})
	return sorted
}

// sortPairs orders (parent, child) pairs lexicographically by
// parent with child as tie-break, matching the leaf preimage.
func sortPairs(pairs []*model.ParentChildPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if !pairs[i].Parent.Equal(pairs[j].Parent) {
			return pairs[i].Parent.Less(pairs[j].Parent)
		}
		return pairs[i].Child.Less(pairs[j].Child)
	})
}

// leafHashFromPairs computes a layer's leaf hash from its sorted
// pair list.
func leafHashFromPairs(pairs []*model.ParentChildPair) *externalapi.DomainHash {
	return consensushashing.AccumulatorLeafHash(pairs)
}
