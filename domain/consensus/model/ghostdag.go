package model

import (
	"math/big"

	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// KType defines the size of GHOSTDAG consensus algorithm K parameter.
type KType uint16

// BlockGHOSTDAGData represents GHOSTDAG data for some block
type BlockGHOSTDAGData struct {
	BlueScore          uint64
	BlueWork           *big.Int
	SelectedParent     *externalapi.DomainHash
	MergeSetBlues      []*externalapi.DomainHash
	MergeSetReds       []*externalapi.DomainHash
	BluesAnticoneSizes map[externalapi.DomainHash]KType
}

// Clone returns a clone of BlockGHOSTDAGData
func (bgd *BlockGHOSTDAGData) Clone() *BlockGHOSTDAGData {
	bluesAnticoneSizesClone := make(map[externalapi.DomainHash]KType, len(bgd.BluesAnticoneSizes))
	for hash, size := range bgd.BluesAnticoneSizes {
		bluesAnticoneSizesClone[hash] = size
	}

	clone := &BlockGHOSTDAGData{
		BlueScore:          bgd.BlueScore,
		MergeSetBlues:      externalapi.CloneHashes(bgd.MergeSetBlues),
		MergeSetReds:       externalapi.CloneHashes(bgd.MergeSetReds),
		BluesAnticoneSizes: bluesAnticoneSizesClone,
	}
	if bgd.BlueWork != nil {
		clone.BlueWork = new(big.Int).Set(bgd.BlueWork)
	}
	if bgd.SelectedParent != nil {
		clone.SelectedParent = bgd.SelectedParent.Clone()
	}
	return clone
}

// UnorderedMergeSet returns the mergeset blues followed by the
// mergeset reds. The selected parent is not part of MergeSetBlues
// and is not included. The order is not topologically meaningful.
func (bgd *BlockGHOSTDAGData) UnorderedMergeSet() []*externalapi.DomainHash {
	mergeSet := make([]*externalapi.DomainHash, 0, len(bgd.MergeSetBlues)+len(bgd.MergeSetReds))
	mergeSet = append(mergeSet, bgd.MergeSetBlues...)
	mergeSet = append(mergeSet, bgd.MergeSetReds...)
	return mergeSet
}

// MergeSetWithoutSelectedParent returns the mergeset of the block
// minus its selected parent, in the stored (topological) order of
// blues followed by reds.
func (bgd *BlockGHOSTDAGData) MergeSetWithoutSelectedParent() []*externalapi.DomainHash {
	mergeSet := make([]*externalapi.DomainHash, 0, len(bgd.MergeSetBlues)+len(bgd.MergeSetReds))
	for _, blue := range bgd.MergeSetBlues {
		if blue.Equal(bgd.SelectedParent) {
			continue
		}
		mergeSet = append(mergeSet, blue)
	}
	mergeSet = append(mergeSet, bgd.MergeSetReds...)
	return mergeSet
}
