package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// AccumulatorInfo is the compact, content-addressed summary of
// the sync accumulator: its current root, the number of leaves
// appended so far and the roots of the frozen perfect subtrees.
type AccumulatorInfo struct {
	AccumulatorRoot    *externalapi.DomainHash
	NumLeaves          uint64
	FrozenSubtreeRoots []*externalapi.DomainHash
}

// Clone returns a clone of AccumulatorInfo
func (ai *AccumulatorInfo) Clone() *AccumulatorInfo {
	clone := &AccumulatorInfo{
		NumLeaves:          ai.NumLeaves,
		FrozenSubtreeRoots: externalapi.CloneHashes(ai.FrozenSubtreeRoots),
	}
	if ai.AccumulatorRoot != nil {
		clone.AccumulatorRoot = ai.AccumulatorRoot.Clone()
	}
	return clone
}

// Equal returns whether ai equals to other
func (ai *AccumulatorInfo) Equal(other *AccumulatorInfo) bool {
	if ai == nil || other == nil {
		return ai == other
	}
	if !ai.AccumulatorRoot.Equal(other.AccumulatorRoot) {
		return false
	}
	if ai.NumLeaves != other.NumLeaves {
		return false
	}
	return externalapi.HashesEqual(ai.FrozenSubtreeRoots, other.FrozenSubtreeRoots)
}

// ParentChildPair is a single (parent, child) edge committed to
// by an accumulator leaf.
type ParentChildPair struct {
	Parent *externalapi.DomainHash
	Child  *externalapi.DomainHash
}

// LayerSnapshot is persisted alongside each accumulator leaf so
// that, given a leaf, the layer's children and the accumulator
// state at that point can be recovered without replaying.
type LayerSnapshot struct {
	ChildHashes     []*externalapi.DomainHash
	AccumulatorInfo *AccumulatorInfo
}

// Clone returns a clone of LayerSnapshot
func (ls *LayerSnapshot) Clone() *LayerSnapshot {
	clone := &LayerSnapshot{
		ChildHashes: externalapi.CloneHashes(ls.ChildHashes),
	}
	if ls.AccumulatorInfo != nil {
		clone.AccumulatorInfo = ls.AccumulatorInfo.Clone()
	}
	return clone
}

// LeafRef identifies a single accumulator leaf to a syncing peer.
type LeafRef struct {
	LeafHash        *externalapi.DomainHash
	AccumulatorRoot *externalapi.DomainHash
	LeafIndex       uint64
}

// LeafDetail carries the (parent, child) pairs a leaf commits to.
type LeafDetail struct {
	AccumulatorRoot *externalapi.DomainHash
	Pairs           []*ParentChildPair
}

// LayerBlocks carries the full headers of one layer together with
// the accumulator state after that layer's leaf.
type LayerBlocks struct {
	AccumulatorInfo *AccumulatorInfo
	Headers         []*externalapi.DomainBlockHeader
}
