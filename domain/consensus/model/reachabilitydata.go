package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// ReachabilityInterval is the pre-order interval allocated to a
// node in the selected-parent tree. A node's interval strictly
// contains the interval of every tree-descendant.
type ReachabilityInterval struct {
	Start uint64
	End   uint64
}

// NewReachabilityInterval creates a new ReachabilityInterval.
func NewReachabilityInterval(start uint64, end uint64) *ReachabilityInterval {
	return &ReachabilityInterval{Start: start, End: end}
}

// Size returns the size of this interval. Note that intervals are
// inclusive from both sides.
func (ri *ReachabilityInterval) Size() uint64 {
	return ri.End - ri.Start + 1
}

// Contains returns true if ri contains other.
func (ri *ReachabilityInterval) Contains(other *ReachabilityInterval) bool {
	return ri.Start <= other.Start && other.End <= ri.End
}

// Clone returns a clone of ReachabilityInterval
func (ri *ReachabilityInterval) Clone() *ReachabilityInterval {
	return &ReachabilityInterval{Start: ri.Start, End: ri.End}
}

// ReachabilityData holds a block's position in the selected-parent
// tree: its tree parent, tree children, allocated interval and the
// future-covering set used to answer queries across merge edges.
//
// The future-covering set is a minimal antichain, ordered by
// interval start, of DAG-descendants that are not tree-descendants.
type ReachabilityData struct {
	Parent            *externalapi.DomainHash
	Interval          *ReachabilityInterval
	Children          []*externalapi.DomainHash
	FutureCoveringSet []*externalapi.DomainHash
}

// Clone returns a clone of ReachabilityData
func (rd *ReachabilityData) Clone() *ReachabilityData {
	clone := &ReachabilityData{
		Children:          externalapi.CloneHashes(rd.Children),
		FutureCoveringSet: externalapi.CloneHashes(rd.FutureCoveringSet),
	}
	if rd.Parent != nil {
		clone.Parent = rd.Parent.Clone()
	}
	if rd.Interval != nil {
		clone.Interval = rd.Interval.Clone()
	}
	return clone
}
