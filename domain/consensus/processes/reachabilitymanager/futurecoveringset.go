package reachabilitymanager

import (
	"sort"

	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// insertToFutureCoveringSet inserts futureBlock into the
// future-covering set of node, keeping the set a minimal antichain
// ordered by interval start. The insert is dominated: if an
// existing member already covers futureBlock in the tree, nothing
// is inserted. Removal is never necessary because blocks are
// inserted in topological order, so futureBlock can never cover an
// existing member.
func (rm *reachabilityManager) insertToFutureCoveringSet(node *externalapi.DomainHash,
	futureBlock *externalapi.DomainHash) error {

	nodeData, err := rm.data(node)
	if err != nil {
		return err
	}

	futureBlockData, err := rm.data(futureBlock)
	if err != nil {
		return err
	}

	ancestorIndex, ok, err := rm.findAncestorIndex(nodeData.FutureCoveringSet, futureBlockData.Interval.Start)
	if err != nil {
		return err
	}
	insertionIndex := 0
	if ok {
		candidate := nodeData.FutureCoveringSet[ancestorIndex]
		isCovered, err := rm.IsReachabilityTreeAncestorOf(candidate, futureBlock)
		if err != nil {
			return err
		}
		if isCovered {
			// Already covered by an existing member.
			return nil
		}
		insertionIndex = ancestorIndex + 1
	}

	newSet := make([]*externalapi.DomainHash, 0, len(nodeData.FutureCoveringSet)+1)
	newSet = append(newSet, nodeData.FutureCoveringSet[:insertionIndex]...)
	newSet = append(newSet, futureBlock.Clone())
	newSet = append(newSet, nodeData.FutureCoveringSet[insertionIndex:]...)
	nodeData.FutureCoveringSet = newSet
	rm.stageData(node, nodeData)
	return nil
}

// futureCoveringSetHasAncestorOf answers the cross-edge half of
// the DAG ancestry query: whether some member of blockHashA's
// future-covering set is a tree ancestor of blockHashB.
func (rm *reachabilityManager) futureCoveringSetHasAncestorOf(blockHashA *externalapi.DomainHash,
	blockHashB *externalapi.DomainHash) (bool, error) {

	dataA, err := rm.data(blockHashA)
	if err != nil {
		return false, err
	}
	dataB, err := rm.data(blockHashB)
	if err != nil {
		return false, err
	}

	ancestorIndex, ok, err := rm.findAncestorIndex(dataA.FutureCoveringSet, dataB.Interval.Start)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return rm.IsReachabilityTreeAncestorOf(dataA.FutureCoveringSet[ancestorIndex], blockHashB)
}

// findAncestorIndex finds the index of the last member of the
// given start-ordered set whose interval start is not greater than
// intervalStart. Only that member can possibly be a tree ancestor
// of a block starting at intervalStart, since the set is an
// antichain of disjoint intervals.
func (rm *reachabilityManager) findAncestorIndex(orderedSet []*externalapi.DomainHash,
	intervalStart uint64) (int, bool, error) {

	var searchErr error
	index := sort.Search(len(orderedSet), func(i int) bool {
		if searchErr != nil {
			return false
		}
		memberData, err := rm.data(orderedSet[i])
		if err != nil {
			searchErr = err
			return false
		}
		return memberData.Interval.Start > intervalStart
	})
	if searchErr != nil {
		return 0, false, searchErr
	}
	if index == 0 {
		return 0, false, nil
	}
	return index - 1, true, nil
}
