package reachabilitymanager

import (
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
)

// reindexSlackFactor is the capacity factor an ancestor must have
// over its subtree size to be chosen as a reindex root. The slack
// keeps reindexing amortized logarithmic per insertion.
const reindexSlackFactor = 2

// addTreeChild appends newChild to parent's tree children and
// allocates newChild an interval out of parent's remaining
// capacity. If the parent ran out of capacity, the subtree rooted
// at the closest ancestor with enough slack is reindexed first.
func (rm *reachabilityManager) addTreeChild(parent *externalapi.DomainHash,
	newChild *externalapi.DomainHash) error {

	parentData, err := rm.data(parent)
	if err != nil {
		return err
	}

	parentData.Children = append(parentData.Children, newChild.Clone())
	rm.stageData(parent, parentData)

	// The new child starts with an empty interval; allocation (or
	// reindexing) assigns the real one below.
	rm.stageData(newChild, &model.ReachabilityData{
		Parent:            parent.Clone(),
		Interval:          model.NewReachabilityInterval(1, 0),
		Children:          []*externalapi.DomainHash{},
		FutureCoveringSet: []*externalapi.DomainHash{},
	})

	remaining, err := rm.remainingIntervalAfterLastChild(parent)
	if err != nil {
		return err
	}
	if remaining.Start > remaining.End {
		// No capacity left under parent. Reindex and let the
		// proportional pass allocate the new child too.
		return rm.reindexIntervals(parent)
	}

	allocated := leftHalf(remaining)
	newChildData, err := rm.data(newChild)
	if err != nil {
		return err
	}
	newChildData.Interval = allocated
	rm.stageData(newChild, newChildData)
	return nil
}

// remainingIntervalAfterLastChild returns the unallocated part of
// node's children space: [s, e-1] minus everything up to the last
// child's end. The last slot e is reserved for the node itself so
// that a parent's interval strictly contains its descendants'.
func (rm *reachabilityManager) remainingIntervalAfterLastChild(
	node *externalapi.DomainHash) (*model.ReachabilityInterval, error) {

	nodeData, err := rm.data(node)
	if err != nil {
		return nil, err
	}

	childrenStart := nodeData.Interval.Start
	childrenEnd := nodeData.Interval.End - 1

	// The new child was already appended, so the last previously
	// allocated child is the one before it.
	if len(nodeData.Children) > 1 {
		lastAllocated := nodeData.Children[len(nodeData.Children)-2]
		lastAllocatedData, err := rm.data(lastAllocated)
		if err != nil {
			return nil, err
		}
		childrenStart = lastAllocatedData.Interval.End + 1
	}
	return model.NewReachabilityInterval(childrenStart, childrenEnd), nil
}

// leftHalf halves the remaining right gap: the new child takes the
// left half and the right half stays available for future children.
func leftHalf(remaining *model.ReachabilityInterval) *model.ReachabilityInterval {
	halfSize := (remaining.Size() + 1) / 2
	return model.NewReachabilityInterval(remaining.Start, remaining.Start+halfSize-1)
}

// reindexIntervals rewrites the intervals of the subtree rooted at
// the closest ancestor of node that has enough slack for the
// subtree's current size. The rewrite is proportional to subtree
// sizes and is done in a single pass over the chosen subtree.
func (rm *reachabilityManager) reindexIntervals(node *externalapi.DomainHash) error {
	reindexRoot := node
	for {
		subtreeSizes := make(map[externalapi.DomainHash]uint64)
		err := rm.countSubtreeSizes(reindexRoot, subtreeSizes)
		if err != nil {
			return err
		}

		reindexRootData, err := rm.data(reindexRoot)
		if err != nil {
			return err
		}
		// Capacity excludes the slot reserved for the root itself.
		capacity := reindexRootData.Interval.Size() - 1
		required := subtreeSizes[*reindexRoot] * reindexSlackFactor
		if capacity >= required || reindexRoot.Equal(&externalapi.ORIGIN) {
			if capacity < subtreeSizes[*reindexRoot] {
				return errors.Wrapf(ruleerrors.ErrInvariantViolation,
					"reachability tree exhausted: subtree of %s has %d nodes but only %d slots",
					reindexRoot, subtreeSizes[*reindexRoot], capacity)
			}
			return rm.propagateIntervals(reindexRoot, subtreeSizes)
		}

		reindexRoot = reindexRootData.Parent
	}
}

// countSubtreeSizes fills subtreeSizes with the size of the tree
// subtree under every descendant of root, root included.
func (rm *reachabilityManager) countSubtreeSizes(root *externalapi.DomainHash,
	subtreeSizes map[externalapi.DomainHash]uint64) error {

	// Post-order traversal without recursion: process a node once
	// all of its children are done.
	type stackEntry struct {
		hash     *externalapi.DomainHash
		expanded bool
	}
	stack := []*stackEntry{{hash: root}}
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		entryData, err := rm.data(entry.hash)
		if err != nil {
			return err
		}

		if !entry.expanded {
			entry.expanded = true
			for _, child := range entryData.Children {
				stack = append(stack, &stackEntry{hash: child})
			}
			continue
		}

		stack = stack[:len(stack)-1]
		size := uint64(1)
		for _, child := range entryData.Children {
			size += subtreeSizes[*child]
		}
		subtreeSizes[*entry.hash] = size
	}
	return nil
}

// propagateIntervals rewrites the intervals of every node under
// root (whose own interval is kept), splitting each node's
// children space proportionally to subtree sizes.
func (rm *reachabilityManager) propagateIntervals(root *externalapi.DomainHash,
	subtreeSizes map[externalapi.DomainHash]uint64) error {

	queue := []*externalapi.DomainHash{root}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]

		currentData, err := rm.data(current)
		if err != nil {
			return err
		}
		if len(currentData.Children) == 0 {
			continue
		}

		childrenInterval := model.NewReachabilityInterval(
			currentData.Interval.Start, currentData.Interval.End-1)
		childIntervals, err := splitProportionally(childrenInterval,
			currentData.Children, subtreeSizes)
		if err != nil {
			return err
		}

		for i, child := range currentData.Children {
			childData, err := rm.data(child)
			if err != nil {
				return err
			}
			childData.Interval = childIntervals[i]
			rm.stageData(child, childData)
			queue = append(queue, child)
		}
	}
	return nil
}

// splitProportionally splits interval between the given children,
// allocating each a share proportional to its subtree size. Every
// child receives at least its subtree size; the surplus is spread
// by the same weights with the remainder going to the last child.
func splitProportionally(interval *model.ReachabilityInterval,
	children []*externalapi.DomainHash,
	subtreeSizes map[externalapi.DomainHash]uint64) ([]*model.ReachabilityInterval, error) {

	totalSize := uint64(0)
	for _, child := range children {
		totalSize += subtreeSizes[*child]
	}
	if interval.Size() < totalSize {
		return nil, errors.Wrapf(ruleerrors.ErrInvariantViolation,
			"cannot fit %d subtree slots into an interval of size %d", totalSize, interval.Size())
	}
	surplus := interval.Size() - totalSize

	intervals := make([]*model.ReachabilityInterval, len(children))
	cursor := interval.Start
	for i, child := range children {
		allocation := subtreeSizes[*child] + surplus*subtreeSizes[*child]/totalSize
		if i == len(children)-1 {
			// The last child absorbs rounding leftovers.
			allocation = interval.End - cursor + 1
		}
		intervals[i] = model.NewReachabilityInterval(cursor, cursor+allocation-1)
		cursor += allocation
	}
	return intervals, nil
}
