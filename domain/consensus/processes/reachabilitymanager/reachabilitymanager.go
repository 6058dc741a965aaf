package reachabilitymanager

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// originInterval is the interval assigned to ORIGIN, the root of
// the reachability tree. Its width bounds the total number of
// indexable blocks at 2^60-1, far beyond any reachable DAG size.
var originInterval = model.NewReachabilityInterval(1, 1<<60-1)

// reachabilityManager maintains an interval-labeled tree over
// selected-parent edges, plus a future-covering set per node for
// ancestry queries across merge edges.
type reachabilityManager struct {
	databaseContext       model.DBReader
	reachabilityDataStore model.ReachabilityDataStore
}

// New instantiates a new ReachabilityManager
func New(databaseContext model.DBReader,
	reachabilityDataStore model.ReachabilityDataStore) model.ReachabilityManager {

	return &reachabilityManager{
		databaseContext:       databaseContext,
		reachabilityDataStore: reachabilityDataStore,
	}
}

// Init assigns ORIGIN the root interval. It is idempotent.
func (rm *reachabilityManager) Init() error {
	hasOrigin, err := rm.reachabilityDataStore.HasReachabilityData(rm.databaseContext, &externalapi.ORIGIN)
	if err != nil {
		return err
	}
	if hasOrigin {
		return nil
	}

	rm.reachabilityDataStore.StageReachabilityData(&externalapi.ORIGIN, &model.ReachabilityData{
		Parent:            externalapi.ORIGIN.Clone(),
		Interval:          originInterval.Clone(),
		Children:          []*externalapi.DomainHash{},
		FutureCoveringSet: []*externalapi.DomainHash{},
	})
	return nil
}

// AddBlock inserts blockHash into the reachability index as a tree
// child of selectedParent, and registers it in the future-covering
// sets of the tree-ancestors of every mergeset block.
func (rm *reachabilityManager) AddBlock(blockHash *externalapi.DomainHash,
	selectedParent *externalapi.DomainHash, mergeSet []*externalapi.DomainHash) error {

	err := rm.addTreeChild(selectedParent, blockHash)
	if err != nil {
		return err
	}

	for _, mergedBlock := range mergeSet {
		err = rm.updateFutureCoveringSet(mergedBlock, blockHash)
		if err != nil {
			return err
		}
	}
	return nil
}

// updateFutureCoveringSet walks from mergedBlock toward ORIGIN
// along the tree and inserts newBlock into the future-covering set
// of every ancestor that is not a tree-ancestor of newBlock.
func (rm *reachabilityManager) updateFutureCoveringSet(mergedBlock *externalapi.DomainHash,
	newBlock *externalapi.DomainHash) error {

	current := mergedBlock
	for {
		isTreeAncestor, err := rm.IsReachabilityTreeAncestorOf(current, newBlock)
		if err != nil {
			return err
		}
		if isTreeAncestor {
			// Tree ancestors of newBlock cover it by their own
			// interval; their future-covering sets stay untouched.
			return nil
		}

		err = rm.insertToFutureCoveringSet(current, newBlock)
		if err != nil {
			return err
		}

		currentData, err := rm.data(current)
		if err != nil {
			return err
		}
		current = currentData.Parent
	}
}

// IsReachabilityTreeAncestorOf returns whether blockHashA is a
// selected-parent-tree ancestor of blockHashB. Note: it returns
// true if blockHashA == blockHashB.
func (rm *reachabilityManager) IsReachabilityTreeAncestorOf(blockHashA *externalapi.DomainHash,
	blockHashB *externalapi.DomainHash) (bool, error) {

	dataA, err := rm.data(blockHashA)
	if err != nil {
		return false, err
	}
	dataB, err := rm.data(blockHashB)
	if err != nil {
		return false, err
	}
	return dataA.Interval.Contains(dataB.Interval), nil
}

// IsDAGAncestorOf returns true if blockHashA is an ancestor of
// blockHashB in the DAG.
//
// Note: this method will return true if blockHashA == blockHashB
// The complexity of this method is O(log(|futureCoveringSet|))
func (rm *reachabilityManager) IsDAGAncestorOf(blockHashA *externalapi.DomainHash,
	blockHashB *externalapi.DomainHash) (bool, error) {

	// Check if this node is a reachability tree ancestor of the
	// other node
	isReachabilityTreeAncestor, err := rm.IsReachabilityTreeAncestorOf(blockHashA, blockHashB)
	if err != nil {
		return false, err
	}
	if isReachabilityTreeAncestor {
		return true, nil
	}

	// Otherwise, use previously registered future blocks to complete the
	// reachability test
	return rm.futureCoveringSetHasAncestorOf(blockHashA, blockHashB)
}

// IsDAGAncestorOfAny returns true if blockHash is a DAG ancestor of any
// member of potentialDescendants
func (rm *reachabilityManager) IsDAGAncestorOfAny(blockHash *externalapi.DomainHash,
	potentialDescendants []*externalapi.DomainHash) (bool, error) {

	for _, potentialDescendant := range potentialDescendants {
		isDAGAncestorOf, err := rm.IsDAGAncestorOf(blockHash, potentialDescendant)
		if err != nil {
			return false, err
		}
		if isDAGAncestorOf {
			return true, nil
		}
	}
	return false, nil
}

// HasReachabilityData returns whether the given blockHash is indexed.
func (rm *reachabilityManager) HasReachabilityData(blockHash *externalapi.DomainHash) (bool, error) {
	return rm.reachabilityDataStore.HasReachabilityData(rm.databaseContext, blockHash)
}

func (rm *reachabilityManager) data(blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	return rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, blockHash)
}

func (rm *reachabilityManager) stageData(blockHash *externalapi.DomainHash, data *model.ReachabilityData) {
	rm.reachabilityDataStore.StageReachabilityData(blockHash, data)
}
