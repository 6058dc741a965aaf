package reachabilitymanager

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// reachabilityDataStoreImpl is a minimal in-memory stand-in for
// the persistent store, sufficient for driving the manager.
type reachabilityDataStoreImpl struct {
	data map[externalapi.DomainHash]*model.ReachabilityData
}

func newReachabilityDataStoreImpl() *reachabilityDataStoreImpl {
	return &reachabilityDataStoreImpl{data: make(map[externalapi.DomainHash]*model.ReachabilityData)}
}

func (r *reachabilityDataStoreImpl) StageReachabilityData(blockHash *externalapi.DomainHash,
	reachabilityData *model.ReachabilityData) {
	r.data[*blockHash] = reachabilityData.Clone()
}

func (r *reachabilityDataStoreImpl) IsStaged() bool                     { return false }
func (r *reachabilityDataStoreImpl) Discard()                           {}
func (r *reachabilityDataStoreImpl) Commit(_ model.DBTransaction) error { return nil }

func (r *reachabilityDataStoreImpl) ReachabilityData(_ model.DBReader,
	blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	reachabilityData, ok := r.data[*blockHash]
	if !ok {
		return nil, errors.Errorf("reachability data for %s not found", blockHash)
	}
	return reachabilityData.Clone(), nil
}

func (r *reachabilityDataStoreImpl) HasReachabilityData(_ model.DBReader,
	blockHash *externalapi.DomainHash) (bool, error) {
	_, ok := r.data[*blockHash]
	return ok, nil
}

// testDAG drives the manager while tracking the full transitive
// closure naively, so every query has a ground truth to compare
// against.
type testDAG struct {
	t       *testing.T
	manager model.ReachabilityManager

	blocks    []*externalapi.DomainHash
	ancestors map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}
	counter   uint64
}

func newTestDAG(t *testing.T) *testDAG {
	store := newReachabilityDataStoreImpl()
	manager := New(nil, store)
	err := manager.Init()
	if err != nil {
		t.Fatalf("Init: %+v", err)
	}

	return &testDAG{
		t:       t,
		manager: manager,
		blocks:  []*externalapi.DomainHash{externalapi.ORIGIN.Clone()},
		ancestors: map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}{
			externalapi.ORIGIN: {},
		},
	}
}

func (td *testDAG) newHash() *externalapi.DomainHash {
	td.counter++
	var hash externalapi.DomainHash
	binary.LittleEndian.PutUint64(hash[:8], td.counter)
	return &hash
}

// addBlock inserts a block with the given selected parent and
// mergeset into the index, and into the naive closure via the
// parent set {selectedParent} ∪ mergeset.
func (td *testDAG) addBlock(selectedParent *externalapi.DomainHash,
	mergeSet ...*externalapi.DomainHash) *externalapi.DomainHash {
	td.t.Helper()

	blockHash := td.newHash()
	err := td.manager.AddBlock(blockHash, selectedParent, mergeSet)
	if err != nil {
		td.t.Fatalf("AddBlock: %+v", err)
	}

	blockAncestors := map[externalapi.DomainHash]struct{}{}
	for _, parent := range append([]*externalapi.DomainHash{selectedParent}, mergeSet...) {
		blockAncestors[*parent] = struct{}{}
		for ancestor := range td.ancestors[*parent] {
			blockAncestors[ancestor] = struct{}{}
		}
	}
	td.ancestors[*blockHash] = blockAncestors
	td.blocks = append(td.blocks, blockHash)
	return blockHash
}

// checkAllPairs verifies the index against the naive closure for
// every ordered pair of blocks.
func (td *testDAG) checkAllPairs() {
	td.t.Helper()

	for _, blockA := range td.blocks {
		for _, blockB := range td.blocks {
			expected := blockA.Equal(blockB)
			if !expected {
				_, expected = td.ancestors[*blockB][*blockA]
			}

			actual, err := td.manager.IsDAGAncestorOf(blockA, blockB)
			if err != nil {
				td.t.Fatalf("IsDAGAncestorOf(%s, %s): %+v", blockA, blockB, err)
			}
			if actual != expected {
				td.t.Errorf("IsDAGAncestorOf(%s, %s): got %t, want %t",
					blockA, blockB, actual, expected)
			}
		}
	}
}

func TestIntervalTreeWithCrossEdges(t *testing.T) {
	td := newTestDAG(t)

	// Two sibling chains under a common root, merged repeatedly.
	root := td.addBlock(&externalapi.ORIGIN)
	leftA := td.addBlock(root)
	leftB := td.addBlock(leftA)
	rightA := td.addBlock(root)
	rightB := td.addBlock(rightA)
	mergeLeft := td.addBlock(leftB, rightB)
	rightC := td.addBlock(rightB)
	td.addBlock(mergeLeft, rightC)

	td.checkAllPairs()
}

// TestReindexPreservesQueries builds a spine long enough to force
// interval reallocation and checks that every ancestry answer is
// the same before and after the reindex.
func TestReindexPreservesQueries(t *testing.T) {
	td := newTestDAG(t)

	// Interval halving exhausts a 2^60 root interval after about
	// sixty nested allocations; go well past that.
	spine := make([]*externalapi.DomainHash, 0, 80)
	current := td.addBlock(&externalapi.ORIGIN)
	spine = append(spine, current)
	for i := 0; i < 79; i++ {
		current = td.addBlock(current)
		spine = append(spine, current)
	}

	// Hang a merge block off the middle of the spine to exercise
	// future-covering sets across the reindexed region.
	side := td.addBlock(spine[10])
	td.addBlock(spine[len(spine)-1], side)

	td.checkAllPairs()
}

func TestFutureCoveringSetQueries(t *testing.T) {
	td := newTestDAG(t)

	root := td.addBlock(&externalapi.ORIGIN)
	// A fan of siblings, each merged by a separate chain block, so
	// the merged siblings accumulate future-covering entries.
	siblings := make([]*externalapi.DomainHash, 5)
	for i := range siblings {
		siblings[i] = td.addBlock(root)
	}
	chain := siblings[0]
	for _, sibling := range siblings[1:] {
		chain = td.addBlock(chain, sibling)
	}

	td.checkAllPairs()
}
