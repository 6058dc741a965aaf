package syncmanager

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/accumulatorstore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/blockrelationstore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/syncsnapshotstore"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

// testDB is an in-memory DBManager: writes apply immediately,
// which is all the staging-based stores need in tests.
type testDB struct {
	data map[string][]byte
}

func newTestDB() *testDB {
	return &testDB{data: make(map[string][]byte)}
}

func (db *testDB) Get(key model.DBKey) ([]byte, error) {
	value, ok := db.data[string(key.Bytes())]
	if !ok {
		return nil, errors.Wrapf(infrastructuredatabase.ErrNotFound, "key %s not found", key)
	}
	return value, nil
}

func (db *testDB) Has(key model.DBKey) (bool, error) {
	_, ok := db.data[string(key.Bytes())]
	return ok, nil
}

func (db *testDB) Begin() (model.DBTransaction, error) {
	return &testDBTransaction{db: db}, nil
}

type testDBTransaction struct {
	db *testDB
}

func (tx *testDBTransaction) Get(key model.DBKey) ([]byte, error) { return tx.db.Get(key) }
func (tx *testDBTransaction) Has(key model.DBKey) (bool, error)   { return tx.db.Has(key) }
func (tx *testDBTransaction) Put(key model.DBKey, value []byte) error {
	tx.db.data[string(key.Bytes())] = value
	return nil
}
func (tx *testDBTransaction) Delete(key model.DBKey) error {
	delete(tx.db.data, string(key.Bytes()))
	return nil
}
func (tx *testDBTransaction) Rollback() error             { return nil }
func (tx *testDBTransaction) Commit() error               { return nil }
func (tx *testDBTransaction) RollbackUnlessClosed() error { return nil }

type testSyncSetup struct {
	t           *testing.T
	db          *testDB
	syncManager *syncManager
	relations   model.BlockRelationStore
	counter     uint64
}

func newTestSyncSetup(t *testing.T, maxSyncBatch uint64) *testSyncSetup {
	db := newTestDB()
	relations := blockrelationstore.New(100)
	accumulator := accumulatorstore.New(100)
	snapshots := syncsnapshotstore.New(100)

	err := relations.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}

	manager := New(db, accumulator, snapshots, relations, nil, maxSyncBatch).(*syncManager)
	return &testSyncSetup{
		t:           t,
		db:          db,
		syncManager: manager,
		relations:   relations,
	}
}

func (ts *testSyncSetup) newHash() *externalapi.DomainHash {
	ts.counter++
	var hash externalapi.DomainHash
	binary.LittleEndian.PutUint64(hash[:8], ts.counter)
	return &hash
}

// addBlock registers a block with the given parents in relations
// and in the sync manager, flushing staged data immediately.
func (ts *testSyncSetup) addBlock(parents ...*externalapi.DomainHash) *externalapi.DomainHash {
	ts.t.Helper()

	blockHash := ts.newHash()
	err := ts.relations.StageBlockRelation(ts.db, blockHash, parents)
	if err != nil {
		ts.t.Fatalf("StageBlockRelation: %+v", err)
	}
	err = ts.syncManager.RegisterCommit(blockHash)
	if err != nil {
		ts.t.Fatalf("RegisterCommit: %+v", err)
	}
	ts.flush()
	return blockHash
}

func (ts *testSyncSetup) flush() {
	ts.t.Helper()

	dbTx, err := ts.db.Begin()
	if err != nil {
		ts.t.Fatalf("Begin: %+v", err)
	}
	for _, store := range []interface {
		IsStaged() bool
		Commit(model.DBTransaction) error
	}{ts.relations, ts.syncManager.accumulatorStore, ts.syncManager.syncSnapshotStore} {
		if !store.IsStaged() {
			continue
		}
		err = store.Commit(dbTx)
		if err != nil {
			ts.t.Fatalf("Commit: %+v", err)
		}
	}
}

func (ts *testSyncSetup) seal() {
	ts.t.Helper()

	err := ts.syncManager.SealOpenLayer()
	if err != nil {
		ts.t.Fatalf("SealOpenLayer: %+v", err)
	}
	ts.flush()
}

// buildLayeredDAG creates numLayers layers with blocksPerLayer
// blocks each, every block pointing at all blocks of the previous
// layer, and seals them all.
func (ts *testSyncSetup) buildLayeredDAG(numLayers, blocksPerLayer int) {
	ts.t.Helper()

	frontier := []*externalapi.DomainHash{externalapi.ORIGIN.Clone()}
	for layer := 0; layer < numLayers; layer++ {
		next := make([]*externalapi.DomainHash, 0, blocksPerLayer)
		for i := 0; i < blocksPerLayer; i++ {
			next = append(next, ts.addBlock(frontier...))
		}
		frontier = next
	}
	ts.seal()
}

func TestAccumulatorGrowth(t *testing.T) {
	ts := newTestSyncSetup(t, 10_000)
	ts.buildLayeredDAG(12, 2)

	info, err := ts.syncManager.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	if info.NumLeaves != 12 {
		t.Fatalf("num leaves: got %d, want 12", info.NumLeaves)
	}

	leafRefs, err := ts.syncManager.AccumulatorLeaves(0, 100)
	if err != nil {
		t.Fatalf("AccumulatorLeaves: %+v", err)
	}
	if len(leafRefs) != 12 {
		t.Fatalf("leaf refs: got %d, want 12", len(leafRefs))
	}
	for i, leafRef := range leafRefs {
		if leafRef.LeafIndex != uint64(i) {
			t.Errorf("leaf index: got %d, want %d", leafRef.LeafIndex, i)
		}
	}

	// Replaying every leaf into a fresh accumulator must reproduce
	// each snapshot's recorded state.
	replay := newTestSyncSetup(t, 10_000)
	replayInfo, err := replay.syncManager.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	for i, leafRef := range leafRefs {
		replayInfo, err = replay.syncManager.appendLeaf(replayInfo, leafRef.LeafHash)
		if err != nil {
			t.Fatalf("appendLeaf: %+v", err)
		}
		replay.flush()

		snapshot, err := ts.syncManager.leafSnapshot(uint64(i))
		if err != nil {
			t.Fatalf("leafSnapshot: %+v", err)
		}
		if !snapshot.AccumulatorInfo.Equal(replayInfo) {
			t.Errorf("leaf %d: snapshot state does not match replayed state", i)
		}
	}
}

func TestProofVerification(t *testing.T) {
	ts := newTestSyncSetup(t, 10_000)
	ts.buildLayeredDAG(11, 1)

	info, err := ts.syncManager.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}

	leafRefs, err := ts.syncManager.AccumulatorLeaves(0, 100)
	if err != nil {
		t.Fatalf("AccumulatorLeaves: %+v", err)
	}
	for _, leafRef := range leafRefs {
		proof, err := ts.syncManager.GetProof(leafRef.LeafIndex)
		if err != nil {
			t.Fatalf("GetProof(%d): %+v", leafRef.LeafIndex, err)
		}
		if !VerifyProof(info.AccumulatorRoot, leafRef.LeafHash, leafRef.LeafIndex,
			info.NumLeaves, proof) {
			t.Errorf("proof for leaf %d does not verify", leafRef.LeafIndex)
		}

		// A proof against the wrong leaf must fail.
		wrongLeaf := ts.newHash()
		if VerifyProof(info.AccumulatorRoot, wrongLeaf, leafRef.LeafIndex,
			info.NumLeaves, proof) {
			t.Errorf("proof for leaf %d verified a wrong leaf", leafRef.LeafIndex)
		}
	}
}

func TestBatchLimits(t *testing.T) {
	ts := newTestSyncSetup(t, 5)
	ts.buildLayeredDAG(3, 1)

	_, err := ts.syncManager.AccumulatorLeaves(0, 0)
	if !errors.Is(err, ruleerrors.ErrBadRequest) {
		t.Errorf("limit 0: got %v, want ErrBadRequest", err)
	}
	_, err = ts.syncManager.AccumulatorLeaves(0, 6)
	if !errors.Is(err, ruleerrors.ErrBadRequest) {
		t.Errorf("limit beyond max: got %v, want ErrBadRequest", err)
	}

	leafRefs, err := ts.syncManager.AccumulatorLeaves(2, 5)
	if err != nil {
		t.Fatalf("AccumulatorLeaves: %+v", err)
	}
	if len(leafRefs) != 1 {
		t.Errorf("clipped batch: got %d leaves, want 1", len(leafRefs))
	}
	leafRefs, err = ts.syncManager.AccumulatorLeaves(10, 5)
	if err != nil {
		t.Fatalf("AccumulatorLeaves: %+v", err)
	}
	if len(leafRefs) != 0 {
		t.Errorf("out-of-range batch: got %d leaves, want 0", len(leafRefs))
	}
}

func TestLeafDetails(t *testing.T) {
	ts := newTestSyncSetup(t, 10_000)

	blockA := ts.addBlock(externalapi.ORIGIN.Clone())
	ts.addBlock(blockA)
	ts.addBlock(blockA)
	ts.seal()

	details, err := ts.syncManager.AccumulatorLeafDetails(0, 10)
	if err != nil {
		t.Fatalf("AccumulatorLeafDetails: %+v", err)
	}
	if len(details) != 2 {
		t.Fatalf("details: got %d leaves, want 2", len(details))
	}
	if len(details[0].Pairs) != 1 {
		t.Fatalf("layer 1 pairs: got %d, want 1", len(details[0].Pairs))
	}
	if !details[0].Pairs[0].Parent.Equal(&externalapi.ORIGIN) ||
		!details[0].Pairs[0].Child.Equal(blockA) {
		t.Errorf("layer 1 pair: got (%s, %s), want (ORIGIN, %s)",
			details[0].Pairs[0].Parent, details[0].Pairs[0].Child, blockA)
	}
	if len(details[1].Pairs) != 2 {
		t.Errorf("layer 2 pairs: got %d, want 2", len(details[1].Pairs))
	}
}
