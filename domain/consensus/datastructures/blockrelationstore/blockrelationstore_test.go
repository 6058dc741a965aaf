package blockrelationstore

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

type testDB struct {
	data map[string][]byte
}

func newTestDBContext() *testDB {
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

func (db *testDB) Put(key model.DBKey, value []byte) error {
	db.data[string(key.Bytes())] = value
	return nil
}

func (db *testDB) Delete(key model.DBKey) error {
	delete(db.data, string(key.Bytes()))
	return nil
}

func (db *testDB) Rollback() error             { return nil }
func (db *testDB) Commit() error               { return nil }
func (db *testDB) RollbackUnlessClosed() error { return nil }

func hashFromUint64(value uint64) *externalapi.DomainHash {
	var hash externalapi.DomainHash
	binary.LittleEndian.PutUint64(hash[:8], value)
	return &hash
}

func TestStageAndChildren(t *testing.T) {
	db := newTestDBContext()
	store := New(10)

	err := store.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}

	blockA := hashFromUint64(1)
	blockB := hashFromUint64(2)
	err = store.StageBlockRelation(db, blockA, []*externalapi.DomainHash{externalapi.ORIGIN.Clone()})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}
	err = store.StageBlockRelation(db, blockB, []*externalapi.DomainHash{externalapi.ORIGIN.Clone()})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}

	err = store.Commit(db)
	if err != nil {
		t.Fatalf("Commit: %+v", err)
	}

	originRelations, err := store.BlockRelation(db, &externalapi.ORIGIN)
	if err != nil {
		t.Fatalf("BlockRelation: %+v", err)
	}
	if len(originRelations.Children) != 2 {
		t.Fatalf("ORIGIN children: got %d, want 2", len(originRelations.Children))
	}
	if !originRelations.Children[0].Equal(blockA) || !originRelations.Children[1].Equal(blockB) {
		t.Errorf("ORIGIN children in wrong order: %v",
			externalapi.DomainHashesToStrings(originRelations.Children))
	}

	blockARelations, err := store.BlockRelation(db, blockA)
	if err != nil {
		t.Fatalf("BlockRelation: %+v", err)
	}
	if len(blockARelations.Parents) != 1 || !blockARelations.Parents[0].Equal(&externalapi.ORIGIN) {
		t.Errorf("parents of A: got %v, want [ORIGIN]",
			externalapi.DomainHashesToStrings(blockARelations.Parents))
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	db := newTestDBContext()
	store := New(10)

	err := store.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}

	err = store.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if !errors.Is(err, infrastructuredatabase.ErrKeyAlreadyExists) {
		t.Errorf("duplicate staged insert: got %v, want ErrKeyAlreadyExists", err)
	}

	err = store.Commit(db)
	if err != nil {
		t.Fatalf("Commit: %+v", err)
	}
	err = store.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if !errors.Is(err, infrastructuredatabase.ErrKeyAlreadyExists) {
		t.Errorf("duplicate committed insert: got %v, want ErrKeyAlreadyExists", err)
	}
}

func TestMissingParentFailsAtomically(t *testing.T) {
	db := newTestDBContext()
	store := New(10)

	err := store.StageBlockRelation(db, &externalapi.ORIGIN, []*externalapi.DomainHash{})
	if err != nil {
		t.Fatalf("StageBlockRelation: %+v", err)
	}
	err = store.Commit(db)
	if err != nil {
		t.Fatalf("Commit: %+v", err)
	}

	// Staging a block with one known and one unknown parent fails;
	// once the failed staging is discarded, the known parent must
	// not have gained a child edge.
	blockA := hashFromUint64(1)
	unknownParent := hashFromUint64(99)
	err = store.StageBlockRelation(db, blockA,
		[]*externalapi.DomainHash{externalapi.ORIGIN.Clone(), unknownParent})
	if err == nil {
		t.Fatalf("expected staging against an unknown parent to fail")
	}
	store.Discard()

	originRelations, err := store.BlockRelation(db, &externalapi.ORIGIN)
	if err != nil {
		t.Fatalf("BlockRelation: %+v", err)
	}
	if len(originRelations.Children) != 0 {
		t.Errorf("ORIGIN gained a child from a failed insert: %v",
			externalapi.DomainHashesToStrings(originRelations.Children))
	}
}
