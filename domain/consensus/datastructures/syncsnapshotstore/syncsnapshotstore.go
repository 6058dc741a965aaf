package syncsnapshotstore

import (
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/lrucache"
)

var bucket = database.MakeBucket([]byte("sync")).Bucket([]byte("snapshot"))

// syncSnapshotStore persists a LayerSnapshot per accumulator leaf.
type syncSnapshotStore struct {
	staging map[externalapi.DomainHash]*model.LayerSnapshot
	cache   *lrucache.LRUCache
}

// New instantiates a new SyncSnapshotStore
func New(cacheSize int) model.SyncSnapshotStore {
	return &syncSnapshotStore{
		staging: make(map[externalapi.DomainHash]*model.LayerSnapshot),
		cache:   lrucache.New(cacheSize),
	}
}

// Stage stages the given snapshot for the given leafHash
func (sss *syncSnapshotStore) Stage(leafHash *externalapi.DomainHash, snapshot *model.LayerSnapshot) {
	sss.staging[*leafHash] = snapshot.Clone()
}

func (sss *syncSnapshotStore) IsStaged() bool {
	return len(sss.staging) != 0
}

func (sss *syncSnapshotStore) Discard() {
	sss.staging = make(map[externalapi.DomainHash]*model.LayerSnapshot)
}

func (sss *syncSnapshotStore) Commit(dbTx model.DBTransaction) error {
	for leafHash, snapshot := range sss.staging {
		snapshotBytes := serialization.SerializeLayerSnapshot(snapshot)
		err := dbTx.Put(sss.hashAsKey(&leafHash), snapshotBytes)
		if err != nil {
			return err
		}
		sss.cache.Add(&leafHash, snapshot)
	}

	sss.Discard()
	return nil
}

// Get returns the snapshot associated with the given leafHash
func (sss *syncSnapshotStore) Get(dbContext model.DBReader,
	leafHash *externalapi.DomainHash) (*model.LayerSnapshot, error) {

	if snapshot, ok := sss.staging[*leafHash]; ok {
		return snapshot.Clone(), nil
	}

	if snapshot, ok := sss.cache.Get(leafHash); ok {
		return snapshot.(*model.LayerSnapshot).Clone(), nil
	}

	snapshotBytes, err := dbContext.Get(sss.hashAsKey(leafHash))
	if err != nil {
		return nil, err
	}

	snapshot, err := serialization.DeserializeLayerSnapshot(snapshotBytes)
	if err != nil {
		return nil, err
	}
	sss.cache.Add(leafHash, snapshot)
	return snapshot.Clone(), nil
}

func (sss *syncSnapshotStore) hashAsKey(hash *externalapi.DomainHash) model.DBKey {
	return bucket.Key(hash.ByteSlice())
}
