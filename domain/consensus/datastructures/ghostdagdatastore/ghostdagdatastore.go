package ghostdagdatastore

import (
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/lrucache"
)

var bucket = database.MakeBucket([]byte("ghostdag"))

// ghostdagDataStore represents a store of BlockGHOSTDAGData
type ghostdagDataStore struct {
	staging map[externalapi.DomainHash]*model.BlockGHOSTDAGData
	cache   *lrucache.LRUCache
}

// New instantiates a new GHOSTDAGDataStore
func New(cacheSize int) model.GHOSTDAGDataStore {
	return &ghostdagDataStore{
		staging: make(map[externalapi.DomainHash]*model.BlockGHOSTDAGData),
		cache:   lrucache.New(cacheSize),
	}
}

// Stage stages the given blockGHOSTDAGData for the given blockHash
func (gds *ghostdagDataStore) Stage(blockHash *externalapi.DomainHash,
	blockGHOSTDAGData *model.BlockGHOSTDAGData) {

	gds.staging[*blockHash] = blockGHOSTDAGData.Clone()
}

func (gds *ghostdagDataStore) IsStaged() bool {
	return len(gds.staging) != 0
}

func (gds *ghostdagDataStore) Discard() {
	gds.staging = make(map[externalapi.DomainHash]*model.BlockGHOSTDAGData)
}

func (gds *ghostdagDataStore) Commit(dbTx model.DBTransaction) error {
	for hash, blockGHOSTDAGData := range gds.staging {
		blockGhostdagDataBytes := serialization.SerializeGHOSTDAGData(blockGHOSTDAGData)
		err := dbTx.Put(gds.hashAsKey(&hash), blockGhostdagDataBytes)
		if err != nil {
			return err
		}
		gds.cache.Add(&hash, blockGHOSTDAGData)
	}

	gds.Discard()
	return nil
}

// Get gets the blockGHOSTDAGData associated with the given blockHash
func (gds *ghostdagDataStore) Get(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (*model.BlockGHOSTDAGData, error) {

	if blockGHOSTDAGData, ok := gds.staging[*blockHash]; ok {
		return blockGHOSTDAGData.Clone(), nil
	}

	if blockGHOSTDAGData, ok := gds.cache.Get(blockHash); ok {
		return blockGHOSTDAGData.(*model.BlockGHOSTDAGData).Clone(), nil
	}

	blockGHOSTDAGDataBytes, err := dbContext.Get(gds.hashAsKey(blockHash))
	if err != nil {
		return nil, err
	}

	blockGHOSTDAGData, err := serialization.DeserializeGHOSTDAGData(blockGHOSTDAGDataBytes)
	if err != nil {
		return nil, err
	}
	gds.cache.Add(blockHash, blockGHOSTDAGData)
	return blockGHOSTDAGData.Clone(), nil
}

// Has returns whether GHOSTDAG data for the given blockHash exists.
func (gds *ghostdagDataStore) Has(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (bool, error) {

	if _, ok := gds.staging[*blockHash]; ok {
		return true, nil
	}

	if gds.cache.Has(blockHash) {
		return true, nil
	}

	return dbContext.Has(gds.hashAsKey(blockHash))
}

func (gds *ghostdagDataStore) hashAsKey(hash *externalapi.DomainHash) model.DBKey {
	return bucket.Key(hash.ByteSlice())
}
