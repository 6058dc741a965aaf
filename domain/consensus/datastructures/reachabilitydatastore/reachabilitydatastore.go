package reachabilitydatastore

import (
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/lrucache"
)

var bucket = database.MakeBucket([]byte("reach")).Bucket([]byte("interval"))

// reachabilityDataStore represents a store of ReachabilityData.
//
// Unlike the other stores, entries here are re-staged after
// commit: tree reindexing and future-covering-set maintenance
// mutate interior nodes.
type reachabilityDataStore struct {
	staging map[externalapi.DomainHash]*model.ReachabilityData
	cache   *lrucache.LRUCache
}

// New instantiates a new ReachabilityDataStore
func New(cacheSize int) model.ReachabilityDataStore {
	return &reachabilityDataStore{
		staging: make(map[externalapi.DomainHash]*model.ReachabilityData),
		cache:   lrucache.New(cacheSize),
	}
}

// StageReachabilityData stages the given reachabilityData for the
// given blockHash, overwriting any previous entry.
func (rds *reachabilityDataStore) StageReachabilityData(blockHash *externalapi.DomainHash,
	reachabilityData *model.ReachabilityData) {

	rds.staging[*blockHash] = reachabilityData.Clone()
}

func (rds *reachabilityDataStore) IsStaged() bool {
	return len(rds.staging) != 0
}

func (rds *reachabilityDataStore) Discard() {
	rds.staging = make(map[externalapi.DomainHash]*model.ReachabilityData)
}

func (rds *reachabilityDataStore) Commit(dbTx model.DBTransaction) error {
	for hash, reachabilityData := range rds.staging {
		reachabilityDataBytes := serialization.SerializeReachabilityData(reachabilityData)
		err := dbTx.Put(rds.hashAsKey(&hash), reachabilityDataBytes)
		if err != nil {
			return err
		}
		rds.cache.Add(&hash, reachabilityData)
	}

	rds.Discard()
	return nil
}

// ReachabilityData returns the reachabilityData associated with the given blockHash
func (rds *reachabilityDataStore) ReachabilityData(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {

	if reachabilityData, ok := rds.staging[*blockHash]; ok {
		return reachabilityData.Clone(), nil
	}

	if reachabilityData, ok := rds.cache.Get(blockHash); ok {
		return reachabilityData.(*model.ReachabilityData).Clone(), nil
	}

	reachabilityDataBytes, err := dbContext.Get(rds.hashAsKey(blockHash))
	if err != nil {
		return nil, err
	}

	reachabilityData, err := serialization.DeserializeReachabilityData(reachabilityDataBytes)
	if err != nil {
		return nil, err
	}
	rds.cache.Add(blockHash, reachabilityData)
	return reachabilityData.Clone(), nil
}

// HasReachabilityData returns whether reachability data exists
// for the given blockHash.
func (rds *reachabilityDataStore) HasReachabilityData(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (bool, error) {

	if _, ok := rds.staging[*blockHash]; ok {
		return true, nil
	}

	if rds.cache.Has(blockHash) {
		return true, nil
	}

	return dbContext.Has(rds.hashAsKey(blockHash))
}

func (rds *reachabilityDataStore) hashAsKey(hash *externalapi.DomainHash) model.DBKey {
	return bucket.Key(hash.ByteSlice())
}
