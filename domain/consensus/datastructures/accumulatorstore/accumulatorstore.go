package accumulatorstore

import (
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

var accumulatorBucket = database.MakeBucket([]byte("accumulator"))
var treeBucket = accumulatorBucket.Bucket([]byte("tree"))
var infoKey = accumulatorBucket.Key([]byte("info"))

// accumulatorStore persists the sync accumulator: the mountain
// range node table keyed by node position, and the info row.
// Nodes are cached by position in a bounded map that is reset
// once full.
type accumulatorStore struct {
	stagingNodes map[uint64]*externalapi.DomainHash
	stagingInfo  *model.AccumulatorInfo

	nodeCache     map[uint64]*externalapi.DomainHash
	nodeCacheSize int
	cachedInfo    *model.AccumulatorInfo
}

// New instantiates a new AccumulatorStore
func New(cacheSize int) model.AccumulatorStore {
	return &accumulatorStore{
		stagingNodes:  make(map[uint64]*externalapi.DomainHash),
		nodeCache:     make(map[uint64]*externalapi.DomainHash),
		nodeCacheSize: cacheSize,
	}
}

// StageNode stages the digest of the node at the given position.
func (as *accumulatorStore) StageNode(position uint64, digest *externalapi.DomainHash) {
	as.stagingNodes[position] = digest.Clone()
}

// StageInfo stages the accumulator info row.
func (as *accumulatorStore) StageInfo(info *model.AccumulatorInfo) {
	as.stagingInfo = info.Clone()
}

func (as *accumulatorStore) IsStaged() bool {
	return len(as.stagingNodes) != 0 || as.stagingInfo != nil
}

func (as *accumulatorStore) Discard() {
	as.stagingNodes = make(map[uint64]*externalapi.DomainHash)
	as.stagingInfo = nil
}

func (as *accumulatorStore) Commit(dbTx model.DBTransaction) error {
	for position, digest := range as.stagingNodes {
		err := dbTx.Put(as.positionAsKey(position), digest.ByteSlice())
		if err != nil {
			return err
		}
		if len(as.nodeCache) >= as.nodeCacheSize {
			as.nodeCache = make(map[uint64]*externalapi.DomainHash)
		}
		as.nodeCache[position] = digest
	}

	if as.stagingInfo != nil {
		err := dbTx.Put(infoKey, serialization.SerializeAccumulatorInfo(as.stagingInfo))
		if err != nil {
			return err
		}
		as.cachedInfo = as.stagingInfo
	}

	as.Discard()
	return nil
}

// Node returns the digest of the node at the given position.
func (as *accumulatorStore) Node(dbContext model.DBReader, position uint64) (*externalapi.DomainHash, error) {
	if digest, ok := as.stagingNodes[position]; ok {
		return digest.Clone(), nil
	}
	if digest, ok := as.nodeCache[position]; ok {
		return digest.Clone(), nil
	}

	digestBytes, err := dbContext.Get(as.positionAsKey(position))
	if err != nil {
		return nil, err
	}
	digest, err := externalapi.NewDomainHashFromByteSlice(digestBytes)
	if err != nil {
		return nil, err
	}
	if len(as.nodeCache) >= as.nodeCacheSize {
		as.nodeCache = make(map[uint64]*externalapi.DomainHash)
	}
	as.nodeCache[position] = digest
	return digest.Clone(), nil
}

// Info returns the current accumulator info row.
func (as *accumulatorStore) Info(dbContext model.DBReader) (*model.AccumulatorInfo, error) {
	if as.stagingInfo != nil {
		return as.stagingInfo.Clone(), nil
	}
	if as.cachedInfo != nil {
		return as.cachedInfo.Clone(), nil
	}

	infoBytes, err := dbContext.Get(infoKey)
	if err != nil {
		return nil, err
	}
	info, err := serialization.DeserializeAccumulatorInfo(infoBytes)
	if err != nil {
		return nil, err
	}
	as.cachedInfo = info
	return info.Clone(), nil
}

// HasInfo returns whether an accumulator info row exists.
func (as *accumulatorStore) HasInfo(dbContext model.DBReader) (bool, error) {
	if as.stagingInfo != nil || as.cachedInfo != nil {
		return true, nil
	}
	return dbContext.Has(infoKey)
}

func (as *accumulatorStore) positionAsKey(position uint64) model.DBKey {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(position)
	return treeBucket.Key(writer.Bytes())
}
