package blockrelationstore

import (
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/lrucache"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

var relationsBucket = database.MakeBucket([]byte("relations"))
var parentsBucket = relationsBucket.Bucket([]byte("parents"))
var childrenBucket = relationsBucket.Bucket([]byte("children"))

// blockRelationStore represents a store of BlockRelations.
//
// Each direction is persisted in its own table: the append-once
// parents list and the monotonically growing children list.
type blockRelationStore struct {
	stagingParents  map[externalapi.DomainHash][]*externalapi.DomainHash
	stagingChildren map[externalapi.DomainHash][]*externalapi.DomainHash
	parentsCache    *lrucache.LRUCache
	childrenCache   *lrucache.LRUCache
}

// New instantiates a new BlockRelationStore
func New(cacheSize int) model.BlockRelationStore {
	return &blockRelationStore{
		stagingParents:  make(map[externalapi.DomainHash][]*externalapi.DomainHash),
		stagingChildren: make(map[externalapi.DomainHash][]*externalapi.DomainHash),
		parentsCache:    lrucache.New(cacheSize),
		childrenCache:   lrucache.New(cacheSize),
	}
}

// StageBlockRelation stages a new relations entry for blockHash and the
// matching child-edge update on each parent. The parents list is
// append-once: re-staging an existing hash fails with ErrKeyAlreadyExists.
func (brs *blockRelationStore) StageBlockRelation(dbContext model.DBReader,
	blockHash *externalapi.DomainHash, parentHashes []*externalapi.DomainHash) error {

	alreadyExists, err := brs.Has(dbContext, blockHash)
	if err != nil {
		return err
	}
	if alreadyExists {
		return errors.Wrapf(infrastructuredatabase.ErrKeyAlreadyExists,
			"relations entry for block %s already exists", blockHash)
	}

	brs.stagingParents[*blockHash] = externalapi.CloneHashes(parentHashes)
	brs.stagingChildren[*blockHash] = []*externalapi.DomainHash{}

	for _, parentHash := range parentHashes {
		parentChildren, err := brs.children(dbContext, parentHash)
		if err != nil {
			return err
		}
		if externalapi.HashesContain(parentChildren, blockHash) {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation,
				"block %s is already a child of %s", blockHash, parentHash)
		}
		brs.stagingChildren[*parentHash] = append(parentChildren, blockHash.Clone())
	}
	return nil
}

func (brs *blockRelationStore) IsStaged() bool {
	return len(brs.stagingParents) != 0 || len(brs.stagingChildren) != 0
}

func (brs *blockRelationStore) Discard() {
	brs.stagingParents = make(map[externalapi.DomainHash][]*externalapi.DomainHash)
	brs.stagingChildren = make(map[externalapi.DomainHash][]*externalapi.DomainHash)
}

func (brs *blockRelationStore) Commit(dbTx model.DBTransaction) error {
	for hash, parents := range brs.stagingParents {
		err := dbTx.Put(parentsBucket.Key(hash.ByteSlice()), serializeHashes(parents))
		if err != nil {
			return err
		}
		brs.parentsCache.Add(&hash, parents)
	}
	for hash, children := range brs.stagingChildren {
		err := dbTx.Put(childrenBucket.Key(hash.ByteSlice()), serializeHashes(children))
		if err != nil {
			return err
		}
		brs.childrenCache.Add(&hash, children)
	}

	brs.Discard()
	return nil
}

// BlockRelation returns the relations entry of the given blockHash.
// The returned value is a clone that is safe to mutate.
func (brs *blockRelationStore) BlockRelation(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (*model.BlockRelations, error) {

	parents, err := brs.parents(dbContext, blockHash)
	if err != nil {
		return nil, err
	}
	children, err := brs.children(dbContext, blockHash)
	if err != nil {
		return nil, err
	}
	return &model.BlockRelations{Parents: parents, Children: children}, nil
}

func (brs *blockRelationStore) Has(dbContext model.DBReader, blockHash *externalapi.DomainHash) (bool, error) {
	if _, ok := brs.stagingParents[*blockHash]; ok {
		return true, nil
	}

	if brs.parentsCache.Has(blockHash) {
		return true, nil
	}

	return dbContext.Has(parentsBucket.Key(blockHash.ByteSlice()))
}

func (brs *blockRelationStore) parents(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	if parents, ok := brs.stagingParents[*blockHash]; ok {
		return externalapi.CloneHashes(parents), nil
	}
	if parents, ok := brs.parentsCache.Get(blockHash); ok {
		return externalapi.CloneHashes(parents.([]*externalapi.DomainHash)), nil
	}

	parentsBytes, err := dbContext.Get(parentsBucket.Key(blockHash.ByteSlice()))
	if err != nil {
		return nil, err
	}
	parents, err := deserializeHashes(parentsBytes)
	if err != nil {
		return nil, err
	}
	brs.parentsCache.Add(blockHash, parents)
	return externalapi.CloneHashes(parents), nil
}

func (brs *blockRelationStore) children(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {

	if children, ok := brs.stagingChildren[*blockHash]; ok {
		return externalapi.CloneHashes(children), nil
	}
	if children, ok := brs.childrenCache.Get(blockHash); ok {
		return externalapi.CloneHashes(children.([]*externalapi.DomainHash)), nil
	}

	childrenBytes, err := dbContext.Get(childrenBucket.Key(blockHash.ByteSlice()))
	if err != nil {
		return nil, err
	}
	children, err := deserializeHashes(childrenBytes)
	if err != nil {
		return nil, err
	}
	brs.childrenCache.Add(blockHash, children)
	return externalapi.CloneHashes(children), nil
}

func serializeHashes(hashes []*externalapi.DomainHash) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteHashSlice(hashes)
	return writer.Bytes()
}

func deserializeHashes(hashesBytes []byte) ([]*externalapi.DomainHash, error) {
	reader := binaryserialization.NewReader(hashesBytes)
	return reader.ReadHashSlice()
}
