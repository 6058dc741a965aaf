package blockheaderstore

import (
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/lrucache"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

var headersBucket = database.MakeBucket([]byte("headers"))
var compactHeadersBucket = database.MakeBucket([]byte("compact-header-data"))
var countKey = database.MakeBucket(nil).Key([]byte("headers-count"))

// blockHeaderStore represents a store of block headers.
//
// Two tables are kept per hash: the full header and a compact
// side-table carrying only the fields hot paths need. Headers
// are append-only.
type blockHeaderStore struct {
	staging      map[externalapi.DomainHash]*externalapi.DomainBlockHeader
	headerCache  *lrucache.LRUCache
	compactCache *lrucache.LRUCache
	count        uint64
}

// New instantiates a new BlockHeaderStore
func New(dbContext model.DBReader, cacheSize int) (model.BlockHeaderStore, error) {
	blockHeaderStore := &blockHeaderStore{
		staging:      make(map[externalapi.DomainHash]*externalapi.DomainBlockHeader),
		headerCache:  lrucache.New(cacheSize),
		compactCache: lrucache.New(cacheSize),
	}

	err := blockHeaderStore.initializeCount(dbContext)
	if err != nil {
		return nil, err
	}

	return blockHeaderStore, nil
}

func (bhs *blockHeaderStore) initializeCount(dbContext model.DBReader) error {
	hasCount, err := dbContext.Has(countKey)
	if err != nil {
		return err
	}
	if !hasCount {
		bhs.count = 0
		return nil
	}

	countBytes, err := dbContext.Get(countKey)
	if err != nil {
		return err
	}
	reader := binaryReader(countBytes)
	bhs.count, err = reader.ReadUint64()
	return err
}

// Stage stages the given block header for the given blockHash
func (bhs *blockHeaderStore) Stage(dbContext model.DBReader,
	blockHash *externalapi.DomainHash, blockHeader *externalapi.DomainBlockHeader) error {

	alreadyExists, err := bhs.HasBlockHeader(dbContext, blockHash)
	if err != nil {
		return err
	}
	if alreadyExists {
		return errors.Wrapf(infrastructuredatabase.ErrKeyAlreadyExists,
			"header %s already exists", blockHash)
	}

	bhs.staging[*blockHash] = blockHeader.Clone()
	return nil
}

func (bhs *blockHeaderStore) IsStaged() bool {
	return len(bhs.staging) != 0
}

func (bhs *blockHeaderStore) Discard() {
	bhs.staging = make(map[externalapi.DomainHash]*externalapi.DomainBlockHeader)
}

func (bhs *blockHeaderStore) Commit(dbTx model.DBTransaction) error {
	for hash, header := range bhs.staging {
		headerBytes := serialization.SerializeHeader(header)
		err := dbTx.Put(bhs.hashAsHeaderKey(&hash), headerBytes)
		if err != nil {
			return err
		}

		compact := compactFromHeader(header)
		err = dbTx.Put(bhs.hashAsCompactKey(&hash), serialization.SerializeCompactHeaderData(compact))
		if err != nil {
			return err
		}

		bhs.headerCache.Add(&hash, header)
		bhs.compactCache.Add(&hash, compact)
	}

	err := bhs.commitCount(dbTx)
	if err != nil {
		return err
	}

	bhs.Discard()
	return nil
}

// BlockHeader gets the block header associated with the given blockHash
func (bhs *blockHeaderStore) BlockHeader(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error) {

	if header, ok := bhs.staging[*blockHash]; ok {
		return header, nil
	}

	if header, ok := bhs.headerCache.Get(blockHash); ok {
		return header.(*externalapi.DomainBlockHeader), nil
	}

	headerBytes, err := dbContext.Get(bhs.hashAsHeaderKey(blockHash))
	if err != nil {
		return nil, err
	}

	header, err := serialization.DeserializeHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	bhs.headerCache.Add(blockHash, header)
	return header, nil
}

// HasBlockHeader returns whether a block header with a given hash exists in the store.
func (bhs *blockHeaderStore) HasBlockHeader(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (bool, error) {

	if _, ok := bhs.staging[*blockHash]; ok {
		return true, nil
	}

	if bhs.headerCache.Has(blockHash) {
		return true, nil
	}

	return dbContext.Has(bhs.hashAsHeaderKey(blockHash))
}

// BlockHeaders gets the block headers associated with the given blockHashes
func (bhs *blockHeaderStore) BlockHeaders(dbContext model.DBReader,
	blockHashes []*externalapi.DomainHash) ([]*externalapi.DomainBlockHeader, error) {

	headers := make([]*externalapi.DomainBlockHeader, len(blockHashes))
	for i, hash := range blockHashes {
		var err error
		headers[i], err = bhs.BlockHeader(dbContext, hash)
		if err != nil {
			return nil, err
		}
	}
	return headers, nil
}

// CompactHeaderData gets the compact side-table entry of the given
// blockHash. On a full-header cache hit the compact entry is
// derived without touching the side-table.
func (bhs *blockHeaderStore) CompactHeaderData(dbContext model.DBReader,
	blockHash *externalapi.DomainHash) (*externalapi.CompactHeaderData, error) {

	if header, ok := bhs.staging[*blockHash]; ok {
		return compactFromHeader(header), nil
	}
	if header, ok := bhs.headerCache.Get(blockHash); ok {
		return compactFromHeader(header.(*externalapi.DomainBlockHeader)), nil
	}

	if compact, ok := bhs.compactCache.Get(blockHash); ok {
		return compact.(*externalapi.CompactHeaderData), nil
	}

	compactBytes, err := dbContext.Get(bhs.hashAsCompactKey(blockHash))
	if err != nil {
		return nil, err
	}
	compact, err := serialization.DeserializeCompactHeaderData(compactBytes)
	if err != nil {
		return nil, err
	}
	bhs.compactCache.Add(blockHash, compact)
	return compact, nil
}

func (bhs *blockHeaderStore) Count() uint64 {
	return bhs.count + uint64(len(bhs.staging))
}

func (bhs *blockHeaderStore) commitCount(dbTx model.DBTransaction) error {
	count := bhs.Count()
	err := dbTx.Put(countKey, binaryUint64(count))
	if err != nil {
		return err
	}
	bhs.count = count
	return nil
}

func (bhs *blockHeaderStore) hashAsHeaderKey(hash *externalapi.DomainHash) model.DBKey {
	return headersBucket.Key(hash.ByteSlice())
}

func (bhs *blockHeaderStore) hashAsCompactKey(hash *externalapi.DomainHash) model.DBKey {
	return compactHeadersBucket.Key(hash.ByteSlice())
}

func compactFromHeader(header *externalapi.DomainBlockHeader) *externalapi.CompactHeaderData {
	return &externalapi.CompactHeaderData{
		TimeInMilliseconds: header.TimeInMilliseconds,
		Difficulty:         header.Difficulty,
		BlueScore:          header.BlueScore,
	}
}
