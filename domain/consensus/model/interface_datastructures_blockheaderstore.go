package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// BlockHeaderStore represents a store of block headers
type BlockHeaderStore interface {
	// Stage stages the given header under its hash. It returns
	// ErrKeyAlreadyExists if a header with this hash was already
	// committed or staged.
	Stage(dbContext DBReader, blockHash *externalapi.DomainHash,
		blockHeader *externalapi.DomainBlockHeader) error
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	BlockHeader(dbContext DBReader, blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error)
	HasBlockHeader(dbContext DBReader, blockHash *externalapi.DomainHash) (bool, error)
	BlockHeaders(dbContext DBReader, blockHashes []*externalapi.DomainHash) ([]*externalapi.DomainBlockHeader, error)
	CompactHeaderData(dbContext DBReader, blockHash *externalapi.DomainHash) (*externalapi.CompactHeaderData, error)
	Count() uint64
}
