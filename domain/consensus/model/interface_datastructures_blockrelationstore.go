package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// BlockRelationStore represents a store of BlockRelations
type BlockRelationStore interface {
	// StageBlockRelation stages a new relations entry for blockHash
	// with the given parents, and stages the matching child-edge
	// update on every parent's entry. It returns ErrKeyAlreadyExists
	// if blockHash already has a relations entry.
	StageBlockRelation(dbContext DBReader, blockHash *externalapi.DomainHash,
		parentHashes []*externalapi.DomainHash) error
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	BlockRelation(dbContext DBReader, blockHash *externalapi.DomainHash) (*BlockRelations, error)
	Has(dbContext DBReader, blockHash *externalapi.DomainHash) (bool, error)
}
