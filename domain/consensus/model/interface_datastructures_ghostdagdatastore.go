package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// GHOSTDAGDataStore represents a store of BlockGHOSTDAGData
type GHOSTDAGDataStore interface {
	Stage(blockHash *externalapi.DomainHash, blockGHOSTDAGData *BlockGHOSTDAGData)
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	Get(dbContext DBReader, blockHash *externalapi.DomainHash) (*BlockGHOSTDAGData, error)
	Has(dbContext DBReader, blockHash *externalapi.DomainHash) (bool, error)
}
