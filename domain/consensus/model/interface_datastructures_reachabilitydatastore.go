package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// ReachabilityDataStore represents a store of ReachabilityData
type ReachabilityDataStore interface {
	StageReachabilityData(blockHash *externalapi.DomainHash, reachabilityData *ReachabilityData)
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	ReachabilityData(dbContext DBReader, blockHash *externalapi.DomainHash) (*ReachabilityData, error)
	HasReachabilityData(dbContext DBReader, blockHash *externalapi.DomainHash) (bool, error)
}
