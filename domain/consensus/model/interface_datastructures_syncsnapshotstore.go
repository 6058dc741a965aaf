package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// SyncSnapshotStore persists a LayerSnapshot per accumulator leaf.
type SyncSnapshotStore interface {
	Stage(leafHash *externalapi.DomainHash, snapshot *LayerSnapshot)
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	Get(dbContext DBReader, leafHash *externalapi.DomainHash) (*LayerSnapshot, error)
}
