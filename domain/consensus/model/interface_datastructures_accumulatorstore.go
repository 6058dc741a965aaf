package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// AccumulatorStore persists the sync accumulator's Merkle
// mountain range: a node table keyed by node position and the
// AccumulatorInfo row describing the current state.
type AccumulatorStore interface {
	StageNode(position uint64, digest *externalapi.DomainHash)
	StageInfo(info *AccumulatorInfo)
	IsStaged() bool
	Discard()
	Commit(dbTx DBTransaction) error

	Node(dbContext DBReader, position uint64) (*externalapi.DomainHash, error)
	Info(dbContext DBReader) (*AccumulatorInfo, error)
	HasInfo(dbContext DBReader) (bool, error)
}
