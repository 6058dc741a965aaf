package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// ReachabilityManager maintains the interval-labeled tree over
// selected-parent edges and answers DAG ancestry queries in
// expected logarithmic time.
type ReachabilityManager interface {
	// Init assigns ORIGIN the root interval. It is idempotent.
	Init() error

	// AddBlock inserts blockHash into the tree as a child of
	// selectedParent and registers it in the future-covering set
	// of every tree-ancestor of every mergeset block. Both
	// selectedParent and all of mergeSet must already be indexed.
	AddBlock(blockHash *externalapi.DomainHash, selectedParent *externalapi.DomainHash,
		mergeSet []*externalapi.DomainHash) error

	IsReachabilityTreeAncestorOf(blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOf(blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOfAny(blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash) (bool, error)
	HasReachabilityData(blockHash *externalapi.DomainHash) (bool, error)
}
