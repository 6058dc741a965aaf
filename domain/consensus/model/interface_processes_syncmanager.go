package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// SyncManager maintains the sync accumulator over DAG layers and
// answers the server side of the ancestor-finding protocol.
type SyncManager interface {
	// Rebuild constructs the accumulator from scratch by walking
	// the DAG in BFS wavefronts starting at ORIGIN.
	Rebuild() error

	// InitFromDAG restores the in-memory layer assignment of an
	// existing accumulator from its persisted leaf snapshots.
	InitFromDAG() error

	// RegisterCommit is called by the facade after a block commit.
	// It assigns the block a layer and, when the frontier advances,
	// seals the open layer by appending its leaf.
	RegisterCommit(blockHash *externalapi.DomainHash) error

	// SealOpenLayer closes the current wavefront, appending its
	// leaf and snapshot. A no-op when the open layer is empty.
	SealOpenLayer() error

	AccumulatorInfo() (*AccumulatorInfo, error)
	AccumulatorLeaves(startIndex uint64, limit uint64) ([]*LeafRef, error)
	AccumulatorLeafDetails(startIndex uint64, limit uint64) ([]*LeafDetail, error)
	DagBlockInfo(startIndex uint64, limit uint64) ([]*LayerBlocks, error)
	GetProof(leafIndex uint64) ([]*externalapi.DomainHash, error)
}
