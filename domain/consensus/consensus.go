// Package consensus is the DAG facade: it wires the stores and
// process managers together and serializes every mutating
// operation under a single writer lock.
package consensus

import (
	"sync"

	consensusdatabase "github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CNSS")

// Consensus maintains the current core state of the node
type Consensus interface {
	AddBlock(header *externalapi.DomainBlockHeader) error
	GetBlockHeader(blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error)
	HasBlockHeader(blockHash *externalapi.DomainHash) (bool, error)
	GetGHOSTDAGData(blockHash *externalapi.DomainHash) (*model.BlockGHOSTDAGData, error)
	IsDAGAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	Tips() ([]*externalapi.DomainHash, error)

	SealOpenLayer() error
	AccumulatorInfo() (*model.AccumulatorInfo, error)
	AccumulatorLeaves(startIndex uint64, limit uint64) ([]*model.LeafRef, error)
	AccumulatorLeafDetails(startIndex uint64, limit uint64) ([]*model.LeafDetail, error)
	DagBlockInfo(startIndex uint64, limit uint64) ([]*model.LayerBlocks, error)
	GetProof(leafIndex uint64) ([]*externalapi.DomainHash, error)
}

type consensus struct {
	lock            sync.RWMutex
	databaseContext consensusdatabase.DBManager

	blockProcessor        model.BlockProcessor
	blockHeaderStore      model.BlockHeaderStore
	blockRelationStore    model.BlockRelationStore
	ghostdagDataStore     model.GHOSTDAGDataStore
	reachabilityDataStore model.ReachabilityDataStore
	reachabilityManager   model.ReachabilityManager
	syncManager           model.SyncManager
	accumulatorStore      model.AccumulatorStore
	syncSnapshotStore     model.SyncSnapshotStore
}

// AddBlock validates the given header and inserts it into the
// consensus state. Submissions with unknown parents are held as
// pending; duplicates are no-ops. All effects become visible
// atomically.
func (s *consensus) AddBlock(header *externalapi.DomainBlockHeader) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.blockProcessor.ValidateAndInsertBlock(header)
}

// GetBlockHeader returns the committed header of the given hash.
func (s *consensus) GetBlockHeader(blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockHeaderStore.BlockHeader(s.databaseContext, blockHash)
}

// HasBlockHeader returns whether the given hash is committed.
func (s *consensus) HasBlockHeader(blockHash *externalapi.DomainHash) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.blockHeaderStore.HasBlockHeader(s.databaseContext, blockHash)
}

// GetGHOSTDAGData returns the GHOSTDAG data of the given hash.
func (s *consensus) GetGHOSTDAGData(blockHash *externalapi.DomainHash) (*model.BlockGHOSTDAGData, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.ghostdagDataStore.Get(s.databaseContext, blockHash)
}

// IsDAGAncestorOf answers a reachability query over the committed DAG.
func (s *consensus) IsDAGAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.reachabilityManager.IsDAGAncestorOf(blockHashA, blockHashB)
}

// Tips returns the blocks that currently have no children, by a
// breadth-first sweep from ORIGIN. Intended for diagnostics, not
// hot paths.
func (s *consensus) Tips() ([]*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tips := []*externalapi.DomainHash{}
	visited := map[externalapi.DomainHash]struct{}{externalapi.ORIGIN: {}}
	queue := []*externalapi.DomainHash{externalapi.ORIGIN.Clone()}
	for len(queue) > 0 {
		var current *externalapi.DomainHash
		current, queue = queue[0], queue[1:]

		relations, err := s.blockRelationStore.BlockRelation(s.databaseContext, current)
		if err != nil {
			return nil, err
		}
		if len(relations.Children) == 0 && !current.Equal(&externalapi.ORIGIN) {
			tips = append(tips, current)
			continue
		}
		for _, child := range relations.Children {
			if _, ok := visited[*child]; ok {
				continue
			}
			visited[*child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return tips, nil
}

// SealOpenLayer closes the current accumulator wavefront and
// persists the new leaf.
func (s *consensus) SealOpenLayer() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := s.syncManager.SealOpenLayer()
	if err != nil {
		s.discardAccumulatorChanges()
		return err
	}
	err = s.commitAccumulatorChanges()
	if err != nil {
		s.discardAccumulatorChanges()
		return err
	}
	return nil
}

// AccumulatorInfo returns the accumulator's current state.
func (s *consensus) AccumulatorInfo() (*model.AccumulatorInfo, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.syncManager.AccumulatorInfo()
}

// AccumulatorLeaves answers the accumulator-leaves sync endpoint.
func (s *consensus) AccumulatorLeaves(startIndex uint64, limit uint64) ([]*model.LeafRef, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.syncManager.AccumulatorLeaves(startIndex, limit)
}

// AccumulatorLeafDetails answers the leaf-details sync endpoint.
func (s *consensus) AccumulatorLeafDetails(startIndex uint64, limit uint64) ([]*model.LeafDetail, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.syncManager.AccumulatorLeafDetails(startIndex, limit)
}

// DagBlockInfo answers the block-info sync endpoint.
func (s *consensus) DagBlockInfo(startIndex uint64, limit uint64) ([]*model.LayerBlocks, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.syncManager.DagBlockInfo(startIndex, limit)
}

// GetProof returns a membership proof for the given leaf.
func (s *consensus) GetProof(leafIndex uint64) ([]*externalapi.DomainHash, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.syncManager.GetProof(leafIndex)
}

// commitAllStores flushes every staged store in one transaction.
// Used by initialization; the block commit path goes through the
// block processor instead.
func (s *consensus) commitAllStores() error {
	dbTx, err := s.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer func() {
		rollbackErr := dbTx.RollbackUnlessClosed()
		if rollbackErr != nil {
			log.Errorf("failed to rollback transaction: %s", rollbackErr)
		}
	}()

	stores := []interface {
		IsStaged() bool
		Commit(model.DBTransaction) error
	}{
		s.blockHeaderStore,
		s.ghostdagDataStore,
		s.reachabilityDataStore,
		s.blockRelationStore,
		s.accumulatorStore,
		s.syncSnapshotStore,
	}
	for _, store := range stores {
		if !store.IsStaged() {
			continue
		}
		err = store.Commit(dbTx)
		if err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *consensus) discardAccumulatorChanges() {
	s.accumulatorStore.Discard()
	s.syncSnapshotStore.Discard()
}

func (s *consensus) commitAccumulatorChanges() error {
	if !s.accumulatorStore.IsStaged() && !s.syncSnapshotStore.IsStaged() {
		return nil
	}

	dbTx, err := s.databaseContext.Begin()
	if err != nil {
		return err
	}
	defer func() {
		rollbackErr := dbTx.RollbackUnlessClosed()
		if rollbackErr != nil {
			log.Errorf("failed to rollback transaction: %s", rollbackErr)
		}
	}()

	err = s.accumulatorStore.Commit(dbTx)
	if err != nil {
		return err
	}
	err = s.syncSnapshotStore.Commit(dbTx)
	if err != nil {
		return err
	}
	return dbTx.Commit()
}
