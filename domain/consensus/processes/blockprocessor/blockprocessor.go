package blockprocessor

import (
	"github.com/pkg/errors"
	consensusdatabase "github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/consensushashing"
	"github.com/starcoinorg/smolstc/infrastructure/logger"
)

var log = logger.RegisterSubSystem("BPRO")

// blockProcessor takes a submitted header through the add-block
// state machine: headers with unknown parents wait in a bounded
// pending pool; everything else is validated and committed to all
// consensus stores in one atomic batch.
type blockProcessor struct {
	databaseContext consensusdatabase.DBManager

	blockRelationStore    model.BlockRelationStore
	blockHeaderStore      model.BlockHeaderStore
	ghostdagDataStore     model.GHOSTDAGDataStore
	reachabilityDataStore model.ReachabilityDataStore
	accumulatorStore      model.AccumulatorStore
	syncSnapshotStore     model.SyncSnapshotStore

	ghostdagManager     model.GHOSTDAGManager
	reachabilityManager model.ReachabilityManager
	syncManager         model.SyncManager

	pendingPool *pendingPool
}

// New instantiates a new BlockProcessor
func New(databaseContext consensusdatabase.DBManager,
	blockRelationStore model.BlockRelationStore,
	blockHeaderStore model.BlockHeaderStore,
	ghostdagDataStore model.GHOSTDAGDataStore,
	reachabilityDataStore model.ReachabilityDataStore,
	accumulatorStore model.AccumulatorStore,
	syncSnapshotStore model.SyncSnapshotStore,
	ghostdagManager model.GHOSTDAGManager,
	reachabilityManager model.ReachabilityManager,
	syncManager model.SyncManager,
	pendingQueueCap uint64) model.BlockProcessor {

	return &blockProcessor{
		databaseContext:       databaseContext,
		blockRelationStore:    blockRelationStore,
		blockHeaderStore:      blockHeaderStore,
		ghostdagDataStore:     ghostdagDataStore,
		reachabilityDataStore: reachabilityDataStore,
		accumulatorStore:      accumulatorStore,
		syncSnapshotStore:     syncSnapshotStore,
		ghostdagManager:       ghostdagManager,
		reachabilityManager:   reachabilityManager,
		syncManager:           syncManager,
		pendingPool:           newPendingPool(pendingQueueCap),
	}
}

// ValidateAndInsertBlock processes the given header. Headers whose
// parents are all known are committed immediately, which may in
// turn drain pending dependents. Duplicate submissions succeed as
// no-ops.
func (bp *blockProcessor) ValidateAndInsertBlock(header *externalapi.DomainBlockHeader) error {
	blockHash := consensushashing.HeaderHash(header)

	err := bp.validateHeaderInIsolation(header)
	if err != nil {
		return err
	}

	alreadyCommitted, err := bp.blockHeaderStore.HasBlockHeader(bp.databaseContext, blockHash)
	if err != nil {
		return err
	}
	if alreadyCommitted {
		log.Debugf("block %s was submitted before; ignoring", blockHash)
		return nil
	}

	missingParents, err := bp.missingParents(header)
	if err != nil {
		return err
	}
	if len(missingParents) > 0 {
		bp.pendingPool.add(blockHash, header, missingParents)
		log.Debugf("block %s is pending on %d missing parents", blockHash, len(missingParents))
		return nil
	}

	err = bp.commitBlock(blockHash, header)
	if err != nil {
		return err
	}

	return bp.drainDependentsOf(blockHash)
}

// validateHeaderInIsolation applies the checks that need nothing
// but the header itself.
func (bp *blockProcessor) validateHeaderInIsolation(header *externalapi.DomainBlockHeader) error {
	if len(header.ParentHashes) == 0 {
		return errors.Wrap(ruleerrors.ErrInvariantViolation, "header has no parents")
	}

	seen := make(map[externalapi.DomainHash]struct{}, len(header.ParentHashes))
	for _, parent := range header.ParentHashes {
		if _, ok := seen[*parent]; ok {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation,
				"header lists parent %s more than once", parent)
		}
		seen[*parent] = struct{}{}
	}
	return nil
}

func (bp *blockProcessor) missingParents(header *externalapi.DomainBlockHeader) ([]*externalapi.DomainHash, error) {
	missing := []*externalapi.DomainHash{}
	for _, parent := range header.ParentHashes {
		hasParent, err := bp.blockRelationStore.Has(bp.databaseContext, parent)
		if err != nil {
			return nil, err
		}
		if !hasParent {
			missing = append(missing, parent)
		}
	}
	return missing, nil
}

// commitBlock stages every consensus mutation for the given header
// and flushes them in one atomic batch: the header tables, then
// GHOSTDAG data, then reachability, then relations, then the
// accumulator layer bookkeeping.
func (bp *blockProcessor) commitBlock(blockHash *externalapi.DomainHash,
	header *externalapi.DomainBlockHeader) error {

	err := bp.stageBlock(blockHash, header)
	if err != nil {
		bp.discardAllChanges()
		return err
	}

	err = bp.commitAllChanges()
	if err != nil {
		bp.discardAllChanges()
		return err
	}

	log.Debugf("block %s committed", blockHash)
	return nil
}

func (bp *blockProcessor) stageBlock(blockHash *externalapi.DomainHash,
	header *externalapi.DomainBlockHeader) error {

	// The header is staged first: GHOSTDAG reads the new block's
	// own difficulty through the compact table.
	err := bp.blockHeaderStore.Stage(bp.databaseContext, blockHash, header)
	if err != nil {
		return err
	}

	ghostdagData, err := bp.resolveGHOSTDAGData(blockHash, header)
	if err != nil {
		return err
	}

	if !externalapi.HashesContain(header.ParentHashes, ghostdagData.SelectedParent) {
		return errors.Wrapf(ruleerrors.ErrInvariantViolation,
			"selected parent %s of block %s is not one of its parents",
			ghostdagData.SelectedParent, blockHash)
	}
	bp.ghostdagDataStore.Stage(blockHash, ghostdagData)

	mergeSet := ghostdagData.MergeSetWithoutSelectedParent()
	err = bp.reachabilityManager.AddBlock(blockHash, ghostdagData.SelectedParent, mergeSet)
	if err != nil {
		return err
	}

	err = bp.blockRelationStore.StageBlockRelation(bp.databaseContext, blockHash, header.ParentHashes)
	if err != nil {
		return err
	}

	return bp.syncManager.RegisterCommit(blockHash)
}

func (bp *blockProcessor) resolveGHOSTDAGData(blockHash *externalapi.DomainHash,
	header *externalapi.DomainBlockHeader) (*model.BlockGHOSTDAGData, error) {

	if len(header.ParentHashes) == 1 && header.ParentHashes[0].Equal(&externalapi.ORIGIN) {
		return bp.ghostdagManager.GenesisGHOSTDAGData(), nil
	}
	return bp.ghostdagManager.GHOSTDAG(blockHash, header.ParentHashes)
}

// drainDependentsOf re-submits every pending block that was
// waiting on the given hash and is no longer missing any parent.
func (bp *blockProcessor) drainDependentsOf(blockHash *externalapi.DomainHash) error {
	unblocked := bp.pendingPool.markParentCommitted(blockHash)
	for _, dependentHeader := range unblocked {
		err := bp.ValidateAndInsertBlock(dependentHeader)
		if err != nil {
			return err
		}
	}
	return nil
}

func (bp *blockProcessor) discardAllChanges() {
	bp.blockHeaderStore.Discard()
	bp.ghostdagDataStore.Discard()
	bp.reachabilityDataStore.Discard()
	bp.blockRelationStore.Discard()
	bp.accumulatorStore.Discard()
	bp.syncSnapshotStore.Discard()
}

func (bp *blockProcessor) commitAllChanges() error {
	dbTx, err := bp.databaseContext.Begin()
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
		bp.blockHeaderStore,
		bp.ghostdagDataStore,
		bp.reachabilityDataStore,
		bp.blockRelationStore,
		bp.accumulatorStore,
		bp.syncSnapshotStore,
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
