package syncmanager

import (
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/infrastructure/logger"
)

var log = logger.RegisterSubSystem("SYNC")

// syncManager maintains the sync accumulator over DAG layers and
// answers the server side of the ancestor-finding protocol.
//
// A block's layer is one past the lowest layer of its parents
// (ORIGIN sits on layer zero). Layers seal when the frontier
// advances past them; blocks whose computed layer has already been
// sealed join the open layer instead, which keeps accumulator
// appends strictly monotone.
type syncManager struct {
	databaseContext    model.DBReader
	accumulatorStore   model.AccumulatorStore
	syncSnapshotStore  model.SyncSnapshotStore
	blockRelationStore model.BlockRelationStore
	blockHeaderStore   model.BlockHeaderStore
	maxSyncBatch       uint64

	layerOfBlock    map[externalapi.DomainHash]uint64
	openLayerIndex  uint64
	openLayerBlocks []*externalapi.DomainHash
}

// New instantiates a new SyncManager
func New(databaseContext model.DBReader,
	accumulatorStore model.AccumulatorStore,
	syncSnapshotStore model.SyncSnapshotStore,
	blockRelationStore model.BlockRelationStore,
	blockHeaderStore model.BlockHeaderStore,
	maxSyncBatch uint64) model.SyncManager {

	return &syncManager{
		databaseContext:    databaseContext,
		accumulatorStore:   accumulatorStore,
		syncSnapshotStore:  syncSnapshotStore,
		blockRelationStore: blockRelationStore,
		blockHeaderStore:   blockHeaderStore,
		maxSyncBatch:       maxSyncBatch,
		layerOfBlock:       map[externalapi.DomainHash]uint64{externalapi.ORIGIN: 0},
		openLayerIndex:     1,
		openLayerBlocks:    []*externalapi.DomainHash{},
	}
}

// Rebuild constructs the accumulator and the layer assignment from
// scratch by walking the DAG in BFS wavefronts from ORIGIN,
// sealing every non-empty wavefront.
func (sm *syncManager) Rebuild() error {
	sm.layerOfBlock = map[externalapi.DomainHash]uint64{externalapi.ORIGIN: 0}
	sm.openLayerIndex = 1
	sm.openLayerBlocks = []*externalapi.DomainHash{}

	frontier := []*externalapi.DomainHash{externalapi.ORIGIN.Clone()}
	for len(frontier) > 0 {
		childrenSet := make(map[externalapi.DomainHash]struct{})
		children := []*externalapi.DomainHash{}
		for _, parent := range frontier {
			parentRelations, err := sm.blockRelationStore.BlockRelation(sm.databaseContext, parent)
			if err != nil {
				return err
			}
			for _, child := range parentRelations.Children {
				if _, ok := childrenSet[*child]; ok {
					continue
				}
				if _, ok := sm.layerOfBlock[*child]; ok {
					continue
				}
				childrenSet[*child] = struct{}{}
				children = append(children, child)
			}
		}
		if len(children) == 0 {
			break
		}

		for _, child := range children {
			sm.layerOfBlock[*child] = sm.openLayerIndex
		}
		sm.openLayerBlocks = children
		err := sm.SealOpenLayer()
		if err != nil {
			return err
		}
		frontier = children
	}

	log.Debugf("rebuilt sync accumulator: %d layers sealed", sm.openLayerIndex-1)
	return nil
}

// InitFromDAG restores the layer assignment from the persisted
// leaf snapshots: leaf i's children sit on layer i+1. Committed
// blocks that no sealed leaf covers form the open layer.
func (sm *syncManager) InitFromDAG() error {
	info, err := sm.AccumulatorInfo()
	if err != nil {
		return err
	}

	sm.layerOfBlock = map[externalapi.DomainHash]uint64{externalapi.ORIGIN: 0}
	for leafIndex := uint64(0); leafIndex < info.NumLeaves; leafIndex++ {
		snapshot, err := sm.leafSnapshot(leafIndex)
		if err != nil {
			return err
		}
		for _, child := range snapshot.ChildHashes {
			sm.layerOfBlock[*child] = leafIndex + 1
		}
	}

	sm.openLayerIndex = info.NumLeaves + 1
	sm.openLayerBlocks = []*externalapi.DomainHash{}

	// Open-layer blocks are the committed children of layered
	// blocks that no leaf covers. Their own parents are always
	// sealed, so one sweep over the layered blocks finds them all.
	layered := make([]externalapi.DomainHash, 0, len(sm.layerOfBlock))
	for hash := range sm.layerOfBlock {
		layered = append(layered, hash)
	}
	seen := make(map[externalapi.DomainHash]struct{})
	for _, hash := range layered {
		hash := hash
		relations, err := sm.blockRelationStore.BlockRelation(sm.databaseContext, &hash)
		if err != nil {
			return err
		}
		for _, child := range relations.Children {
			if _, ok := sm.layerOfBlock[*child]; ok {
				continue
			}
			if _, ok := seen[*child]; ok {
				continue
			}
			seen[*child] = struct{}{}
			sm.layerOfBlock[*child] = sm.openLayerIndex
			sm.openLayerBlocks = append(sm.openLayerBlocks, child.Clone())
		}
	}

	log.Debugf("restored sync accumulator state: %d sealed layers, %d open blocks",
		info.NumLeaves, len(sm.openLayerBlocks))
	return nil
}

// RegisterCommit assigns the just-committed block a layer. When
// the block opens a new wavefront the previous one is sealed.
func (sm *syncManager) RegisterCommit(blockHash *externalapi.DomainHash) error {
	blockRelations, err := sm.blockRelationStore.BlockRelation(sm.databaseContext, blockHash)
	if err != nil {
		return err
	}

	lowestParentLayer := uint64(0)
	for i, parent := range blockRelations.Parents {
		parentLayer, ok := sm.layerOfBlock[*parent]
		if !ok {
			return errors.Wrapf(ruleerrors.ErrInvariantViolation,
				"parent %s of block %s has no layer assignment", parent, blockHash)
		}
		if i == 0 || parentLayer < lowestParentLayer {
			lowestParentLayer = parentLayer
		}
	}

	layer := lowestParentLayer + 1
	if layer > sm.openLayerIndex {
		err := sm.SealOpenLayer()
		if err != nil {
			return err
		}
	}
	if layer < sm.openLayerIndex {
		// The computed layer has already been sealed. The block
		// joins the open wavefront instead so that sealed leaves
		// stay immutable.
		layer = sm.openLayerIndex
	}

	sm.layerOfBlock[*blockHash] = layer
	sm.openLayerBlocks = append(sm.openLayerBlocks, blockHash.Clone())
	return nil
}

// SealOpenLayer closes the current wavefront: it appends the
// layer's leaf to the accumulator and stages the layer snapshot.
// A no-op when the open layer is empty.
func (sm *syncManager) SealOpenLayer() error {
	if len(sm.openLayerBlocks) == 0 {
		return nil
	}

	children := sortedHashes(sm.openLayerBlocks)
	pairs, err := sm.layerPairs(children)
	if err != nil {
		return err
	}
	leafHash := leafHashFromPairs(pairs)

	currentInfo, err := sm.AccumulatorInfo()
	if err != nil {
		return err
	}
	newInfo, err := sm.appendLeaf(currentInfo, leafHash)
	if err != nil {
		return err
	}

	sm.syncSnapshotStore.Stage(leafHash, &model.LayerSnapshot{
		ChildHashes:     children,
		AccumulatorInfo: newInfo,
	})

	log.Debugf("sealed layer %d with %d blocks, leaf %s", sm.openLayerIndex, len(children), leafHash)
	sm.openLayerIndex++
	sm.openLayerBlocks = []*externalapi.DomainHash{}
	return nil
}

// AccumulatorInfo returns the accumulator's current state. An
// accumulator with no leaves has the zero root.
func (sm *syncManager) AccumulatorInfo() (*model.AccumulatorInfo, error) {
	hasInfo, err := sm.accumulatorStore.HasInfo(sm.databaseContext)
	if err != nil {
		return nil, err
	}
	if !hasInfo {
		return &model.AccumulatorInfo{
			AccumulatorRoot:    externalapi.ORIGIN.Clone(),
			NumLeaves:          0,
			FrozenSubtreeRoots: []*externalapi.DomainHash{},
		}, nil
	}
	return sm.accumulatorStore.Info(sm.databaseContext)
}

// AccumulatorLeaves returns references for the leaves in
// [startIndex, startIndex+limit), clipped to the accumulator size.
func (sm *syncManager) AccumulatorLeaves(startIndex uint64, limit uint64) ([]*model.LeafRef, error) {
	endIndex, err := sm.checkBatchBounds(startIndex, limit)
	if err != nil {
		return nil, err
	}

	leafRefs := make([]*model.LeafRef, 0, endIndex-startIndex)
	for leafIndex := startIndex; leafIndex < endIndex; leafIndex++ {
		leafHash, err := sm.accumulatorStore.Node(sm.databaseContext, leafPosition(leafIndex))
		if err != nil {
			return nil, err
		}
		snapshot, err := sm.syncSnapshotStore.Get(sm.databaseContext, leafHash)
		if err != nil {
			return nil, err
		}
		leafRefs = append(leafRefs, &model.LeafRef{
			LeafHash:        leafHash,
			AccumulatorRoot: snapshot.AccumulatorInfo.AccumulatorRoot,
			LeafIndex:       leafIndex,
		})
	}
	return leafRefs, nil
}

// AccumulatorLeafDetails returns, for every leaf in range, the
// (parent, child) pairs the leaf commits to.
func (sm *syncManager) AccumulatorLeafDetails(startIndex uint64, limit uint64) ([]*model.LeafDetail, error) {
	endIndex, err := sm.checkBatchBounds(startIndex, limit)
	if err != nil {
		return nil, err
	}

	details := make([]*model.LeafDetail, 0, endIndex-startIndex)
	for leafIndex := startIndex; leafIndex < endIndex; leafIndex++ {
		snapshot, err := sm.leafSnapshot(leafIndex)
		if err != nil {
			return nil, err
		}
		pairs, err := sm.layerPairs(snapshot.ChildHashes)
		if err != nil {
			return nil, err
		}
		details = append(details, &model.LeafDetail{
			AccumulatorRoot: snapshot.AccumulatorInfo.AccumulatorRoot,
			Pairs:           pairs,
		})
	}
	return details, nil
}

// DagBlockInfo returns, for every leaf in range, the accumulator
// state at that leaf and the full headers of the layer's blocks.
func (sm *syncManager) DagBlockInfo(startIndex uint64, limit uint64) ([]*model.LayerBlocks, error) {
	endIndex, err := sm.checkBatchBounds(startIndex, limit)
	if err != nil {
		return nil, err
	}

	layers := make([]*model.LayerBlocks, 0, endIndex-startIndex)
	for leafIndex := startIndex; leafIndex < endIndex; leafIndex++ {
		snapshot, err := sm.leafSnapshot(leafIndex)
		if err != nil {
			return nil, err
		}
		headers, err := sm.blockHeaderStore.BlockHeaders(sm.databaseContext, snapshot.ChildHashes)
		if err != nil {
			return nil, err
		}
		layers = append(layers, &model.LayerBlocks{
			AccumulatorInfo: snapshot.AccumulatorInfo,
			Headers:         headers,
		})
	}
	return layers, nil
}

func (sm *syncManager) leafSnapshot(leafIndex uint64) (*model.LayerSnapshot, error) {
	leafHash, err := sm.accumulatorStore.Node(sm.databaseContext, leafPosition(leafIndex))
	if err != nil {
		return nil, err
	}
	return sm.syncSnapshotStore.Get(sm.databaseContext, leafHash)
}

// checkBatchBounds validates the limit against the server maximum
// and returns the exclusive end index clipped to the accumulator.
func (sm *syncManager) checkBatchBounds(startIndex uint64, limit uint64) (uint64, error) {
	if limit == 0 || limit > sm.maxSyncBatch {
		return 0, errors.Wrapf(ruleerrors.ErrBadRequest,
			"limit %d is out of range (1, %d)", limit, sm.maxSyncBatch)
	}

	info, err := sm.AccumulatorInfo()
	if err != nil {
		return 0, err
	}
	endIndex := startIndex + limit
	if endIndex > info.NumLeaves {
		endIndex = info.NumLeaves
	}
	if endIndex < startIndex {
		endIndex = startIndex
	}
	return endIndex, nil
}

// layerPairs builds the sorted (parent, child) pair list of a
// layer given its sorted children.
func (sm *syncManager) layerPairs(children []*externalapi.DomainHash) ([]*model.ParentChildPair, error) {
	pairs := []*model.ParentChildPair{}
	for _, child := range children {
		childRelations, err := sm.blockRelationStore.BlockRelation(sm.databaseContext, child)
		if err != nil {
			return nil, err
		}
		for _, parent := range childRelations.Parents {
			pairs = append(pairs, &model.ParentChildPair{Parent: parent, Child: child.Clone()})
		}
	}
	sortPairs(pairs)
	return pairs, nil
}
