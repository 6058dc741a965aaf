package ghostdagmanager

import (
	"math/big"

	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// ghostdagManager resolves and manages GHOSTDAG block data
type ghostdagManager struct {
	databaseContext    model.DBReader
	dagTopologyManager model.DAGTopologyManager
	ghostdagDataStore  model.GHOSTDAGDataStore
	blockHeaderStore   model.BlockHeaderStore
	k                  model.KType
}

// New instantiates a new GHOSTDAGManager
func New(databaseContext model.DBReader,
	dagTopologyManager model.DAGTopologyManager,
	ghostdagDataStore model.GHOSTDAGDataStore,
	blockHeaderStore model.BlockHeaderStore,
	k model.KType) model.GHOSTDAGManager {

	return &ghostdagManager{
		databaseContext:    databaseContext,
		dagTopologyManager: dagTopologyManager,
		ghostdagDataStore:  ghostdagDataStore,
		blockHeaderStore:   blockHeaderStore,
		k:                  k,
	}
}

// GenesisGHOSTDAGData returns the GHOSTDAG data of a block whose
// sole parent is ORIGIN: an empty mergeset with zero blue score
// and zero blue work.
func (gm *ghostdagManager) GenesisGHOSTDAGData() *model.BlockGHOSTDAGData {
	return &model.BlockGHOSTDAGData{
		BlueScore:          0,
		BlueWork:           new(big.Int),
		SelectedParent:     externalapi.ORIGIN.Clone(),
		MergeSetBlues:      []*externalapi.DomainHash{},
		MergeSetReds:       []*externalapi.DomainHash{},
		BluesAnticoneSizes: make(map[externalapi.DomainHash]model.KType),
	}
}
