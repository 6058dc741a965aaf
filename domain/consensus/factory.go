package consensus

import (
	consensusdatabase "github.com/starcoinorg/smolstc/domain/consensus/database"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/accumulatorstore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/blockheaderstore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/blockrelationstore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/ghostdagdatastore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/starcoinorg/smolstc/domain/consensus/datastructures/syncsnapshotstore"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/processes/blockprocessor"
	"github.com/starcoinorg/smolstc/domain/consensus/processes/dagtopologymanager"
	"github.com/starcoinorg/smolstc/domain/consensus/processes/ghostdagmanager"
	"github.com/starcoinorg/smolstc/domain/consensus/processes/reachabilitymanager"
	"github.com/starcoinorg/smolstc/domain/consensus/processes/syncmanager"
	"github.com/starcoinorg/smolstc/domain/dagconfig"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

const (
	defaultCacheSize       = 10_000
	defaultMaxSyncBatch    = 10_000
	defaultPendingQueueCap = 10_000
)

// Config carries the parameters a Consensus is built with.
type Config struct {
	dagconfig.Params

	CacheSize       int
	MaxSyncBatch    uint64
	PendingQueueCap uint64
}

// DefaultConfig returns a Config for the given network params
// with every tunable at its default.
func DefaultConfig(params *dagconfig.Params) *Config {
	return &Config{
		Params:          *params,
		CacheSize:       defaultCacheSize,
		MaxSyncBatch:    defaultMaxSyncBatch,
		PendingQueueCap: defaultPendingQueueCap,
	}
}

// Factory instantiates new Consensuses
type Factory interface {
	NewConsensus(config *Config, db infrastructuredatabase.Database) (Consensus, error)
}

type factory struct{}

// NewFactory creates a new Consensus factory
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus instantiates a new Consensus on top of the given
// database handle. A fresh database is seeded with ORIGIN and the
// network's genesis block; an existing one has its in-memory sync
// state restored from the persisted accumulator.
func (f *factory) NewConsensus(config *Config, db infrastructuredatabase.Database) (Consensus, error) {
	dbManager := consensusdatabase.New(db)

	// Data structures
	blockRelationStore := blockrelationstore.New(config.CacheSize)
	blockHeaderStore, err := blockheaderstore.New(dbManager, config.CacheSize)
	if err != nil {
		return nil, err
	}
	ghostdagDataStore := ghostdagdatastore.New(config.CacheSize)
	reachabilityDataStore := reachabilitydatastore.New(config.CacheSize)
	accumulatorStore := accumulatorstore.New(config.CacheSize)
	syncSnapshotStore := syncsnapshotstore.New(config.CacheSize)

	// Processes
	reachabilityManager := reachabilitymanager.New(dbManager, reachabilityDataStore)
	dagTopologyManager := dagtopologymanager.New(dbManager, reachabilityManager, blockRelationStore)
	ghostdagManager := ghostdagmanager.New(dbManager, dagTopologyManager, ghostdagDataStore,
		blockHeaderStore, config.K)
	syncManager := syncmanager.New(dbManager, accumulatorStore, syncSnapshotStore,
		blockRelationStore, blockHeaderStore, config.MaxSyncBatch)
	blockProcessor := blockprocessor.New(dbManager, blockRelationStore, blockHeaderStore,
		ghostdagDataStore, reachabilityDataStore, accumulatorStore, syncSnapshotStore,
		ghostdagManager, reachabilityManager, syncManager, config.PendingQueueCap)

	s := &consensus{
		databaseContext:       dbManager,
		blockProcessor:        blockProcessor,
		blockHeaderStore:      blockHeaderStore,
		blockRelationStore:    blockRelationStore,
		ghostdagDataStore:     ghostdagDataStore,
		reachabilityDataStore: reachabilityDataStore,
		reachabilityManager:   reachabilityManager,
		syncManager:           syncManager,
		accumulatorStore:      accumulatorStore,
		syncSnapshotStore:     syncSnapshotStore,
	}

	hasOrigin, err := blockRelationStore.Has(dbManager, &externalapi.ORIGIN)
	if err != nil {
		return nil, err
	}
	if !hasOrigin {
		// Seed a fresh database: ORIGIN's explicit rows in every
		// store, then the network's genesis block.
		err = blockRelationStore.StageBlockRelation(dbManager, &externalapi.ORIGIN,
			[]*externalapi.DomainHash{})
		if err != nil {
			return nil, err
		}
		ghostdagDataStore.Stage(&externalapi.ORIGIN, ghostdagManager.GenesisGHOSTDAGData())
		err = reachabilityManager.Init()
		if err != nil {
			return nil, err
		}
		err = s.commitAllStores()
		if err != nil {
			return nil, err
		}

		err = s.AddBlock(config.GenesisHeader.Clone())
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	hasAccumulator, err := accumulatorStore.HasInfo(dbManager)
	if err != nil {
		return nil, err
	}
	if !hasAccumulator {
		// The DAG predates its accumulator (or the accumulator was
		// wiped): reconstruct it wholesale.
		err = syncManager.Rebuild()
		if err != nil {
			return nil, err
		}
		err = s.commitAllStores()
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	err = syncManager.InitFromDAG()
	if err != nil {
		return nil, err
	}
	return s, nil
}
