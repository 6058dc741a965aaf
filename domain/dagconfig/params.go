// Package dagconfig defines DAG parameters for the networks a
// node can join.
package dagconfig

import (
	"math/big"

	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// Params defines the consensus parameters of a smolstc network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// K defines the K parameter for the GHOSTDAG k-cluster rule.
	K model.KType

	// GenesisHeader is the header of the block that roots the
	// network's DAG. Its sole parent is ORIGIN.
	GenesisHeader *externalapi.DomainBlockHeader
}

func newGenesisHeader(timeInMilliseconds uint64) *externalapi.DomainBlockHeader {
	return &externalapi.DomainBlockHeader{
		ParentHashes:       []*externalapi.DomainHash{externalapi.ORIGIN.Clone()},
		TimeInMilliseconds: timeInMilliseconds,
		Difficulty:         big.NewInt(1),
		BlueWork:           new(big.Int),
		BlueScore:          0,
		PruningPoint:       externalapi.ORIGIN.Clone(),
		Misc:               []byte{},
	}
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:          "smolstc-mainnet",
	K:             16,
	GenesisHeader: newGenesisHeader(1690000000000),
}

// SimnetParams defines the network parameters for the simulation
// test network, used by unit and integration tests.
var SimnetParams = Params{
	Name:          "smolstc-simnet",
	K:             16,
	GenesisHeader: newGenesisHeader(1000),
}
