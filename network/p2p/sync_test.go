package p2p

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/consensushashing"
	"github.com/starcoinorg/smolstc/domain/dagconfig"
	"github.com/starcoinorg/smolstc/infrastructure/db/database/ldb"
)

type testNode struct {
	node      *Node
	consensus consensus.Consensus

	genesisHash *externalapi.DomainHash
}

func newTestNode(t *testing.T, ctx context.Context) *testNode {
	db, err := ldb.NewLevelDB(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewLevelDB: %+v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	params := dagconfig.SimnetParams
	consensusInstance, err := consensus.NewFactory().NewConsensus(
		consensus.DefaultConfig(&params), db)
	if err != nil {
		t.Fatalf("NewConsensus: %+v", err)
	}

	cfg := DefaultConfig()
	cfg.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
	cfg.RequestTimeout = 10 * time.Second
	node, err := NewNode(ctx, cfg, consensusInstance)
	if err != nil {
		t.Fatalf("NewNode: %+v", err)
	}
	t.Cleanup(func() { _ = node.Close() })

	return &testNode{
		node:        node,
		consensus:   consensusInstance,
		genesisHash: consensushashing.HeaderHash(params.GenesisHeader),
	}
}

func (tn *testNode) addBlock(t *testing.T, timestamp uint64,
	parents ...*externalapi.DomainHash) *externalapi.DomainHash {
	t.Helper()

	header := &externalapi.DomainBlockHeader{
		ParentHashes:       parents,
		TimeInMilliseconds: timestamp,
		Difficulty:         big.NewInt(1),
		BlueWork:           new(big.Int),
		BlueScore:          0,
		PruningPoint:       externalapi.ORIGIN.Clone(),
		Misc:               []byte{},
	}
	err := tn.consensus.AddBlock(header)
	if err != nil {
		t.Fatalf("AddBlock: %+v", err)
	}
	return consensushashing.HeaderHash(header)
}

// buildSharedPrefix inserts the layers {B,C,D,E} both DAGs agree
// on. Identical timestamps give identical hashes on both sides.
func (tn *testNode) buildSharedPrefix(t *testing.T) []*externalapi.DomainHash {
	t.Helper()

	layer := make([]*externalapi.DomainHash, 0, 4)
	for i := uint64(0); i < 4; i++ {
		layer = append(layer, tn.addBlock(t, 3000+i, tn.genesisHash))
	}
	return layer
}

func (tn *testNode) seal(t *testing.T) {
	t.Helper()
	err := tn.consensus.SealOpenLayer()
	if err != nil {
		t.Fatalf("SealOpenLayer: %+v", err)
	}
}

// TestSyncDivergence drives the full ancestor-finding protocol
// between two nodes that share two layers and then fork.
func TestSyncDivergence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := newTestNode(t, ctx)
	remote := newTestNode(t, ctx)

	localShared := local.buildSharedPrefix(t)
	remoteShared := remote.buildSharedPrefix(t)
	if !externalapi.HashesEqual(localShared, remoteShared) {
		t.Fatalf("shared prefixes differ between the two nodes")
	}

	// Diverging third layers: distinct timestamps, distinct blocks.
	local.addBlock(t, 4000, localShared[0], localShared[1])
	local.addBlock(t, 4001, localShared[2], localShared[3])
	remote.addBlock(t, 5000, remoteShared[0], remoteShared[1])
	remote.addBlock(t, 5001, remoteShared[1], remoteShared[2])
	local.seal(t)
	remote.seal(t)

	remoteAddrs := remote.node.Addrs()
	if len(remoteAddrs) == 0 {
		t.Fatalf("remote node has no listen addresses")
	}
	peerInfo, err := local.node.Connect(ctx, remoteAddrs[0].String())
	if err != nil {
		t.Fatalf("Connect: %+v", err)
	}
	if peerInfo.AccumulatorInfo.NumLeaves != 3 {
		t.Fatalf("handshake num leaves: got %d, want 3", peerInfo.AccumulatorInfo.NumLeaves)
	}

	// The last agreeing leaf covers {B,C,D,E}: index 1.
	ancestorIndex, found, err := local.node.FindCommonAncestorLeaf(ctx, remote.node.ID())
	if err != nil {
		t.Fatalf("FindCommonAncestorLeaf: %+v", err)
	}
	if !found {
		t.Fatalf("no common ancestor leaf found")
	}
	if ancestorIndex != 1 {
		t.Errorf("common ancestor leaf: got %d, want 1", ancestorIndex)
	}

	// Details past the common ancestor return only the diverging
	// layer, which must differ from the local one.
	remoteDetails, err := local.node.AccumulatorLeafDetails(ctx, remote.node.ID(), ancestorIndex+1, 10)
	if err != nil {
		t.Fatalf("AccumulatorLeafDetails: %+v", err)
	}
	if len(remoteDetails) != 1 {
		t.Fatalf("diverging details: got %d leaves, want 1", len(remoteDetails))
	}
	localDetails, err := local.consensus.AccumulatorLeafDetails(ancestorIndex+1, 10)
	if err != nil {
		t.Fatalf("local AccumulatorLeafDetails: %+v", err)
	}
	if len(localDetails) != 1 {
		t.Fatalf("local diverging details: got %d leaves, want 1", len(localDetails))
	}
	if remoteDetails[0].AccumulatorRoot.Equal(localDetails[0].AccumulatorRoot) {
		t.Errorf("diverging layers unexpectedly share an accumulator root")
	}

	// Full headers of the diverging layer stream over and commit
	// into the local DAG.
	layerBlocks, err := local.node.DagBlockInfo(ctx, remote.node.ID(), ancestorIndex+1, 10)
	if err != nil {
		t.Fatalf("DagBlockInfo: %+v", err)
	}
	if len(layerBlocks) != 1 {
		t.Fatalf("layer blocks: got %d layers, want 1", len(layerBlocks))
	}
	for _, header := range layerBlocks[0].Headers {
		err := local.consensus.AddBlock(header)
		if err != nil {
			t.Fatalf("AddBlock of synced header: %+v", err)
		}
		has, err := local.consensus.HasBlockHeader(consensushashing.HeaderHash(header))
		if err != nil {
			t.Fatalf("HasBlockHeader: %+v", err)
		}
		if !has {
			t.Errorf("synced header %s was not committed", consensushashing.HeaderHash(header))
		}
	}
}

// TestBadRequestOverWire checks that an oversized limit is
// rejected with BadRequest across the wire.
func TestBadRequestOverWire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := newTestNode(t, ctx)
	remote := newTestNode(t, ctx)
	local.seal(t)
	remote.seal(t)

	remoteAddrs := remote.node.Addrs()
	_, err := local.node.Connect(ctx, remoteAddrs[0].String())
	if err != nil {
		t.Fatalf("Connect: %+v", err)
	}

	_, err = local.node.AccumulatorLeaves(ctx, remote.node.ID(), 0, 1_000_000)
	if !errors.Is(err, ruleerrors.ErrBadRequest) {
		t.Errorf("oversized limit: got %v, want ErrBadRequest", err)
	}
}
