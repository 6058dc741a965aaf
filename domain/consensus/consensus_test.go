package consensus

import (
	"math/big"
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/consensushashing"
	"github.com/starcoinorg/smolstc/domain/dagconfig"
	"github.com/starcoinorg/smolstc/infrastructure/db/database/ldb"
)

type testConsensus struct {
	Consensus

	t             *testing.T
	genesisHash   *externalapi.DomainHash
	nextTimestamp uint64
}

func newTestConsensus(t *testing.T, k model.KType) *testConsensus {
	params := dagconfig.SimnetParams
	params.K = k

	db, err := ldb.NewLevelDB(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewLevelDB: %+v", err)
	}
	t.Cleanup(func() {
		err := db.Close()
		if err != nil {
			t.Errorf("Close: %+v", err)
		}
	})

	consensusInstance, err := NewFactory().NewConsensus(DefaultConfig(&params), db)
	if err != nil {
		t.Fatalf("NewConsensus: %+v", err)
	}

	return &testConsensus{
		Consensus:     consensusInstance,
		t:             t,
		genesisHash:   consensushashing.HeaderHash(params.GenesisHeader),
		nextTimestamp: 2000,
	}
}

// addBlock inserts a block with the given parents and returns its
// hash. Each block gets a unique timestamp so hashes never collide.
func (tc *testConsensus) addBlock(parents ...*externalapi.DomainHash) *externalapi.DomainHash {
	tc.t.Helper()

	header := tc.buildHeader(parents...)
	err := tc.AddBlock(header)
	if err != nil {
		tc.t.Fatalf("AddBlock: %+v", err)
	}
	return consensushashing.HeaderHash(header)
}

func (tc *testConsensus) buildHeader(parents ...*externalapi.DomainHash) *externalapi.DomainBlockHeader {
	tc.nextTimestamp++
	return &externalapi.DomainBlockHeader{
		ParentHashes:       parents,
		TimeInMilliseconds: tc.nextTimestamp,
		Difficulty:         big.NewInt(1),
		BlueWork:           new(big.Int),
		BlueScore:          0,
		PruningPoint:       externalapi.ORIGIN.Clone(),
		Misc:               []byte{},
	}
}

func (tc *testConsensus) ghostdagData(blockHash *externalapi.DomainHash) *model.BlockGHOSTDAGData {
	tc.t.Helper()

	ghostdagData, err := tc.GetGHOSTDAGData(blockHash)
	if err != nil {
		tc.t.Fatalf("GetGHOSTDAGData: %+v", err)
	}
	return ghostdagData
}

func TestGenesisOnly(t *testing.T) {
	tc := newTestConsensus(t, 16)

	genesisData := tc.ghostdagData(tc.genesisHash)
	if genesisData.BlueScore != 0 {
		t.Errorf("genesis blue score: got %d, want 0", genesisData.BlueScore)
	}
	if !genesisData.SelectedParent.Equal(&externalapi.ORIGIN) {
		t.Errorf("genesis selected parent: got %s, want ORIGIN", genesisData.SelectedParent)
	}

	tips, err := tc.Tips()
	if err != nil {
		t.Fatalf("Tips: %+v", err)
	}
	if len(tips) != 1 || !tips[0].Equal(tc.genesisHash) {
		t.Errorf("tips: got %v, want [%s]",
			externalapi.DomainHashesToStrings(tips), tc.genesisHash)
	}

	err = tc.SealOpenLayer()
	if err != nil {
		t.Fatalf("SealOpenLayer: %+v", err)
	}

	info, err := tc.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	if info.NumLeaves != 1 {
		t.Fatalf("num leaves: got %d, want 1", info.NumLeaves)
	}

	expectedLeaf := consensushashing.AccumulatorLeafHash([]*model.ParentChildPair{
		{Parent: &externalapi.ORIGIN, Child: tc.genesisHash},
	})
	if !info.AccumulatorRoot.Equal(expectedLeaf) {
		t.Errorf("accumulator root: got %s, want %s", info.AccumulatorRoot, expectedLeaf)
	}
}

func TestLinearChain(t *testing.T) {
	tc := newTestConsensus(t, 16)

	blockB := tc.addBlock(tc.genesisHash)

	blockBData := tc.ghostdagData(blockB)
	if !blockBData.SelectedParent.Equal(tc.genesisHash) {
		t.Errorf("selected parent of B: got %s, want genesis %s",
			blockBData.SelectedParent, tc.genesisHash)
	}
	if blockBData.BlueScore != 1 {
		t.Errorf("blue score of B: got %d, want 1", blockBData.BlueScore)
	}

	isAncestor, err := tc.IsDAGAncestorOf(tc.genesisHash, blockB)
	if err != nil {
		t.Fatalf("IsDAGAncestorOf: %+v", err)
	}
	if !isAncestor {
		t.Errorf("expected genesis to be an ancestor of B")
	}
	isAncestor, err = tc.IsDAGAncestorOf(blockB, tc.genesisHash)
	if err != nil {
		t.Fatalf("IsDAGAncestorOf: %+v", err)
	}
	if isAncestor {
		t.Errorf("expected B not to be an ancestor of genesis")
	}

	err = tc.SealOpenLayer()
	if err != nil {
		t.Fatalf("SealOpenLayer: %+v", err)
	}
	info, err := tc.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	if info.NumLeaves != 2 {
		t.Errorf("num leaves: got %d, want 2", info.NumLeaves)
	}
}

// TestClassicDiamond builds the classic GHOSTDAG example DAG under
// k=3 and checks the selected parent, the accumulated blue set and
// the blue score of the final block.
func TestClassicDiamond(t *testing.T) {
	tc := newTestConsensus(t, 3)
	genesis := tc.genesisHash

	blockB := tc.addBlock(genesis)
	blockC := tc.addBlock(genesis)
	blockD := tc.addBlock(genesis)
	blockE := tc.addBlock(genesis)
	blockF := tc.addBlock(blockB, blockC)
	blockH := tc.addBlock(blockC, blockD, blockE)
	blockI := tc.addBlock(blockE)
	tc.addBlock(blockF, blockH) // J
	blockK := tc.addBlock(blockB, blockH, blockI)
	tc.addBlock(blockD, blockI) // L
	blockM := tc.addBlock(blockF, blockK)

	blockMData := tc.ghostdagData(blockM)
	if !blockMData.SelectedParent.Equal(blockK) {
		t.Errorf("selected parent of M: got %s, want K %s", blockMData.SelectedParent, blockK)
	}
	if blockMData.BlueScore != 9 {
		t.Errorf("blue score of M: got %d, want 9\n%s", blockMData.BlueScore, spew.Sdump(blockMData))
	}
	if len(blockMData.MergeSetReds) != 0 {
		t.Errorf("mergeset reds of M: got %s, want none",
			externalapi.DomainHashesToStrings(blockMData.MergeSetReds))
	}

	// The blue past of M: every block except J and L.
	expectedBluePast := map[externalapi.DomainHash]struct{}{
		*genesis: {}, *blockB: {}, *blockC: {}, *blockD: {}, *blockE: {},
		*blockF: {}, *blockH: {}, *blockI: {}, *blockK: {},
	}
	bluePast := make(map[externalapi.DomainHash]struct{})
	for current := blockM; !current.Equal(&externalapi.ORIGIN); {
		currentData := tc.ghostdagData(current)
		for _, blue := range currentData.MergeSetBlues {
			bluePast[*blue] = struct{}{}
		}
		if !currentData.SelectedParent.Equal(&externalapi.ORIGIN) {
			bluePast[*currentData.SelectedParent] = struct{}{}
		}
		current = currentData.SelectedParent
	}
	if len(bluePast) != len(expectedBluePast) {
		t.Fatalf("blue past size: got %d, want %d", len(bluePast), len(expectedBluePast))
	}
	for hash := range expectedBluePast {
		if _, ok := bluePast[hash]; !ok {
			t.Errorf("blue past misses %s", hash.String())
		}
	}
}

// TestKClusterRejection checks that a candidate whose admission
// would push a blue block's anticone past k is marked red.
func TestKClusterRejection(t *testing.T) {
	tc := newTestConsensus(t, 2)
	genesis := tc.genesisHash

	siblings := []*externalapi.DomainHash{
		tc.addBlock(genesis),
		tc.addBlock(genesis),
		tc.addBlock(genesis),
		tc.addBlock(genesis),
	}
	blockX := tc.addBlock(siblings...)

	// All four siblings tie on blue work, so the smallest hash is
	// the selected parent, the next two (in mergeset order) are
	// admitted, and the largest-hash sibling violates the
	// k-cluster rule.
	sorted := make([]*externalapi.DomainHash, len(siblings))
	copy(sorted, siblings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	blockXData := tc.ghostdagData(blockX)
	if !blockXData.SelectedParent.Equal(sorted[0]) {
		t.Errorf("selected parent of X: got %s, want smallest-hash sibling %s",
			blockXData.SelectedParent, sorted[0])
	}
	if len(blockXData.MergeSetReds) != 1 {
		t.Fatalf("mergeset reds of X: got %d entries, want 1\n%s",
			len(blockXData.MergeSetReds), spew.Sdump(blockXData))
	}
	if !blockXData.MergeSetReds[0].Equal(sorted[3]) {
		t.Errorf("red of X: got %s, want largest-hash sibling %s",
			blockXData.MergeSetReds[0], sorted[3])
	}
}

// TestDuplicateSubmission checks that re-submitting a header is a
// successful no-op that leaves every query result unchanged.
func TestDuplicateSubmission(t *testing.T) {
	tc := newTestConsensus(t, 16)

	header := tc.buildHeader(tc.genesisHash)
	err := tc.AddBlock(header)
	if err != nil {
		t.Fatalf("AddBlock: %+v", err)
	}
	blockHash := consensushashing.HeaderHash(header)
	dataBefore := tc.ghostdagData(blockHash)
	infoBefore, err := tc.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}

	err = tc.AddBlock(header.Clone())
	if err != nil {
		t.Fatalf("duplicate AddBlock: %+v", err)
	}

	dataAfter := tc.ghostdagData(blockHash)
	if dataAfter.BlueScore != dataBefore.BlueScore ||
		!dataAfter.SelectedParent.Equal(dataBefore.SelectedParent) {
		t.Errorf("ghostdag data changed after duplicate submission:\nbefore %s\nafter %s",
			spew.Sdump(dataBefore), spew.Sdump(dataAfter))
	}
	infoAfter, err := tc.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	if !infoAfter.Equal(infoBefore) {
		t.Errorf("accumulator info changed after duplicate submission")
	}
}

// TestPendingParents checks that a header with an unknown parent
// waits in the pending pool and commits once the parent arrives.
func TestPendingParents(t *testing.T) {
	tc := newTestConsensus(t, 16)

	parentHeader := tc.buildHeader(tc.genesisHash)
	parentHash := consensushashing.HeaderHash(parentHeader)
	childHeader := tc.buildHeader(parentHash)
	childHash := consensushashing.HeaderHash(childHeader)

	err := tc.AddBlock(childHeader)
	if err != nil {
		t.Fatalf("AddBlock of orphan: %+v", err)
	}
	hasChild, err := tc.HasBlockHeader(childHash)
	if err != nil {
		t.Fatalf("HasBlockHeader: %+v", err)
	}
	if hasChild {
		t.Fatalf("orphan was committed before its parent")
	}

	err = tc.AddBlock(parentHeader)
	if err != nil {
		t.Fatalf("AddBlock of parent: %+v", err)
	}
	for _, hash := range []*externalapi.DomainHash{parentHash, childHash} {
		has, err := tc.HasBlockHeader(hash)
		if err != nil {
			t.Fatalf("HasBlockHeader: %+v", err)
		}
		if !has {
			t.Errorf("block %s was not committed after its parent arrived", hash)
		}
	}

	childData := tc.ghostdagData(childHash)
	if childData.BlueScore != 2 {
		t.Errorf("blue score of drained child: got %d, want 2", childData.BlueScore)
	}
}

// TestInsertionOrderIndependence inserts the same DAG in two
// different layer-respecting orders and expects identical GHOSTDAG
// data and accumulator state.
func TestInsertionOrderIndependence(t *testing.T) {
	buildHeaders := func(tc *testConsensus) (layer1, layer2 []*externalapi.DomainBlockHeader) {
		b := tc.buildHeader(tc.genesisHash)
		c := tc.buildHeader(tc.genesisHash)
		d := tc.buildHeader(tc.genesisHash)
		f := tc.buildHeader(consensushashing.HeaderHash(b), consensushashing.HeaderHash(c))
		h := tc.buildHeader(consensushashing.HeaderHash(c), consensushashing.HeaderHash(d))
		return []*externalapi.DomainBlockHeader{b, c, d}, []*externalapi.DomainBlockHeader{f, h}
	}

	tcA := newTestConsensus(t, 3)
	layer1A, layer2A := buildHeaders(tcA)
	for _, header := range layer1A {
		if err := tcA.AddBlock(header); err != nil {
			t.Fatalf("AddBlock: %+v", err)
		}
	}
	for _, header := range layer2A {
		if err := tcA.AddBlock(header); err != nil {
			t.Fatalf("AddBlock: %+v", err)
		}
	}

	tcB := newTestConsensus(t, 3)
	tcB.nextTimestamp = 2000 // same timestamps, same hashes
	layer1B, layer2B := buildHeaders(tcB)
	for i := len(layer1B) - 1; i >= 0; i-- {
		if err := tcB.AddBlock(layer1B[i]); err != nil {
			t.Fatalf("AddBlock: %+v", err)
		}
	}
	for i := len(layer2B) - 1; i >= 0; i-- {
		if err := tcB.AddBlock(layer2B[i]); err != nil {
			t.Fatalf("AddBlock: %+v", err)
		}
	}

	for _, header := range append(layer1A, layer2A...) {
		hash := consensushashing.HeaderHash(header)
		dataA := tcA.ghostdagData(hash)
		dataB := tcB.ghostdagData(hash)
		if dataA.BlueScore != dataB.BlueScore ||
			!dataA.SelectedParent.Equal(dataB.SelectedParent) ||
			!externalapi.HashesEqual(dataA.MergeSetBlues, dataB.MergeSetBlues) ||
			!externalapi.HashesEqual(dataA.MergeSetReds, dataB.MergeSetReds) {
			t.Errorf("ghostdag data of %s differs between insertion orders:\nA: %s\nB: %s",
				hash, spew.Sdump(dataA), spew.Sdump(dataB))
		}
	}

	if err := tcA.SealOpenLayer(); err != nil {
		t.Fatalf("SealOpenLayer: %+v", err)
	}
	if err := tcB.SealOpenLayer(); err != nil {
		t.Fatalf("SealOpenLayer: %+v", err)
	}
	infoA, err := tcA.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	infoB, err := tcB.AccumulatorInfo()
	if err != nil {
		t.Fatalf("AccumulatorInfo: %+v", err)
	}
	if !infoA.Equal(infoB) {
		t.Errorf("accumulator info differs between insertion orders:\nA: %s\nB: %s",
			spew.Sdump(infoA), spew.Sdump(infoB))
	}
}

// TestSelectedParentInParents checks the I-facing invariant that
// every committed block's selected parent is one of its parents.
func TestSelectedParentInParents(t *testing.T) {
	tc := newTestConsensus(t, 3)
	genesis := tc.genesisHash

	blockB := tc.addBlock(genesis)
	blockC := tc.addBlock(genesis)
	blockF := tc.addBlock(blockB, blockC)

	for _, blockHash := range []*externalapi.DomainHash{blockB, blockC, blockF} {
		data := tc.ghostdagData(blockHash)
		header, err := tc.GetBlockHeader(blockHash)
		if err != nil {
			t.Fatalf("GetBlockHeader: %+v", err)
		}
		if !externalapi.HashesContain(header.ParentHashes, data.SelectedParent) {
			t.Errorf("selected parent %s of %s is not one of its parents",
				data.SelectedParent, blockHash)
		}
		expectedScore := tc.ghostdagData(data.SelectedParent).BlueScore +
			uint64(len(data.MergeSetBlues)) + 1
		if data.BlueScore != expectedScore {
			t.Errorf("blue score of %s: got %d, want %d", blockHash, data.BlueScore, expectedScore)
		}
	}
}
