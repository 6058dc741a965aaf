package blockprocessor

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

func testHash(value uint64) *externalapi.DomainHash {
	var hash externalapi.DomainHash
	binary.LittleEndian.PutUint64(hash[:8], value)
	return &hash
}

func testHeader(timestamp uint64, parents ...*externalapi.DomainHash) *externalapi.DomainBlockHeader {
	return &externalapi.DomainBlockHeader{
		ParentHashes:       parents,
		TimeInMilliseconds: timestamp,
		Difficulty:         big.NewInt(1),
		BlueWork:           new(big.Int),
		PruningPoint:       externalapi.ORIGIN.Clone(),
		Misc:               []byte{},
	}
}

func TestPendingPoolDrain(t *testing.T) {
	pool := newPendingPool(10)

	parentX := testHash(100)
	parentY := testHash(101)
	header := testHeader(1, parentX, parentY)
	pool.add(testHash(1), header, []*externalapi.DomainHash{parentX, parentY})

	unblocked := pool.markParentCommitted(parentX)
	if len(unblocked) != 0 {
		t.Fatalf("block unblocked while still missing a parent")
	}
	unblocked = pool.markParentCommitted(parentY)
	if len(unblocked) != 1 {
		t.Fatalf("unblocked: got %d headers, want 1", len(unblocked))
	}
	if unblocked[0] != header {
		t.Errorf("unblocked the wrong header")
	}

	// Draining an unknown parent is a no-op.
	if got := pool.markParentCommitted(testHash(999)); len(got) != 0 {
		t.Errorf("unknown parent drained %d headers", len(got))
	}
}

func TestPendingPoolOverflowDropsOldest(t *testing.T) {
	pool := newPendingPool(2)

	missing := testHash(100)
	first := testHash(1)
	pool.add(first, testHeader(1, missing), []*externalapi.DomainHash{missing})
	pool.add(testHash(2), testHeader(2, missing), []*externalapi.DomainHash{missing})

	// The third insert overflows the pool and evicts the first.
	pool.add(testHash(3), testHeader(3, missing), []*externalapi.DomainHash{missing})

	if _, ok := pool.pendingBlocks[*first]; ok {
		t.Errorf("oldest pending block survived the overflow")
	}
	if len(pool.pendingBlocks) != 2 {
		t.Errorf("pool size after overflow: got %d, want 2", len(pool.pendingBlocks))
	}

	unblocked := pool.markParentCommitted(missing)
	if len(unblocked) != 2 {
		t.Errorf("drained %d headers after overflow, want 2", len(unblocked))
	}
}

func TestPendingPoolDuplicateAdd(t *testing.T) {
	pool := newPendingPool(10)

	missing := testHash(100)
	blockHash := testHash(1)
	header := testHeader(1, missing)
	pool.add(blockHash, header, []*externalapi.DomainHash{missing})
	pool.add(blockHash, header, []*externalapi.DomainHash{missing})

	if len(pool.pendingBlocks) != 1 {
		t.Errorf("duplicate add grew the pool to %d entries", len(pool.pendingBlocks))
	}
	unblocked := pool.markParentCommitted(missing)
	if len(unblocked) != 1 {
		t.Errorf("drained %d headers, want 1", len(unblocked))
	}
}
