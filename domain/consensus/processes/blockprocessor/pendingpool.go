package blockprocessor

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
)

// pendingPool holds headers whose parents have not arrived yet,
// keyed both ways: block to its missing parents, and missing
// parent to the blocks waiting on it. The pool is bounded; on
// overflow the oldest entry is dropped with a backpressure report.
type pendingPool struct {
	capacity uint64

	pendingBlocks  map[externalapi.DomainHash]*pendingBlock
	waitingByBlock map[externalapi.DomainHash][]externalapi.DomainHash
	insertionOrder []externalapi.DomainHash
}

type pendingBlock struct {
	header         *externalapi.DomainBlockHeader
	missingParents map[externalapi.DomainHash]struct{}
}

func newPendingPool(capacity uint64) *pendingPool {
	return &pendingPool{
		capacity:       capacity,
		pendingBlocks:  make(map[externalapi.DomainHash]*pendingBlock),
		waitingByBlock: make(map[externalapi.DomainHash][]externalapi.DomainHash),
	}
}

// add registers the header as waiting on the given missing
// parents. Re-adding a block that is already pending is a no-op.
func (pp *pendingPool) add(blockHash *externalapi.DomainHash,
	header *externalapi.DomainBlockHeader, missingParents []*externalapi.DomainHash) {

	if _, ok := pp.pendingBlocks[*blockHash]; ok {
		return
	}

	if uint64(len(pp.pendingBlocks)) >= pp.capacity {
		pp.dropOldest()
	}

	missing := make(map[externalapi.DomainHash]struct{}, len(missingParents))
	for _, parent := range missingParents {
		missing[*parent] = struct{}{}
		pp.waitingByBlock[*parent] = append(pp.waitingByBlock[*parent], *blockHash)
	}
	pp.pendingBlocks[*blockHash] = &pendingBlock{header: header, missingParents: missing}
	pp.insertionOrder = append(pp.insertionOrder, *blockHash)
}

// markParentCommitted removes the committed hash from every
// waiter's missing set and returns the headers that became fully
// unblocked, in insertion order.
func (pp *pendingPool) markParentCommitted(committedHash *externalapi.DomainHash) []*externalapi.DomainBlockHeader {
	waiters, ok := pp.waitingByBlock[*committedHash]
	if !ok {
		return nil
	}
	delete(pp.waitingByBlock, *committedHash)

	unblocked := []*externalapi.DomainBlockHeader{}
	for _, waiterHash := range waiters {
		waiter, ok := pp.pendingBlocks[waiterHash]
		if !ok {
			continue
		}
		delete(waiter.missingParents, *committedHash)
		if len(waiter.missingParents) > 0 {
			continue
		}
		delete(pp.pendingBlocks, waiterHash)
		unblocked = append(unblocked, waiter.header)
	}
	return unblocked
}

// dropOldest evicts the oldest still-pending entry. Entries that
// already left the pool are skipped lazily.
func (pp *pendingPool) dropOldest() {
	for len(pp.insertionOrder) > 0 {
		oldestHash := pp.insertionOrder[0]
		pp.insertionOrder = pp.insertionOrder[1:]

		oldest, ok := pp.pendingBlocks[oldestHash]
		if !ok {
			continue
		}

		delete(pp.pendingBlocks, oldestHash)
		for missingParent := range oldest.missingParents {
			pp.waitingByBlock[missingParent] = removeHash(pp.waitingByBlock[missingParent], &oldestHash)
			if len(pp.waitingByBlock[missingParent]) == 0 {
				delete(pp.waitingByBlock, missingParent)
			}
		}

		log.Warnf("%s: dropped oldest pending block %s",
			ruleerrors.ErrBackpressure, &oldestHash)
		return
	}
}

func removeHash(hashes []externalapi.DomainHash, hash *externalapi.DomainHash) []externalapi.DomainHash {
	for i := range hashes {
		if hashes[i] == *hash {
			return append(hashes[:i], hashes[i+1:]...)
		}
	}
	return hashes
}
