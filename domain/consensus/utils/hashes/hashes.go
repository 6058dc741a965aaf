// Package hashes provides the domain-separated hash writers used
// across consensus: block headers, accumulator leaves and Merkle
// interior nodes each hash under their own domain so digests from
// different layers can never collide.
package hashes

import (
	"hash"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"golang.org/x/crypto/blake2b"
)

const (
	blockHeaderDomain     = "smolstc.BlockHeader"
	accumulatorLeafDomain = "smolstc.AccumulatorLeaf"
	merkleBranchDomain    = "smolstc.MerkleBranch"
)

// HashWriter is used to incrementally hash data without
// concatenating all of the data to a single buffer.
// It must be created via one of the domain constructors below.
type HashWriter struct {
	hash.Hash
}

// InfallibleWrite is just like write but doesn't return anything
func (h HashWriter) InfallibleWrite(p []byte) {
	// This write can never return an error, this is part of the hash.Hash interface contract.
	_, err := h.Write(p)
	if err != nil {
		panic(errors.Wrap(err, "this should never happen. hash.Hash interface promises to not return errors."))
	}
}

// Finalize returns the resulting hash
func (h HashWriter) Finalize() *externalapi.DomainHash {
	var sum [externalapi.DomainHashSize]byte
	// This should prevent `Sum` for allocating an output buffer, by using the DomainHash buffer. we still copy because we don't want to rely on that.
	copy(sum[:], h.Sum(sum[:0]))
	hash := externalapi.DomainHash(sum)
	return &hash
}

func newHashWriter(domain string) HashWriter {
	blake, err := blake2b.New256([]byte(domain))
	if err != nil {
		panic(errors.Wrapf(err, "this should never happen. %s is less than 64 bytes", domain))
	}
	return HashWriter{blake}
}

// NewBlockHeaderHashWriter returns a new HashWriter used for
// block header hashes.
func NewBlockHeaderHashWriter() HashWriter {
	return newHashWriter(blockHeaderDomain)
}

// NewAccumulatorLeafHashWriter returns a new HashWriter used for
// sync accumulator leaf hashes.
func NewAccumulatorLeafHashWriter() HashWriter {
	return newHashWriter(accumulatorLeafDomain)
}

// NewMerkleBranchHashWriter returns a new HashWriter used for
// interior nodes of the accumulator's Merkle mountain range.
func NewMerkleBranchHashWriter() HashWriter {
	return newHashWriter(merkleBranchDomain)
}
