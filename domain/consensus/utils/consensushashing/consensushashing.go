// Package consensushashing computes the consensus-critical hashes
// of domain objects.
package consensushashing

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/hashes"
)

// HeaderHash returns the hash of the given header. The hash is a
// function of every header field except the cached hash itself,
// and is cached on the header once computed.
func HeaderHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	if cachedHash := header.CachedHash(); cachedHash != nil {
		return cachedHash
	}

	writer := binaryserialization.NewWriter()
	writer.WriteHashSlice(header.ParentHashes)
	writer.WriteUint64(header.TimeInMilliseconds)
	writer.WriteBigInt(header.Difficulty)
	writer.WriteBigInt(header.BlueWork)
	writer.WriteUint64(header.BlueScore)
	writer.WriteHash(header.PruningPoint)
	writer.WriteByteSlice(header.Misc)

	hashWriter := hashes.NewBlockHeaderHashWriter()
	hashWriter.InfallibleWrite(writer.Bytes())
	hash := hashWriter.Finalize()

	header.SetCachedHash(hash)
	return hash
}

// AccumulatorLeafHash returns the hash of an accumulator leaf:
// the digest over the layer's sorted (parent, child) pairs.
func AccumulatorLeafHash(pairs []*model.ParentChildPair) *externalapi.DomainHash {
	hashWriter := hashes.NewAccumulatorLeafHashWriter()
	for _, pair := range pairs {
		hashWriter.InfallibleWrite(pair.Parent.ByteSlice())
		hashWriter.InfallibleWrite(pair.Child.ByteSlice())
	}
	return hashWriter.Finalize()
}

// MerkleBranchHash returns the hash of the concatenation of the
// left and right nodes of the accumulator's mountain range.
func MerkleBranchHash(left, right *externalapi.DomainHash) *externalapi.DomainHash {
	hashWriter := hashes.NewMerkleBranchHashWriter()
	hashWriter.InfallibleWrite(left.ByteSlice())
	hashWriter.InfallibleWrite(right.ByteSlice())
	return hashWriter.Finalize()
}
