package syncmanager

import (
	"math/bits"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/consensushashing"
)

// The accumulator is a Merkle mountain range stored post-order:
// every leaf append is followed by the parents of all perfect
// subtrees the append completes. For n leaves the range holds
// 2n - popcount(n) nodes, and its peaks are the roots of the
// perfect subtrees matching the set bits of n.

// mmrSize returns the number of nodes in a mountain range with
// numLeaves leaves.
func mmrSize(numLeaves uint64) uint64 {
	return 2*numLeaves - uint64(bits.OnesCount64(numLeaves))
}

// leafPosition returns the node position of the leaf with the
// given index.
func leafPosition(leafIndex uint64) uint64 {
	return 2*leafIndex - uint64(bits.OnesCount64(leafIndex))
}

// peakPositions returns the node positions of the peaks of a
// mountain range with numLeaves leaves, highest subtree first.
func peakPositions(numLeaves uint64) []uint64 {
	positions := []uint64{}
	offset := uint64(0)
	for height := 63; height >= 0; height-- {
		if numLeaves&(uint64(1)<<uint(height)) == 0 {
			continue
		}
		subtreeLeaves := uint64(1) << uint(height)
		subtreeNodes := 2*subtreeLeaves - 1
		positions = append(positions, offset+subtreeNodes-1)
		offset += subtreeNodes
	}
	return positions
}

// appendLeaf stages the leaf node and every parent node its append
// completes, and returns the accumulator info after the append.
func (sm *syncManager) appendLeaf(currentInfo *model.AccumulatorInfo,
	leafHash *externalapi.DomainHash) (*model.AccumulatorInfo, error) {

	leafIndex := currentInfo.NumLeaves
	position := mmrSize(leafIndex)
	sm.accumulatorStore.StageNode(position, leafHash)

	// Merge once per trailing set bit of the new leaf's index:
	// each merge completes a perfect subtree of the next height.
	currentDigest := leafHash
	currentPosition := position
	height := uint(0)
	for remaining := leafIndex; remaining&1 == 1; remaining >>= 1 {
		siblingPosition := currentPosition - (uint64(1)<<(height+1) - 1)
		siblingDigest, err := sm.accumulatorStore.Node(sm.databaseContext, siblingPosition)
		if err != nil {
			return nil, err
		}

		currentDigest = consensushashing.MerkleBranchHash(siblingDigest, currentDigest)
		currentPosition++
		sm.accumulatorStore.StageNode(currentPosition, currentDigest)
		height++
	}

	newNumLeaves := leafIndex + 1
	frozenRoots, err := sm.frozenSubtreeRoots(newNumLeaves)
	if err != nil {
		return nil, err
	}

	newInfo := &model.AccumulatorInfo{
		AccumulatorRoot:    bagPeaks(frozenRoots),
		NumLeaves:          newNumLeaves,
		FrozenSubtreeRoots: frozenRoots,
	}
	sm.accumulatorStore.StageInfo(newInfo)
	return newInfo, nil
}

// frozenSubtreeRoots reads the peak digests for the given leaf
// count, highest subtree first.
func (sm *syncManager) frozenSubtreeRoots(numLeaves uint64) ([]*externalapi.DomainHash, error) {
	positions := peakPositions(numLeaves)
	roots := make([]*externalapi.DomainHash, len(positions))
	for i, position := range positions {
		var err error
		roots[i], err = sm.accumulatorStore.Node(sm.databaseContext, position)
		if err != nil {
			return nil, err
		}
	}
	return roots, nil
}

// bagPeaks folds the peaks right-to-left into a single root. A
// single peak is the root itself; with no leaves the root is the
// zero hash.
func bagPeaks(peaks []*externalapi.DomainHash) *externalapi.DomainHash {
	if len(peaks) == 0 {
		return externalapi.ORIGIN.Clone()
	}
	combined := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		combined = consensushashing.MerkleBranchHash(peaks[i], combined)
	}
	return combined
}

// GetProof returns a membership proof for the leaf at leafIndex:
// the sibling path inside the leaf's perfect subtree, bottom-up,
// followed by the bagged peaks right of that subtree (when any)
// and the peaks left of it, right-to-left. VerifyProof consumes
// the same layout.
func (sm *syncManager) GetProof(leafIndex uint64) ([]*externalapi.DomainHash, error) {
	info, err := sm.AccumulatorInfo()
	if err != nil {
		return nil, err
	}
	if leafIndex >= info.NumLeaves {
		return nil, errors.Wrapf(ruleerrors.ErrBadRequest,
			"leaf index %d out of range: accumulator has %d leaves", leafIndex, info.NumLeaves)
	}

	// Locate the peak subtree containing the leaf.
	subtreeStartLeaf := uint64(0)
	subtreeHeight := uint(0)
	subtreeOffset := uint64(0)
	peakIndex := 0
	for height := 63; height >= 0; height-- {
		if info.NumLeaves&(uint64(1)<<uint(height)) == 0 {
			continue
		}
		subtreeLeaves := uint64(1) << uint(height)
		if leafIndex < subtreeStartLeaf+subtreeLeaves {
			subtreeHeight = uint(height)
			break
		}
		subtreeStartLeaf += subtreeLeaves
		subtreeOffset += 2*subtreeLeaves - 1
		peakIndex++
	}

	siblings, err := sm.subtreeSiblings(subtreeOffset, subtreeHeight, leafIndex-subtreeStartLeaf)
	if err != nil {
		return nil, err
	}

	proof := siblings
	peaks := info.FrozenSubtreeRoots
	if peakIndex+1 < len(peaks) {
		proof = append(proof, bagPeaks(peaks[peakIndex+1:]))
	}
	for i := peakIndex - 1; i >= 0; i-- {
		proof = append(proof, peaks[i])
	}
	return proof, nil
}

// subtreeSiblings collects the sibling digests on the path from
// the given leaf to the root of its perfect subtree, bottom-up.
func (sm *syncManager) subtreeSiblings(subtreeOffset uint64, subtreeHeight uint,
	leafOffset uint64) ([]*externalapi.DomainHash, error) {

	siblings := make([]*externalapi.DomainHash, 0, subtreeHeight)
	// Descend from the subtree root recording the off-path child,
	// then reverse into bottom-up order.
	type frame struct{ position uint64 }
	offset := subtreeOffset
	leaves := uint64(1) << subtreeHeight
	index := leafOffset
	topDown := []*frame{}
	for leaves > 1 {
		half := leaves / 2
		leftNodes := 2*half - 1
		if index < half {
			// Sibling is the right subtree's root.
			topDown = append(topDown, &frame{position: offset + 2*leftNodes - 1})
			leaves = half
		} else {
			// Sibling is the left subtree's root.
			topDown = append(topDown, &frame{position: offset + leftNodes - 1})
			offset += leftNodes
			index -= half
			leaves = half
		}
	}
	for i := len(topDown) - 1; i >= 0; i-- {
		digest, err := sm.accumulatorStore.Node(sm.databaseContext, topDown[i].position)
		if err != nil {
			return nil, err
		}
		siblings = append(siblings, digest)
	}
	return siblings, nil
}

// VerifyProof checks a proof produced by GetProof against the
// given root.
func VerifyProof(root *externalapi.DomainHash, leaf *externalapi.DomainHash,
	leafIndex uint64, numLeaves uint64, proof []*externalapi.DomainHash) bool {

	if leafIndex >= numLeaves {
		return false
	}

	// Re-derive the leaf's peak subtree geometry.
	subtreeStartLeaf := uint64(0)
	subtreeHeight := uint(0)
	peakIndex := 0
	totalPeaks := bits.OnesCount64(numLeaves)
	for height := 63; height >= 0; height-- {
		if numLeaves&(uint64(1)<<uint(height)) == 0 {
			continue
		}
		subtreeLeaves := uint64(1) << uint(height)
		if leafIndex < subtreeStartLeaf+subtreeLeaves {
			subtreeHeight = uint(height)
			break
		}
		subtreeStartLeaf += subtreeLeaves
		peakIndex++
	}

	expectedLength := int(subtreeHeight) + peakIndex
	if peakIndex+1 < totalPeaks {
		expectedLength++
	}
	if len(proof) != expectedLength {
		return false
	}

	// Fold the sibling path.
	combined := leaf
	indexInSubtree := leafIndex - subtreeStartLeaf
	cursor := 0
	for level := uint(0); level < subtreeHeight; level++ {
		sibling := proof[cursor]
		cursor++
		if indexInSubtree&(uint64(1)<<level) == 0 {
			combined = consensushashing.MerkleBranchHash(combined, sibling)
		} else {
			combined = consensushashing.MerkleBranchHash(sibling, combined)
		}
	}

	// Bag with the other peaks.
	if peakIndex+1 < totalPeaks {
		combined = consensushashing.MerkleBranchHash(combined, proof[cursor])
		cursor++
	}
	for cursor < len(proof) {
		combined = consensushashing.MerkleBranchHash(proof[cursor], combined)
		cursor++
	}
	return combined.Equal(root)
}
