package ghostdagmanager

import (
	"math/big"

	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// GHOSTDAG runs the GHOSTDAG protocol and calculates the block
// BlockGHOSTDAGData by the given parents.
// The function calculates mergeset blues by iterating over the
// mergeset of the new block in topological order and adds a
// candidate to the blue set if these conditions hold:
//
// 1) |anticone-of-candidate ∩ blue-set-of-newBlock| ≤ K
// 2) For every blue block in the candidate's anticone, adding the
// candidate keeps that block's blue anticone within K. The sizes
// are maintained incrementally in BluesAnticoneSizes.
//
// The BlueScore of the new block is the BlueScore of its selected
// parent, plus the number of its mergeset blues, plus one for the
// selected parent itself.
func (gm *ghostdagManager) GHOSTDAG(blockHash *externalapi.DomainHash,
	parentHashes []*externalapi.DomainHash) (*model.BlockGHOSTDAGData, error) {

	selectedParent, err := gm.ChooseSelectedParent(parentHashes...)
	if err != nil {
		return nil, err
	}

	newBlockData := &model.BlockGHOSTDAGData{
		SelectedParent:     selectedParent.Clone(),
		MergeSetBlues:      make([]*externalapi.DomainHash, 0),
		MergeSetReds:       make([]*externalapi.DomainHash, 0),
		BluesAnticoneSizes: map[externalapi.DomainHash]model.KType{*selectedParent: 0},
	}

	mergeSet, err := gm.mergeSet(selectedParent, parentHashes)
	if err != nil {
		return nil, err
	}

	for _, blueCandidate := range mergeSet {
		isBlue, candidateAnticoneSize, candidateBluesAnticoneSizes, err :=
			gm.checkBlueCandidate(newBlockData, blueCandidate)
		if err != nil {
			return nil, err
		}

		if isBlue {
			// No k-cluster violation found, we can now set the candidate block as blue
			newBlockData.MergeSetBlues = append(newBlockData.MergeSetBlues, blueCandidate)
			newBlockData.BluesAnticoneSizes[*blueCandidate] = candidateAnticoneSize
			for blue, blueAnticoneSize := range candidateBluesAnticoneSizes {
				newBlockData.BluesAnticoneSizes[blue] = blueAnticoneSize + 1
			}
		} else {
			newBlockData.MergeSetReds = append(newBlockData.MergeSetReds, blueCandidate)
		}
	}

	selectedParentGHOSTDAGData, err := gm.ghostdagDataStore.Get(gm.databaseContext, selectedParent)
	if err != nil {
		return nil, err
	}
	newBlockData.BlueScore = selectedParentGHOSTDAGData.BlueScore +
		uint64(len(newBlockData.MergeSetBlues)) + 1

	newBlockData.BlueWork, err = gm.calculateBlueWork(blockHash, selectedParentGHOSTDAGData, newBlockData.MergeSetBlues)
	if err != nil {
		return nil, err
	}

	return newBlockData, nil
}

// calculateBlueWork sums the selected parent's blue work with the
// difficulty of the new block and of every mergeset blue.
func (gm *ghostdagManager) calculateBlueWork(blockHash *externalapi.DomainHash,
	selectedParentGHOSTDAGData *model.BlockGHOSTDAGData,
	mergeSetBlues []*externalapi.DomainHash) (*big.Int, error) {

	blueWork := new(big.Int).Set(selectedParentGHOSTDAGData.BlueWork)
	for _, blue := range mergeSetBlues {
		compact, err := gm.blockHeaderStore.CompactHeaderData(gm.databaseContext, blue)
		if err != nil {
			return nil, err
		}
		blueWork.Add(blueWork, compact.Difficulty)
	}

	newBlockCompact, err := gm.blockHeaderStore.CompactHeaderData(gm.databaseContext, blockHash)
	if err != nil {
		return nil, err
	}
	blueWork.Add(blueWork, newBlockCompact.Difficulty)
	return blueWork, nil
}

// checkBlueCandidate determines whether blueCandidate can join the
// new block's blue set. The candidate's anticone is computed
// against the blues accumulated so far: the selected parent plus
// every already-admitted mergeset blue.
func (gm *ghostdagManager) checkBlueCandidate(newBlockData *model.BlockGHOSTDAGData,
	blueCandidate *externalapi.DomainHash) (isBlue bool, candidateAnticoneSize model.KType,
	candidateBluesAnticoneSizes map[externalapi.DomainHash]model.KType, err error) {

	candidateBluesAnticoneSizes = make(map[externalapi.DomainHash]model.KType, gm.k)

	blues := append([]*externalapi.DomainHash{newBlockData.SelectedParent},
		newBlockData.MergeSetBlues...)
	for _, blue := range blues {
		ordered, err := gm.isOrdered(blue, blueCandidate)
		if err != nil {
			return false, 0, nil, err
		}
		if ordered {
			// Blocks in the candidate's past or future are not in
			// its anticone.
			continue
		}

		blueAnticoneSize := newBlockData.BluesAnticoneSizes[*blue]
		candidateBluesAnticoneSizes[*blue] = blueAnticoneSize
		candidateAnticoneSize++

		if candidateAnticoneSize > gm.k || blueAnticoneSize+1 > gm.k {
			// Two possible k-cluster violations here:
			// 	(i) The candidate blue anticone now became larger than K
			//	(ii) A block in the candidate's blue anticone already
			//	has K blue blocks in its own anticone
			return false, 0, nil, nil
		}
	}

	return true, candidateAnticoneSize, candidateBluesAnticoneSizes, nil
}

// isOrdered returns whether one of the blocks is a DAG ancestor of
// the other.
func (gm *ghostdagManager) isOrdered(blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	isAncestor, err := gm.dagTopologyManager.IsAncestorOf(blockHashA, blockHashB)
	if err != nil {
		return false, err
	}
	if isAncestor {
		return true, nil
	}
	return gm.dagTopologyManager.IsAncestorOf(blockHashB, blockHashA)
}
