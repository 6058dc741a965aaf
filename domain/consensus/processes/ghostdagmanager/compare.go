package ghostdagmanager

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
)

// ChooseSelectedParent returns the "bluest" of the given hashes:
// the one with the greatest blue work, tie-broken by the
// lexicographically smaller hash.
func (gm *ghostdagManager) ChooseSelectedParent(blockHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error) {
	selectedParent := blockHashes[0]
	selectedParentGHOSTDAGData, err := gm.ghostdagDataStore.Get(gm.databaseContext, selectedParent)
	if err != nil {
		return nil, err
	}
	for _, blockHash := range blockHashes {
		blockGHOSTDAGData, err := gm.ghostdagDataStore.Get(gm.databaseContext, blockHash)
		if err != nil {
			return nil, err
		}

		if gm.Less(selectedParent, selectedParentGHOSTDAGData, blockHash, blockGHOSTDAGData) {
			selectedParent = blockHash
			selectedParentGHOSTDAGData = blockGHOSTDAGData
		}
	}

	return selectedParent, nil
}

// Less returns whether blockHashA is strictly worse than
// blockHashB as a selected-parent candidate: smaller blue work,
// or equal blue work and a lexicographically larger hash.
func (gm *ghostdagManager) Less(blockHashA *externalapi.DomainHash, ghostdagDataA *model.BlockGHOSTDAGData,
	blockHashB *externalapi.DomainHash, ghostdagDataB *model.BlockGHOSTDAGData) bool {
	switch ghostdagDataA.BlueWork.Cmp(ghostdagDataB.BlueWork) {
	case -1:
		return true
	case 1:
		return false
	case 0:
		return blockHashB.Less(blockHashA)
	default:
		panic("big.Int.Cmp is defined to always return -1/1/0 and nothing else")
	}
}

func (gm *ghostdagManager) less(blockHashA *externalapi.DomainHash, blockHashB *externalapi.DomainHash) (bool, error) {
	ghostdagDataA, err := gm.ghostdagDataStore.Get(gm.databaseContext, blockHashA)
	if err != nil {
		return false, err
	}
	ghostdagDataB, err := gm.ghostdagDataStore.Get(gm.databaseContext, blockHashB)
	if err != nil {
		return false, err
	}

	if ghostdagDataA.BlueScore != ghostdagDataB.BlueScore {
		return ghostdagDataA.BlueScore < ghostdagDataB.BlueScore, nil
	}
	return blockHashA.Less(blockHashB), nil
}
