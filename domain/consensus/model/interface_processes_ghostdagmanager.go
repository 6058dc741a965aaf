package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// GHOSTDAGManager resolves and manages GHOSTDAG block data
type GHOSTDAGManager interface {
	// GHOSTDAG runs the GHOSTDAG algorithm for a new block with
	// the given parents and returns its GHOSTDAG data. It is a
	// pure function of the parents, the stored data of their
	// ancestors and the K parameter.
	GHOSTDAG(blockHash *externalapi.DomainHash,
		parentHashes []*externalapi.DomainHash) (*BlockGHOSTDAGData, error)

	// GenesisGHOSTDAGData returns the GHOSTDAG data of a block
	// whose sole parent is ORIGIN.
	GenesisGHOSTDAGData() *BlockGHOSTDAGData

	ChooseSelectedParent(blockHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error)
	Less(blockHashA *externalapi.DomainHash, ghostdagDataA *BlockGHOSTDAGData,
		blockHashB *externalapi.DomainHash, ghostdagDataB *BlockGHOSTDAGData) bool
}
