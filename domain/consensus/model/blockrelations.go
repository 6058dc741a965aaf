package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// BlockRelations represents a block's parent/child relations.
//
// Parents is append-once; Children grows monotonically as new
// blocks that point at this block are committed.
type BlockRelations struct {
	Parents  []*externalapi.DomainHash
	Children []*externalapi.DomainHash
}

// Clone returns a clone of BlockRelations
func (br *BlockRelations) Clone() *BlockRelations {
	return &BlockRelations{
		Parents:  externalapi.CloneHashes(br.Parents),
		Children: externalapi.CloneHashes(br.Children),
	}
}
