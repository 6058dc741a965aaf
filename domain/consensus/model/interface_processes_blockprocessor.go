package model

import "github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"

// BlockProcessor is responsible for processing incoming block
// headers: validation, the pending (unknown-parent) pool, and
// the atomic commit of all consensus state.
type BlockProcessor interface {
	ValidateAndInsertBlock(header *externalapi.DomainBlockHeader) error
}
