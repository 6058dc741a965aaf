package externalapi

import "math/big"

// DomainBlockHeader represents the header of a block in the DAG.
//
// The header's hash is a function of every other field. It is
// computed once (see consensushashing.HeaderHash) and cached on
// the header, since headers are immutable after commit.
type DomainBlockHeader struct {
	ParentHashes       []*DomainHash
	TimeInMilliseconds uint64
	Difficulty         *big.Int
	BlueWork           *big.Int
	BlueScore          uint64
	PruningPoint       *DomainHash
	Misc               []byte

	cachedHash *DomainHash
}

// CachedHash returns the header hash cached on this header, or
// nil if the hash was not computed yet.
func (header *DomainBlockHeader) CachedHash() *DomainHash {
	return header.cachedHash
}

// SetCachedHash caches the given hash on this header.
func (header *DomainBlockHeader) SetCachedHash(hash *DomainHash) {
	header.cachedHash = hash
}

// Clone returns a clone of DomainBlockHeader
func (header *DomainBlockHeader) Clone() *DomainBlockHeader {
	clone := &DomainBlockHeader{
		ParentHashes:       CloneHashes(header.ParentHashes),
		TimeInMilliseconds: header.TimeInMilliseconds,
		BlueScore:          header.BlueScore,
		Misc:               make([]byte, len(header.Misc)),
		cachedHash:         header.cachedHash,
	}
	if header.Difficulty != nil {
		clone.Difficulty = new(big.Int).Set(header.Difficulty)
	}
	if header.BlueWork != nil {
		clone.BlueWork = new(big.Int).Set(header.BlueWork)
	}
	if header.PruningPoint != nil {
		clone.PruningPoint = header.PruningPoint.Clone()
	}
	copy(clone.Misc, header.Misc)
	return clone
}

// Equal returns whether header equals to other
func (header *DomainBlockHeader) Equal(other *DomainBlockHeader) bool {
	if header == nil || other == nil {
		return header == other
	}

	if !HashesEqual(header.ParentHashes, other.ParentHashes) {
		return false
	}
	if header.TimeInMilliseconds != other.TimeInMilliseconds {
		return false
	}
	if header.Difficulty.Cmp(other.Difficulty) != 0 {
		return false
	}
	if header.BlueWork.Cmp(other.BlueWork) != 0 {
		return false
	}
	if header.BlueScore != other.BlueScore {
		return false
	}
	if !header.PruningPoint.Equal(other.PruningPoint) {
		return false
	}
	if len(header.Misc) != len(other.Misc) {
		return false
	}
	for i, b := range header.Misc {
		if other.Misc[i] != b {
			return false
		}
	}
	return true
}

// CompactHeaderData carries the few header fields hot paths need.
type CompactHeaderData struct {
	TimeInMilliseconds uint64
	Difficulty         *big.Int
	BlueScore          uint64
}

// Clone returns a clone of CompactHeaderData
func (chd *CompactHeaderData) Clone() *CompactHeaderData {
	clone := &CompactHeaderData{
		TimeInMilliseconds: chd.TimeInMilliseconds,
		BlueScore:          chd.BlueScore,
	}
	if chd.Difficulty != nil {
		clone.Difficulty = new(big.Int).Set(chd.Difficulty)
	}
	return clone
}
