// Package serialization converts consensus model objects to and
// from their canonical binary form. Field order is fixed per type
// and documented on the serializer.
package serialization

import (
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// SerializeHeader serializes a DomainBlockHeader.
// Order: parents, timestamp, difficulty, blue work, blue score,
// pruning point, misc.
func SerializeHeader(header *externalapi.DomainBlockHeader) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteHashSlice(header.ParentHashes)
	writer.WriteUint64(header.TimeInMilliseconds)
	writer.WriteBigInt(header.Difficulty)
	writer.WriteBigInt(header.BlueWork)
	writer.WriteUint64(header.BlueScore)
	writer.WriteHash(header.PruningPoint)
	writer.WriteByteSlice(header.Misc)
	return writer.Bytes()
}

// DeserializeHeader deserializes a DomainBlockHeader.
func DeserializeHeader(headerBytes []byte) (*externalapi.DomainBlockHeader, error) {
	reader := binaryserialization.NewReader(headerBytes)
	header := &externalapi.DomainBlockHeader{}

	var err error
	header.ParentHashes, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	header.TimeInMilliseconds, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	header.Difficulty, err = reader.ReadBigInt()
	if err != nil {
		return nil, err
	}
	header.BlueWork, err = reader.ReadBigInt()
	if err != nil {
		return nil, err
	}
	header.BlueScore, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	header.PruningPoint, err = reader.ReadHash()
	if err != nil {
		return nil, err
	}
	header.Misc, err = reader.ReadByteSlice()
	if err != nil {
		return nil, err
	}
	if !reader.IsExhausted() {
		return nil, errors.Errorf("trailing bytes after header")
	}
	return header, nil
}

// SerializeCompactHeaderData serializes a CompactHeaderData.
// Order: timestamp, difficulty, blue score.
func SerializeCompactHeaderData(compact *externalapi.CompactHeaderData) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(compact.TimeInMilliseconds)
	writer.WriteBigInt(compact.Difficulty)
	writer.WriteUint64(compact.BlueScore)
	return writer.Bytes()
}

// DeserializeCompactHeaderData deserializes a CompactHeaderData.
func DeserializeCompactHeaderData(compactBytes []byte) (*externalapi.CompactHeaderData, error) {
	reader := binaryserialization.NewReader(compactBytes)
	compact := &externalapi.CompactHeaderData{}

	var err error
	compact.TimeInMilliseconds, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	compact.Difficulty, err = reader.ReadBigInt()
	if err != nil {
		return nil, err
	}
	compact.BlueScore, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	return compact, nil
}
