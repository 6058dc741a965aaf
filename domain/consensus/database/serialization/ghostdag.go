package serialization

import (
	"sort"

	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// SerializeGHOSTDAGData serializes a BlockGHOSTDAGData.
// Order: blue score, blue work, selected parent, mergeset blues,
// mergeset reds, blues anticone sizes (keys in lexicographic order).
func SerializeGHOSTDAGData(ghostdagData *model.BlockGHOSTDAGData) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(ghostdagData.BlueScore)
	writer.WriteBigInt(ghostdagData.BlueWork)
	writer.WriteHash(ghostdagData.SelectedParent)
	writer.WriteHashSlice(ghostdagData.MergeSetBlues)
	writer.WriteHashSlice(ghostdagData.MergeSetReds)

	// The anticone-size map is serialized with its keys in
	// lexicographic order so the encoding is deterministic.
	keys := make([]*externalapi.DomainHash, 0, len(ghostdagData.BluesAnticoneSizes))
	for hash := range ghostdagData.BluesAnticoneSizes {
		hashCopy := hash
		keys = append(keys, &hashCopy)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	writer.WriteUint64(uint64(len(keys)))
	for _, key := range keys {
		writer.WriteHash(key)
		writer.WriteUint16(uint16(ghostdagData.BluesAnticoneSizes[*key]))
	}
	return writer.Bytes()
}

// DeserializeGHOSTDAGData deserializes a BlockGHOSTDAGData.
func DeserializeGHOSTDAGData(ghostdagDataBytes []byte) (*model.BlockGHOSTDAGData, error) {
	reader := binaryserialization.NewReader(ghostdagDataBytes)
	ghostdagData := &model.BlockGHOSTDAGData{}

	var err error
	ghostdagData.BlueScore, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	ghostdagData.BlueWork, err = reader.ReadBigInt()
	if err != nil {
		return nil, err
	}
	ghostdagData.SelectedParent, err = reader.ReadHash()
	if err != nil {
		return nil, err
	}
	ghostdagData.MergeSetBlues, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	ghostdagData.MergeSetReds, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}

	anticoneSizesLength, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	ghostdagData.BluesAnticoneSizes = make(map[externalapi.DomainHash]model.KType, anticoneSizesLength)
	for i := uint64(0); i < anticoneSizesLength; i++ {
		hash, err := reader.ReadHash()
		if err != nil {
			return nil, err
		}
		size, err := reader.ReadUint16()
		if err != nil {
			return nil, err
		}
		ghostdagData.BluesAnticoneSizes[*hash] = model.KType(size)
	}
	return ghostdagData, nil
}
