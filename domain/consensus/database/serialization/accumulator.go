package serialization

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// SerializeAccumulatorInfo serializes an AccumulatorInfo.
// Order: root, num leaves, frozen subtree roots.
func SerializeAccumulatorInfo(info *model.AccumulatorInfo) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteHash(info.AccumulatorRoot)
	writer.WriteUint64(info.NumLeaves)
	writer.WriteHashSlice(info.FrozenSubtreeRoots)
	return writer.Bytes()
}

// DeserializeAccumulatorInfo deserializes an AccumulatorInfo.
func DeserializeAccumulatorInfo(infoBytes []byte) (*model.AccumulatorInfo, error) {
	reader := binaryserialization.NewReader(infoBytes)
	info := &model.AccumulatorInfo{}

	var err error
	info.AccumulatorRoot, err = reader.ReadHash()
	if err != nil {
		return nil, err
	}
	info.NumLeaves, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	info.FrozenSubtreeRoots, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	return info, nil
}

// SerializeLayerSnapshot serializes a LayerSnapshot.
// Order: sorted children, accumulator info.
func SerializeLayerSnapshot(snapshot *model.LayerSnapshot) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteHashSlice(snapshot.ChildHashes)
	writer.WriteByteSlice(SerializeAccumulatorInfo(snapshot.AccumulatorInfo))
	return writer.Bytes()
}

// DeserializeLayerSnapshot deserializes a LayerSnapshot.
func DeserializeLayerSnapshot(snapshotBytes []byte) (*model.LayerSnapshot, error) {
	reader := binaryserialization.NewReader(snapshotBytes)
	snapshot := &model.LayerSnapshot{}

	var err error
	snapshot.ChildHashes, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	infoBytes, err := reader.ReadByteSlice()
	if err != nil {
		return nil, err
	}
	snapshot.AccumulatorInfo, err = DeserializeAccumulatorInfo(infoBytes)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
