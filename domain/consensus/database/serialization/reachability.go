package serialization

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// SerializeReachabilityData serializes a ReachabilityData.
// Order: tree parent, interval start, interval end, children,
// future covering set.
func SerializeReachabilityData(reachabilityData *model.ReachabilityData) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteHash(reachabilityData.Parent)
	writer.WriteUint64(reachabilityData.Interval.Start)
	writer.WriteUint64(reachabilityData.Interval.End)
	writer.WriteHashSlice(reachabilityData.Children)
	writer.WriteHashSlice(reachabilityData.FutureCoveringSet)
	return writer.Bytes()
}

// DeserializeReachabilityData deserializes a ReachabilityData.
func DeserializeReachabilityData(reachabilityDataBytes []byte) (*model.ReachabilityData, error) {
	reader := binaryserialization.NewReader(reachabilityDataBytes)
	reachabilityData := &model.ReachabilityData{}

	var err error
	reachabilityData.Parent, err = reader.ReadHash()
	if err != nil {
		return nil, err
	}
	start, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	end, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	reachabilityData.Interval = model.NewReachabilityInterval(start, end)
	reachabilityData.Children, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	reachabilityData.FutureCoveringSet, err = reader.ReadHashSlice()
	if err != nil {
		return nil, err
	}
	return reachabilityData, nil
}
