package p2p

import (
	"io"

	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/model/externalapi"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// Wire format: every request and response is a single
// length-prefixed frame (little-endian uint32 length, then the
// canonical binary payload). Sync RPC responses open with a status
// byte; the handshake reply carries none.

const maxFrameSize = 1 << 26 // 64 MiB

// Response status codes.
const (
	statusOK         = byte(0)
	statusBadRequest = byte(1)
	statusInternal   = byte(2)
)

// writeFrame writes a single length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return errors.Errorf("frame of %d bytes exceeds the maximum of %d", len(payload), maxFrameSize)
	}
	lengthBytes := []byte{
		byte(len(payload)),
		byte(len(payload) >> 8),
		byte(len(payload) >> 16),
		byte(len(payload) >> 24),
	}
	_, err := w.Write(lengthBytes)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = w.Write(payload)
	return errors.WithStack(err)
}

// readFrame reads a single length-prefixed frame.
func readFrame(r io.Reader) ([]byte, error) {
	lengthBytes := make([]byte, 4)
	_, err := io.ReadFull(r, lengthBytes)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	length := uint32(lengthBytes[0]) | uint32(lengthBytes[1])<<8 |
		uint32(lengthBytes[2])<<16 | uint32(lengthBytes[3])<<24
	if length > maxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds the maximum of %d", length, maxFrameSize)
	}
	payload := make([]byte, length)
	_, err = io.ReadFull(r, payload)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return payload, nil
}

// rangeRequest is the request body shared by every list endpoint.
type rangeRequest struct {
	StartIndex uint64
	Limit      uint64
}

func serializeRangeRequest(request *rangeRequest) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(request.StartIndex)
	writer.WriteUint64(request.Limit)
	return writer.Bytes()
}

func deserializeRangeRequest(requestBytes []byte) (*rangeRequest, error) {
	reader := binaryserialization.NewReader(requestBytes)
	request := &rangeRequest{}

	var err error
	request.StartIndex, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	request.Limit, err = reader.ReadUint64()
	if err != nil {
		return nil, err
	}
	return request, nil
}

func serializeLeafRefs(leafRefs []*model.LeafRef) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(uint64(len(leafRefs)))
	for _, leafRef := range leafRefs {
		writer.WriteHash(leafRef.LeafHash)
		writer.WriteHash(leafRef.AccumulatorRoot)
		writer.WriteUint64(leafRef.LeafIndex)
	}
	return writer.Bytes()
}

func deserializeLeafRefs(leafRefsBytes []byte) ([]*model.LeafRef, error) {
	reader := binaryserialization.NewReader(leafRefsBytes)
	length, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}

	leafRefs := make([]*model.LeafRef, 0, length)
	for i := uint64(0); i < length; i++ {
		leafRef := &model.LeafRef{}
		leafRef.LeafHash, err = reader.ReadHash()
		if err != nil {
			return nil, err
		}
		leafRef.AccumulatorRoot, err = reader.ReadHash()
		if err != nil {
			return nil, err
		}
		leafRef.LeafIndex, err = reader.ReadUint64()
		if err != nil {
			return nil, err
		}
		leafRefs = append(leafRefs, leafRef)
	}
	return leafRefs, nil
}

func serializeLeafDetails(details []*model.LeafDetail) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(uint64(len(details)))
	for _, detail := range details {
		writer.WriteHash(detail.AccumulatorRoot)
		writer.WriteUint64(uint64(len(detail.Pairs)))
		for _, pair := range detail.Pairs {
			writer.WriteHash(pair.Parent)
			writer.WriteHash(pair.Child)
		}
	}
	return writer.Bytes()
}

func deserializeLeafDetails(detailsBytes []byte) ([]*model.LeafDetail, error) {
	reader := binaryserialization.NewReader(detailsBytes)
	length, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}

	details := make([]*model.LeafDetail, 0, length)
	for i := uint64(0); i < length; i++ {
		detail := &model.LeafDetail{}
		detail.AccumulatorRoot, err = reader.ReadHash()
		if err != nil {
			return nil, err
		}
		pairCount, err := reader.ReadUint64()
		if err != nil {
			return nil, err
		}
		detail.Pairs = make([]*model.ParentChildPair, 0, pairCount)
		for j := uint64(0); j < pairCount; j++ {
			pair := &model.ParentChildPair{}
			pair.Parent, err = reader.ReadHash()
			if err != nil {
				return nil, err
			}
			pair.Child, err = reader.ReadHash()
			if err != nil {
				return nil, err
			}
			detail.Pairs = append(detail.Pairs, pair)
		}
		details = append(details, detail)
	}
	return details, nil
}

func serializeLayerBlocks(layers []*model.LayerBlocks) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(uint64(len(layers)))
	for _, layer := range layers {
		writer.WriteByteSlice(serialization.SerializeAccumulatorInfo(layer.AccumulatorInfo))
		writer.WriteUint64(uint64(len(layer.Headers)))
		for _, header := range layer.Headers {
			writer.WriteByteSlice(serialization.SerializeHeader(header))
		}
	}
	return writer.Bytes()
}

func deserializeLayerBlocks(layersBytes []byte) ([]*model.LayerBlocks, error) {
	reader := binaryserialization.NewReader(layersBytes)
	length, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}

	layers := make([]*model.LayerBlocks, 0, length)
	for i := uint64(0); i < length; i++ {
		layer := &model.LayerBlocks{}
		infoBytes, err := reader.ReadByteSlice()
		if err != nil {
			return nil, err
		}
		layer.AccumulatorInfo, err = serialization.DeserializeAccumulatorInfo(infoBytes)
		if err != nil {
			return nil, err
		}
		headerCount, err := reader.ReadUint64()
		if err != nil {
			return nil, err
		}
		layer.Headers = make([]*externalapi.DomainBlockHeader, 0, headerCount)
		for j := uint64(0); j < headerCount; j++ {
			headerBytes, err := reader.ReadByteSlice()
			if err != nil {
				return nil, err
			}
			header, err := serialization.DeserializeHeader(headerBytes)
			if err != nil {
				return nil, err
			}
			layer.Headers = append(layer.Headers, header)
		}
		layers = append(layers, layer)
	}
	return layers, nil
}
