package p2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
	"github.com/starcoinorg/smolstc/domain/consensus/utils/binaryserialization"
)

// chainInfo is the handshake payload: the protocol paths a node
// serves and its current accumulator state, so a peer can detect
// divergence immediately on connect.
type chainInfo struct {
	Protocols       []string
	AccumulatorInfo *model.AccumulatorInfo
}

func serializeChainInfo(info *chainInfo) []byte {
	writer := binaryserialization.NewWriter()
	writer.WriteUint64(uint64(len(info.Protocols)))
	for _, protocolName := range info.Protocols {
		writer.WriteByteSlice([]byte(protocolName))
	}
	writer.WriteByteSlice(serialization.SerializeAccumulatorInfo(info.AccumulatorInfo))
	return writer.Bytes()
}

func deserializeChainInfo(infoBytes []byte) (*chainInfo, error) {
	reader := binaryserialization.NewReader(infoBytes)
	protocolCount, err := reader.ReadUint64()
	if err != nil {
		return nil, err
	}

	info := &chainInfo{Protocols: make([]string, 0, protocolCount)}
	for i := uint64(0); i < protocolCount; i++ {
		protocolName, err := reader.ReadByteSlice()
		if err != nil {
			return nil, err
		}
		info.Protocols = append(info.Protocols, string(protocolName))
	}
	accumulatorInfoBytes, err := reader.ReadByteSlice()
	if err != nil {
		return nil, err
	}
	info.AccumulatorInfo, err = serialization.DeserializeAccumulatorInfo(accumulatorInfoBytes)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (n *Node) localChainInfo() (*chainInfo, error) {
	accumulatorInfo, err := n.consensus.AccumulatorInfo()
	if err != nil {
		return nil, err
	}
	return &chainInfo{
		Protocols: []string{
			string(ProtocolAccumulatorInfo),
			string(ProtocolAccumulatorLeaves),
			string(ProtocolAccumulatorLeafDetails),
			string(ProtocolDagBlockInfo),
		},
		AccumulatorInfo: accumulatorInfo,
	}, nil
}

func (n *Node) registerHandlers() {
	n.host.SetStreamHandler(ProtocolHandshake, n.handleHandshake)
	n.host.SetStreamHandler(ProtocolAccumulatorInfo, n.serveRequest(n.answerAccumulatorInfo))
	n.host.SetStreamHandler(ProtocolAccumulatorLeaves, n.serveRequest(n.answerAccumulatorLeaves))
	n.host.SetStreamHandler(ProtocolAccumulatorLeafDetails, n.serveRequest(n.answerAccumulatorLeafDetails))
	n.host.SetStreamHandler(ProtocolDagBlockInfo, n.serveRequest(n.answerDagBlockInfo))
}

func (n *Node) handleHandshake(stream network.Stream) {
	defer stream.Close()
	deadline := time.Now().Add(n.timeout)
	_ = stream.SetDeadline(deadline)

	remoteBytes, err := readFrame(stream)
	if err != nil {
		log.Debugf("handshake with %s failed: %s", stream.Conn().RemotePeer(), err)
		return
	}
	remoteInfo, err := deserializeChainInfo(remoteBytes)
	if err != nil {
		log.Debugf("malformed handshake from %s: %s", stream.Conn().RemotePeer(), err)
		return
	}

	n.registerPeer(&PeerInfo{
		ID:              stream.Conn().RemotePeer(),
		Protocols:       remoteInfo.Protocols,
		AccumulatorInfo: remoteInfo.AccumulatorInfo,
		ConnectedAt:     time.Now(),
	})

	localInfo, err := n.localChainInfo()
	if err != nil {
		log.Errorf("failed to build local chain info: %s", err)
		return
	}
	err = writeFrame(stream, serializeChainInfo(localInfo))
	if err != nil {
		log.Debugf("failed to answer handshake of %s: %s", stream.Conn().RemotePeer(), err)
	}
}

// serveRequest adapts an answer function into a one-request-per-
// stream handler with the server-side deadline applied.
func (n *Node) serveRequest(answer func(requestBytes []byte) ([]byte, error)) network.StreamHandler {
	return func(stream network.Stream) {
		defer stream.Close()
		deadline := time.Now().Add(n.timeout)
		_ = stream.SetDeadline(deadline)

		requestBytes, err := readFrame(stream)
		if err != nil {
			log.Debugf("failed to read request from %s: %s", stream.Conn().RemotePeer(), err)
			return
		}

		responseBytes, err := answer(requestBytes)
		status := statusOK
		if err != nil {
			// BadRequest is reported verbatim; anything else is
			// wrapped into a generic internal error so store
			// internals don't leak onto the wire.
			if errors.Is(err, ruleerrors.ErrBadRequest) {
				status = statusBadRequest
				responseBytes = []byte(err.Error())
			} else {
				log.Errorf("internal error answering %s for %s: %s",
					stream.Protocol(), stream.Conn().RemotePeer(), err)
				status = statusInternal
				responseBytes = []byte("internal error")
			}
		}

		payload := append([]byte{status}, responseBytes...)
		err = writeFrame(stream, payload)
		if err != nil {
			log.Debugf("failed to write response to %s: %s", stream.Conn().RemotePeer(), err)
		}
	}
}

func (n *Node) answerAccumulatorInfo(_ []byte) ([]byte, error) {
	info, err := n.consensus.AccumulatorInfo()
	if err != nil {
		return nil, err
	}
	return serialization.SerializeAccumulatorInfo(info), nil
}

func (n *Node) answerAccumulatorLeaves(requestBytes []byte) ([]byte, error) {
	request, err := deserializeRangeRequest(requestBytes)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrBadRequest, err.Error())
	}
	leafRefs, err := n.consensus.AccumulatorLeaves(request.StartIndex, request.Limit)
	if err != nil {
		return nil, err
	}
	return serializeLeafRefs(leafRefs), nil
}

func (n *Node) answerAccumulatorLeafDetails(requestBytes []byte) ([]byte, error) {
	request, err := deserializeRangeRequest(requestBytes)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrBadRequest, err.Error())
	}
	details, err := n.consensus.AccumulatorLeafDetails(request.StartIndex, request.Limit)
	if err != nil {
		return nil, err
	}
	return serializeLeafDetails(details), nil
}

func (n *Node) answerDagBlockInfo(requestBytes []byte) ([]byte, error) {
	request, err := deserializeRangeRequest(requestBytes)
	if err != nil {
		return nil, errors.Wrap(ruleerrors.ErrBadRequest, err.Error())
	}
	layers, err := n.consensus.DagBlockInfo(request.StartIndex, request.Limit)
	if err != nil {
		return nil, err
	}
	return serializeLayerBlocks(layers), nil
}
