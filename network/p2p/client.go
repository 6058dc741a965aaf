package p2p

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus/database/serialization"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/domain/consensus/ruleerrors"
)

// handshake runs the handshake protocol against the given peer and
// records what it advertises.
func (n *Node) handshake(ctx context.Context, peerID peer.ID) (*PeerInfo, error) {
	localInfo, err := n.localChainInfo()
	if err != nil {
		return nil, err
	}

	responseBytes, err := n.roundTrip(ctx, peerID, ProtocolHandshake, serializeChainInfo(localInfo))
	if err != nil {
		return nil, err
	}
	remoteInfo, err := deserializeChainInfo(responseBytes)
	if err != nil {
		return nil, err
	}

	info := &PeerInfo{
		ID:              peerID,
		Protocols:       remoteInfo.Protocols,
		AccumulatorInfo: remoteInfo.AccumulatorInfo,
		ConnectedAt:     time.Now(),
	}
	n.registerPeer(info)
	return info, nil
}

// AccumulatorInfo fetches the peer's current accumulator state.
func (n *Node) AccumulatorInfo(ctx context.Context, peerID peer.ID) (*model.AccumulatorInfo, error) {
	responseBytes, err := n.rpc(ctx, peerID, ProtocolAccumulatorInfo, []byte{})
	if err != nil {
		return nil, err
	}
	return serialization.DeserializeAccumulatorInfo(responseBytes)
}

// AccumulatorLeaves fetches the peer's leaf references in
// [startIndex, startIndex+limit).
func (n *Node) AccumulatorLeaves(ctx context.Context, peerID peer.ID,
	startIndex uint64, limit uint64) ([]*model.LeafRef, error) {

	request := serializeRangeRequest(&rangeRequest{StartIndex: startIndex, Limit: limit})
	responseBytes, err := n.rpc(ctx, peerID, ProtocolAccumulatorLeaves, request)
	if err != nil {
		return nil, err
	}
	return deserializeLeafRefs(responseBytes)
}

// AccumulatorLeafDetails fetches the (parent, child) pairs of the
// peer's leaves in range.
func (n *Node) AccumulatorLeafDetails(ctx context.Context, peerID peer.ID,
	startIndex uint64, limit uint64) ([]*model.LeafDetail, error) {

	request := serializeRangeRequest(&rangeRequest{StartIndex: startIndex, Limit: limit})
	responseBytes, err := n.rpc(ctx, peerID, ProtocolAccumulatorLeafDetails, request)
	if err != nil {
		return nil, err
	}
	return deserializeLeafDetails(responseBytes)
}

// DagBlockInfo fetches full layer headers for the peer's leaves in
// range.
func (n *Node) DagBlockInfo(ctx context.Context, peerID peer.ID,
	startIndex uint64, limit uint64) ([]*model.LayerBlocks, error) {

	request := serializeRangeRequest(&rangeRequest{StartIndex: startIndex, Limit: limit})
	responseBytes, err := n.rpc(ctx, peerID, ProtocolDagBlockInfo, request)
	if err != nil {
		return nil, err
	}
	return deserializeLayerBlocks(responseBytes)
}

// FindCommonAncestorLeaf locates the most recent accumulator leaf
// the local node shares with the peer, by binary search over the
// common leaf index range. It returns ok=false when not even the
// first leaf matches.
func (n *Node) FindCommonAncestorLeaf(ctx context.Context, peerID peer.ID) (
	leafIndex uint64, ok bool, err error) {

	localInfo, err := n.consensus.AccumulatorInfo()
	if err != nil {
		return 0, false, err
	}
	remoteInfo, err := n.AccumulatorInfo(ctx, peerID)
	if err != nil {
		return 0, false, err
	}

	searchSpace := localInfo.NumLeaves
	if remoteInfo.NumLeaves < searchSpace {
		searchSpace = remoteInfo.NumLeaves
	}
	if searchSpace == 0 {
		return 0, false, nil
	}

	// Invariant: every index below low is known to agree; the
	// largest agreeing index is searched for in [low, high].
	low, high := uint64(0), searchSpace-1
	bestMatch, found := uint64(0), false
	for low <= high {
		mid := low + (high-low)/2
		agrees, err := n.leafAgrees(ctx, peerID, mid)
		if err != nil {
			return 0, false, err
		}
		if agrees {
			bestMatch, found = mid, true
			low = mid + 1
		} else {
			if mid == 0 {
				break
			}
			high = mid - 1
		}
	}
	return bestMatch, found, nil
}

func (n *Node) leafAgrees(ctx context.Context, peerID peer.ID, leafIndex uint64) (bool, error) {
	remoteLeaves, err := n.AccumulatorLeaves(ctx, peerID, leafIndex, 1)
	if err != nil {
		return false, err
	}
	if len(remoteLeaves) == 0 {
		return false, nil
	}

	localLeaves, err := n.consensus.AccumulatorLeaves(leafIndex, 1)
	if err != nil {
		return false, err
	}
	if len(localLeaves) == 0 {
		return false, nil
	}
	return localLeaves[0].LeafHash.Equal(remoteLeaves[0].LeafHash), nil
}

// rpc performs a one-request-per-stream round trip and unwraps the
// response status byte.
func (n *Node) rpc(ctx context.Context, peerID peer.ID, protocolID protocol.ID,
	request []byte) ([]byte, error) {

	payload, err := n.roundTrip(ctx, peerID, protocolID, request)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.Errorf("empty response from %s on %s", peerID, protocolID)
	}

	switch payload[0] {
	case statusOK:
		return payload[1:], nil
	case statusBadRequest:
		return nil, errors.Wrap(ruleerrors.ErrBadRequest, string(payload[1:]))
	default:
		return nil, errors.Errorf("peer %s failed to answer %s: %s",
			peerID, protocolID, string(payload[1:]))
	}
}

func (n *Node) roundTrip(ctx context.Context, peerID peer.ID, protocolID protocol.ID,
	request []byte) ([]byte, error) {

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	stream, err := n.host.NewStream(ctx, peerID, protocolID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s stream to %s", protocolID, peerID)
	}
	defer stream.Close()

	deadline, ok := ctx.Deadline()
	if ok {
		_ = stream.SetDeadline(deadline)
	}

	err = writeFrame(stream, request)
	if err != nil {
		return nil, err
	}
	err = stream.CloseWrite()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	responseBytes, err := readFrame(stream)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ruleerrors.ErrTimeout,
				"request to %s on %s exceeded its deadline", peerID, protocolID)
		}
		return nil, err
	}
	return responseBytes, nil
}
