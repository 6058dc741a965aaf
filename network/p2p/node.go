// Package p2p implements the libp2p-based networking layer: the
// sync RPC server a node exposes over per-method protocol paths,
// and the verified client a syncing peer drives against it.
package p2p

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/starcoinorg/smolstc/domain/consensus"
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	"github.com/starcoinorg/smolstc/infrastructure/logger"
)

var log = logger.RegisterSubSystem("PTWO")

// Protocol IDs, one per sync RPC method plus the handshake.
const (
	ProtocolHandshake              = protocol.ID("/smolstc/handshake/1.0.0")
	ProtocolAccumulatorInfo        = protocol.ID("/smolstc/sync/accumulator-info/1.0.0")
	ProtocolAccumulatorLeaves      = protocol.ID("/smolstc/sync/accumulator-leaves/1.0.0")
	ProtocolAccumulatorLeafDetails = protocol.ID("/smolstc/sync/accumulator-leaf-details/1.0.0")
	ProtocolDagBlockInfo           = protocol.ID("/smolstc/sync/dag-block-info/1.0.0")
)

// defaultRequestTimeout bounds every sync RPC on both sides.
const defaultRequestTimeout = 30 * time.Second

// Config holds the p2p node configuration.
type Config struct {
	ListenAddrs    []string
	PrivateKey     crypto.PrivKey
	RequestTimeout time.Duration
}

// DefaultConfig returns the default p2p configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs:    []string{"/ip4/0.0.0.0/tcp/9511"},
		RequestTimeout: defaultRequestTimeout,
	}
}

// PeerInfo holds what a node learned about a connected peer from
// its handshake.
type PeerInfo struct {
	ID              peer.ID
	Protocols       []string
	AccumulatorInfo *model.AccumulatorInfo
	ConnectedAt     time.Time
}

// Node is a p2p node exposing the sync RPC surface of its local
// consensus and a client view over its peers.
type Node struct {
	mu sync.RWMutex

	host      host.Host
	consensus consensus.Consensus
	timeout   time.Duration

	peers map[peer.ID]*PeerInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// NewNode creates a new p2p node serving the given consensus.
func NewNode(ctx context.Context, cfg *Config, localConsensus consensus.Consensus) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate p2p key")
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid listen address %s", addr)
		}
		listenAddrs[i] = ma
	}

	p2pHost, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create libp2p host")
	}

	nodeCtx, cancel := context.WithCancel(ctx)
	node := &Node{
		host:      p2pHost,
		consensus: localConsensus,
		timeout:   cfg.RequestTimeout,
		peers:     make(map[peer.ID]*PeerInfo),
		ctx:       nodeCtx,
		cancel:    cancel,
	}
	node.registerHandlers()

	log.Infof("p2p node %s listening on %v", p2pHost.ID(), p2pHost.Addrs())
	return node, nil
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the node's listen multiaddresses, including the
// /p2p/ component.
func (n *Node) Addrs() []multiaddr.Multiaddr {
	peerAddr, err := multiaddr.NewMultiaddr("/p2p/" + n.host.ID().String())
	if err != nil {
		return n.host.Addrs()
	}
	addrs := make([]multiaddr.Multiaddr, len(n.host.Addrs()))
	for i, addr := range n.host.Addrs() {
		addrs[i] = addr.Encapsulate(peerAddr)
	}
	return addrs
}

// Connect dials the peer at the given multiaddress and runs the
// handshake against it.
func (n *Node) Connect(ctx context.Context, addr string) (*PeerInfo, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid peer address %s", addr)
	}
	addrInfo, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return nil, errors.Wrapf(err, "peer address %s misses a peer id", addr)
	}

	err = n.host.Connect(ctx, *addrInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}

	return n.handshake(ctx, addrInfo.ID)
}

// Peer returns what is known about the given peer, if anything.
func (n *Node) Peer(id peer.ID) (*PeerInfo, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	info, ok := n.peers[id]
	return info, ok
}

// Close shuts the node down.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}

func (n *Node) registerPeer(info *PeerInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[info.ID] = info
}
