package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/clique-core/poachain/core"
	"github.com/clique-core/poachain/core/types"
)

var (
	headerSyncDoneGauge = metrics.NewRegisteredGauge("downloader/headersync/done", nil)
	fullSyncDoneGauge   = metrics.NewRegisteredGauge("downloader/fullsync/done", nil)
	layoutBGauge        = metrics.NewRegisteredGauge("downloader/layout/b", nil)
	layoutLGauge        = metrics.NewRegisteredGauge("downloader/layout/l", nil)
	layoutFGauge        = metrics.NewRegisteredGauge("downloader/layout/f", nil)
)

// BodyFetcher retrieves the bodies matching a run of already-validated
// headers, keyed by hash. Bodies are fetched separately from headers
// (spec.md §4.5 discusses only the header chain; body retrieval and the
// full PersistBlocks call are this module's extension to a complete
// syncer, grounded in the same peer abstraction).
type BodyFetcher func(ctx context.Context, peer Peer, headers []*types.Header) ([]*types.Body, error)

// Downloader runs the syncer's cooperative background loop (spec.md §4.5
// "Daemon (background task)"): periodically reporting metrics and driving
// whichever actor mode is currently selected across the peer pool.
type Downloader struct {
	layout *Layout
	queue  *StagedQueue
	peers  *PeerSet

	importer    *core.ChainImporter
	fetchBodies BodyFetcher

	log log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(importer *core.ChainImporter, fetchBodies BodyFetcher) *Downloader {
	return &Downloader{
		layout:      NewLayout(),
		queue:       NewStagedQueue(),
		peers:       NewPeerSet(),
		importer:    importer,
		fetchBodies: fetchBodies,
		log:         log.New("module", "downloader"),
	}
}

func (d *Downloader) RegisterPeer(p Peer) { d.peers.Register(p) }

func (d *Downloader) UnregisterPeer(id string) { d.peers.Unregister(id) }

// OnNewBeaconHead is the external RPC hook spec.md §6 names
// on_new_beacon_head: the consensus layer (or a trusted checkpoint feed)
// reports a new finalized header, extending the syncer's target range.
func (d *Downloader) OnNewBeaconHead(header *types.Header) {
	d.layout.UpdateBeacon(header.NumberU64(), header.Hash())
	layoutFGauge.Update(int64(header.NumberU64()))
}

// Start launches the daemon loop. It returns immediately; call Stop to
// halt it.
func (d *Downloader) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true
	d.mu.Unlock()

	go d.daemon(ctx)
}

func (d *Downloader) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// daemon is the background task spec.md §4.5 describes: it reports
// metrics every tick and, while unprocessed work remains or staged chunks
// are waiting to merge, drives one scheduling round per the peer pool's
// current actor mode.
func (d *Downloader) daemon(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.reportMetrics()

			if d.layout.HeaderSyncComplete() {
				headerSyncDoneGauge.Update(1)
			}
			snap := d.layout.Snapshot()
			if snap.F != 0 && snap.B == snap.F {
				fullSyncDoneGauge.Update(1)
				continue
			}

			d.runRound(ctx)
		}
	}
}

// runRound executes one scheduling pass across the active peer set,
// selecting single/multi/pool actor mode per spec.md §5 "Scheduling":
// a lone peer always runs single mode; multiple peers run in parallel
// (multi) unless the staged queue has crossed its low-watermark, in
// which case iteration is serialized (pool) to let merges catch up
// before more is fetched.
func (d *Downloader) runRound(ctx context.Context) {
	active := d.peers.Active()
	if len(active) == 0 {
		return
	}
	d.peers.SetPoolMode(d.queue.LowWatermarkExceeded())

	if d.queue.HighWatermarkExceeded() {
		d.log.Warn("staged queue high watermark exceeded, flushing", "len", d.queue.Len())
		d.queue.Flush(d.layout)
	}

	switch {
	case len(active) == 1:
		d.fetchAndStage(ctx, active[0])
	case d.peers.Mode() == ModePool:
		for _, p := range active {
			d.fetchAndStage(ctx, p)
		}
	default:
		var wg sync.WaitGroup
		for _, p := range active {
			wg.Add(1)
			go func(p Peer) {
				defer wg.Done()
				d.fetchAndStage(ctx, p)
			}(p)
		}
		wg.Wait()
	}

	if _, err := d.queue.DrainAdjacent(d.layout, d.persistChunk); err != nil {
		d.log.Error("failed to persist staged chunk", "err", err)
	}
}

// fetchAndStage reserves a slice of the unprocessed range, requests it
// from peer, validates the reply into a LinkedHChain and stages it
// (spec.md §4.5 "Fetch" / "Validate"). A timeout or malformed reply
// releases the reservation and zombifies the peer.
func (d *Downloader) fetchAndStage(parent context.Context, peer Peer) {
	r, ok := d.layout.Reserve(nFetchHeadersRequest)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(parent, fetchHeaderReqZombieThreshold)
	defer cancel()

	headers, err := peer.RequestHeadersByNumber(ctx, r.Lo, int(r.Len()))
	if err != nil || len(headers) == 0 {
		d.layout.Release(r)
		d.peers.Zombify(peer.ID())
		return
	}

	chunk, err := newLinkedHChain(headers)
	if err != nil {
		d.layout.Release(r)
		d.peers.Zombify(peer.ID())
		return
	}

	bodies, err := d.fetchBodies(ctx, peer, chunk.Headers)
	if err != nil || len(bodies) != len(chunk.Headers) {
		d.layout.Release(r)
		d.peers.Zombify(peer.ID())
		return
	}
	chunk.bodies = bodies
	chunk.peerID = peer.ID()

	d.queue.Stage(chunk)
}

// persistChunk runs the chain importer over one merged chunk, in
// ascending order (LinkedHChain stores descending). The importer classifies
// any failure (spec.md §4.4); on a zombie result this zombifies the peer
// and returns the chunk's range to the unprocessed set. A Reorg result is
// not acted on here beyond returning the error.
func (d *Downloader) persistChunk(chunk *LinkedHChain) error {
	headers := make([]*types.Header, len(chunk.Headers))
	bodies := make([]*types.Body, len(chunk.bodies))
	for i, h := range chunk.Headers {
		headers[len(headers)-1-i] = h
		bodies[len(bodies)-1-i] = chunk.bodies[i]
	}

	result := d.importer.PersistBlocks(headers, bodies, chunk.peerID)
	if result.Err != nil {
		if result.Zombie != "" {
			d.peers.Zombify(result.Zombie)
			d.layout.Release(Range{Lo: chunk.Bottom(), Hi: chunk.Top()})
		}
		return result.Err
	}
	d.layout.AdvanceB(headers[len(headers)-1].NumberU64(), headers[len(headers)-1].Hash())
	return nil
}

func (d *Downloader) reportMetrics() {
	snap := d.layout.Snapshot()
	layoutBGauge.Update(int64(snap.B))
	layoutLGauge.Update(int64(snap.L))
	layoutFGauge.Update(int64(snap.F))
	peerCountGauge.Update(int64(len(d.peers.Active())))
}
