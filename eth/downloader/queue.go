package downloader

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/metrics"
)

const (
	// stagedQueueLengthHwm is the high-water mark: past this many staged
	// chunks the queue is flushed and re-fetched from scratch rather than
	// left to grow unbounded (spec.md §4.5 "Backpressure").
	stagedQueueLengthHwm = 40

	// stagedQueueLengthLwm is the low-water mark: past this many staged
	// chunks the downloader switches to pool mode and fetches from its
	// peers one at a time. No pass reorders or merges staged chunks.
	stagedQueueLengthLwm = 24
)

var (
	stagedQueueGauge = metrics.NewRegisteredGauge("downloader/staged/length", nil)
	zombiePeerGauge  = metrics.NewRegisteredGauge("downloader/peers/zombie", nil)
)

// StagedQueue holds LinkedHChain chunks keyed by their top block number,
// pending merge into the right linked run ending at F (spec.md §3 "staged ordered
// map top_number -> LinkedHChain").
type StagedQueue struct {
	mu     sync.Mutex
	chunks map[uint64]*LinkedHChain
}

func NewStagedQueue() *StagedQueue {
	return &StagedQueue{chunks: make(map[uint64]*LinkedHChain)}
}

// Stage records a freshly fetched, validated chunk.
func (q *StagedQueue) Stage(chunk *LinkedHChain) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.chunks[chunk.Top()] = chunk
	stagedQueueGauge.Update(int64(len(q.chunks)))
}

// Len reports the current staged chunk count.
func (q *StagedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// HighWatermarkExceeded reports whether the queue has grown past
// stagedQueueLengthHwm (spec.md §4.5: flush-and-refetch threshold).
func (q *StagedQueue) HighWatermarkExceeded() bool { return q.Len() > stagedQueueLengthHwm }

// LowWatermarkExceeded reports whether the queue has grown past
// stagedQueueLengthLwm (spec.md §4.5: the downloader then runs in pool mode).
func (q *StagedQueue) LowWatermarkExceeded() bool { return q.Len() > stagedQueueLengthLwm }

// Flush empties the queue, returning every staged range to unprocessed —
// the high-watermark response (spec.md §4.5).
func (q *StagedQueue) Flush(layout *Layout) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, chunk := range q.chunks {
		layout.Release(Range{Lo: chunk.Bottom(), Hi: chunk.Top()})
	}
	q.chunks = make(map[uint64]*LinkedHChain)
	stagedQueueGauge.Update(0)
}

// DrainAdjacent repeatedly merges staged chunks into the right linked run
// ending at F as long as one's TopHash matches the layout's current
// LParentHash (spec.md §4.5 "Process"). persist is called once per merged
// chunk, in top-down order, with the chunk as stored (Headers descending);
// callers reorder the headers as their importer expects. Returns the
// number of chunks merged.
func (q *StagedQueue) DrainAdjacent(layout *Layout, persist func(*LinkedHChain) error) (int, error) {
	merged := 0
	for {
		q.mu.Lock()
		var next *LinkedHChain
		layout.mu.Lock()
		parentHash := layout.LParentHash
		layout.mu.Unlock()
		for _, chunk := range q.chunks {
			if chunk.TopHash == parentHash {
				next = chunk
				break
			}
		}
		if next == nil {
			q.mu.Unlock()
			return merged, nil
		}
		delete(q.chunks, next.Top())
		stagedQueueGauge.Update(int64(len(q.chunks)))
		q.mu.Unlock()

		if err := persist(next); err != nil {
			return merged, err
		}
		layout.AdvanceLeft(next.Bottom(), next.ParentHash)
		merged++
	}
}

// sortedTops returns the staged top numbers in descending order, useful for
// pool-mode reordering passes and tests.
func (q *StagedQueue) sortedTops() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	tops := make([]uint64, 0, len(q.chunks))
	for top := range q.chunks {
		tops = append(tops, top)
	}
	sort.Slice(tops, func(i, j int) bool { return tops[i] > tops[j] })
	return tops
}
