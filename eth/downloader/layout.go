// Package downloader implements the concurrent, multi-peer header-chain
// syncer (spec.md §4.5): the (G,B,L,F) interval layout, the unprocessed
// block-number range set, staged reverse header chunks and the peer worker
// pool that drains them into the canonical chain.
package downloader

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Range is an inclusive [Lo, Hi] block-number interval.
type Range struct {
	Lo, Hi uint64
}

func (r Range) Len() uint64 { return r.Hi - r.Lo + 1 }

// Layout is the shared (G, B, L, F) state spec.md §4.5 describes: the top
// of the left linked run from genesis, the bottom of the right linked run
// ending at the beacon-supplied finalized head, plus the disjoint
// unprocessed ranges covering (B, L).
type Layout struct {
	mu sync.Mutex

	G uint64 // genesis, always 0

	B     uint64      // top of the left linked run from G
	BHash common.Hash // hash of the header at B

	L           uint64      // bottom of the right linked run ending at F
	LParentHash common.Hash // parent hash the next chunk toward G must attach to

	F     uint64      // latest beacon-supplied finalized header number
	FHash common.Hash // hash of the header at F

	unprocessed []Range // disjoint, sorted by Lo, covering exactly (B, L)
}

// NewLayout returns the pristine (0,0,0) layout spec.md §4.5 describes for
// a fresh start.
func NewLayout() *Layout {
	return &Layout{}
}

// UpdateBeacon installs a new finalized head reported by the external RPC
// hook (spec.md §6 on_new_beacon_head). Per spec.md §4.5 "Update beacon":
// if head.Number > current F, F is advanced, (L, FHash) reset to the new
// head, and (F_old+1, F_new) is added to the unprocessed set. Idempotent
// and monotone: a head at or below the current F is ignored.
func (l *Layout) UpdateBeacon(number uint64, hash common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if number <= l.F {
		return
	}
	oldF := l.F
	l.F, l.FHash = number, hash
	l.L, l.LParentHash = number, hash // reset right run to the new tip; a fetch will discover its real parent

	if oldF == 0 && l.B == 0 {
		// First beacon head ever seen: the whole (G, F] range is unprocessed.
		l.addUnprocessed(Range{Lo: l.B + 1, Hi: number})
		return
	}
	l.addUnprocessed(Range{Lo: oldF + 1, Hi: number})
}

// addUnprocessed inserts r into the unprocessed set, merging with any
// adjacent or overlapping ranges so the set stays disjoint (spec.md §8:
// "Unprocessed ranges remain disjoint").
func (l *Layout) addUnprocessed(r Range) {
	if r.Lo > r.Hi {
		return
	}
	merged := append(l.unprocessed, r)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Lo < merged[j].Lo })

	out := merged[:0]
	for _, rr := range merged {
		if len(out) > 0 && rr.Lo <= out[len(out)-1].Hi+1 {
			if rr.Hi > out[len(out)-1].Hi {
				out[len(out)-1].Hi = rr.Hi
			}
			continue
		}
		out = append(out, rr)
	}
	l.unprocessed = out
}

// Reserve removes and returns up to maxLen block numbers from the upper end
// of the unprocessed set (spec.md §4.5 "Fetch": "reserve the upper slice of
// unprocessed"). Returns the zero Range and false if nothing is available.
func (l *Layout) Reserve(maxLen uint64) (Range, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.unprocessed) == 0 {
		return Range{}, false
	}
	last := len(l.unprocessed) - 1
	top := l.unprocessed[last]

	lo := top.Lo
	if top.Len() > maxLen {
		lo = top.Hi - maxLen + 1
	}
	reserved := Range{Lo: lo, Hi: top.Hi}

	if lo == top.Lo {
		l.unprocessed = l.unprocessed[:last]
	} else {
		l.unprocessed[last].Hi = lo - 1
	}
	return reserved, true
}

// Release returns a previously reserved range to the unprocessed set — used
// when a fetch fails validation or times out (spec.md §4.5 "Validate").
func (l *Layout) Release(r Range) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addUnprocessed(r)
}

// Empty reports whether the unprocessed set has nothing left to fetch.
func (l *Layout) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.unprocessed) == 0
}

// AdvanceLeft lowers L to bottom and updates LParentHash once a staged
// chunk has been merged into the right linked run ending at F (spec.md §4.5
// "Process": "the whole chunk is persisted... L is lowered to chunk
// bottom").
func (l *Layout) AdvanceLeft(bottom uint64, parentHash common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.L, l.LParentHash = bottom, parentHash
}

// AdvanceB raises B once headers up to that number have been durably
// persisted by the importer — the header-sync-complete boundary (spec.md
// §4.5: "Header sync relatively complete when B == L").
func (l *Layout) AdvanceB(top uint64, hash common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.B, l.BHash = top, hash
}

// HeaderSyncComplete reports B == L (spec.md §4.5 termination condition 1).
func (l *Layout) HeaderSyncComplete() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.B == l.L
}

// Snapshot returns a value copy of the layout fields for read-only
// inspection (metrics, tests) without holding the lock.
type Snapshot struct {
	G, B, L, F uint64
}

func (l *Layout) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{G: l.G, B: l.B, L: l.L, F: l.F}
}
