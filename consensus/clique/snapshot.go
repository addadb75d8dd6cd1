// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package clique

import (
	"bytes"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/clique-core/poachain/chainerr"
	"github.com/clique-core/poachain/core/rawdb"
	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// Vote represents a single block's vote, used to build the history of votes
// tallied by a snapshot (spec.md §4.2 "auth/drop ballot").
type Vote struct {
	Signer    common.Address `json:"signer"`
	Block     uint64         `json:"block"`
	Address   common.Address `json:"address"`
	Authorize bool           `json:"authorize"`
}

// Tally is the running vote count for a single address under consideration.
type Tally struct {
	Authorize bool `json:"authorize"`
	Votes     int  `json:"votes"`
}

// Snapshot is the state of the authorization voting at a given point in time
// (spec.md §4.2): the current signer set, the recently-signed window and the
// pending ballot. It is immutable; apply returns a new snapshot rather than
// mutating the receiver.
type Snapshot struct {
	config   *params.CliqueConfig
	sigcache *lru.ARCCache

	Number  uint64                      `json:"number"`
	Hash    common.Hash                 `json:"hash"`
	Signers map[common.Address]struct{} `json:"signers"`
	Recents map[uint64]common.Address   `json:"recents"`
	Votes   []*Vote                     `json:"votes"`
	Tally   map[common.Address]Tally    `json:"tally"`
}

// newSnapshot creates a brand-new snapshot from a given genesis-block
// checkpoint: no votes, no recent signers, just the initial signer set.
func newSnapshot(config *params.CliqueConfig, sigcache *lru.ARCCache, number uint64, hash common.Hash, signers []common.Address) *Snapshot {
	snap := &Snapshot{
		config:   config,
		sigcache: sigcache,
		Number:   number,
		Hash:     hash,
		Signers:  make(map[common.Address]struct{}),
		Recents:  make(map[uint64]common.Address),
		Tally:    make(map[common.Address]Tally),
	}
	for _, signer := range signers {
		snap.Signers[signer] = struct{}{}
	}
	return snap
}

// loadSnapshot loads an existing snapshot from the on-disk checkpoint store.
func loadSnapshot(config *params.CliqueConfig, sigcache *lru.ARCCache, db ethdb.Database, hash common.Hash) (*Snapshot, error) {
	blob, err := db.Get(rawdb.CliqueSnapshotKey(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrSnapshotLoad, err)
	}
	snap := new(Snapshot)
	if err := json.Unmarshal(blob, snap); err != nil {
		return nil, fmt.Errorf("%w: %v", chainerr.ErrSnapshotLoad, err)
	}
	snap.config = config
	snap.sigcache = sigcache
	return snap, nil
}

// store writes the snapshot to the on-disk checkpoint store, keyed by its
// own block hash. Any failure is wrapped in ErrSnapshotStore; Clique.snapshot
// logs such a failure and carries on with the in-memory snapshot
// (SPEC_FULL.md Open Question (c)).
func (s *Snapshot) store(db ethdb.Database) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", chainerr.ErrSnapshotStore, err)
	}
	if err := db.Put(rawdb.CliqueSnapshotKey(s.Hash), blob); err != nil {
		return fmt.Errorf("%w: %v", chainerr.ErrSnapshotStore, err)
	}
	return nil
}

// copy duplicates the snapshot, creating a fully independent copy so apply
// can mutate the scratch copy without disturbing the cached one (the
// importer's rollback does not copy snapshots: SnapshotCheckpoint and
// SnapshotRestore evict the cache entries a failed batch added).
func (s *Snapshot) copy() *Snapshot {
	cpy := &Snapshot{
		config:   s.config,
		sigcache: s.sigcache,
		Number:   s.Number,
		Hash:     s.Hash,
		Signers:  make(map[common.Address]struct{}, len(s.Signers)),
		Recents:  make(map[uint64]common.Address, len(s.Recents)),
		Votes:    make([]*Vote, len(s.Votes)),
		Tally:    make(map[common.Address]Tally, len(s.Tally)),
	}
	for signer := range s.Signers {
		cpy.Signers[signer] = struct{}{}
	}
	for block, signer := range s.Recents {
		cpy.Recents[block] = signer
	}
	for address, tally := range s.Tally {
		cpy.Tally[address] = tally
	}
	copy(cpy.Votes, s.Votes)
	return cpy
}

// validVote reports whether casting a vote of the given authorization for
// address makes sense against the current signer set: you can only
// propose authorizing a non-signer, or dropping an existing signer.
func (s *Snapshot) validVote(address common.Address, authorize bool) bool {
	_, signer := s.Signers[address]
	return (signer && !authorize) || (!signer && authorize)
}

// cast adds a new vote into the tally. It does not look at earlier votes by
// the same signer; apply uncasts those before calling it (spec.md §4.2:
// "one standing ballot per (signer, target) pair").
func (s *Snapshot) cast(address common.Address, authorize bool) bool {
	if !s.validVote(address, authorize) {
		return false
	}
	if old, ok := s.Tally[address]; ok {
		old.Votes++
		s.Tally[address] = old
	} else {
		s.Tally[address] = Tally{Authorize: authorize, Votes: 1}
	}
	return true
}

// uncast removes a previously cast vote from the tally.
func (s *Snapshot) uncast(address common.Address, authorize bool) bool {
	tally, ok := s.Tally[address]
	if !ok {
		return false
	}
	if tally.Authorize != authorize {
		return false
	}
	if tally.Votes <= 1 {
		delete(s.Tally, address)
	} else {
		tally.Votes--
		s.Tally[address] = tally
	}
	return true
}

// apply creates a new authorization snapshot by applying the given headers
// to the original one (spec.md §4.2's vote-tallying state machine). Headers
// must be given in ascending order directly following the snapshot's block.
func (s *Snapshot) apply(headers []*types.Header) (*Snapshot, error) {
	if len(headers) == 0 {
		return s, nil
	}
	for i := 0; i < len(headers)-1; i++ {
		if headers[i+1].NumberU64() != headers[i].NumberU64()+1 {
			return nil, fmt.Errorf("%w: non-contiguous headers passed to apply", chainerr.ErrValidation)
		}
	}
	if headers[0].NumberU64() != s.Number+1 {
		return nil, fmt.Errorf("%w: headers do not attach to snapshot", chainerr.ErrValidation)
	}
	snap := s.copy()

	for _, header := range headers {
		number := header.NumberU64()

		// Epoch-boundary blocks flush the ballot: every standing vote and
		// tally is dropped before this header's own vote (if any) is
		// considered.
		if number%s.config.Epoch == 0 {
			snap.Votes = nil
			snap.Tally = make(map[common.Address]Tally)
		}

		// Delete the oldest signer from the recent signers set to allow it
		// signing again — the window is floor(signers/2)+1 long.
		if limit := uint64(len(snap.Signers)/2 + 1); number >= limit {
			delete(snap.Recents, number-limit)
		}
		// Resolve the authorization key and check it signed correctly.
		signer, err := ecrecover(header, snap.sigcache)
		if err != nil {
			return nil, err
		}
		if _, ok := snap.Signers[signer]; !ok {
			return nil, fmt.Errorf("%w: %x", chainerr.ErrUnauthorizedSigner, signer)
		}
		for _, recent := range snap.Recents {
			if recent == signer {
				return nil, fmt.Errorf("%w: %x at block %d", chainerr.ErrRecentlySigned, signer, number)
			}
		}
		snap.Recents[number] = signer

		// Tally up the new vote. Checkpoint headers (whose extraData carries
		// the full signer list) and headers with a zero coinbase cast no vote.
		if number%s.config.Epoch != 0 && header.Coinbase != (common.Address{}) {
			// Discard any previous vote cast by this signer on this target
			// before tallying the new one (spec.md §4.2: one standing
			// ballot per signer/target pair).
			for i, vote := range snap.Votes {
				if vote.Signer == signer && vote.Address == header.Coinbase {
					snap.uncast(vote.Address, vote.Authorize)
					snap.Votes = append(snap.Votes[:i], snap.Votes[i+1:]...)
					break
				}
			}
			var authorize bool
			switch {
			case bytes.Equal(header.Nonce[:], types.NonceAuthVote[:]):
				authorize = true
			case bytes.Equal(header.Nonce[:], types.NonceDropVote[:]):
				authorize = false
			default:
				return nil, fmt.Errorf("%w: nonce %x", chainerr.ErrInvalidVote, header.Nonce)
			}
			if snap.cast(header.Coinbase, authorize) {
				snap.Votes = append(snap.Votes, &Vote{
					Signer:    signer,
					Block:     number,
					Address:   header.Coinbase,
					Authorize: authorize,
				})
			}
			// If the vote passed, update the list of signers.
			if tally := snap.Tally[header.Coinbase]; tally.Votes > len(snap.Signers)/2 {
				if tally.Authorize {
					snap.Signers[header.Coinbase] = struct{}{}
				} else {
					delete(snap.Signers, header.Coinbase)

					// Signer removed: shrink the recency window and purge it
					// of the removed signer so it can't block itself out.
					if limit := uint64(len(snap.Signers)/2 + 1); number >= limit {
						delete(snap.Recents, number-limit)
					}
					for recentNum, recentSigner := range snap.Recents {
						if recentSigner == header.Coinbase {
							delete(snap.Recents, recentNum)
						}
					}
					// Discard any pending votes targeting or cast by the
					// removed signer: its standing ballots no longer apply.
					for i := 0; i < len(snap.Votes); i++ {
						if snap.Votes[i].Signer == header.Coinbase {
							snap.uncast(snap.Votes[i].Address, snap.Votes[i].Authorize)
							snap.Votes = append(snap.Votes[:i], snap.Votes[i+1:]...)
							i--
						}
					}
				}
				delete(snap.Tally, header.Coinbase)
				for i := 0; i < len(snap.Votes); i++ {
					if snap.Votes[i].Address == header.Coinbase {
						snap.Votes = append(snap.Votes[:i], snap.Votes[i+1:]...)
						i--
					}
				}
			}
		}
	}
	snap.Number += uint64(len(headers))
	snap.Hash = headers[len(headers)-1].Hash()
	return snap, nil
}

// signers returns the signer set as a sorted slice, the canonical iteration
// order in-turn checks and the checkpoint extraData both rely on.
func (s *Snapshot) signers() []common.Address {
	out := make([]common.Address, 0, len(s.Signers))
	for signer := range s.Signers {
		out = append(out, signer)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && bytes.Compare(out[j-1][:], out[j][:]) > 0; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// inturn reports whether signer is the in-turn authority to seal block
// number, given this snapshot's signer set (spec.md §4.2: round-robin by
// sorted signer index).
func (s *Snapshot) inturn(number uint64, signer common.Address) bool {
	signers, offset := s.signers(), 0
	for offset < len(signers) && signers[offset] != signer {
		offset++
	}
	if offset == len(signers) {
		return false
	}
	return (number % uint64(len(signers))) == uint64(offset)
}
