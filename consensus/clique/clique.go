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

// Package clique implements the EIP-225 proof-of-authority consensus
// engine (spec.md §4.2, §4.4).
package clique

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/clique-core/poachain/chainerr"
	"github.com/clique-core/poachain/consensus"
	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

const (
	checkpointInterval = 1024 // store a snapshot checkpoint every this many blocks, regardless of epoch
	inmemorySnapshots  = 128  // number of recent snapshots kept in the LRU cache
	inmemorySignatures = 4096 // number of recent block signatures kept in the LRU cache
)

var (
	extraVanity = 32 // fixed number of leading extraData bytes reserved for the signer vanity
	extraSeal   = 65 // fixed number of trailing extraData bytes reserved for the signer seal

	diffInTurn = big.NewInt(2) // block difficulty for the in-turn signer
	diffNoTurn = big.NewInt(1) // block difficulty for out-of-turn signers

	errMissingVanity            = errors.New("extra-data 32 byte vanity prefix missing")
	errMissingSignature         = errors.New("extra-data 65 byte signature suffix missing")
	errExtraSigners             = errors.New("non-checkpoint block contains extra signer list")
	errInvalidCheckpointSigners = fmt.Errorf("%w", chainerr.ErrInvalidCheckpointSigners)
	errInvalidMixDigest         = errors.New("non-zero mix digest")
	errInvalidUncleHash         = errors.New("non empty uncle hash")
	errInvalidDifficulty        = errors.New("invalid difficulty")
	errWrongDifficulty          = errors.New("wrong difficulty")
	errUnauthorizedSigner       = fmt.Errorf("%w", chainerr.ErrUnauthorizedSigner)
	errRecentlySigned           = fmt.Errorf("%w", chainerr.ErrRecentlySigned)
	errInvalidVotingChain       = fmt.Errorf("%w", chainerr.ErrInvalidVotingChain)
)

// SealHash returns the hash of a block prior to it being sealed: the
// signature preimage every signer computes and every verifier re-derives
// (spec.md §4.2 sig_hash). The last extraSeal bytes of extraData (the seal
// itself) are excluded.
func SealHash(header *types.Header) common.Hash {
	return sigHash(header)
}

func sigHash(header *types.Header) (hash common.Hash) {
	hasher := crypto.NewKeccakState()

	enc := []interface{}{
		header.ParentHash,
		header.Coinbase,
		header.Root,
		header.TxHash,
		header.ReceiptHash,
		header.Bloom,
		header.Difficulty,
		header.Number,
		header.GasLimit,
		header.GasUsed,
		header.Time,
		header.Extra[:len(header.Extra)-extraSeal], // exclude the seal itself
		header.MixDigest,
		header.Nonce,
	}
	rlp.Encode(hasher, enc)
	hasher.Read(hash[:])
	return hash
}

// ecrecover recovers the Ethereum address sealing a header, using a
// signature LRU cache to skip the elliptic-curve recovery on a cache hit
// (spec.md §4.4: the signer-recovery cache keeps VerifyHeader cheap on a
// long replay).
func ecrecover(header *types.Header, sigcache *lru.ARCCache) (common.Address, error) {
	hash := header.Hash()
	if address, known := sigcache.Get(hash); known {
		return address.(common.Address), nil
	}
	if len(header.Extra) < extraSeal {
		return common.Address{}, fmt.Errorf("%w: %v", chainerr.ErrValidation, errMissingSignature)
	}
	signature := header.Extra[len(header.Extra)-extraSeal:]

	pubkey, err := crypto.Ecrecover(sigHash(header).Bytes(), signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", chainerr.ErrUnauthorizedSigner, err)
	}
	var signer common.Address
	copy(signer[:], crypto.Keccak256(pubkey[1:])[12:])

	sigcache.Add(hash, signer)
	return signer, nil
}

// Clique is the proof-of-authority consensus engine (spec.md §4.2).
type Clique struct {
	config *params.CliqueConfig
	db     ethdb.Database

	recents    *lru.ARCCache // block-hash -> *Snapshot, avoids rebuilding from the ancestry every time
	signatures *lru.ARCCache // block-hash -> signer address, avoids re-running ecrecover

	proposalsLock sync.Mutex
	proposals     map[common.Address]bool // current running proposals this node intends to vote on
}

// New creates a Clique proof-of-authority consensus engine with the
// initial signers set from config.
func New(config *params.CliqueConfig, db ethdb.Database) *Clique {
	conf := *config
	if conf.Epoch == 0 {
		conf.Epoch = 30000
	}
	recents, _ := lru.NewARC(inmemorySnapshots)
	signatures, _ := lru.NewARC(inmemorySignatures)

	return &Clique{
		config:     &conf,
		db:         db,
		recents:    recents,
		signatures: signatures,
		proposals:  make(map[common.Address]bool),
	}
}

// Author implements consensus.Engine, returning the header's signer.
func (c *Clique) Author(header *types.Header) (common.Address, error) {
	return ecrecover(header, c.signatures)
}

// VerifyHeader checks a header's seal and consensus fields (spec.md §4.2,
// §4.4): extraData shape, difficulty, signer authorization, recently-signed
// window and checkpoint signer lists.
func (c *Clique) VerifyHeader(chain consensus.ChainHeaderReader, header *types.Header, parents []*types.Header) error {
	if header.Number == nil {
		return fmt.Errorf("%w: unknown block number", chainerr.ErrValidation)
	}
	number := header.NumberU64()
	checkpoint := number%c.config.Epoch == 0

	signersBytes := len(header.Extra) - extraVanity - extraSeal
	if !checkpoint && signersBytes != 0 {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errExtraSigners)
	}
	if checkpoint && signersBytes%common.AddressLength != 0 {
		return errInvalidCheckpointSigners
	}
	if len(header.Extra) < extraVanity {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errMissingVanity)
	}
	if len(header.Extra) < extraVanity+extraSeal {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errMissingSignature)
	}
	if header.MixDigest != (common.Hash{}) {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errInvalidMixDigest)
	}
	if number > 0 {
		if header.Difficulty == nil || (header.Difficulty.Cmp(diffInTurn) != 0 && header.Difficulty.Cmp(diffNoTurn) != 0) {
			return fmt.Errorf("%w: %v", chainerr.ErrValidation, errInvalidDifficulty)
		}
	}
	return c.verifyCascadingFields(chain, header, parents)
}

// verifyCascadingFields checks fields that depend on a header's ancestry:
// timestamp spacing and, for checkpoint blocks, the republished signer
// list matching the snapshot's view.
func (c *Clique) verifyCascadingFields(chain consensus.ChainHeaderReader, header *types.Header, parents []*types.Header) error {
	number := header.NumberU64()
	if number == 0 {
		return nil
	}
	var parent *types.Header
	if len(parents) > 0 {
		parent = parents[len(parents)-1]
	} else {
		parent = chain.GetHeader(header.ParentHash, number-1)
	}
	if parent == nil || parent.NumberU64() != number-1 || parent.Hash() != header.ParentHash {
		return fmt.Errorf("%w", chainerr.ErrUnknownAncestor)
	}
	if parent.Time+c.config.Period > header.Time {
		return fmt.Errorf("%w: block sealed ahead of period", chainerr.ErrValidation)
	}
	snap, err := c.snapshot(chain, number-1, header.ParentHash, parents)
	if err != nil {
		return err
	}
	if checkpoint := number%c.config.Epoch == 0; checkpoint {
		signers := make([]byte, 0, len(snap.Signers)*common.AddressLength)
		for _, signer := range snap.signers() {
			signers = append(signers, signer[:]...)
		}
		extraSuffix := len(header.Extra) - extraSeal
		if !bytes.Equal(header.Extra[extraVanity:extraSuffix], signers) {
			return errInvalidCheckpointSigners
		}
	}
	return c.verifySeal(snap, header, parents)
}

// verifySeal checks that the header's signer is authorized and respects the
// recently-signed spam-protection window (spec.md §4.2).
func (c *Clique) verifySeal(snap *Snapshot, header *types.Header, parents []*types.Header) error {
	number := header.NumberU64()
	if number == 0 {
		return nil
	}
	signer, err := ecrecover(header, c.signatures)
	if err != nil {
		return err
	}
	if _, ok := snap.Signers[signer]; !ok {
		return fmt.Errorf("%w: %x", chainerr.ErrUnauthorizedSigner, signer)
	}
	for seen, recent := range snap.Recents {
		if recent == signer {
			if limit := uint64(len(snap.Signers)/2 + 1); number < limit || seen > number-limit {
				return fmt.Errorf("%w: %x at block %d", chainerr.ErrRecentlySigned, signer, number)
			}
		}
	}
	inturn := snap.inturn(header.NumberU64(), signer)
	if inturn && header.Difficulty.Cmp(diffInTurn) != 0 {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errWrongDifficulty)
	}
	if !inturn && header.Difficulty.Cmp(diffNoTurn) != 0 {
		return fmt.Errorf("%w: %v", chainerr.ErrValidation, errWrongDifficulty)
	}
	return nil
}

// snapshot retrieves the authorization snapshot active at (number, hash),
// walking backwards through in-memory cache, on-disk checkpoints, the
// genesis checkpoint, and finally any in-flight parents, then replaying
// forward (spec.md §4.2).
func (c *Clique) snapshot(chain consensus.ChainHeaderReader, number uint64, hash common.Hash, parents []*types.Header) (*Snapshot, error) {
	var (
		headers []*types.Header
		snap    *Snapshot
	)
	for snap == nil {
		if s, ok := c.recents.Get(hash); ok {
			snap = s.(*Snapshot)
			break
		}
		if number%checkpointInterval == 0 {
			if s, err := loadSnapshot(c.config, c.signatures, c.db, hash); err == nil {
				log.Trace("Loaded voting snapshot from disk", "number", number, "hash", hash)
				snap = s
				break
			}
		}
		if number == 0 {
			genesis := chain.GetHeaderByNumber(0)
			if genesis == nil {
				return nil, fmt.Errorf("%w: missing genesis header", chainerr.ErrUnknownAncestor)
			}
			signersBytes := len(genesis.Extra) - extraVanity - extraSeal
			signers := make([]common.Address, signersBytes/common.AddressLength)
			for i := 0; i < len(signers); i++ {
				copy(signers[i][:], genesis.Extra[extraVanity+i*common.AddressLength:])
			}
			snap = newSnapshot(c.config, c.signatures, 0, genesis.Hash(), signers)
			if err := snap.store(c.db); err != nil {
				log.Warn("Failed to store genesis voting snapshot", "err", err)
			}
			break
		}
		var header *types.Header
		if len(parents) > 0 {
			header = parents[len(parents)-1]
			if header.Hash() != hash || header.NumberU64() != number {
				return nil, fmt.Errorf("%w", chainerr.ErrUnknownAncestor)
			}
			parents = parents[:len(parents)-1]
		} else {
			header = chain.GetHeader(hash, number)
			if header == nil {
				return nil, fmt.Errorf("%w", chainerr.ErrUnknownAncestor)
			}
		}
		headers = append(headers, header)
		number, hash = number-1, header.ParentHash
	}
	for i, j := 0, len(headers)-1; i < j; i, j = i+1, j-1 {
		headers[i], headers[j] = headers[j], headers[i]
	}
	snap, err := snap.apply(headers)
	if err != nil {
		return nil, err
	}
	c.recents.Add(snap.Hash, snap)

	if snap.Number%checkpointInterval == 0 && len(headers) > 0 {
		if err := snap.store(c.db); err != nil {
			log.Warn("Failed to store voting snapshot", "number", snap.Number, "hash", snap.Hash, "err", err)
		} else {
			log.Trace("Stored voting snapshot to disk", "number", snap.Number, "hash", snap.Hash)
		}
	}
	return snap, nil
}

// Prepare fills the consensus fields of a header being assembled for
// sealing: difficulty (in/out-of-turn per the active snapshot) and any
// standing proposal to fold into this block's vote.
func (c *Clique) Prepare(chain consensus.ChainHeaderReader, header *types.Header) error {
	header.Nonce = types.BlockNonce{}

	number := header.NumberU64()
	snap, err := c.snapshot(chain, number-1, header.ParentHash, nil)
	if err != nil {
		return err
	}
	c.proposalsLock.Lock()
	if number%c.config.Epoch != 0 {
		addresses := make([]common.Address, 0, len(c.proposals))
		for address := range c.proposals {
			addresses = append(addresses, address)
		}
		if len(addresses) > 0 {
			header.Coinbase = addresses[0]
			if c.proposals[addresses[0]] {
				header.Nonce = types.NonceAuthVote
			} else {
				header.Nonce = types.NonceDropVote
			}
		}
	}
	c.proposalsLock.Unlock()

	if snap.inturn(number, header.Coinbase) {
		header.Difficulty = new(big.Int).Set(diffInTurn)
	} else {
		header.Difficulty = new(big.Int).Set(diffNoTurn)
	}
	if len(header.Extra) < extraVanity {
		header.Extra = append(header.Extra, bytes.Repeat([]byte{0x00}, extraVanity-len(header.Extra))...)
	}
	header.Extra = header.Extra[:extraVanity]

	if number%c.config.Epoch == 0 {
		for _, signer := range snap.signers() {
			header.Extra = append(header.Extra, signer[:]...)
		}
	}
	header.Extra = append(header.Extra, make([]byte, extraSeal)...)
	header.MixDigest = common.Hash{}
	return nil
}

// Finalize advances the engine's snapshot state to reflect header having
// been imported, by forcing it through the cache (spec.md §4.2's snapshot
// advances as part of block import, not as a separate step).
func (c *Clique) Finalize(chain consensus.ChainHeaderReader, header *types.Header) error {
	_, err := c.snapshot(chain, header.NumberU64(), header.Hash(), nil)
	return err
}

// InTurn reports whether signer is the in-turn authority for number, per
// the snapshot active at that point (spec.md §4.2).
func (c *Clique) InTurn(chain consensus.ChainHeaderReader, number uint64, signer common.Address) bool {
	parent := chain.GetHeaderByNumber(number - 1)
	if parent == nil {
		return false
	}
	snap, err := c.snapshot(chain, parent.NumberU64(), parent.Hash(), nil)
	if err != nil {
		return false
	}
	return snap.inturn(number, signer)
}

// snapshotCheckpoint is the opaque token SnapshotCheckpoint/SnapshotRestore
// pass between themselves: the set of snapshot-cache keys that existed
// before a batch began (spec.md §4.4: "a per-batch save/restore mechanism
// lets the importer roll back snapshot mutations if the batch aborts").
// Computing a snapshot for a new header always keys it by that header's own
// (as yet unused) hash, so nothing needs deep-copying — rollback only has
// to evict the cache entries a failed batch added.
type snapshotCheckpoint struct {
	keys map[interface{}]struct{}
}

// SnapshotCheckpoint records the engine's current snapshot-cache contents.
func (c *Clique) SnapshotCheckpoint() snapshotCheckpoint {
	keys := c.recents.Keys()
	cp := snapshotCheckpoint{keys: make(map[interface{}]struct{}, len(keys))}
	for _, k := range keys {
		cp.keys[k] = struct{}{}
	}
	return cp
}

// SnapshotRestore evicts every snapshot-cache entry added since cp was
// taken, undoing a failed batch's advancement of the Clique state machine.
func (c *Clique) SnapshotRestore(cp snapshotCheckpoint) {
	for _, k := range c.recents.Keys() {
		if _, ok := cp.keys[k]; !ok {
			c.recents.Remove(k)
		}
	}
}

// Close does nothing: Clique holds no background resources beyond its two
// in-memory LRU caches, and it keeps them as they are. It exists for the
// consensus.Engine contract.
func (c *Clique) Close() error { return nil }

// Propose registers a standing ballot for address that this node casts on
// the blocks it prepares: an authorize vote when auth is true, a drop vote
// when it is false. A later call for the same address replaces the earlier
// ballot; no call removes one. Not part of consensus.Engine;
// only the node's own sealing path uses it.
func (c *Clique) Propose(address common.Address, auth bool) {
	c.proposalsLock.Lock()
	defer c.proposalsLock.Unlock()
	c.proposals[address] = auth
}

// Discard removes a standing proposal for address, if any.
func (c *Clique) Discard(address common.Address) {
	c.proposalsLock.Lock()
	defer c.proposalsLock.Unlock()
	delete(c.proposals, address)
}
