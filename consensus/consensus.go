// Package consensus defines the Engine boundary shared by the Clique PoA
// implementation and (hypothetically) a PoW engine: header sealing rules,
// signer-in-turn policy and snapshot advancement (spec.md §4.2, §4.6).
package consensus

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// ChainHeaderReader is the read-only slice of chain state an Engine needs to
// verify headers and rebuild snapshots: looking up ancestors and the
// genesis/chain configuration. It is satisfied by the importer's chain view
// and by lightweight test doubles (mirrors the teacher's
// consensus/clique/snapshot_test.go testerChainReader).
type ChainHeaderReader interface {
	Config() *params.ChainConfig
	CurrentHeader() *types.Header
	GetHeader(hash common.Hash, number uint64) *types.Header
	GetHeaderByHash(hash common.Hash) *types.Header
	GetHeaderByNumber(number uint64) *types.Header
}

// Engine is the consensus boundary the importer drives per header
// (spec.md §4.2, §4.4).
type Engine interface {
	// Author recovers the address that sealed the given header.
	Author(header *types.Header) (common.Address, error)

	// VerifyHeader checks a header's seal and consensus fields against its
	// parent(s); parents, if non-empty, are the as-yet-unpersisted
	// ancestors of header within the same import batch.
	VerifyHeader(chain ChainHeaderReader, header *types.Header, parents []*types.Header) error

	// Prepare initializes the consensus fields (difficulty, etc.) of a
	// header being assembled for sealing. Out of this module's executor
	// path, but part of the Engine contract for completeness.
	Prepare(chain ChainHeaderReader, header *types.Header) error

	// Finalize advances the engine's per-chain state (the Clique
	// snapshot) to account for the header having been imported.
	Finalize(chain ChainHeaderReader, header *types.Header) error

	// InTurn reports whether signer is the in-turn sealer for number under
	// the snapshot active at that point in the chain (spec.md §4.2).
	InTurn(chain ChainHeaderReader, number uint64, signer common.Address) bool

	// Close releases any resources (LRU caches etc.) held by the engine.
	Close() error
}
