package downloader

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/chainerr"
	"github.com/clique-core/poachain/core/types"
)

// LinkedHChain is a staged, reverse-ordered run of contiguous headers
// (spec.md §3): Headers[0] has the largest number, each adjacent pair
// satisfies Headers[i].ParentHash == keccak(Headers[i+1]), and ParentHash
// is the bottom header's own parent hash — the hash the chunk must attach
// to in order to merge into the right linked run ending at F.
type LinkedHChain struct {
	TopHash    common.Hash
	Headers    []*types.Header // reverse order: Headers[0] is the top
	ParentHash common.Hash

	// bodies mirrors Headers, same order, filled in once the syncer has
	// fetched the matching block bodies.
	bodies []*types.Body
	// peerID identifies the peer this chunk was fetched from, for the
	// importer's zombie/backtrack bookkeeping (spec.md §4.4).
	peerID string
}

// newLinkedHChain validates and wraps a batch of headers returned by a
// peer. headers must already be in descending-number order (as a lead-peer
// reply naturally is) or ascending (trailing-peer replies by number); both
// shapes are normalized to the reverse (descending) storage order.
func newLinkedHChain(headers []*types.Header) (*LinkedHChain, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: empty header batch", chainerr.ErrValidation)
	}
	ordered := make([]*types.Header, len(headers))
	copy(ordered, headers)
	if ordered[0].NumberU64() < ordered[len(ordered)-1].NumberU64() {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	for i := 0; i < len(ordered)-1; i++ {
		if ordered[i].NumberU64() != ordered[i+1].NumberU64()+1 {
			return nil, fmt.Errorf("%w: non-contiguous header batch", chainerr.ErrValidation)
		}
		if ordered[i].ParentHash != ordered[i+1].Hash() {
			return nil, fmt.Errorf("%w: parent hash mismatch at block %d", chainerr.ErrValidation, ordered[i].NumberU64())
		}
	}
	return &LinkedHChain{
		TopHash:    ordered[0].Hash(),
		Headers:    ordered,
		ParentHash: ordered[len(ordered)-1].ParentHash,
	}, nil
}

// Top returns the chunk's highest block number.
func (c *LinkedHChain) Top() uint64 { return c.Headers[0].NumberU64() }

// Bottom returns the chunk's lowest block number.
func (c *LinkedHChain) Bottom() uint64 { return c.Headers[len(c.Headers)-1].NumberU64() }
