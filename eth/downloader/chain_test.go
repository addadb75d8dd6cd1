package downloader

import (
	"math/big"
	"testing"

	"github.com/clique-core/poachain/core/types"
)

// buildHeaderChain returns n headers numbered 1..n, each correctly pointing
// at its predecessor's hash, in ascending order.
func buildHeaderChain(n int) []*types.Header {
	headers := make([]*types.Header, n)
	parent := types.Header{Number: big.NewInt(0), Difficulty: big.NewInt(0)}
	for i := 0; i < n; i++ {
		h := &types.Header{
			Number:     big.NewInt(int64(i + 1)),
			Difficulty: big.NewInt(1),
			ParentHash: parent.Hash(),
			Extra:      []byte{byte(i)},
		}
		headers[i] = h
		parent = *h
	}
	return headers
}

func TestNewLinkedHChainNormalizesAscendingInput(t *testing.T) {
	asc := buildHeaderChain(5)
	chunk, err := newLinkedHChain(asc)
	if err != nil {
		t.Fatalf("newLinkedHChain failed: %v", err)
	}
	if chunk.Top() != 5 || chunk.Bottom() != 1 {
		t.Fatalf("Top/Bottom = %d/%d, want 5/1", chunk.Top(), chunk.Bottom())
	}
	if chunk.Headers[0].NumberU64() != 5 {
		t.Error("expected Headers[0] to be the highest-numbered header")
	}
	if chunk.ParentHash != asc[0].ParentHash {
		t.Error("ParentHash should be the bottom header's own parent hash")
	}
}

func TestNewLinkedHChainAcceptsDescendingInput(t *testing.T) {
	asc := buildHeaderChain(3)
	desc := []*types.Header{asc[2], asc[1], asc[0]}

	chunk, err := newLinkedHChain(desc)
	if err != nil {
		t.Fatalf("newLinkedHChain failed: %v", err)
	}
	if chunk.Top() != 3 || chunk.Bottom() != 1 {
		t.Fatalf("Top/Bottom = %d/%d, want 3/1", chunk.Top(), chunk.Bottom())
	}
}

func TestNewLinkedHChainRejectsEmptyBatch(t *testing.T) {
	if _, err := newLinkedHChain(nil); err == nil {
		t.Fatal("expected an error for an empty header batch")
	}
}

func TestNewLinkedHChainRejectsNonContiguousNumbers(t *testing.T) {
	asc := buildHeaderChain(3)
	asc[1].Number = big.NewInt(10) // breaks the number-contiguity check
	if _, err := newLinkedHChain(asc); err == nil {
		t.Fatal("expected an error for a gap in block numbers")
	}
}

func TestNewLinkedHChainRejectsBrokenParentHash(t *testing.T) {
	asc := buildHeaderChain(3)
	asc[1].ParentHash[0] ^= 0xFF // breaks the hash-chain link
	if _, err := newLinkedHChain(asc); err == nil {
		t.Fatal("expected an error for a parent-hash mismatch")
	}
}
