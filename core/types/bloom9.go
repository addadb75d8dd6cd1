package types

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// BloomByteLength is the fixed 256-byte width of a header's logsBloom field.
const BloomByteLength = 256

// Bloom is the 2048-bit (256-byte) filter over an address and its logs'
// topics, assembled per block from every receipt's own bloom (spec.md §3:
// "header.bloom == OR over receipt blooms").
type Bloom [BloomByteLength]byte

func BytesToBloom(b []byte) Bloom {
	var bl Bloom
	bl.SetBytes(b)
	return bl
}

func (b *Bloom) SetBytes(d []byte) {
	if len(b) < len(d) {
		panic("bloom bytes too big")
	}
	copy(b[BloomByteLength-len(d):], d)
}

// Add folds a single log topic/address into the bloom, using the standard
// three-hash, 2048-bit scheme (EIP bloom9).
func (b *Bloom) Add(data []byte) {
	h := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(h[i+1]) + (uint(h[i]) << 8)) & 2047
		b[BloomByteLength-1-bit/8] |= 1 << (bit % 8)
	}
}

// OrBloom folds another bloom's bits into this one in place — the
// accumulation step used while assembling a block's bloom from its receipts.
func (b *Bloom) OrBloom(o Bloom) {
	for i := range b {
		b[i] |= o[i]
	}
}

func (b Bloom) Bytes() []byte { return b[:] }

func (b Bloom) Test(topic []byte) bool {
	var probe Bloom
	probe.Add(topic)
	for i := range probe {
		if probe[i]&b[i] != probe[i] {
			return false
		}
	}
	return true
}

// CreateBloom assembles a block-level bloom by OR-folding each receipt's own
// precomputed bloom; it does not re-add log addresses or topics itself. The
// executor calls this once per block (spec.md §4.3 step 9).
func CreateBloom(receipts Receipts) Bloom {
	var out Bloom
	for _, receipt := range receipts {
		out.OrBloom(receipt.Bloom)
	}
	return out
}

// LogsBloom computes the bloom for a single transaction's logs, used to
// populate Receipt.Bloom during receipt assembly.
func LogsBloom(logs []*Log) Bloom {
	var out Bloom
	for _, log := range logs {
		out.Add(log.Address.Bytes())
		for _, topic := range log.Topics {
			out.Add(topic.Bytes())
		}
	}
	return out
}
