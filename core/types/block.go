package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Body is the ordered transaction list plus the (always-empty under PoA)
// uncle list (spec.md §3).
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
}

// Block couples a header with its body. The hash is cached on first use:
// headers are immutable once sealed, so repeated hashing would otherwise be
// wasted work on the syncer's hot path.
type Block struct {
	header *Header
	txs    []*Transaction
	uncles []*Header

	hash *common.Hash
}

func NewBlockWithHeader(h *Header) *Block {
	return &Block{header: CopyHeader(h)}
}

// WithBody returns a new block sharing the header but with the given body.
func (b *Block) WithBody(txs []*Transaction, uncles []*Header) *Block {
	return &Block{header: b.header, txs: txs, uncles: uncles}
}

// WithSeal returns a new block with a replaced header — used by block
// generation helpers once a seal signature has been embedded in extraData.
func (b *Block) WithSeal(h *Header) *Block {
	return &Block{header: CopyHeader(h), txs: b.txs, uncles: b.uncles}
}

func (b *Block) Header() *Header   { return CopyHeader(b.header) }
func (b *Block) Number() *big.Int  { return b.header.Number }
func (b *Block) NumberU64() uint64 { return b.header.NumberU64() }
func (b *Block) Difficulty() *big.Int { return b.header.Difficulty }
func (b *Block) Time() uint64      { return b.header.Time }
func (b *Block) ParentHash() common.Hash { return b.header.ParentHash }
func (b *Block) Root() common.Hash { return b.header.Root }
func (b *Block) Extra() []byte     { return b.header.Extra }
func (b *Block) Transactions() []*Transaction { return b.txs }
func (b *Block) Uncles() []*Header { return b.uncles }
func (b *Block) Coinbase() common.Address { return b.header.Coinbase }

func (b *Block) Body() *Body { return &Body{Transactions: b.txs, Uncles: b.uncles} }

func (b *Block) Hash() common.Hash {
	if b.hash != nil {
		return *b.hash
	}
	h := b.header.Hash()
	b.hash = &h
	return h
}
