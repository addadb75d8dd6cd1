package types

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockNonce is the 8-byte nonce field. Clique repurposes the two defined
// values as auth/drop ballots (spec.md §6); any other value is a protocol
// violation.
type BlockNonce [8]byte

func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	for i2 := 0; i2 < 8; i2++ {
		n[7-i2] = byte(i)
		i >>= 8
	}
	return n
}

func (n BlockNonce) Uint64() uint64 {
	var v uint64
	for _, b := range n {
		v = v<<8 | uint64(b)
	}
	return v
}

var (
	// NonceAuthVote / NonceDropVote are the two nonce values Clique
	// recognises as auth/drop ballots (spec.md §6).
	NonceAuthVote = BlockNonce{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	NonceDropVote = BlockNonce{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	// EmptyRootHash is keccak(rlp("")), the root of a trie with no entries.
	EmptyRootHash = common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
	// EmptyUncleHash is keccak(rlp([])), the ommers hash of an uncle-less block.
	EmptyUncleHash = common.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")
)

// Header is the canonical Ethereum block header (spec.md §3). Every
// consensus/executor invariant keys off these fields; the RLP codec and
// Keccak hashing are delegated to the out-of-scope rlp/crypto collaborators.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	UncleHash   common.Hash    `json:"sha3Uncles"`
	Coinbase    common.Address `json:"miner"`
	Root        common.Hash    `json:"stateRoot"`
	TxHash      common.Hash    `json:"transactionsRoot"`
	ReceiptHash common.Hash    `json:"receiptsRoot"`
	Bloom       Bloom          `json:"logsBloom"`
	Difficulty  *big.Int       `json:"difficulty"`
	Number      *big.Int       `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	Extra       []byte         `json:"extraData"`
	MixDigest   common.Hash    `json:"mixHash"`
	Nonce       BlockNonce     `json:"nonce"`

	// BaseFee is non-nil from the London fork onward (EIP-1559).
	BaseFee *big.Int `json:"baseFeePerGas" rlp:"optional"`

	// WithdrawalsHash is non-nil from the Shanghai-equivalent fork onward.
	// PoA chains in this module never populate withdrawals; the field is
	// carried purely so the header codec round-trips post-merge headers.
	WithdrawalsHash *common.Hash `json:"withdrawalsRoot" rlp:"optional"`
}

// extHeader mirrors Header exactly but is the RLP wire shape: an optional
// trailing field is encoded when it or any field after it is non-nil, per
// the standard go-ethereum header RLP convention.
type extHeader struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       BlockNonce
	BaseFee     *big.Int        `rlp:"optional"`
	Withdrawals *common.Hash    `rlp:"optional"`
}

func (h *Header) toExt() *extHeader {
	return &extHeader{
		ParentHash: h.ParentHash, UncleHash: h.UncleHash, Coinbase: h.Coinbase,
		Root: h.Root, TxHash: h.TxHash, ReceiptHash: h.ReceiptHash, Bloom: h.Bloom,
		Difficulty: h.Difficulty, Number: h.Number, GasLimit: h.GasLimit, GasUsed: h.GasUsed,
		Time: h.Time, Extra: h.Extra, MixDigest: h.MixDigest, Nonce: h.Nonce,
		BaseFee: h.BaseFee, Withdrawals: h.WithdrawalsHash,
	}
}

// EncodeRLP implements rlp.Encoder.
func (h *Header) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, h.toExt())
}

// bytesRLP is the byte-slice form of the header encoding, used by Hash.
// The Clique seal hash does not use it; it builds its own encoding with the
// seal stripped.
func (h *Header) bytesRLP() []byte {
	enc, err := rlp.EncodeToBytes(h.toExt())
	if err != nil {
		panic(err) // header fields are always RLP-encodable; a failure is a bug
	}
	return enc
}

// Hash returns block_hash = keccak(rlp(header)) (spec.md §3 invariant).
func (h *Header) Hash() common.Hash {
	return crypto.Keccak256Hash(h.bytesRLP())
}

// CopyHeader returns a deep copy, used by Block's constructors and Header
// accessor and by tests.
func CopyHeader(h *Header) *Header {
	cpy := *h
	if h.Difficulty != nil {
		cpy.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = common.CopyBytes(h.Extra)
	}
	if h.WithdrawalsHash != nil {
		w := *h.WithdrawalsHash
		cpy.WithdrawalsHash = &w
	}
	return &cpy
}

// NumberU64 is a convenience accessor used pervasively by the Clique
// snapshot engine and the syncer, which only deal in uint64 block numbers.
func (h *Header) NumberU64() uint64 { return h.Number.Uint64() }
