package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testHeader() *Header {
	return &Header{
		ParentHash: common.HexToHash("0x01"),
		Coinbase:   common.HexToAddress("0x02"),
		Root:       common.HexToHash("0x03"),
		Difficulty: big.NewInt(2),
		Number:     big.NewInt(100),
		GasLimit:   8_000_000,
		GasUsed:    21_000,
		Time:       1700000000,
		Extra:      make([]byte, extraVanityForTest+65),
		Nonce:      NonceDropVote,
	}
}

const extraVanityForTest = 32

func TestBlockHashStable(t *testing.T) {
	h := testHeader()
	b := NewBlockWithHeader(h)
	if b.Hash() != b.Hash() {
		t.Error("Block.Hash is not stable across calls")
	}
	if b.Hash() != h.Hash() {
		t.Error("Block.Hash diverges from Header.Hash")
	}
}

func TestBlockWithBodyPreservesHeader(t *testing.T) {
	h := testHeader()
	base := NewBlockWithHeader(h)

	txs := genTxs(t, 3)
	uncles := []*Header{testHeader()}
	withBody := base.WithBody(txs, uncles)

	if withBody.Hash() != base.Hash() {
		t.Error("WithBody changed the block hash")
	}
	if len(withBody.Transactions()) != 3 || len(withBody.Uncles()) != 1 {
		t.Error("WithBody did not attach the given body")
	}
}

func TestBlockWithSealReplacesHeader(t *testing.T) {
	h := testHeader()
	base := NewBlockWithHeader(h)

	sealed := CopyHeader(h)
	sealed.Extra = append(sealed.Extra, 0xAB)
	resealed := base.WithSeal(sealed)

	if resealed.Hash() == base.Hash() {
		t.Error("WithSeal did not change the block hash despite a different header")
	}
}

func TestHeaderAccessorsMatchFields(t *testing.T) {
	h := testHeader()
	b := NewBlockWithHeader(h)

	if b.NumberU64() != h.Number.Uint64() {
		t.Error("NumberU64 mismatch")
	}
	if b.ParentHash() != h.ParentHash {
		t.Error("ParentHash mismatch")
	}
	if b.Coinbase() != h.Coinbase {
		t.Error("Coinbase mismatch")
	}
}
