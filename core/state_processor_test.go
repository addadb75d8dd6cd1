package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/consensus/misc"
	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// emptyBlockHeader builds a header that is internally consistent with an
// empty body run through a fakeVMState reporting root, saving every test
// from re-deriving the tx/receipt roots and bloom by hand.
func emptyBlockHeader(config *params.ChainConfig, number int64, root common.Hash) *types.Header {
	return &types.Header{
		Number:      big.NewInt(number),
		UncleHash:   types.EmptyUncleHash,
		Root:        root,
		TxHash:      types.DeriveSha(types.Transactions(nil), types.NewStackTrieHasher()),
		ReceiptHash: types.DeriveSha(types.Receipts{}, types.NewStackTrieHasher()),
		Bloom:       types.CreateBloom(types.Receipts{}),
	}
}

func TestProcessSucceedsOnEmptyBody(t *testing.T) {
	config := &params.ChainConfig{Clique: &params.CliqueConfig{Period: 1}}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	state := newFakeVMState(root)

	p := NewStateProcessor(config, nil)
	receipts, err := p.Process(state, header, &types.Body{})
	if err != nil {
		t.Fatalf("Process failed on a matching empty block: %v", err)
	}
	if len(receipts) != 0 {
		t.Errorf("len(receipts) = %d, want 0 for an empty body", len(receipts))
	}
}

func TestProcessRejectsTxHashMismatch(t *testing.T) {
	config := &params.ChainConfig{Clique: &params.CliqueConfig{Period: 1}}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	header.TxHash = common.HexToHash("0xdead")
	state := newFakeVMState(root)

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err == nil {
		t.Fatal("expected Process to reject a transactions-root mismatch")
	}
}

func TestProcessRejectsGasUsedMismatch(t *testing.T) {
	config := &params.ChainConfig{Clique: &params.CliqueConfig{Period: 1}}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	header.GasUsed = 21000 // no transactions ran, so cumulative gas used must be 0
	state := newFakeVMState(root)

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err == nil {
		t.Fatal("expected Process to reject a gas-used mismatch")
	}
}

func TestProcessRejectsStateRootMismatch(t *testing.T) {
	config := &params.ChainConfig{Clique: &params.CliqueConfig{Period: 1}}
	header := emptyBlockHeader(config, 1, common.HexToHash("0x01"))
	state := newFakeVMState(common.HexToHash("0x02")) // state disagrees with the header's Root

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err == nil {
		t.Fatal("expected Process to reject a state-root mismatch")
	}
}

func TestProcessRejectsNonEmptyUncleHashOnPoAChain(t *testing.T) {
	config := &params.ChainConfig{Clique: &params.CliqueConfig{Period: 1}}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	header.UncleHash = common.HexToHash("0xbeef") // any PoA block's uncle hash must be EmptyUncleHash
	state := newFakeVMState(root)

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err == nil {
		t.Fatal("expected Process to reject a non-empty uncle hash on a PoA chain")
	}
}

func TestProcessAppliesDAOHardForkAtForkBlock(t *testing.T) {
	config := &params.ChainConfig{
		Clique:         &params.CliqueConfig{Period: 1},
		DAOForkSupport: true,
		DAOForkBlock:   big.NewInt(1),
	}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	state := newFakeVMState(root)

	drained := misc.DAODrainList()[0]
	state.SetBalance(drained, big.NewInt(500))

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := state.GetBalance(drained); got.Sign() != 0 {
		t.Errorf("drained account balance = %v, want 0 after the DAO fork", got)
	}
	if got := state.GetBalance(misc.DAORefundContract); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("DAORefundContract balance = %v, want 500", got)
	}
}

func TestProcessDoesNotApplyDAOHardForkOffForkBlock(t *testing.T) {
	config := &params.ChainConfig{
		Clique:         &params.CliqueConfig{Period: 1},
		DAOForkSupport: true,
		DAOForkBlock:   big.NewInt(2),
	}
	root := common.HexToHash("0x01")
	header := emptyBlockHeader(config, 1, root)
	state := newFakeVMState(root)

	drained := misc.DAODrainList()[0]
	state.SetBalance(drained, big.NewInt(500))

	p := NewStateProcessor(config, nil)
	if _, err := p.Process(state, header, &types.Body{}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := state.GetBalance(drained); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("drained account balance = %v, want untouched 500 outside the fork block", got)
	}
}
