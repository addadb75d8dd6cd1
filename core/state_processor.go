// Package core implements the block executor and chain importer (spec.md
// §4.3, §4.4): deterministic application of (header, body) pairs against a
// VMState, and the transactional batch that persists the result.
package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/clique-core/poachain/chainerr"
	"github.com/clique-core/poachain/consensus"
	"github.com/clique-core/poachain/consensus/misc"
	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// StateProcessor runs process_block (spec.md §4.3) against a VMState,
// producing the receipts for a single (header, body) pair or a
// chainerr.ErrValidation-wrapped mismatch.
type StateProcessor struct {
	config *params.ChainConfig
	engine consensus.Engine

	log log.Logger
}

func NewStateProcessor(config *params.ChainConfig, engine consensus.Engine) *StateProcessor {
	return &StateProcessor{config: config, engine: engine, log: log.New("module", "executor")}
}

// Process executes header's body against state and returns the resulting
// receipts (spec.md §4.3 steps 2-9). The caller owns the KV transaction
// state writes through; Process itself never touches the KV layer
// directly — only VMState and the header/body RLP shapes.
func (p *StateProcessor) Process(state VMState, header *types.Header, body *types.Body) (types.Receipts, error) {
	if misc.IsDAOFork(p.config, header.Number) {
		misc.ApplyDAOHardFork(state)
	}

	txRoot := types.DeriveSha(types.Transactions(body.Transactions), types.NewStackTrieHasher())
	if txRoot != header.TxHash {
		return nil, fmt.Errorf("%w: tx root mismatch: have %x, want %x", chainerr.ErrValidation, txRoot, header.TxHash)
	}

	receipts := make(types.Receipts, 0, len(body.Transactions))
	var cumulativeGasUsed uint64
	for i, tx := range body.Transactions {
		sender, err := types.TxSender(tx)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d sender recovery: %v", chainerr.ErrValidation, i, err)
		}
		receipt, err := state.ApplyTransaction(tx, sender, header)
		if err != nil {
			return nil, fmt.Errorf("%w: tx %d: %v", chainerr.ErrValidation, i, err)
		}
		cumulativeGasUsed = receipt.CumulativeGasUsed
		receipts = append(receipts, receipt)
	}
	if cumulativeGasUsed != header.GasUsed {
		return nil, fmt.Errorf("%w: gas used mismatch: have %d, want %d", chainerr.ErrValidation, cumulativeGasUsed, header.GasUsed)
	}

	if header.UncleHash != types.EmptyUncleHash {
		// This module's Clique chains never carry uncles (spec.md §3:
		// "always empty in PoA"); a non-empty ommers hash on a PoA chain
		// is therefore always an executor validation failure here, not a
		// case this module assembles uncle bodies for.
		if p.config.PoaEngine() {
			return nil, fmt.Errorf("%w: non-empty uncle hash on PoA chain", chainerr.ErrValidation)
		}
	}

	if !p.config.PoaEngine() {
		for _, reward := range calculateReward(p.config, header, body.Uncles) {
			state.AddBalance(reward.coinbase, reward.amount)
		}
	}

	root := state.IntermediateRoot()
	if root != header.Root {
		p.log.Error("state root mismatch", "number", header.NumberU64(), "have", root, "want", header.Root)
		return nil, fmt.Errorf("%w: state root mismatch: have %x, want %x", chainerr.ErrValidation, root, header.Root)
	}

	bloom := types.CreateBloom(receipts)
	if bloom != header.Bloom {
		return nil, fmt.Errorf("%w: bloom mismatch", chainerr.ErrValidation)
	}
	receiptRoot := types.DeriveSha(receipts, types.NewStackTrieHasher())
	if receiptRoot != header.ReceiptHash {
		return nil, fmt.Errorf("%w: receipts root mismatch: have %x, want %x", chainerr.ErrValidation, receiptRoot, header.ReceiptHash)
	}
	return receipts, nil
}
