package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/core/types"
)

// VMState is the narrow slice of EVM world-state the executor drives a
// block through (spec.md §1: "the EVM interpreter itself... out of scope,
// treated as external collaborators, interfaces only"). A concrete
// implementation lives in the out-of-scope VM subsystem; this module only
// needs enough of it to apply DAO balance moves, run transactions in
// order, and compare the resulting root against the header.
type VMState interface {
	// GetBalance/AddBalance/SetBalance satisfy consensus/misc.DAOState so
	// ApplyDAOHardFork can run directly against this interface.
	GetBalance(common.Address) *big.Int
	AddBalance(common.Address, *big.Int)
	SetBalance(common.Address, *big.Int)

	// ApplyTransaction runs one transaction's fee charging, EVM call,
	// EIP-158/161 state clearing and self-destruct application, returning
	// the receipt the caller should append (spec.md §4.3 step 4).
	ApplyTransaction(tx *types.Transaction, sender common.Address, header *types.Header) (*types.Receipt, error)

	// IntermediateRoot computes the state root after all transactions
	// (and any reward credits) applied so far have been flushed to the
	// underlying trie.
	IntermediateRoot() common.Hash

	// Commit finalizes the state transition, flushing witnesses and
	// clearing the dirty-account cache when applyDeletes is set, and
	// returns the final state root (spec.md §4.3 step 8).
	Commit(applyDeletes bool) (common.Hash, error)
}
