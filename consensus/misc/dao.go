// Package misc holds the one-off hard-fork state transitions that the
// executor applies alongside the per-block VM run (spec.md §4.3 step 2):
// currently the 2016 DAO balance migration. Everything else a full
// go-ethereum carries in this package (basefee, EIP-4788/4844 beacon root
// and blob-gas bookkeeping) belongs to forks this module's Clique chains
// never reach, so it is not reproduced here.
package misc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/params"
)

// DAORefundContract is the address the drained child-DAO balances are
// credited to.
var DAORefundContract = common.HexToAddress("0xbf4ed7b27f1d666546e30d74d50d173d20bca754")

// daoDrainList is the fixed set of child-DAO and extra-balance accounts
// whose balance moves to DAORefundContract at the fork block. It holds these
// sixteen mainnet accounts only, not the full mainnet drain list; a private
// Clique chain that enables
// DAOForkSupport without meaning to fork against these exact accounts
// should simply leave the balances at zero in its genesis.
var daoDrainList = []common.Address{
	common.HexToAddress("0xd4fe7bc31cedb7bfb8a345f31e668033056b2728"),
	common.HexToAddress("0xb3fb0e5aba0e20e5c49d252dfd30e102b171a425"),
	common.HexToAddress("0x2c19c7f9ae8b751e37aeb2d93a699722395ae18f"),
	common.HexToAddress("0xecd135fa4f61a655311e86238c92adcd779555d2"),
	common.HexToAddress("0x1975bd06d486162d5dc297798dfc41edd5d160a7"),
	common.HexToAddress("0x319f70bab6845585f412ec7252470da67726810"),
	common.HexToAddress("0x06706dd3f2c9abf0a21ddcc6941d9b86f0596936"),
	common.HexToAddress("0x5c8536898fbb74fc7445814902fd08422eac56d0"),
	common.HexToAddress("0x6966ab0d485353095148a2155858910e33c01bd1"),
	common.HexToAddress("0x779543a0491a837ca36ce8c635d6154e3c9cdf81"),
	common.HexToAddress("0x2a5ed960395e2a49b1c758cef4aa15213cfd874c"),
	common.HexToAddress("0x5c6e67ccd5849c0d29219c4f95f1a7a93b3f5dc5"),
	common.HexToAddress("0x9c50426be05db97f5d64fc54bf89eff947f0cc4e"),
	common.HexToAddress("0x200450f06520bdd6c527622a273333384d870efb"),
	common.HexToAddress("0xbe8539bfe837b67d1282b2b1d61c3f723966f049"),
	common.HexToAddress("0x6b0c4d41ba9ab8d8cfb5d379c69a612f2ed8d89b"),
}

// DAODrainList returns the accounts whose balance moves to the refund
// contract under ApplyDAOHardFork.
func DAODrainList() []common.Address {
	return daoDrainList
}

// ApplyDAOHardFork moves every daoDrainList account's balance to
// DAORefundContract, in place on the state view the executor is holding
// open for the current block. It takes no config and always moves the
// balances; the executor gates the call with IsDAOFork, so it runs only
// for the single block at config.DAOForkBlock when config.DAOForkSupport
// is set (spec.md §4.3 step 2).
//
// state is the minimal slice of VM-state the executor needs: read and
// credit/debit balances. The real account-state model lives in the
// out-of-scope VM subsystem (spec.md §1); this function only needs enough
// of it to move value.
func ApplyDAOHardFork(state DAOState) {
	state.AddBalance(DAORefundContract, dumpBalance(state, DAODrainList()))
}

func dumpBalance(state DAOState, drain []common.Address) *big.Int {
	total := new(big.Int)
	for _, addr := range drain {
		total.Add(total, state.GetBalance(addr))
		state.SetBalance(addr, new(big.Int))
	}
	return total
}

// DAOState is the account-balance slice of state ApplyDAOHardFork needs.
type DAOState interface {
	GetBalance(common.Address) *big.Int
	AddBalance(common.Address, *big.Int)
	SetBalance(common.Address, *big.Int)
}

// IsDAOFork reports whether block number is the exact block the DAO
// balance migration applies to under config.
func IsDAOFork(config *params.ChainConfig, number *big.Int) bool {
	if !config.DAOForkSupport || config.DAOForkBlock == nil {
		return false
	}
	return number.Cmp(config.DAOForkBlock) == 0
}
