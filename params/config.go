// Package params defines the chain configuration surface: fork-transition
// block numbers, the Clique PoA parameters, and the canned configurations
// used across the importer, the Clique engine and the syncer.
package params

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainConfig is the per-instance, immutable-after-init configuration of a
// chain: the fork schedule plus the PoA parameters. There is no global
// mutable descriptor — every component that needs it receives a pointer to
// one, constructed once at startup.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock   *big.Int `json:"homesteadBlock,omitempty"`
	DAOForkBlock     *big.Int `json:"daoForkBlock,omitempty"`
	DAOForkSupport   bool     `json:"daoForkSupport,omitempty"`
	EIP150Block      *big.Int `json:"eip150Block,omitempty"`
	EIP155Block      *big.Int `json:"eip155Block,omitempty"`
	EIP158Block      *big.Int `json:"eip158Block,omitempty"`
	ByzantiumBlock   *big.Int `json:"byzantiumBlock,omitempty"`
	ConstantinopleBlock *big.Int `json:"constantinopleBlock,omitempty"`
	PetersburgBlock  *big.Int `json:"petersburgBlock,omitempty"`
	IstanbulBlock    *big.Int `json:"istanbulBlock,omitempty"`
	MuirGlacierBlock *big.Int `json:"muirGlacierBlock,omitempty"`
	BerlinBlock      *big.Int `json:"berlinBlock,omitempty"`
	LondonBlock      *big.Int `json:"londonBlock,omitempty"`
	ArrowGlacierBlock *big.Int `json:"arrowGlacierBlock,omitempty"`

	// MergeNetsplitBlock, when set, is the merge transition block. ForkAt
	// and IsMerge read it; ForkAt reports ForkMerge from it onward,
	// overriding every other fork. No difficulty rule reads it.
	MergeNetsplitBlock *big.Int `json:"mergeNetsplitBlock,omitempty"`

	// Clique is non-nil for PoA chains; Ethash-style chains leave it nil.
	// Exactly one of {Clique, (implicit PoW)} is active; PoaEngine()
	// reports which.
	Clique *CliqueConfig `json:"clique,omitempty"`
}

// CliqueConfig is the Clique PoA consensus parameter set (EIP-225).
type CliqueConfig struct {
	Period uint64 `json:"period"` // Minimum seconds between two consecutive blocks
	Epoch  uint64 `json:"epoch"`  // Number of blocks between checkpoints, resets the vote ballot
}

func (c *CliqueConfig) String() string {
	return fmt.Sprintf("clique(period: %d, epoch: %d)", c.Period, c.Epoch)
}

// PoaEngine reports whether this chain runs Clique rather than a PoW engine.
func (c *ChainConfig) PoaEngine() bool { return c.Clique != nil }

// cleanup applies the fixed relationship between DAOForkSupport and
// DAOForkBlock: when DAO-fork support is disabled, the DAO fork transition
// collapses onto the Homestead transition so no separate fork window opens.
// Resolves SPEC_FULL.md Open Question (b).
func (c *ChainConfig) cleanup() {
	if !c.DAOForkSupport {
		c.DAOForkBlock = c.HomesteadBlock
	}
}

// epoch returns the Clique checkpoint interval, defaulting to 30000 blocks
// when unset (mirrors the EIP-225 default).
func (c *CliqueConfig) epoch() uint64 {
	if c.Epoch == 0 {
		return 30000
	}
	return c.Epoch
}

// Epoch exposes the effective (defaulted) Clique epoch length.
func (c *ChainConfig) Epoch() uint64 {
	if c.Clique == nil {
		return 30000
	}
	return c.Clique.epoch()
}

// IsHomestead and friends report whether a given fork is active at block n.
// A nil transition block number means the fork was never scheduled.

func gte(n *big.Int, fork *big.Int) bool {
	return fork != nil && n != nil && n.Cmp(fork) >= 0
}

func (c *ChainConfig) IsHomestead(n *big.Int) bool      { return gte(n, c.HomesteadBlock) }
func (c *ChainConfig) IsDAOFork(n *big.Int) bool        { return gte(n, c.DAOForkBlock) }
func (c *ChainConfig) IsEIP150(n *big.Int) bool         { return gte(n, c.EIP150Block) }
func (c *ChainConfig) IsEIP155(n *big.Int) bool         { return gte(n, c.EIP155Block) }
func (c *ChainConfig) IsEIP158(n *big.Int) bool         { return gte(n, c.EIP158Block) }
func (c *ChainConfig) IsByzantium(n *big.Int) bool      { return gte(n, c.ByzantiumBlock) }
func (c *ChainConfig) IsConstantinople(n *big.Int) bool { return gte(n, c.ConstantinopleBlock) }
func (c *ChainConfig) IsPetersburg(n *big.Int) bool     { return gte(n, c.PetersburgBlock) }
func (c *ChainConfig) IsIstanbul(n *big.Int) bool       { return gte(n, c.IstanbulBlock) }
func (c *ChainConfig) IsBerlin(n *big.Int) bool         { return gte(n, c.BerlinBlock) }
func (c *ChainConfig) IsLondon(n *big.Int) bool         { return gte(n, c.LondonBlock) }
func (c *ChainConfig) IsMerge(n *big.Int) bool          { return gte(n, c.MergeNetsplitBlock) }

// DAOForkBlockOrZero mirrors upstream's habit of returning a concrete value
// for ForkID hashing even when the transition is unset.
func (c *ChainConfig) DAOForkBlockOrZero() *big.Int {
	if c.DAOForkBlock == nil {
		return common.Big0
	}
	return c.DAOForkBlock
}

// Fork is a human-readable tag for fork_at's result.
type Fork string

const (
	ForkFrontier        Fork = "frontier"
	ForkHomestead       Fork = "homestead"
	ForkDAO             Fork = "dao"
	ForkTangerineWhistle Fork = "eip150"
	ForkSpuriousDragon  Fork = "eip158"
	ForkByzantium       Fork = "byzantium"
	ForkConstantinople  Fork = "constantinople"
	ForkPetersburg      Fork = "petersburg"
	ForkIstanbul        Fork = "istanbul"
	ForkMuirGlacier     Fork = "muirglacier"
	ForkBerlin          Fork = "berlin"
	ForkLondon          Fork = "london"
	ForkArrowGlacier    Fork = "arrowglacier"
	ForkMerge           Fork = "merge"
)

// forkTransition pairs a fork tag with the (possibly nil) block number at
// which it activates. ForkAt walks this table in order and returns the
// last entry whose block has been reached.
type forkTransition struct {
	fork  Fork
	block *big.Int
}

func (c *ChainConfig) table() []forkTransition {
	return []forkTransition{
		{ForkFrontier, common.Big0},
		{ForkHomestead, c.HomesteadBlock},
		{ForkDAO, c.DAOForkBlock},
		{ForkTangerineWhistle, c.EIP150Block},
		{ForkSpuriousDragon, c.EIP158Block},
		{ForkByzantium, c.ByzantiumBlock},
		{ForkConstantinople, c.ConstantinopleBlock},
		{ForkPetersburg, c.PetersburgBlock},
		{ForkIstanbul, c.IstanbulBlock},
		{ForkMuirGlacier, c.MuirGlacierBlock},
		{ForkBerlin, c.BerlinBlock},
		{ForkLondon, c.LondonBlock},
		{ForkArrowGlacier, c.ArrowGlacierBlock},
		{ForkMerge, c.MergeNetsplitBlock},
	}
}

// ForkAt returns the active fork tag at block number n. MergeNetsplitBlock
// overrides every other fork once reached, matching spec.md §4.1.
func (c *ChainConfig) ForkAt(n *big.Int) Fork {
	if c.MergeNetsplitBlock != nil && n.Cmp(c.MergeNetsplitBlock) >= 0 {
		return ForkMerge
	}
	best := ForkFrontier
	for _, t := range c.table() {
		if t.fork == ForkMerge {
			continue // handled above
		}
		if t.block == nil {
			continue
		}
		if n.Cmp(t.block) >= 0 {
			best = t.fork
		}
	}
	return best
}

// Rewards schedule, read by calculateReward in core/reward.go.
var (
	FrontierBlockReward       = new(big.Int).Mul(big.NewInt(5), big.NewInt(1e18))
	ByzantiumBlockReward      = new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))
	ConstantinopleBlockReward = new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
)
