package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// baseBlockReward returns the miner subsidy schedule entry active at
// number (spec.md §4.3 step 7): 5 ETH pre-Byzantium, 3 ETH Byzantium
// onward, 2 ETH from Constantinople onward.
func baseBlockReward(config *params.ChainConfig, number *big.Int) *big.Int {
	switch {
	case config.IsConstantinople(number):
		return params.ConstantinopleBlockReward
	case config.IsByzantium(number):
		return params.ByzantiumBlockReward
	default:
		return params.FrontierBlockReward
	}
}

// blockReward is one resolved (coinbase, amount) credit; calculateReward
// returns one for the block's miner and one for each uncle.
type blockReward struct {
	coinbase common.Address
	amount   *big.Int
}

// calculateReward computes the miner and uncle rewards for a block under a
// PoW-style engine. PoA chains (config.PoaEngine()) never call this — no
// reward is minted under Clique (spec.md §4.3 step 7).
func calculateReward(config *params.ChainConfig, header *types.Header, uncles []*types.Header) []blockReward {
	base := baseBlockReward(config, header.Number)
	baseU, _ := uint256.FromBig(base)

	minerU := new(uint256.Int).Set(baseU)
	rewards := make([]blockReward, 0, 1+len(uncles))

	if len(uncles) > 0 {
		// Each uncle itself earns base * (uncle.number + 8 - header.number) / 8.
		eight := uint256.NewInt(8)
		for _, uncle := range uncles {
			r := new(uint256.Int).AddUint64(new(uint256.Int).SetUint64(uncle.NumberU64()), 8)
			r.Sub(r, uint256.MustFromBig(header.Number))
			r.Mul(r, baseU)
			r.Div(r, eight)
			rewards = append(rewards, blockReward{coinbase: uncle.Coinbase, amount: r.ToBig()})
		}
		// The including block's coinbase additionally earns base/32 per uncle.
		extra := new(uint256.Int).Mul(baseU, uint256.NewInt(uint64(len(uncles))))
		extra.Div(extra, uint256.NewInt(32))
		minerU.Add(minerU, extra)
	}
	rewards = append(rewards, blockReward{coinbase: header.Coinbase, amount: minerU.ToBig()})
	return rewards
}
