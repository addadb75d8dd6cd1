package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

func rewardTestConfig() *params.ChainConfig {
	return &params.ChainConfig{
		ByzantiumBlock:      big.NewInt(10),
		ConstantinopleBlock: big.NewInt(20),
	}
}

func TestBaseBlockRewardBySchedule(t *testing.T) {
	config := rewardTestConfig()

	if got := baseBlockReward(config, big.NewInt(5)); got.Cmp(params.FrontierBlockReward) != 0 {
		t.Errorf("pre-Byzantium reward = %v, want %v", got, params.FrontierBlockReward)
	}
	if got := baseBlockReward(config, big.NewInt(10)); got.Cmp(params.ByzantiumBlockReward) != 0 {
		t.Errorf("Byzantium reward = %v, want %v", got, params.ByzantiumBlockReward)
	}
	if got := baseBlockReward(config, big.NewInt(20)); got.Cmp(params.ConstantinopleBlockReward) != 0 {
		t.Errorf("Constantinople reward = %v, want %v", got, params.ConstantinopleBlockReward)
	}
}

func TestCalculateRewardNoUncles(t *testing.T) {
	config := rewardTestConfig()
	coinbase := common.HexToAddress("0x01")
	header := &types.Header{Number: big.NewInt(5), Coinbase: coinbase}

	rewards := calculateReward(config, header, nil)
	if len(rewards) != 1 {
		t.Fatalf("len(rewards) = %d, want 1", len(rewards))
	}
	if rewards[0].coinbase != coinbase || rewards[0].amount.Cmp(params.FrontierBlockReward) != 0 {
		t.Errorf("rewards[0] = %+v, want {%x %v}", rewards[0], coinbase, params.FrontierBlockReward)
	}
}

func TestCalculateRewardWithUncles(t *testing.T) {
	config := rewardTestConfig()
	minerAddr := common.HexToAddress("0x01")
	uncleAddr := common.HexToAddress("0x02")

	header := &types.Header{Number: big.NewInt(10), Coinbase: minerAddr}
	uncle := &types.Header{Number: big.NewInt(9), Coinbase: uncleAddr}

	rewards := calculateReward(config, header, []*types.Header{uncle})
	if len(rewards) != 2 {
		t.Fatalf("len(rewards) = %d, want 2 (uncle + miner)", len(rewards))
	}

	// Uncle reward = base * (9 + 8 - 10) / 8 = base * 7/8.
	base := params.ByzantiumBlockReward
	wantUncle := new(big.Int).Mul(base, big.NewInt(7))
	wantUncle.Div(wantUncle, big.NewInt(8))
	if rewards[0].coinbase != uncleAddr || rewards[0].amount.Cmp(wantUncle) != 0 {
		t.Errorf("uncle reward = %+v, want {%x %v}", rewards[0], uncleAddr, wantUncle)
	}

	// Miner reward = base + base*1/32 (one uncle included).
	wantMiner := new(big.Int).Add(base, new(big.Int).Div(base, big.NewInt(32)))
	if rewards[1].coinbase != minerAddr || rewards[1].amount.Cmp(wantMiner) != 0 {
		t.Errorf("miner reward = %+v, want {%x %v}", rewards[1], minerAddr, wantMiner)
	}
}
