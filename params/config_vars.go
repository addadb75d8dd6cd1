package params

import "math/big"

// Canned configurations used across tests and by callers that want a
// ready-made protocol parameter set, matching the convention observed in
// the retrieved consensus/clique tests (params.AllCliqueProtocolChanges,
// params.TestChainConfig).
var (
	// AllEthashProtocolChanges enables every fork at block 0 and runs the
	// legacy PoW difficulty rule (no Clique config attached).
	AllEthashProtocolChanges = &ChainConfig{
		ChainID:             big.NewInt(1337),
		HomesteadBlock:      big.NewInt(0),
		DAOForkBlock:        nil,
		DAOForkSupport:      false,
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
	}

	// AllCliqueProtocolChanges is the same fork schedule, but driven by
	// Clique with the EIP-225 default period/epoch.
	AllCliqueProtocolChanges = &ChainConfig{
		ChainID:             big.NewInt(1337),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
		Clique:              &CliqueConfig{Period: 15, Epoch: 30000},
	}

	// TestChainConfig is a minimal, fast-epoch config for unit tests.
	TestChainConfig = &ChainConfig{
		ChainID:             big.NewInt(1),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		Clique:              &CliqueConfig{Period: 1, Epoch: 5},
	}

	// GoerliChainConfig approximates the historical Görli Clique
	// parameters used in the spec's worked scenario (§8.8, scenario 1).
	GoerliChainConfig = &ChainConfig{
		ChainID:             big.NewInt(5),
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(1561651),
		Clique:              &CliqueConfig{Period: 15, Epoch: 30000},
	}
)

func init() {
	AllEthashProtocolChanges.cleanup()
	AllCliqueProtocolChanges.cleanup()
	TestChainConfig.cleanup()
	GoerliChainConfig.cleanup()
}
