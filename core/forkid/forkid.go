// Package forkid computes the EIP-2124 fork identifier used to detect
// incompatible peers during the Eth wire handshake. The match against a
// peer's advertised ID is delegated to peer negotiation, out of scope here;
// this package only builds the ID for a given chain configuration and block.
package forkid

import (
	"encoding/binary"
	"hash/crc32"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/clique-core/poachain/params"
)

// ID is the (crc, next) pair serialised on the wire (spec.md §3, §6).
type ID struct {
	Hash [4]byte
	Next uint64
}

// entry is one row of the precomputed fork table: the ID valid for every
// block in [fromBlock, nextBlock).
type entry struct {
	fromBlock uint64
	id        ID
}

// transitions returns the distinct, strictly increasing fork-transition
// block numbers in a chain config, in ascending order. Forks that share a
// transition block (e.g. Constantinople/Petersburg both at block X) collapse
// into a single entry, exactly as spec.md §4.1 requires ("so identical-block
// forks collapse").
func transitions(c *params.ChainConfig) []uint64 {
	raw := []*big.Int{
		c.HomesteadBlock,
		c.DAOForkBlockOrZero(),
		c.EIP150Block,
		c.EIP158Block, // EIP155 shares the Spurious Dragon block on mainnet
		c.ByzantiumBlock,
		c.ConstantinopleBlock,
		c.PetersburgBlock,
		c.IstanbulBlock,
		c.MuirGlacierBlock,
		c.BerlinBlock,
		c.LondonBlock,
		c.ArrowGlacierBlock,
	}
	seen := make(map[uint64]bool)
	var out []uint64
	for _, b := range raw {
		if b == nil {
			continue
		}
		n := b.Uint64()
		if n == 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	// insertion sort; table sizes are a couple dozen entries at most
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// table builds the cumulative CRC32 table described in spec.md §4.1: genesis
// hash, then each distinct transition block number folded in as a
// big-endian uint64, carrying (prev_crc, prev_next) forward and only
// emitting a new row when next_fork changes.
func table(genesis common.Hash, forks []uint64) []entry {
	hasher := crc32.NewIEEE()
	hasher.Write(genesis[:])
	crc := hasher.Sum32()

	rows := []entry{{fromBlock: 0, id: ID{Hash: checksum(crc), Next: next(forks, 0)}}}
	for _, fork := range forks {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], fork)
		hasher.Write(buf[:])
		crc = hasher.Sum32()
		rows = append(rows, entry{fromBlock: fork, id: ID{Hash: checksum(crc), Next: next(forks, fork)}})
	}
	return rows
}

func next(forks []uint64, after uint64) uint64 {
	for _, f := range forks {
		if f > after {
			return f
		}
	}
	return 0
}

func checksum(crc uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], crc)
	return b
}

// NewID computes the fork ID active at block number `head`, per spec.md
// §4.1 fork_id. It is a total function: rebuilding the table from the same
// config and genesis hash always yields identical entries (spec.md §8).
func NewID(config *params.ChainConfig, genesis common.Hash, head uint64) ID {
	rows := table(genesis, transitions(config))
	best := rows[0].id
	for _, row := range rows {
		if head >= row.fromBlock {
			best = row.id
		}
	}
	return best
}
