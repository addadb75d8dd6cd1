// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package rawdb is the key-value schema over the out-of-scope ethdb.Database
// collaborator (spec.md §1, §6): header/body/receipt storage, the canonical
// chain index and the Clique snapshot checkpoint store.
package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key prefixes. Each entity type gets its own prefix so an iterator walking
// one entity's keyspace never runs into another's.
var (
	headerPrefix       = []byte("h") // headerPrefix + num (8 bytes big-endian) + hash -> header
	headerHashSuffix    = []byte("n") // headerPrefix + num + headerHashSuffix -> hash
	headerNumberPrefix  = []byte("H") // headerNumberPrefix + hash -> num (8 bytes big-endian)

	blockBodyPrefix    = []byte("b") // blockBodyPrefix + num + hash -> body
	blockReceiptsPrefix = []byte("r") // blockReceiptsPrefix + num + hash -> receipts

	headHeaderKey = []byte("LastHeader") // points at the current canonical head's hash
	headBlockKey  = []byte("LastBlock")  // points at the current canonical head's hash, once its body+receipts are persisted too

	skeletonHeaderPrefix = []byte("S") // skeletonHeaderPrefix + num (8 bytes big-endian) -> header, staged skeleton segment headers

	cliqueSnapshotPrefix = []byte("clique-snapshot-") // cliqueSnapshotPrefix + hash -> JSON-encoded Snapshot
)

// encodeBlockNumber encodes a block number as big endian uint64, the
// canonical sort order for range iteration over a number-keyed prefix.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// headerKeyPrefix = headerPrefix + num (8 bytes big endian)
func headerKeyPrefix(number uint64) []byte {
	return append(headerPrefix, encodeBlockNumber(number)...)
}

// headerKey = headerPrefix + num (8 bytes big endian) + hash
func headerKey(number uint64, hash common.Hash) []byte {
	return append(headerKeyPrefix(number), hash.Bytes()...)
}

// headerHashKey = headerPrefix + num (8 bytes big endian) + headerHashSuffix
func headerHashKey(number uint64) []byte {
	return append(headerKeyPrefix(number), headerHashSuffix...)
}

// headerNumberKey = headerNumberPrefix + hash
func headerNumberKey(hash common.Hash) []byte {
	return append(headerNumberPrefix, hash.Bytes()...)
}

// blockBodyKey = blockBodyPrefix + num (8 bytes big endian) + hash
func blockBodyKey(number uint64, hash common.Hash) []byte {
	return append(append(blockBodyPrefix, encodeBlockNumber(number)...), hash.Bytes()...)
}

// blockReceiptsKey = blockReceiptsPrefix + num (8 bytes big endian) + hash
func blockReceiptsKey(number uint64, hash common.Hash) []byte {
	return append(append(blockReceiptsPrefix, encodeBlockNumber(number)...), hash.Bytes()...)
}

// skeletonHeaderKey = skeletonHeaderPrefix + num (8 bytes big endian)
func skeletonHeaderKey(number uint64) []byte {
	return append(skeletonHeaderPrefix, encodeBlockNumber(number)...)
}

// CliqueSnapshotKey = cliqueSnapshotPrefix + hash
func CliqueSnapshotKey(hash common.Hash) []byte {
	return append(append([]byte{}, cliqueSnapshotPrefix...), hash.Bytes()...)
}
