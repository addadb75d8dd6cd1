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

package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/clique-core/poachain/core/types"
)

// ReadCanonicalHash retrieves the canonical block hash at number, or the
// zero hash if the chain has not extended that far.
func ReadCanonicalHash(db ethdb.KeyValueReader, number uint64) common.Hash {
	data, _ := db.Get(headerHashKey(number))
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteCanonicalHash marks hash as the canonical block at number.
func WriteCanonicalHash(db ethdb.KeyValueWriter, hash common.Hash, number uint64) error {
	return db.Put(headerHashKey(number), hash.Bytes())
}

// DeleteCanonicalHash drops the canonical mapping at number, used by reorg
// backtracking when a once-canonical block is superseded.
func DeleteCanonicalHash(db ethdb.KeyValueWriter, number uint64) error {
	return db.Delete(headerHashKey(number))
}

// ReadHeaderNumber retrieves the block number for a given header hash, the
// reverse index of headerHashKey.
func ReadHeaderNumber(db ethdb.KeyValueReader, hash common.Hash) *uint64 {
	data, _ := db.Get(headerNumberKey(hash))
	if len(data) != 8 {
		return nil
	}
	number := binary.BigEndian.Uint64(data)
	return &number
}

// WriteHeaderNumber indexes hash -> number, so callers that only have a
// hash can still look up the header by its number-prefixed key.
func WriteHeaderNumber(db ethdb.KeyValueWriter, hash common.Hash, number uint64) error {
	return db.Put(headerNumberKey(hash), encodeBlockNumber(number))
}

// ReadHeaderRLP retrieves a header in its raw RLP encoding, given both its
// number and hash (spec.md §6: headers are indexed by (number, hash)).
func ReadHeaderRLP(db ethdb.KeyValueReader, hash common.Hash, number uint64) rlp.RawValue {
	data, _ := db.Get(headerKey(number, hash))
	return data
}

// ReadHeader retrieves and decodes a header by (hash, number).
func ReadHeader(db ethdb.KeyValueReader, hash common.Hash, number uint64) *types.Header {
	data := ReadHeaderRLP(db, hash, number)
	if len(data) == 0 {
		return nil
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(data, header); err != nil {
		log.Error("Invalid block header RLP", "hash", hash, "err", err)
		return nil
	}
	return header
}

// WriteHeader persists a header, indexed both by (number, hash) and by the
// reverse hash->number mapping.
func WriteHeader(db ethdb.KeyValueWriter, header *types.Header) error {
	var (
		hash   = header.Hash()
		number = header.NumberU64()
	)
	if err := WriteHeaderNumber(db, hash, number); err != nil {
		return err
	}
	data, err := rlp.EncodeToBytes(header)
	if err != nil {
		return err
	}
	return db.Put(headerKey(number, hash), data)
}

// ReadBodyRLP retrieves a block body in its raw RLP encoding.
func ReadBodyRLP(db ethdb.KeyValueReader, hash common.Hash, number uint64) rlp.RawValue {
	data, _ := db.Get(blockBodyKey(number, hash))
	return data
}

// ReadBody retrieves and decodes a block body by (hash, number).
func ReadBody(db ethdb.KeyValueReader, hash common.Hash, number uint64) *types.Body {
	data := ReadBodyRLP(db, hash, number)
	if len(data) == 0 {
		return nil
	}
	body := new(types.Body)
	if err := rlp.DecodeBytes(data, body); err != nil {
		log.Error("Invalid block body RLP", "hash", hash, "err", err)
		return nil
	}
	return body
}

// WriteBody persists a block body.
func WriteBody(db ethdb.KeyValueWriter, hash common.Hash, number uint64, body *types.Body) error {
	data, err := rlp.EncodeToBytes(body)
	if err != nil {
		return err
	}
	return db.Put(blockBodyKey(number, hash), data)
}

// ReadReceipts retrieves and decodes the receipts of a block by (hash,
// number). The stored shape carries status (or post-state root),
// cumulative gas used, bloom and logs; TxHash, GasUsed and TxType are not
// stored and read back as zero values.
func ReadReceipts(db ethdb.KeyValueReader, hash common.Hash, number uint64) types.Receipts {
	data, _ := db.Get(blockReceiptsKey(number, hash))
	if len(data) == 0 {
		return nil
	}
	var receipts types.Receipts
	if err := rlp.DecodeBytes(data, &receipts); err != nil {
		log.Error("Invalid receipt array RLP", "hash", hash, "err", err)
		return nil
	}
	return receipts
}

// WriteReceipts persists a block's receipts.
func WriteReceipts(db ethdb.KeyValueWriter, hash common.Hash, number uint64, receipts types.Receipts) error {
	data, err := rlp.EncodeToBytes(receipts)
	if err != nil {
		return err
	}
	return db.Put(blockReceiptsKey(number, hash), data)
}

// ReadHeadHeaderHash retrieves the hash of the current canonical head
// header (spec.md §6: currentBlock).
func ReadHeadHeaderHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(headHeaderKey)
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteHeadHeaderHash updates the canonical head header pointer.
func WriteHeadHeaderHash(db ethdb.KeyValueWriter, hash common.Hash) error {
	return db.Put(headHeaderKey, hash.Bytes())
}

// ReadHeadBlockHash retrieves the hash of the current canonical head block
// (header + body + receipts all persisted).
func ReadHeadBlockHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(headBlockKey)
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteHeadBlockHash updates the canonical head block pointer.
func WriteHeadBlockHash(db ethdb.KeyValueWriter, hash common.Hash) error {
	return db.Put(headBlockKey, hash.Bytes())
}

// WriteSkeletonHeader persists a header under the skeleton segment index
// the downloader stages unprocessed chunks under (spec.md §5 LinkedHChain).
func WriteSkeletonHeader(db ethdb.KeyValueWriter, header *types.Header) error {
	data, err := rlp.EncodeToBytes(header)
	if err != nil {
		return err
	}
	return db.Put(skeletonHeaderKey(header.NumberU64()), data)
}

// ReadSkeletonHeader retrieves a staged skeleton header by number.
func ReadSkeletonHeader(db ethdb.KeyValueReader, number uint64) *types.Header {
	data, _ := db.Get(skeletonHeaderKey(number))
	if len(data) == 0 {
		return nil
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(data, header); err != nil {
		log.Error("Invalid skeleton header RLP", "number", number, "err", err)
		return nil
	}
	return header
}

// DeleteSkeletonHeader drops a staged skeleton header once it has been
// folded into the canonical chain.
func DeleteSkeletonHeader(db ethdb.KeyValueWriter, number uint64) error {
	return db.Delete(skeletonHeaderKey(number))
}
