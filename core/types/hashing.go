package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// DerivableList is anything DeriveSha can build an ordered Merkle-Patricia
// trie root over — transaction lists and receipt lists both qualify.
type DerivableList interface {
	Len() int
	EncodeIndex(i int, w *bytes.Buffer)
}

// TrieHasher is the narrow slice of trie.Trie / trie.StackTrie that
// DeriveSha needs: insert key/value pairs and read back the root. The
// Merkle-Patricia trie implementation itself is an out-of-scope
// collaborator (spec.md §1); this module only supplies the adapter that
// feeds it RLP-indexed transactions and receipts.
type TrieHasher interface {
	Reset()
	Update(key, value []byte) error
	Hash() common.Hash
}

// DeriveSha computes keccak-trie-root(list): index i (RLP-encoded) maps to
// the RLP encoding of list[i], matching Ethereum's canonical
// transactions-root / receipts-root construction (spec.md §3).
func DeriveSha(list DerivableList, hasher TrieHasher) common.Hash {
	hasher.Reset()
	var indexBuf, valueBuf bytes.Buffer
	for i := 0; i < list.Len(); i++ {
		indexBuf.Reset()
		rlp.Encode(&indexBuf, uint(i))
		valueBuf.Reset()
		list.EncodeIndex(i, &valueBuf)
		if err := hasher.Update(indexBuf.Bytes(), append([]byte(nil), valueBuf.Bytes()...)); err != nil {
			panic(err)
		}
	}
	return hasher.Hash()
}

// NewStackTrieHasher wraps the upstream trie.StackTrie as a TrieHasher,
// avoiding the memory overhead of a full trie.Trie just to compute a root.
func NewStackTrieHasher() TrieHasher {
	return trie.NewStackTrie(nil)
}

// Transactions is a DerivableList of transactions.
type Transactions []*Transaction

func (s Transactions) Len() int { return len(s) }
func (s Transactions) EncodeIndex(i int, w *bytes.Buffer) {
	if err := s[i].EncodeRLP(w); err != nil {
		panic(err)
	}
}

func (s Receipts) Len() int { return len(s) }
func (s Receipts) EncodeIndex(i int, w *bytes.Buffer) {
	w.Write(s[i].bytesRLP())
}

// CalcUncleHash computes ommers_hash = keccak(rlp(uncles)) (spec.md §3),
// a flat RLP list hash rather than a trie root.
func CalcUncleHash(uncles []*Header) common.Hash {
	if len(uncles) == 0 {
		return EmptyUncleHash
	}
	enc, err := rlp.EncodeToBytes(uncles)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}
