package types

import (
	"crypto/ecdsa"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Transaction is the legacy (type-0) transaction shape. Transaction
// processing itself — fee charging, the EVM call, state clearing, self
// destruct, witness collection — is an interface the executor requires from
// the out-of-scope VM subsystem (spec.md §4.3 step 4); this type only needs
// to encode/decode and expose enough fields for sender recovery and the
// transactions-root computation.
type Transaction struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address // nil means contract creation
	Value    *big.Int
	Data     []byte

	V, R, S *big.Int
}

func NewTransaction(nonce uint64, to common.Address, amount *big.Int, gasLimit uint64, gasPrice *big.Int, data []byte) *Transaction {
	return &Transaction{Nonce: nonce, To: &to, Value: amount, Gas: gasLimit, GasPrice: gasPrice, Data: data, V: new(big.Int), R: new(big.Int), S: new(big.Int)}
}

type txRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *Transaction) toRLP() *txRLP {
	return &txRLP{tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data, tx.V, tx.R, tx.S}
}

func (tx *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, tx.toRLP())
}

func (tx *Transaction) DecodeRLP(s *rlp.Stream) error {
	var dec txRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data, tx.V, tx.R, tx.S =
		dec.Nonce, dec.GasPrice, dec.Gas, dec.To, dec.Value, dec.Data, dec.V, dec.R, dec.S
	return nil
}

func (tx *Transaction) bytesRLP() []byte {
	enc, err := rlp.EncodeToBytes(tx.toRLP())
	if err != nil {
		panic(err)
	}
	return enc
}

func (tx *Transaction) Hash() common.Hash { return crypto.Keccak256Hash(tx.bytesRLP()) }

// signingHash is the pre-image signed over: the transaction with V/R/S
// zeroed (homestead-style signing, no EIP-155 chain replay protection — out
// of scope for this module's Clique-chain focus).
func (tx *Transaction) signingHash() common.Hash {
	unsigned := &txRLP{tx.Nonce, tx.GasPrice, tx.Gas, tx.To, tx.Value, tx.Data, new(big.Int), new(big.Int), new(big.Int)}
	enc, err := rlp.EncodeToBytes(unsigned)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// HomesteadSigner names the simple (non-EIP-155) signature scheme — the
// only scheme this module's test chains need. It has no methods; signing
// and recovery are done by SignTxWithKey and TxSender.
type HomesteadSigner struct{}

// SignTxWithKey signs tx's homestead signing hash with prv and returns a new
// Transaction carrying the resulting V/R/S.
func SignTxWithKey(tx *Transaction, prv *ecdsa.PrivateKey) (*Transaction, error) {
	sig, err := crypto.Sign(tx.signingHash().Bytes(), prv)
	if err != nil {
		return nil, err
	}
	cpy := *tx
	cpy.R = new(big.Int).SetBytes(sig[:32])
	cpy.S = new(big.Int).SetBytes(sig[32:64])
	cpy.V = new(big.Int).SetBytes([]byte{sig[64]})
	return &cpy, nil
}

// TxSender recovers the sending address from a transaction's signature
// (the "recover sender" step of spec.md §4.3 step 4).
func TxSender(tx *Transaction) (common.Address, error) {
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64())
	pub, err := crypto.SigToPub(tx.signingHash().Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
