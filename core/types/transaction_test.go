package types

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var testTxKey, _ = crypto.HexToECDSA("45a915e4d060149eb4365960e6a7a45f334393093061116b197e3240065ff2d")

func testTx(t *testing.T) *Transaction {
	to := common.HexToAddress("095e7baea6a6c7c4c2dfeb977efac326af552d87")
	tx := NewTransaction(3, to, big.NewInt(10), 2000, big.NewInt(1), []byte("abcdef"))
	signed, err := SignTxWithKey(tx, testTxKey)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestTransactionSigHashAndRecover(t *testing.T) {
	tx := testTx(t)
	want := crypto.PubkeyToAddress(testTxKey.PublicKey)

	got, err := TxSender(tx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("recovered sender %x, want %x", got, want)
	}
}

func TestTransactionRLPRoundTrip(t *testing.T) {
	tx := testTx(t)

	enc, err := rlp.EncodeToBytes(tx)
	if err != nil {
		t.Fatal(err)
	}
	var dec Transaction
	if err := rlp.DecodeBytes(enc, &dec); err != nil {
		t.Fatal(err)
	}
	if dec.Hash() != tx.Hash() {
		t.Errorf("decoded hash %x, want %x", dec.Hash(), tx.Hash())
	}
	if dec.Nonce != tx.Nonce || dec.Gas != tx.Gas || *dec.To != *tx.To {
		t.Errorf("decoded fields mismatch: %+v vs %+v", dec, tx)
	}
}

func TestTransactionHashStable(t *testing.T) {
	tx := testTx(t)
	if tx.Hash() != tx.Hash() {
		t.Error("Hash is not stable across calls")
	}

	other := testTx(t)
	other.Nonce = tx.Nonce + 1
	signed, err := SignTxWithKey(other, testTxKey)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(signed.Hash().Bytes(), tx.Hash().Bytes()) {
		t.Error("transactions with different nonces hashed equal")
	}
}
