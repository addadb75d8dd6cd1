package types

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Receipt status codes (post-Byzantium). Pre-Byzantium receipts instead
// carry an intermediate state root (spec.md §3).
const (
	ReceiptStatusFailed    = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Log is a single EVM log entry. Address/Topics/Data are supplied by the
// out-of-scope VM subsystem; the executor only folds them into the bloom
// and RLP-encodes them as part of a receipt.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// Receipt is produced once per transaction by the executor (spec.md §3,
// §4.3 step 4). Exactly one of PostState/Status is meaningful, selected by
// whether the active fork is Byzantium or later.
type Receipt struct {
	// Consensus fields
	PostState         []byte // pre-Byzantium intermediate state root
	Status            uint64 // post-Byzantium success/failure
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log

	// TxType is carried for completeness (EIP-2718 typed transactions);
	// Clique/PoW chains here only ever emit the legacy type (0).
	TxType uint8

	// TxHash/ GasUsed are convenience fields, not part of the RLP root
	// computation, kept for observability/logging only.
	TxHash  common.Hash `rlp:"-"`
	GasUsed uint64      `rlp:"-"`
}

type Receipts []*Receipt

// receiptRLP is the consensus encoding: legacy receipts RLP-encode as
// [postStateOrStatus, cumulativeGasUsed, bloom, logs].
type receiptRLP struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log
}

func (r *Receipt) statusEncoding() []byte {
	if len(r.PostState) != 0 {
		return r.PostState
	}
	if r.Status == ReceiptStatusFailed {
		return []byte{}
	}
	return []byte{1}
}

// EncodeRLP implements rlp.Encoder. Typed (non-legacy) receipts would need a
// type-byte prefix outside the RLP list; this module only ever produces
// legacy (type 0) receipts, matching PoA/pre-London Clique chains.
func (r *Receipt) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &receiptRLP{
		PostStateOrStatus: r.statusEncoding(),
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom,
		Logs:              r.Logs,
	})
}

// DecodeRLP implements rlp.Decoder, inverting EncodeRLP: a single byte 0x01
// payload means success, empty means failure, anything longer is a
// pre-Byzantium intermediate state root.
func (r *Receipt) DecodeRLP(s *rlp.Stream) error {
	var dec receiptRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	r.CumulativeGasUsed, r.Bloom, r.Logs = dec.CumulativeGasUsed, dec.Bloom, dec.Logs
	switch len(dec.PostStateOrStatus) {
	case 0:
		r.Status = ReceiptStatusFailed
	case 1:
		r.Status = ReceiptStatusSuccessful
	default:
		r.PostState = dec.PostStateOrStatus
	}
	return nil
}

// bytesRLP returns the raw consensus encoding, used as a DeriveSha leaf
// value.
func (r *Receipt) bytesRLP() []byte {
	var buf bytes.Buffer
	if err := r.EncodeRLP(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
