package rawdb

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestKeyPrefixesStayDisjoint(t *testing.T) {
	hash := common.HexToHash("0x1234")
	number := uint64(7)

	keys := map[string][]byte{
		"header":         headerKey(number, hash),
		"headerHash":     headerHashKey(number),
		"headerNumber":   headerNumberKey(hash),
		"blockBody":      blockBodyKey(number, hash),
		"blockReceipts":  blockReceiptsKey(number, hash),
		"skeletonHeader": skeletonHeaderKey(number),
		"cliqueSnapshot": CliqueSnapshotKey(hash),
	}
	seen := make(map[string]string)
	for name, key := range keys {
		k := string(key)
		if other, ok := seen[k]; ok {
			t.Fatalf("%s and %s produced colliding keys", name, other)
		}
		seen[k] = name
	}
}

func TestHeaderKeyEncodesNumberBigEndian(t *testing.T) {
	hash := common.HexToHash("0xabcd")
	key := headerKey(1, hash)
	if !bytes.HasPrefix(key, headerPrefix) {
		t.Fatal("headerKey missing headerPrefix")
	}
	want := append(append([]byte{}, headerPrefix...), encodeBlockNumber(1)...)
	want = append(want, hash.Bytes()...)
	if !bytes.Equal(key, want) {
		t.Errorf("headerKey(1, hash) = %x, want %x", key, want)
	}
}

func TestEncodeBlockNumberSortsAscending(t *testing.T) {
	a := encodeBlockNumber(1)
	b := encodeBlockNumber(2)
	c := encodeBlockNumber(256)
	if bytes.Compare(a, b) >= 0 || bytes.Compare(b, c) >= 0 {
		t.Error("encodeBlockNumber must sort lexicographically in number order")
	}
}
