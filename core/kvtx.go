package core

import (
	"github.com/ethereum/go-ethereum/ethdb"
)

// Transaction is the begin_tx/commit/dispose unit spec.md §6 requires of
// the KV store: writes accumulate in a batch and only reach the
// underlying database on Commit; Dispose discards them untouched. It wraps
// ethdb.Batch, the out-of-scope KV collaborator's own write-buffering type.
type Transaction struct {
	batch ethdb.Batch
}

func beginTx(db ethdb.Database) *Transaction {
	return &Transaction{batch: db.NewBatch()}
}

// Put implements ethdb.KeyValueWriter so rawdb's accessor functions can
// take a *Transaction directly wherever they take a database handle.
func (t *Transaction) Put(key, value []byte) error { return t.batch.Put(key, value) }

func (t *Transaction) Delete(key []byte) error { return t.batch.Delete(key) }

// Commit flushes the accumulated writes. applyDeletes is accepted for
// symmetry with spec.md §6's tx.commit(apply_deletes) signature; this
// module's batches never stage deletes that need suppressing, so it has no
// effect beyond documenting the call site's intent.
func (t *Transaction) Commit(applyDeletes bool) error {
	_ = applyDeletes
	return t.batch.Write()
}

// Dispose discards every write staged in the transaction.
func (t *Transaction) Dispose() {
	t.batch.Reset()
}
