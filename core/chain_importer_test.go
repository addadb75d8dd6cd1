package core

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethrawdb "github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/clique-core/poachain/consensus"
	"github.com/clique-core/poachain/consensus/clique"
	"github.com/clique-core/poachain/core/rawdb"
	"github.com/clique-core/poachain/core/types"
	"github.com/clique-core/poachain/params"
)

// testerChainReader is a minimal in-memory consensus.ChainHeaderReader,
// mirroring consensus/clique's own test double: every header the test hands
// the engine is registered here first, standing in for the already-validated
// header chain the real importer's chain view is built from.
type testerChainReader struct {
	config  *params.ChainConfig
	byHash  map[common.Hash]*types.Header
	byNum   map[uint64]*types.Header
	current *types.Header
}

func newTesterChainReader(config *params.ChainConfig) *testerChainReader {
	return &testerChainReader{
		config: config,
		byHash: make(map[common.Hash]*types.Header),
		byNum:  make(map[uint64]*types.Header),
	}
}

func (r *testerChainReader) add(h *types.Header) {
	r.byHash[h.Hash()] = h
	r.byNum[h.NumberU64()] = h
	r.current = h
}

func (r *testerChainReader) Config() *params.ChainConfig  { return r.config }
func (r *testerChainReader) CurrentHeader() *types.Header { return r.current }
func (r *testerChainReader) GetHeader(hash common.Hash, number uint64) *types.Header {
	if h, ok := r.byHash[hash]; ok && h.NumberU64() == number {
		return h
	}
	return nil
}
func (r *testerChainReader) GetHeaderByHash(hash common.Hash) *types.Header { return r.byHash[hash] }
func (r *testerChainReader) GetHeaderByNumber(number uint64) *types.Header  { return r.byNum[number] }

var _ consensus.ChainHeaderReader = (*testerChainReader)(nil)

// fakeVMState is a VMState double that charges nothing, runs no EVM calls
// and reports a fixed, caller-configured root — enough to drive
// StateProcessor.Process through a body with no transactions.
type fakeVMState struct {
	balances map[common.Address]*big.Int
	root     common.Hash
}

func newFakeVMState(root common.Hash) *fakeVMState {
	return &fakeVMState{balances: make(map[common.Address]*big.Int), root: root}
}

func (s *fakeVMState) GetBalance(addr common.Address) *big.Int {
	if b, ok := s.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}
func (s *fakeVMState) AddBalance(addr common.Address, amount *big.Int) {
	s.balances[addr] = new(big.Int).Add(s.GetBalance(addr), amount)
}
func (s *fakeVMState) SetBalance(addr common.Address, amount *big.Int) {
	s.balances[addr] = new(big.Int).Set(amount)
}
func (s *fakeVMState) ApplyTransaction(tx *types.Transaction, sender common.Address, header *types.Header) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}
func (s *fakeVMState) IntermediateRoot() common.Hash    { return s.root }
func (s *fakeVMState) Commit(bool) (common.Hash, error) { return s.root, nil }

var _ VMState = (*fakeVMState)(nil)

// cliqueImporterFixture wires a real Clique engine, signer key and genesis
// checkpoint for a single-signer chain, mirroring consensus/clique's own
// test helpers (testerAccounts, genesisHeader) but scoped to this package.
type cliqueImporterFixture struct {
	key    *ecdsa.PrivateKey
	signer common.Address
	chain  *testerChainReader
	config *params.ChainConfig
	engine *clique.Clique
	root   common.Hash
}

func newCliqueImporterFixture(t *testing.T) *cliqueImporterFixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	cliqueConfig := &params.CliqueConfig{Period: 1, Epoch: 30000}
	config := &params.ChainConfig{Clique: cliqueConfig}
	chain := newTesterChainReader(config)

	// extraVanity=32, extraSeal=65 are EIP-225's fixed field widths.
	extra := make([]byte, 32+common.AddressLength+65)
	copy(extra[32:], signer[:])
	genesis := &types.Header{
		Number:     big.NewInt(0),
		Extra:      extra,
		Difficulty: big.NewInt(1),
		UncleHash:  types.EmptyUncleHash,
	}
	chain.add(genesis)

	return &cliqueImporterFixture{
		key:    key,
		signer: signer,
		chain:  chain,
		config: config,
		engine: clique.New(cliqueConfig, gethrawdb.NewMemoryDatabase()),
		root:   common.HexToHash("0xaa"),
	}
}

// block1 builds a correctly-sealed, fully self-consistent single-block
// header (matching an empty body run through fakeVMState), registers it
// with the chain reader and returns it alongside that body.
func (f *cliqueImporterFixture) block1(t *testing.T) (*types.Header, *types.Body) {
	t.Helper()
	genesis := f.chain.byNum[0]
	body := &types.Body{}

	header := &types.Header{
		ParentHash:  genesis.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Number:      big.NewInt(1),
		Time:        genesis.Time + 1,
		Extra:       make([]byte, 32+65),
		Difficulty:  big.NewInt(2), // the lone signer is always in-turn
		Root:        f.root,
		TxHash:      types.DeriveSha(types.Transactions(body.Transactions), types.NewStackTrieHasher()),
		ReceiptHash: types.DeriveSha(types.Receipts{}, types.NewStackTrieHasher()),
		Bloom:       types.CreateBloom(types.Receipts{}),
	}
	sig, err := crypto.Sign(clique.SealHash(header).Bytes(), f.key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	copy(header.Extra[len(header.Extra)-65:], sig)

	f.chain.add(header)
	return header, body
}

func (f *cliqueImporterFixture) newImporter(t *testing.T, opts ImporterConfig) (*ChainImporter, ethdb.Database) {
	t.Helper()
	db := gethrawdb.NewMemoryDatabase()
	newState := func(parentRoot common.Hash) (VMState, error) {
		return newFakeVMState(f.root), nil
	}
	importer := NewChainImporter(db, f.config, f.engine, f.chain, newState, opts)
	return importer, db
}

func TestPersistBlocksCommitsAndAdvancesHead(t *testing.T) {
	f := newCliqueImporterFixture(t)
	header, body := f.block1(t)

	importer, db := f.newImporter(t, ImporterConfig{ExtraValidation: ExtraValidationOff})
	result := importer.PersistBlocks([]*types.Header{header}, []*types.Body{body}, "")

	if result.FailedIndex != -1 || result.Err != nil {
		t.Fatalf("PersistBlocks = %+v, want a clean import", result)
	}
	if got := rawdb.ReadCanonicalHash(db, 1); got != header.Hash() {
		t.Errorf("ReadCanonicalHash(1) = %x, want %x", got, header.Hash())
	}
	if got := rawdb.ReadHeadBlockHash(db); got != header.Hash() {
		t.Errorf("ReadHeadBlockHash() = %x, want %x", got, header.Hash())
	}
}

func TestPersistBlocksZombifiesPeerOnFirstBlockFailure(t *testing.T) {
	f := newCliqueImporterFixture(t)
	header, body := f.block1(t)

	// Corrupt the header after signing so Process's gas-used check fails;
	// the signature and parent linkage are otherwise untouched.
	header.GasUsed = 1
	f.chain.add(header)

	importer, db := f.newImporter(t, ImporterConfig{ExtraValidation: ExtraValidationOff})
	result := importer.PersistBlocks([]*types.Header{header}, []*types.Body{body}, "peer-1")

	if result.Err == nil {
		t.Fatal("expected PersistBlocks to fail on the gas-used mismatch")
	}
	if result.FailedIndex != 0 || result.Zombie != "peer-1" || result.Reorg {
		t.Errorf("PersistBlocks result = %+v, want FailedIndex 0, Zombie peer-1, Reorg false", result)
	}
	if !importer.IsZombie("peer-1") {
		t.Error("expected the importer to record peer-1 as a zombie")
	}
	if got := rawdb.ReadCanonicalHash(db, 1); got != (common.Hash{}) {
		t.Errorf("ReadCanonicalHash(1) = %x, want zero: the failed block must not be committed", got)
	}
}

// A mid-batch failure still zombifies the peer, so long as the batch's
// first header attaches to a known on-disk parent: the chunk itself is
// bad, not the peer's view of the chain (spec.md §4.4 classifies on the
// first header's parent, not on which header in the batch actually failed).
func TestPersistBlocksZombifiesOnMidBatchFailureWhenFirstParentKnown(t *testing.T) {
	f := newCliqueImporterFixture(t)
	header1, body1 := f.block1(t)

	header2 := &types.Header{
		ParentHash: header1.Hash(),
		UncleHash:  types.EmptyUncleHash,
		TxHash:     types.DeriveSha(types.Transactions(nil), types.NewStackTrieHasher()),
		Number:     big.NewInt(2),
		Time:       header1.Time + 1,
		Extra:      make([]byte, 32+65),
		Difficulty: big.NewInt(2),
		GasUsed:    1, // deliberately wrong: fails Process's gas-used check
	}
	sig, err := crypto.Sign(clique.SealHash(header2).Bytes(), f.key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	copy(header2.Extra[len(header2.Extra)-65:], sig)
	f.chain.add(header2)

	importer, db := f.newImporter(t, ImporterConfig{ExtraValidation: ExtraValidationOff})
	result := importer.PersistBlocks([]*types.Header{header1, header2}, []*types.Body{body1, {}}, "peer-1")

	if result.Err == nil {
		t.Fatal("expected PersistBlocks to fail on block 2's gas-used mismatch")
	}
	if result.FailedIndex != 1 || result.Zombie != "peer-1" || result.Reorg {
		t.Errorf("PersistBlocks result = %+v, want FailedIndex 1, Zombie peer-1, Reorg false", result)
	}
	if !importer.IsZombie("peer-1") {
		t.Error("expected the importer to record peer-1 as a zombie: the chunk's first header attaches to a known parent")
	}
	if got := rawdb.ReadCanonicalHash(db, 1); got != (common.Hash{}) {
		t.Errorf("ReadCanonicalHash(1) = %x, want zero: the whole batch rolls back on any failure", got)
	}
}

// When the batch's first header does not attach to anything on disk, the
// failure (wherever in the batch it surfaces) is a chain divergence, not a
// bad chunk: no zombie, and a reorg backtrack is armed instead.
func TestPersistBlocksArmsReorgWhenFirstParentUnknown(t *testing.T) {
	f := newCliqueImporterFixture(t)

	orphan := &types.Header{
		ParentHash: common.HexToHash("0xdeadbeef"), // not registered with the chain reader
		UncleHash:  types.EmptyUncleHash,
		Number:     big.NewInt(1),
		Extra:      make([]byte, 32+65),
		Difficulty: big.NewInt(2),
	}
	sig, err := crypto.Sign(clique.SealHash(orphan).Bytes(), f.key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	copy(orphan.Extra[len(orphan.Extra)-65:], sig)

	importer, db := f.newImporter(t, ImporterConfig{ExtraValidation: ExtraValidationOff})
	result := importer.PersistBlocks([]*types.Header{orphan}, []*types.Body{{}}, "peer-1")

	if result.Err == nil {
		t.Fatal("expected PersistBlocks to fail on an unresolvable parent")
	}
	if result.FailedIndex != 0 || result.Zombie != "" || !result.Reorg {
		t.Errorf("PersistBlocks result = %+v, want FailedIndex 0, no Zombie, Reorg true", result)
	}
	if importer.IsZombie("peer-1") {
		t.Error("a batch whose first header doesn't attach to disk must not zombify the peer")
	}
	if got := rawdb.ReadCanonicalHash(db, 1); got != (common.Hash{}) {
		t.Errorf("ReadCanonicalHash(1) = %x, want zero: nothing should have been committed", got)
	}
}
