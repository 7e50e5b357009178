package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTimeout() <-chan time.Time {
	return time.After(5 * time.Second)
}

// waitResult is what WaitMined returns for one hash
type waitResult struct {
	receipt *types.Receipt
	err     error
}

// fakeTxGateway blocks WaitMined until the test settles the hash
type fakeTxGateway struct {
	mu       sync.Mutex
	nonce    uint64
	gasPrice *big.Int
	results  map[common.Hash]chan waitResult
}

func newFakeTxGateway(nonce uint64) *fakeTxGateway {
	return &fakeTxGateway{
		nonce:    nonce,
		gasPrice: big.NewInt(30_000_000_000),
		results:  make(map[common.Hash]chan waitResult),
	}
}

func (g *fakeTxGateway) result(hash common.Hash) chan waitResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.results[hash]
	if !ok {
		ch = make(chan waitResult, 1)
		g.results[hash] = ch
	}
	return ch
}

func (g *fakeTxGateway) confirm(hash common.Hash, contract common.Address) {
	g.result(hash) <- waitResult{receipt: &types.Receipt{
		Status:          types.ReceiptStatusSuccessful,
		TxHash:          hash,
		ContractAddress: contract,
	}}
}

func (g *fakeTxGateway) revert(hash common.Hash) {
	g.result(hash) <- waitResult{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash}}
}

func (g *fakeTxGateway) fail(hash common.Hash, err error) {
	g.result(hash) <- waitResult{err: err}
}

func (g *fakeTxGateway) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (g *fakeTxGateway) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return g.nonce, nil
}

func (g *fakeTxGateway) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(g.gasPrice), nil
}

func (g *fakeTxGateway) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}

func (g *fakeTxGateway) SendTransaction(context.Context, *types.Transaction) error { return nil }

func (g *fakeTxGateway) SendUnsignedTransaction(context.Context, usecase.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not supported")
}

func (g *fakeTxGateway) WaitMined(ctx context.Context, hash common.Hash, _ uint64) (*types.Receipt, error) {
	select {
	case r := <-g.result(hash):
		return r.receipt, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sentTx is one call to fakeSigner.Send
type sentTx struct {
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
	Req      usecase.TxRequest
	Err      error
}

// fakeSigner hands out a fresh hash per send and reports every send on a channel
type fakeSigner struct {
	addr common.Address

	mu   sync.Mutex
	n    int
	sent chan sentTx
	// sendErr lets a test reject the n-th send (1-based)
	sendErr func(n int, req usecase.TxRequest) error
}

func newFakeSigner(addr common.Address) *fakeSigner {
	return &fakeSigner{addr: addr, sent: make(chan sentTx, 64)}
}

func (s *fakeSigner) Address() common.Address { return s.addr }

func (s *fakeSigner) Send(_ context.Context, req usecase.TxRequest) (common.Hash, error) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()

	tx := sentTx{Req: req}
	if req.Nonce != nil {
		tx.Nonce = *req.Nonce
	}
	if req.GasPrice != nil {
		tx.GasPrice = new(big.Int).Set(req.GasPrice)
	}
	if s.sendErr != nil {
		tx.Err = s.sendErr(n, req)
	}
	if tx.Err == nil {
		tx.Hash = crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d/%d", s.addr.Hex(), tx.Nonce, n)))
	}
	s.sent <- tx
	return tx.Hash, tx.Err
}

func (s *fakeSigner) sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// next returns the next send or fails the test
func (s *fakeSigner) next(t *testing.T) sentTx {
	t.Helper()
	select {
	case tx := <-s.sent:
		return tx
	case <-testTimeout():
		require.FailNow(t, "timed out waiting for a broadcast")
		return sentTx{}
	}
}

// MockContractFactory is a mock implementation of ContractFactory
type MockContractFactory struct {
	mock.Mock
}

func (m *MockContractFactory) Artifact(ctx context.Context, name string) (*models.Artifact, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Artifact), args.Error(1)
}

// MockDeploymentRegistry is a mock implementation of DeploymentRegistry
type MockDeploymentRegistry struct {
	mock.Mock
}

func (m *MockDeploymentRegistry) Save(ctx context.Context, record *models.DeploymentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDeploymentRegistry) Get(ctx context.Context, name string) (*models.DeploymentRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeploymentRecord), args.Error(1)
}

func (m *MockDeploymentRegistry) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DeploymentRecord), args.Error(1)
}

// memoryRegistry merges records like the file registry does
type memoryRegistry struct {
	mu      sync.Mutex
	records map[string]*models.DeploymentRecord
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{records: make(map[string]*models.DeploymentRecord)}
}

func (r *memoryRegistry) Save(_ context.Context, record *models.DeploymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ContractName]
	if !ok {
		existing = &models.DeploymentRecord{}
		r.records[record.ContractName] = existing
	}
	existing.Merge(record)
	return nil
}

func (r *memoryRegistry) Get(_ context.Context, name string) (*models.DeploymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return nil, fmt.Errorf("%s: not found", name)
	}
	return rec, nil
}

func (r *memoryRegistry) List(context.Context) ([]*models.DeploymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.DeploymentRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, nil
}

// staticArtifacts serves artifacts from a map
type staticArtifacts map[string]*models.Artifact

func (s staticArtifacts) Artifact(_ context.Context, name string) (*models.Artifact, error) {
	a, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("artifact %s: not found", name)
	}
	return a, nil
}

// testArtifact builds an artifact whose constructor takes the given solidity types
func testArtifact(t *testing.T, name string, ctorTypes ...string) *models.Artifact {
	t.Helper()
	inputs := make([]string, len(ctorTypes))
	for i, typ := range ctorTypes {
		inputs[i] = fmt.Sprintf(`{"name":"a%d","type":"%s"}`, i, typ)
	}
	raw := fmt.Sprintf(`[{"type":"constructor","stateMutability":"nonpayable","inputs":[%s]}]`, strings.Join(inputs, ","))
	parsed, err := abi.JSON(strings.NewReader(raw))
	require.NoError(t, err)
	return &models.Artifact{
		Name:     name,
		ABI:      parsed,
		RawABI:   []byte(raw),
		Bytecode: common.FromHex("0x6080604052"),
	}
}

// MockStateGateway is a mock implementation of StateGateway
type MockStateGateway struct {
	mock.Mock
}

func (m *MockStateGateway) StorageAt(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error) {
	args := m.Called(ctx, account, slot)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockStateGateway) SetStorageAt(ctx context.Context, account common.Address, slot, value common.Hash) error {
	args := m.Called(ctx, account, slot, value)
	return args.Error(0)
}

func (m *MockStateGateway) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStateGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockStateGateway) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	args := m.Called(ctx, account, wei)
	return args.Error(0)
}

func (m *MockStateGateway) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockImpersonationGateway is a mock implementation of ImpersonationGateway
type MockImpersonationGateway struct {
	mock.Mock
}

func (m *MockImpersonationGateway) ImpersonateAccount(ctx context.Context, account common.Address) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockImpersonationGateway) StopImpersonatingAccount(ctx context.Context, account common.Address) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockImpersonationGateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockImpersonationGateway) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	return m.Called(ctx, account, wei).Error(0)
}

// MockSnapshotGateway is a mock implementation of SnapshotGateway
type MockSnapshotGateway struct {
	mock.Mock
}

func (m *MockSnapshotGateway) Snapshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSnapshotGateway) Revert(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockSnapshotGateway) ResetFork(ctx context.Context, rpcURL string, blockNumber uint64) error {
	return m.Called(ctx, rpcURL, blockNumber).Error(0)
}

// impersonatedSigners hands out fake signers for impersonated accounts
type impersonatedSigners struct {
	mu      sync.Mutex
	signers map[common.Address]*fakeSigner
}

func newImpersonatedSigners() *impersonatedSigners {
	return &impersonatedSigners{signers: make(map[common.Address]*fakeSigner)}
}

func (f *impersonatedSigners) FromPrivateKey(context.Context, string) (usecase.Signer, error) {
	return nil, errors.New("not supported")
}

func (f *impersonatedSigners) Impersonated(account common.Address) usecase.Signer {
	return f.get(account)
}

func (f *impersonatedSigners) get(account common.Address) *fakeSigner {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.signers[account]
	if !ok {
		s = newFakeSigner(account)
		f.signers[account] = s
	}
	return s
}
