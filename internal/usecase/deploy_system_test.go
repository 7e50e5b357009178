package usecase_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

type fakeExchange struct {
	contract *models.BoundContract
}

func (e *fakeExchange) Contract() *models.BoundContract { return e.contract }

func (e *fakeExchange) Quote(context.Context, models.QuoteRequest) (*models.SwapPayload, error) {
	return &models.SwapPayload{To: e.contract.Address}, nil
}

func (e *fakeExchange) Swap(context.Context, usecase.Signer, models.QuoteRequest, *models.SwapPayload) (common.Hash, error) {
	return common.Hash{}, nil
}

// fakePricedExchange records prices and confirms every call at once
type fakePricedExchange struct {
	fakeExchange
	gateway *fakeTxGateway

	mu         sync.Mutex
	n          int
	prices     map[common.Address]*big.Int
	precisions map[common.Address]uint64
}

func (e *fakePricedExchange) tx() common.Hash {
	e.n++
	hash := crypto.Keccak256Hash([]byte("exchange"), big.NewInt(int64(e.n)).Bytes())
	e.gateway.confirm(hash, common.Address{})
	return hash
}

func (e *fakePricedExchange) SetPrice(_ context.Context, _ usecase.Signer, token common.Address, price *big.Int) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[token] = price
	return e.tx(), nil
}

func (e *fakePricedExchange) SetPrecision(_ context.Context, _ usecase.Signer, token common.Address, precision uint64) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.precisions[token] = precision
	return e.tx(), nil
}

type exchangeBinderFunc func(ctx context.Context, kind usecase.ExchangeKind, contract *models.BoundContract) (usecase.Exchange, error)

func (f exchangeBinderFunc) Bind(ctx context.Context, kind usecase.ExchangeKind, contract *models.BoundContract) (usecase.Exchange, error) {
	return f(ctx, kind, contract)
}

// confirmAll confirms every transaction a signer sends
type confirmAll struct {
	mu   sync.Mutex
	sent []sentTx
}

func (c *confirmAll) run(ctx context.Context, gateway *fakeTxGateway, signer *fakeSigner) {
	for {
		select {
		case tx := <-signer.sent:
			c.mu.Lock()
			c.sent = append(c.sent, tx)
			c.mu.Unlock()
			gateway.confirm(tx.Hash, common.Address{})
		case <-ctx.Done():
			return
		}
	}
}

func (c *confirmAll) all() []sentTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentTx(nil), c.sent...)
}

type systemFixture struct {
	cfg      *config.RuntimeConfig
	gateway  *fakeTxGateway
	state    *MockStateGateway
	imp      *MockImpersonationGateway
	signer   *fakeSigner
	miner    *autoMiner
	whaleTxs *confirmAll
	priced   *fakePricedExchange
	bound    usecase.ExchangeKind
	uc       *usecase.DeploySystem
}

func newSystemFixture(t *testing.T) *systemFixture {
	t.Helper()
	f := &systemFixture{
		cfg: &config.RuntimeConfig{
			Network: &config.Network{Name: "local", ChainID: 31337},
			Deploy:  config.DeployConfig{ResendInterval: time.Minute},
			System: config.SystemConfig{
				FeeBeneficiary: common.HexToAddress("0x00000000000000000000000000000000000000fe"),
				FeeBps:         20,
				WhaleBalance:   big.NewInt(1e18),
			},
		},
		gateway:  newFakeTxGateway(0),
		state:    new(MockStateGateway),
		imp:      new(MockImpersonationGateway),
		signer:   newFakeSigner(deployer),
		whaleTxs: &confirmAll{},
	}

	artifacts := staticArtifacts{
		usecase.ProxyFactoryNode:  testArtifact(t, usecase.ProxyFactoryNode),
		usecase.ProxyRegistryNode: testArtifact(t, usecase.ProxyRegistryNode, "address"),
		usecase.ProxyActionsNode:  testArtifact(t, usecase.ProxyActionsNode),
		usecase.McdViewNode:       testArtifact(t, usecase.McdViewNode),
		"Exchange":                testArtifact(t, "Exchange", "address", "address", "uint256"),
		"DummyExchange":           testArtifact(t, "DummyExchange", "address", "uint256"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f.miner = newAutoMiner(f.gateway, f.signer)
	for n := uint64(0); n < 8; n++ {
		f.miner.addresses[n] = common.BigToAddress(big.NewInt(int64(0x1000 + n)))
	}
	go f.miner.run(ctx)

	signers := newImpersonatedSigners()
	go f.whaleTxs.run(ctx, f.gateway, signers.get(whale))

	binder := exchangeBinderFunc(func(_ context.Context, kind usecase.ExchangeKind, contract *models.BoundContract) (usecase.Exchange, error) {
		f.bound = kind
		if kind == usecase.DummyExchangeKind {
			f.priced = &fakePricedExchange{
				fakeExchange: fakeExchange{contract: contract},
				gateway:      f.gateway,
				prices:       map[common.Address]*big.Int{},
				precisions:   map[common.Address]uint64{},
			}
			return f.priced, nil
		}
		return &fakeExchange{contract: contract}, nil
	})

	registry := newMemoryRegistry()
	log := discardLogger()
	deployContract := usecase.NewDeployContract(f.cfg, f.gateway, artifacts, registry, clockwork.NewFakeClock(), usecase.NopProgress{}, log)
	graph := usecase.NewDeployGraph(deployContract, f.gateway, usecase.NopProgress{}, log)
	sandbox := usecase.NewSandbox(f.imp, signers, log)
	f.uc = usecase.NewDeploySystem(f.cfg, graph, f.state, f.gateway, artifacts, binder, sandbox, usecase.NopProgress{}, log)
	return f
}

func TestDeploySystem_FreshRoutedExchange(t *testing.T) {
	f := newSystemFixture(t)

	system, err := f.uc.Run(context.Background(), usecase.DeploySystemParams{Signer: f.signer})
	require.NoError(t, err)

	// nonce order: factory, actions, view, registry, exchange
	assert.Equal(t, f.miner.addresses[0], system.ProxyFactory.Address)
	assert.Equal(t, f.miner.addresses[1], system.MultiplyProxyActions.Address)
	assert.Equal(t, f.miner.addresses[2], system.McdView.Address)
	assert.Equal(t, f.miner.addresses[3], system.ProxyRegistry.Address)
	assert.Equal(t, f.miner.addresses[4], system.Exchange.Contract().Address)
	assert.Equal(t, usecase.RoutedExchangeKind, f.bound)
	assert.Nil(t, system.Priced)
	assert.Len(t, system.Deployments, 5)
}

func TestDeploySystem_ReusesExistingRegistry(t *testing.T) {
	f := newSystemFixture(t)
	existing := common.HexToAddress("0x4678f0a6958e4D2Bc4F1BAF7Bc52E8F3564f3fE4")
	f.cfg.System.ProxyRegistry = existing
	f.state.On("CodeAt", mock.Anything, existing).Return([]byte{0x60, 0x80}, nil)

	system, err := f.uc.Run(context.Background(), usecase.DeploySystemParams{Signer: f.signer})
	require.NoError(t, err)

	assert.Nil(t, system.ProxyFactory)
	assert.Equal(t, existing, system.ProxyRegistry.Address)
	assert.Len(t, system.Deployments, 3)
	assert.Empty(t, f.miner.broadcasts(3))
}

func TestDeploySystem_DeploysRegistryWhenConfiguredOneHasNoCode(t *testing.T) {
	f := newSystemFixture(t)
	f.cfg.System.ProxyRegistry = common.HexToAddress("0x4678f0a6958e4D2Bc4F1BAF7Bc52E8F3564f3fE4")
	f.state.On("CodeAt", mock.Anything, f.cfg.System.ProxyRegistry).Return([]byte{}, nil)

	system, err := f.uc.Run(context.Background(), usecase.DeploySystemParams{Signer: f.signer})
	require.NoError(t, err)
	assert.NotNil(t, system.ProxyFactory)
	assert.Equal(t, f.miner.addresses[3], system.ProxyRegistry.Address)
}

func TestDeploySystem_DummyExchangeWithFixtures(t *testing.T) {
	f := newSystemFixture(t)
	dai := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	f.imp.On("ImpersonateAccount", mock.Anything, whale).Return(nil)
	f.imp.On("BalanceAt", mock.Anything, whale).Return(big.NewInt(0), nil)
	f.imp.On("SetBalance", mock.Anything, whale, big.NewInt(1e18)).Return(nil)
	f.imp.On("StopImpersonatingAccount", mock.Anything, whale).Return(nil).Once()

	fixtures := []models.PriceFixture{{
		Token:     dai,
		Symbol:    "DAI",
		Price:     "1000000000000000000",
		Precision: 18,
		Whale:     whale,
		Amount:    "500000000000000000000",
	}}

	system, err := f.uc.Run(context.Background(), usecase.DeploySystemParams{
		Signer:        f.signer,
		DummyExchange: true,
		Fixtures:      fixtures,
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.DummyExchangeKind, f.bound)
	require.NotNil(t, system.Priced)
	assert.Equal(t, "1000000000000000000", f.priced.prices[dai].String())
	assert.Equal(t, uint64(18), f.priced.precisions[dai])

	transfers := f.whaleTxs.all()
	require.Len(t, transfers, 1)
	assert.Equal(t, dai, *transfers[0].Req.To)
	exchangeAddr := system.Exchange.Contract().Address
	assert.Equal(t, common.LeftPadBytes(exchangeAddr.Bytes(), 32), transfers[0].Req.Data[4:36])
	f.imp.AssertExpectations(t)
}

func TestDeploySystem_FixturesNeedPricedExchange(t *testing.T) {
	f := newSystemFixture(t)

	_, err := f.uc.Run(context.Background(), usecase.DeploySystemParams{
		Signer:   f.signer,
		Fixtures: []models.PriceFixture{{Token: common.HexToAddress("0x01"), Price: "1"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotPricedExchange)
}
