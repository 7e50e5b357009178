package exchange

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

const swapABI = `{"type":"function","name":"swapTokenForToken","stateMutability":"nonpayable","inputs":[
	{"name":"assetFrom","type":"address"},{"name":"assetTo","type":"address"},
	{"name":"amount","type":"uint256"},{"name":"receiveAtLeast","type":"uint256"},
	{"name":"callee","type":"address"},{"name":"withData","type":"bytes"}],"outputs":[]}`

const pricedABI = `{"type":"function","name":"setPrice","stateMutability":"nonpayable","inputs":[
	{"name":"token","type":"address"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setPrecision","stateMutability":"nonpayable","inputs":[
	{"name":"token","type":"address"},{"name":"precision","type":"uint256"}],"outputs":[]}`

var (
	exchangeAddr = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	dai          = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	weth         = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	router       = common.HexToAddress("0x1111111254fb6c44bAC0beD2854e76F90643097d")
)

func boundContract(t *testing.T, name string, entries ...string) *models.BoundContract {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader("[" + strings.Join(entries, ",") + "]"))
	require.NoError(t, err)
	return &models.BoundContract{Name: name, Address: exchangeAddr, ABI: parsed}
}

type recordingSigner struct {
	from common.Address
	sent []usecase.TxRequest
}

func (s *recordingSigner) Address() common.Address { return s.from }

func (s *recordingSigner) Send(_ context.Context, req usecase.TxRequest) (common.Hash, error) {
	s.sent = append(s.sent, req)
	return common.BigToHash(big.NewInt(int64(len(s.sent)))), nil
}

type quoterFunc func(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error)

func (f quoterFunc) Run(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error) {
	return f(ctx, req)
}

func TestBinder_Bind(t *testing.T) {
	binder := NewBinder(nil)
	ctx := context.Background()

	t.Run("routed", func(t *testing.T) {
		ex, err := binder.Bind(ctx, usecase.RoutedExchangeKind, boundContract(t, "Exchange", swapABI))
		require.NoError(t, err)
		assert.IsType(t, &RoutedExchange{}, ex)
		_, priced := ex.(usecase.PricedExchange)
		assert.False(t, priced)
	})

	t.Run("dummy", func(t *testing.T) {
		ex, err := binder.Bind(ctx, usecase.DummyExchangeKind, boundContract(t, "DummyExchange", swapABI, pricedABI))
		require.NoError(t, err)
		_, priced := ex.(usecase.PricedExchange)
		assert.True(t, priced)
	})

	t.Run("dummy without price setters", func(t *testing.T) {
		_, err := binder.Bind(ctx, usecase.DummyExchangeKind, boundContract(t, "DummyExchange", swapABI))
		assert.ErrorIs(t, err, domain.ErrNotPricedExchange)
	})

	t.Run("not an exchange", func(t *testing.T) {
		_, err := binder.Bind(ctx, usecase.RoutedExchangeKind, boundContract(t, "McdView", pricedABI))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "swapTokenForToken")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := binder.Bind(ctx, usecase.ExchangeKind("Uniswap"), boundContract(t, "Exchange", swapABI))
		assert.Error(t, err)
	})
}

func TestRoutedExchange_QuoteAndSwap(t *testing.T) {
	var seen models.QuoteRequest
	quoter := quoterFunc(func(_ context.Context, req models.QuoteRequest) (*models.SwapPayload, error) {
		seen = req
		return &models.SwapPayload{To: router, Data: []byte{0xde, 0xad}}, nil
	})
	contract := boundContract(t, "Exchange", swapABI)
	ex, err := NewBinder(quoter).Bind(context.Background(), usecase.RoutedExchangeKind, contract)
	require.NoError(t, err)

	req := models.QuoteRequest{
		From:       weth,
		To:         dai,
		Amount:     big.NewInt(1e18),
		MinReceive: big.NewInt(3000),
	}
	payload, err := ex.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, exchangeAddr, seen.Beneficiary)

	signer := &recordingSigner{from: common.HexToAddress("0x0a")}
	_, err = ex.Swap(context.Background(), signer, req, payload)
	require.NoError(t, err)

	require.Len(t, signer.sent, 1)
	sent := signer.sent[0]
	assert.Equal(t, signer.from, sent.From)
	assert.Equal(t, exchangeAddr, *sent.To)

	method := contract.ABI.Methods["swapTokenForToken"]
	assert.Equal(t, method.ID, sent.Data[:4])
	args, err := method.Inputs.Unpack(sent.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, weth, args[0])
	assert.Equal(t, dai, args[1])
	assert.Equal(t, "3000", args[3].(*big.Int).String())
	assert.Equal(t, router, args[4])
	assert.Equal(t, []byte{0xde, 0xad}, args[5])
}

func TestRoutedExchange_SwapWithoutPayload(t *testing.T) {
	ex := &RoutedExchange{contract: boundContract(t, "Exchange", swapABI)}
	_, err := ex.Swap(context.Background(), &recordingSigner{}, models.QuoteRequest{}, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQuote)
}

func TestDummyExchange_SetPriceAndPrecision(t *testing.T) {
	contract := boundContract(t, "DummyExchange", swapABI, pricedABI)
	ex := &DummyExchange{contract: contract}
	signer := &recordingSigner{from: common.HexToAddress("0x0a")}
	ctx := context.Background()

	_, err := ex.SetPrice(ctx, signer, dai, big.NewInt(1e18))
	require.NoError(t, err)
	_, err = ex.SetPrecision(ctx, signer, dai, 18)
	require.NoError(t, err)
	require.Len(t, signer.sent, 2)

	setPrice := contract.ABI.Methods["setPrice"]
	assert.Equal(t, setPrice.ID, signer.sent[0].Data[:4])
	args, err := setPrice.Inputs.Unpack(signer.sent[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, dai, args[0])
	assert.Equal(t, "1000000000000000000", args[1].(*big.Int).String())

	setPrecision := contract.ABI.Methods["setPrecision"]
	args, err = setPrecision.Inputs.Unpack(signer.sent[1].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(18), args[1].(*big.Int).Int64())

	payload, err := ex.Quote(ctx, models.QuoteRequest{From: weth, To: dai})
	require.NoError(t, err)
	assert.Equal(t, exchangeAddr, payload.To)
}
