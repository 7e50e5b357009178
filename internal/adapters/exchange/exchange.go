package exchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

const (
	swapMethod         = "swapTokenForToken"
	setPriceMethod     = "setPrice"
	setPrecisionMethod = "setPrecision"
)

// Quoter produces swap payloads for the routed exchange
type Quoter interface {
	Run(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error)
}

// Binder wraps deployed exchange contracts
type Binder struct {
	quoter Quoter
}

// NewBinder creates a new exchange binder
func NewBinder(quoter Quoter) *Binder {
	return &Binder{quoter: quoter}
}

// Bind checks the contract's ABI against kind and returns the matching exchange
func (b *Binder) Bind(ctx context.Context, kind usecase.ExchangeKind, contract *models.BoundContract) (usecase.Exchange, error) {
	if contract == nil {
		return nil, fmt.Errorf("no %s contract to bind", kind)
	}
	if err := requireMethods(contract, swapMethod); err != nil {
		return nil, err
	}

	switch kind {
	case usecase.RoutedExchangeKind:
		return &RoutedExchange{contract: contract, quoter: b.quoter}, nil
	case usecase.DummyExchangeKind:
		if err := requireMethods(contract, setPriceMethod, setPrecisionMethod); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrNotPricedExchange, err)
		}
		return &DummyExchange{contract: contract}, nil
	default:
		return nil, fmt.Errorf("unknown exchange kind %q", kind)
	}
}

func requireMethods(contract *models.BoundContract, methods ...string) error {
	for _, m := range methods {
		if _, ok := contract.ABI.Methods[m]; !ok {
			return fmt.Errorf("%s at %s has no %s method", contract.Name, contract.Address.Hex(), m)
		}
	}
	return nil
}

// RoutedExchange forwards swaps to calldata from the quote aggregator
type RoutedExchange struct {
	contract *models.BoundContract
	quoter   Quoter
}

// Contract returns the bound exchange contract
func (e *RoutedExchange) Contract() *models.BoundContract { return e.contract }

// Quote asks the aggregator for a route paying out to the exchange contract
func (e *RoutedExchange) Quote(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error) {
	req.Beneficiary = e.contract.Address
	return e.quoter.Run(ctx, req)
}

// Swap executes payload through the exchange
func (e *RoutedExchange) Swap(ctx context.Context, signer usecase.Signer, req models.QuoteRequest, payload *models.SwapPayload) (common.Hash, error) {
	return swap(ctx, e.contract, signer, req, payload)
}

// DummyExchange is the fixed-price test venue
type DummyExchange struct {
	contract *models.BoundContract
}

// Contract returns the bound exchange contract
func (e *DummyExchange) Contract() *models.BoundContract { return e.contract }

// Quote needs no aggregator; the dummy exchange fills at its set price
func (e *DummyExchange) Quote(_ context.Context, req models.QuoteRequest) (*models.SwapPayload, error) {
	return &models.SwapPayload{To: e.contract.Address}, nil
}

// Swap executes at the fixed price
func (e *DummyExchange) Swap(ctx context.Context, signer usecase.Signer, req models.QuoteRequest, payload *models.SwapPayload) (common.Hash, error) {
	return swap(ctx, e.contract, signer, req, payload)
}

// SetPrice sets token's price in the exchange's quote units
func (e *DummyExchange) SetPrice(ctx context.Context, signer usecase.Signer, token common.Address, price *big.Int) (common.Hash, error) {
	return send(ctx, e.contract, signer, setPriceMethod, token, price)
}

// SetPrecision sets token's decimals
func (e *DummyExchange) SetPrecision(ctx context.Context, signer usecase.Signer, token common.Address, precision uint64) (common.Hash, error) {
	return send(ctx, e.contract, signer, setPrecisionMethod, token, new(big.Int).SetUint64(precision))
}

func swap(ctx context.Context, contract *models.BoundContract, signer usecase.Signer, req models.QuoteRequest, payload *models.SwapPayload) (common.Hash, error) {
	if payload == nil {
		return common.Hash{}, domain.ErrEmptyQuote
	}
	minReceive := req.MinReceive
	if minReceive == nil {
		minReceive = new(big.Int)
	}
	data := payload.Data
	if data == nil {
		data = []byte{}
	}
	return send(ctx, contract, signer, swapMethod, req.From, req.To, req.Amount, minReceive, payload.To, data)
}

func send(ctx context.Context, contract *models.BoundContract, signer usecase.Signer, method string, args ...any) (common.Hash, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, err
	}
	to := contract.Address
	hash, err := signer.Send(ctx, usecase.TxRequest{From: signer.Address(), To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s.%s: %w", contract.Name, method, err)
	}
	return hash, nil
}

var (
	_ usecase.ExchangeBinder = (*Binder)(nil)
	_ usecase.Exchange       = (*RoutedExchange)(nil)
	_ usecase.PricedExchange = (*DummyExchange)(nil)
)
