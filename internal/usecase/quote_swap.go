package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go/v4"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// QuoteSwap asks the aggregator for a swap payload, re-issuing the whole
// request a bounded number of times
type QuoteSwap struct {
	cfg        *config.RuntimeConfig
	aggregator QuoteAggregator
	gateway    TxGateway
	log        *slog.Logger
}

// NewQuoteSwap creates a new QuoteSwap use case
func NewQuoteSwap(cfg *config.RuntimeConfig, aggregator QuoteAggregator, gateway TxGateway, log *slog.Logger) *QuoteSwap {
	return &QuoteSwap{cfg: cfg, aggregator: aggregator, gateway: gateway, log: log}
}

// Run returns the aggregator's payload unchanged, or a QuoteExhaustedError
// carrying the last failure
func (uc *QuoteSwap) Run(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: swap amount %v", domain.ErrInvalidQuoteRequest, req.Amount)
	}
	chainID, err := uc.chainID(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Protocols) == 0 {
		req.Protocols = uc.cfg.Quote.Protocols
	}

	attempts := uc.cfg.Quote.Attempts
	if attempts == 0 {
		attempts = config.DefaultQuoteAttempts
	}
	delay := uc.cfg.Quote.Delay
	if delay <= 0 {
		delay = config.DefaultQuoteDelay
	}

	tries := 0
	payload, err := retry.DoWithData(
		func() (*models.SwapPayload, error) {
			tries++
			p, err := uc.aggregator.Quote(ctx, chainID, req)
			if err != nil {
				return nil, err
			}
			if p == nil || len(p.Data) == 0 {
				return nil, domain.ErrEmptyQuote
			}
			return p, nil
		},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, domain.ErrInvalidQuoteRequest)
		}),
		retry.OnRetry(func(n uint, err error) {
			uc.log.Warn("quote failed, retrying", "attempt", n+1, "of", attempts, "error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrInvalidQuoteRequest) {
			return nil, err
		}
		return nil, &domain.QuoteExhaustedError{Attempts: tries, Err: err}
	}
	return payload, nil
}

func (uc *QuoteSwap) chainID(ctx context.Context) (uint64, error) {
	if uc.cfg.Network != nil && uc.cfg.Network.ChainID != 0 {
		return uc.cfg.Network.ChainID, nil
	}
	if uc.gateway == nil {
		return 0, domain.ErrNoNetwork
	}
	id, err := uc.gateway.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id.Uint64(), nil
}
