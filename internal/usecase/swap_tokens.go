package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// SwapTokens quotes and executes a swap through a deployed exchange
type SwapTokens struct {
	artifacts ContractFactory
	exchanges ExchangeBinder
	gateway   TxGateway
	log       *slog.Logger
}

// NewSwapTokens creates a new SwapTokens use case
func NewSwapTokens(artifacts ContractFactory, exchanges ExchangeBinder, gateway TxGateway, log *slog.Logger) *SwapTokens {
	return &SwapTokens{artifacts: artifacts, exchanges: exchanges, gateway: gateway, log: log}
}

// SwapTokensParams selects the exchange and the trade
type SwapTokensParams struct {
	Exchange common.Address
	Kind     ExchangeKind
	Request  models.QuoteRequest
	Signer   Signer
}

// SwapTokensResult describes a mined swap
type SwapTokensResult struct {
	Payload *models.SwapPayload
	TxHash  common.Hash
}

// Run binds the exchange, quotes the trade and sends it
func (uc *SwapTokens) Run(ctx context.Context, params SwapTokensParams) (*SwapTokensResult, error) {
	kind := params.Kind
	if kind == "" {
		kind = RoutedExchangeKind
	}
	artifact, err := uc.artifacts.Artifact(ctx, string(kind))
	if err != nil {
		return nil, err
	}
	exchange, err := uc.exchanges.Bind(ctx, kind, artifact.Bind(params.Exchange))
	if err != nil {
		return nil, err
	}

	payload, err := exchange.Quote(ctx, params.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to quote swap: %w", err)
	}
	hash, err := exchange.Swap(ctx, params.Signer, params.Request, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send swap: %w", err)
	}
	if err := waitSuccess(ctx, uc.gateway, hash, "swap"); err != nil {
		return nil, err
	}

	uc.log.Info("swap executed", "exchange", params.Exchange.Hex(), "tx", hash.Hex())
	return &SwapTokensResult{Payload: payload, TxHash: hash}, nil
}
