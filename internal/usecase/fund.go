package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FundAccount sets an account's native balance
type FundAccount struct {
	gateway StateGateway
	log     *slog.Logger
}

// NewFundAccount creates a new FundAccount use case
func NewFundAccount(gateway StateGateway, log *slog.Logger) *FundAccount {
	return &FundAccount{gateway: gateway, log: log}
}

// FundAccountResult reports the balance before and after
type FundAccountResult struct {
	Account  common.Address
	Previous *big.Int
	Balance  *big.Int
}

// Run sets account's balance to wei
func (uc *FundAccount) Run(ctx context.Context, account common.Address, wei *big.Int) (*FundAccountResult, error) {
	if wei == nil || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid balance %v", wei)
	}
	previous, err := uc.gateway.BalanceAt(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	if err := uc.gateway.SetBalance(ctx, account, wei); err != nil {
		return nil, fmt.Errorf("failed to set balance of %s: %w", account.Hex(), err)
	}
	uc.log.Info("account funded", "account", account.Hex(), "wei", wei.String())
	return &FundAccountResult{Account: account, Previous: previous, Balance: new(big.Int).Set(wei)}, nil
}

// FundToken moves ERC-20 tokens out of a holder's account by impersonating it
type FundToken struct {
	sandbox *Sandbox
	gateway TxGateway
	state   StateGateway
	log     *slog.Logger
}

// NewFundToken creates a new FundToken use case
func NewFundToken(sandbox *Sandbox, gateway TxGateway, state StateGateway, log *slog.Logger) *FundToken {
	return &FundToken{sandbox: sandbox, gateway: gateway, state: state, log: log}
}

// FundTokenParams describes a token transfer from a whale
type FundTokenParams struct {
	Token     common.Address
	Whale     common.Address
	Recipient common.Address
	Amount    *big.Int
	// WhaleGas is the native balance the whale is topped up to before sending
	WhaleGas *big.Int
}

// FundTokenResult describes a completed transfer
type FundTokenResult struct {
	TxHash  common.Hash
	Balance *big.Int
}

// Run transfers Amount of Token from Whale to Recipient
func (uc *FundToken) Run(ctx context.Context, params FundTokenParams) (*FundTokenResult, error) {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid token amount %v", params.Amount)
	}

	hash, err := WithImpersonation(ctx, uc.sandbox, params.Whale, params.WhaleGas,
		func(ctx context.Context, signer Signer) (common.Hash, error) {
			hash, err := sendTokenTransfer(ctx, signer, params.Token, params.Recipient, params.Amount)
			if err != nil {
				return common.Hash{}, err
			}
			return hash, waitSuccess(ctx, uc.gateway, hash, "token transfer")
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fund %s with %s: %w", params.Recipient.Hex(), params.Token.Hex(), err)
	}

	balance, err := tokenBalance(ctx, uc.state, params.Token, params.Recipient)
	if err != nil {
		return nil, err
	}
	uc.log.Info("token funded", "token", params.Token.Hex(), "recipient", params.Recipient.Hex(), "amount", params.Amount.String())
	return &FundTokenResult{TxHash: hash, Balance: balance}, nil
}
