package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain"
)

// ImpersonationSession is the account a sandbox is currently acting as
type ImpersonationSession struct {
	Address common.Address
	Active  bool
}

// Sandbox runs actions as arbitrary accounts on a forked node.
// One session at a time; callers sharing a sandbox must serialise themselves.
type Sandbox struct {
	gateway ImpersonationGateway
	signers SignerFactory
	log     *slog.Logger

	mu      sync.Mutex
	session ImpersonationSession
}

// NewSandbox creates a new impersonation sandbox
func NewSandbox(gateway ImpersonationGateway, signers SignerFactory, log *slog.Logger) *Sandbox {
	return &Sandbox{
		gateway: gateway,
		signers: signers,
		log:     log,
	}
}

// Active returns the current session, if any
func (s *Sandbox) Active() (ImpersonationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.session.Active
}

func (s *Sandbox) open(ctx context.Context, account common.Address, minBalance *big.Int) error {
	s.mu.Lock()
	if s.session.Active {
		current := s.session.Address
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrImpersonationActive, current.Hex())
	}
	s.session = ImpersonationSession{Address: account, Active: true}
	s.mu.Unlock()

	if err := s.gateway.ImpersonateAccount(ctx, account); err != nil {
		s.clear()
		return fmt.Errorf("failed to impersonate %s: %w", account.Hex(), err)
	}

	if minBalance != nil && minBalance.Sign() > 0 {
		balance, err := s.gateway.BalanceAt(ctx, account)
		if err == nil && balance.Cmp(minBalance) < 0 {
			s.log.Debug("topping up impersonated account", "account", account.Hex(), "balance", balance.String(), "target", minBalance.String())
			err = s.gateway.SetBalance(ctx, account, minBalance)
		}
		if err != nil {
			stopErr := s.close(ctx, account)
			return errors.Join(fmt.Errorf("failed to fund %s: %w", account.Hex(), err), stopErr)
		}
	}
	return nil
}

// close always ends the session locally, even when the node refuses the stop call
func (s *Sandbox) close(ctx context.Context, account common.Address) error {
	defer s.clear()
	// the node must hear the stop even if the action's context was cancelled
	if err := s.gateway.StopImpersonatingAccount(context.WithoutCancel(ctx), account); err != nil {
		return fmt.Errorf("failed to stop impersonating %s: %w", account.Hex(), err)
	}
	return nil
}

func (s *Sandbox) clear() {
	s.mu.Lock()
	s.session = ImpersonationSession{}
	s.mu.Unlock()
}

// WithImpersonation runs action with a signer for account. The account is topped
// up to minBalance first if it holds less. Impersonation is stopped exactly once
// when action returns, fails or panics.
func WithImpersonation[T any](
	ctx context.Context,
	sandbox *Sandbox,
	account common.Address,
	minBalance *big.Int,
	action func(ctx context.Context, signer Signer) (T, error),
) (result T, err error) {
	if err = sandbox.open(ctx, account, minBalance); err != nil {
		return result, err
	}
	sandbox.log.Debug("impersonating", "account", account.Hex())

	defer func() {
		if stopErr := sandbox.close(ctx, account); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		sandbox.log.Debug("stopped impersonating", "account", account.Hex())
	}()

	return action(ctx, sandbox.signers.Impersonated(account))
}
