package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// DeployContract deploys a single contract. If no receipt shows up within the
// resend interval it rebroadcasts the same nonce at a higher gas price.
type DeployContract struct {
	cfg       *config.RuntimeConfig
	gateway   TxGateway
	artifacts ContractFactory
	registry  DeploymentRegistry
	clock     clockwork.Clock
	progress  ProgressSink
	log       *slog.Logger
}

// NewDeployContract creates a new DeployContract use case
func NewDeployContract(
	cfg *config.RuntimeConfig,
	gateway TxGateway,
	artifacts ContractFactory,
	registry DeploymentRegistry,
	clock clockwork.Clock,
	progress ProgressSink,
	log *slog.Logger,
) *DeployContract {
	return &DeployContract{
		cfg:       cfg,
		gateway:   gateway,
		artifacts: artifacts,
		registry:  registry,
		clock:     clock,
		progress:  progress,
		log:       log,
	}
}

// DeployContractParams contains parameters for a deployment
type DeployContractParams struct {
	ContractName string
	Args         []any
	Signer       Signer
	// GasPrice seeds the first attempt; nil picks the network default
	GasPrice *big.Int
	// Nonce pins the nonce; nil reads the signer's pending nonce
	Nonce *uint64
}

// DeployContractResult describes a confirmed deployment
type DeployContractResult struct {
	Contract *models.BoundContract
	Address  common.Address
	TxHash   common.Hash
	Receipt  *types.Receipt
	Nonce    uint64
	// Attempts is the number of broadcasts issued
	Attempts int
	// GasPrice is the price of the attempt that confirmed
	GasPrice *big.Int
	// GasPrices lists every broadcast price in order
	GasPrices []*big.Int
}

type deployState int

const (
	stateBroadcast deployState = iota
	stateAwaitConfirm
)

// attemptOutcome is what a receipt waiter reports back
type attemptOutcome struct {
	attempt *models.PendingDeployment
	receipt *types.Receipt
	err     error
}

// Run deploys the contract and records it in the registry
func (uc *DeployContract) Run(ctx context.Context, params DeployContractParams) (*DeployContractResult, error) {
	if params.Signer == nil {
		return nil, fmt.Errorf("no signer for %s", params.ContractName)
	}

	artifact, err := uc.artifacts.Artifact(ctx, params.ContractName)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", params.ContractName, err)
	}

	data, err := artifact.DeployData(params.Args...)
	if err != nil {
		return nil, &domain.PermanentDeployError{Contract: params.ContractName, Err: err}
	}

	var nonce uint64
	if params.Nonce != nil {
		nonce = *params.Nonce
	} else {
		nonce, err = uc.gateway.PendingNonceAt(ctx, params.Signer.Address())
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce for %s: %w", params.Signer.Address().Hex(), err)
		}
	}

	gasPrice := params.GasPrice
	if gasPrice == nil {
		gasPrice, err = uc.seedGasPrice(ctx)
		if err != nil {
			return nil, err
		}
	}

	pending := &models.PendingDeployment{
		ContractName:    params.ContractName,
		ConstructorArgs: params.Args,
		Signer:          params.Signer.Address(),
		Nonce:           nonce,
		GasPrice:        new(big.Int).Set(gasPrice),
		Attempt:         1,
	}

	result, err := uc.resendUntilConfirmed(ctx, params.Signer, data, pending)
	if err != nil {
		return nil, err
	}
	result.Contract = artifact.Bind(result.Address)

	if err := uc.persist(ctx, artifact, result.Address, params.Args); err != nil {
		return nil, fmt.Errorf("deployed %s at %s but failed to record it: %w",
			params.ContractName, result.Address.Hex(), err)
	}
	return result, nil
}

// resendUntilConfirmed is the BROADCAST -> AWAIT_CONFIRM -> {CONFIRMED, TIMEOUT} loop.
// Every successful broadcast gets its own receipt waiter; whichever attempt
// confirms first wins, including attempts that were already superseded.
func (uc *DeployContract) resendUntilConfirmed(
	ctx context.Context,
	signer Signer,
	data []byte,
	current *models.PendingDeployment,
) (*DeployContractResult, error) {
	name := current.ContractName
	interval := uc.cfg.Deploy.ResendInterval
	if interval <= 0 {
		interval = config.DefaultResendInterval
	}
	confirmations := uc.cfg.Deploy.Confirmations
	if confirmations == 0 {
		confirmations = config.DefaultConfirmations
	}

	waitCtx, cancelWaiters := context.WithCancel(ctx)
	defer cancelWaiters()
	outcomes := make(chan attemptOutcome)

	var deadline <-chan time.Time
	if uc.cfg.Deploy.MaxDuration > 0 {
		deadlineTimer := uc.clock.NewTimer(uc.cfg.Deploy.MaxDuration)
		defer deadlineTimer.Stop()
		deadline = deadlineTimer.Chan()
	}

	var (
		lastErr    error
		gasPrices  []*big.Int
		broadcasts []*models.PendingDeployment
		inflight   int
		timer     clockwork.Timer
		state     = stateBroadcast
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	defer stopTimer()

	for {
		switch state {
		case stateBroadcast:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if max := uc.cfg.Deploy.MaxAttempts; max > 0 && current.Attempt > max {
				return nil, fmt.Errorf("%w: %s not confirmed after %d attempts: %v",
					domain.ErrResendBudgetExhausted, name, max, lastErr)
			}

			hash, err := signer.Send(ctx, TxRequest{
				From:     signer.Address(),
				Data:     data,
				GasPrice: current.GasPrice,
				Gas:      uc.cfg.Deploy.GasLimit,
				Nonce:    &current.Nonce,
			})
			gasPrices = append(gasPrices, new(big.Int).Set(current.GasPrice))

			switch {
			case err == nil:
				current.TxHash = hash
				current.SentAt = uc.clock.Now()
				broadcasts = append(broadcasts, current)
				inflight++
				go uc.awaitReceipt(waitCtx, current, confirmations, outcomes)

				uc.log.Info("broadcast deployment",
					"contract", name, "attempt", current.Attempt, "nonce", current.Nonce,
					"gasPrice", current.GasPrice.String(), "tx", hash.Hex())
				uc.progress.OnProgress(ctx, ProgressEvent{
					Stage:    "Broadcasting",
					Current:  current.Attempt,
					Total:    uc.cfg.Deploy.MaxAttempts,
					Message:  fmt.Sprintf("%s (attempt %d)", name, current.Attempt),
					Spinner:  true,
					Metadata: current,
				})

			case domain.IsAlreadyKnown(err) && inflight > 0:
				// an earlier attempt with this nonce is already pooled or mined
				uc.log.Debug("resend rejected, earlier attempt still pending",
					"contract", name, "attempt", current.Attempt, "error", err)

			case domain.IsAlreadyKnown(err) && len(broadcasts) > 0:
				// every earlier waiter gave up but the nonce is spent, so one of them landed
				uc.log.Info("resend rejected, watching earlier attempts again",
					"contract", name, "attempt", current.Attempt, "watching", len(broadcasts), "error", err)
				for _, earlier := range broadcasts {
					inflight++
					go uc.awaitReceipt(waitCtx, earlier, confirmations, outcomes)
				}

			default:
				classified := domain.ClassifyDeployError(name, "broadcast", err)
				if domain.IsPermanentDeployError(classified) {
					return nil, classified
				}
				// counts as a timeout: the resend timer decides when to try again
				lastErr = classified
				uc.log.Warn("broadcast failed",
					"contract", name, "attempt", current.Attempt, "error", err)
			}
			state = stateAwaitConfirm

		case stateAwaitConfirm:
			if timer == nil {
				timer = uc.clock.NewTimer(interval)
			}

			select {
			case out := <-outcomes:
				inflight--

				if out.err == nil {
					stopTimer()
					cancelWaiters()
					return uc.confirmed(out, gasPrices), nil
				}

				if err := ctx.Err(); err != nil {
					return nil, err
				}
				classified := domain.ClassifyDeployError(name, "wait for receipt", out.err)
				if domain.IsPermanentDeployError(classified) {
					return nil, classified
				}
				if out.attempt.TxHash != current.TxHash {
					uc.log.Debug("superseded attempt failed",
						"contract", name, "attempt", out.attempt.Attempt, "error", out.err)
					continue
				}
				lastErr = classified
				uc.log.Warn("confirmation failed, resending",
					"contract", name, "attempt", current.Attempt, "error", out.err)
				stopTimer()
				current = current.NextAttempt(domain.EscalateGasPrice(current.GasPrice))
				state = stateBroadcast

			case <-timer.Chan():
				timer = nil
				if current.TxHash != (common.Hash{}) {
					lastErr = &domain.TransientGatewayError{
						Op:  "wait for receipt",
						Err: fmt.Errorf("no receipt for %s within %s", current.TxHash.Hex(), interval),
					}
				}
				next := current.NextAttempt(domain.EscalateGasPrice(current.GasPrice))
				uc.log.Warn("deployment timed out, bumping gas price",
					"contract", name, "attempt", current.Attempt,
					"gasPrice", current.GasPrice.String(), "nextGasPrice", next.GasPrice.String())
				current = next
				state = stateBroadcast

			case <-deadline:
				return nil, fmt.Errorf("%w: %s not confirmed within %s: %v",
					domain.ErrResendBudgetExhausted, name, uc.cfg.Deploy.MaxDuration, lastErr)

			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// awaitReceipt waits for one attempt and reports the outcome unless the loop is gone
func (uc *DeployContract) awaitReceipt(ctx context.Context, attempt *models.PendingDeployment, confirmations uint64, out chan<- attemptOutcome) {
	receipt, err := uc.gateway.WaitMined(ctx, attempt.TxHash, confirmations)
	if err == nil && receipt != nil && receipt.Status != types.ReceiptStatusSuccessful {
		err = &domain.PermanentDeployError{
			Contract: attempt.ContractName,
			Err:      fmt.Errorf("creation transaction %s reverted", attempt.TxHash.Hex()),
		}
	}
	if err == nil && receipt == nil {
		err = errors.New("node returned no receipt")
	}

	select {
	case out <- attemptOutcome{attempt: attempt, receipt: receipt, err: err}:
	case <-ctx.Done():
	}
}

func (uc *DeployContract) confirmed(out attemptOutcome, gasPrices []*big.Int) *DeployContractResult {
	uc.log.Info("deployment confirmed",
		"contract", out.attempt.ContractName,
		"address", out.receipt.ContractAddress.Hex(),
		"attempt", out.attempt.Attempt,
		"tx", out.attempt.TxHash.Hex())

	return &DeployContractResult{
		Address:   out.receipt.ContractAddress,
		TxHash:    out.attempt.TxHash,
		Receipt:   out.receipt,
		Nonce:     out.attempt.Nonce,
		Attempts:  len(gasPrices),
		GasPrice:  new(big.Int).Set(out.attempt.GasPrice),
		GasPrices: gasPrices,
	}
}

// seedGasPrice picks the first attempt's price
func (uc *DeployContract) seedGasPrice(ctx context.Context) (*big.Int, error) {
	if uc.cfg.IsProduction() {
		if gp := uc.cfg.Network.GasPrice; gp != nil && gp.Sign() > 0 {
			return new(big.Int).Set(gp), nil
		}
		price, err := uc.gateway.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query gas price: %w", err)
		}
		return price, nil
	}

	if floor := uc.cfg.Deploy.GasPriceFloor; floor != nil && floor.Sign() > 0 {
		return new(big.Int).Set(floor), nil
	}
	return new(big.Int).Set(config.DefaultGasPriceFloor), nil
}

// persist merges the deployment into the registry; only the production
// network gets an address entry
func (uc *DeployContract) persist(ctx context.Context, artifact *models.Artifact, address common.Address, args []any) error {
	record := models.NewDeploymentRecord(
		artifact.Name,
		artifact.RawABI,
		uc.cfg.NetworkName(),
		address,
		args,
		uc.cfg.IsProduction(),
	)
	return uc.registry.Save(ctx, record)
}
