package anvil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// Node flavors; they differ only in the prefix of the cheat-code methods
const (
	FlavorAnvil   = "anvil"
	FlavorHardhat = "hardhat"
)

// maxPollFailures is how many receipt polls in a row may fail before WaitMined gives up
const maxPollFailures = 3

// Gateway talks JSON-RPC to an anvil or hardhat node
type Gateway struct {
	rpc    *rpc.Client
	eth    *ethclient.Client
	prefix string
	clock  clockwork.Clock
	poll   time.Duration
	log    *slog.Logger
}

// NewGateway dials the selected network's node. The returned cleanup closes the connection.
func NewGateway(ctx context.Context, cfg *config.RuntimeConfig, clock clockwork.Clock, log *slog.Logger) (*Gateway, func(), error) {
	if cfg.Network == nil || cfg.Network.RPCURL == "" {
		return nil, nil, fmt.Errorf("%w: no rpc url", domain.ErrNoNetwork)
	}
	client, err := rpc.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RPC %s: %w", cfg.Network.RPCURL, err)
	}
	gw, err := NewGatewayFromClient(client, cfg.Gateway.Flavor, cfg.Gateway.PollInterval, clock, log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return gw, client.Close, nil
}

// NewGatewayFromClient wraps an existing RPC client
func NewGatewayFromClient(client *rpc.Client, flavor string, poll time.Duration, clock clockwork.Clock, log *slog.Logger) (*Gateway, error) {
	switch flavor {
	case "", FlavorAnvil:
		flavor = FlavorAnvil
	case FlavorHardhat:
	default:
		return nil, fmt.Errorf("unknown node flavor %q (want %s or %s)", flavor, FlavorAnvil, FlavorHardhat)
	}
	if poll <= 0 {
		poll = config.DefaultPollInterval
	}
	return &Gateway{
		rpc:    client,
		eth:    ethclient.NewClient(client),
		prefix: flavor + "_",
		clock:  clock,
		poll:   poll,
		log:    log,
	}, nil
}

func (g *Gateway) method(name string) string { return g.prefix + name }

// ChainID returns the node's chain id
func (g *Gateway) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := g.eth.ChainID(ctx)
	if err != nil {
		return nil, transient("eth_chainId", err)
	}
	return id, nil
}

// PendingNonceAt returns the next nonce for account, counting pooled transactions
func (g *Gateway) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := g.eth.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, transient("eth_getTransactionCount", err)
	}
	return nonce, nil
}

// SuggestGasPrice returns the node's gas price
func (g *Gateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := g.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, transient("eth_gasPrice", err)
	}
	return price, nil
}

// EstimateGas estimates the gas a call needs. Reverts are returned unwrapped
// so they classify as permanent.
func (g *Gateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return g.eth.EstimateGas(ctx, msg)
}

// SendTransaction broadcasts a signed transaction
func (g *Gateway) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return g.eth.SendTransaction(ctx, tx)
}

// sendTxArgs is the eth_sendTransaction object
type sendTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
}

// SendUnsignedTransaction has the node sign for req.From. Only works for
// impersonated or unlocked accounts.
func (g *Gateway) SendUnsignedTransaction(ctx context.Context, req usecase.TxRequest) (common.Hash, error) {
	args := sendTxArgs{
		From:     req.From,
		To:       req.To,
		Data:     req.Data,
		Value:    (*hexutil.Big)(req.Value),
		GasPrice: (*hexutil.Big)(req.GasPrice),
		Nonce:    (*hexutil.Uint64)(req.Nonce),
	}
	if req.Gas > 0 {
		gas := hexutil.Uint64(req.Gas)
		args.Gas = &gas
	}

	var hash common.Hash
	if err := g.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// WaitMined polls for the receipt of hash until it has the requested confirmations.
// It has no deadline of its own; cancel ctx to stop it.
func (g *Gateway) WaitMined(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	ticker := g.clock.NewTicker(g.poll)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := g.confirmedReceipt(ctx, hash, confirmations)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			g.log.Debug("receipt poll failed", "tx", hash.Hex(), "failures", failures, "error", err)
			if failures >= maxPollFailures {
				return nil, transient("eth_getTransactionReceipt", err)
			}
		default:
			failures = 0
		}

		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// confirmedReceipt returns nil, nil while the receipt is missing or too shallow
func (g *Gateway) confirmedReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error) {
	receipt, err := g.eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if confirmations <= 1 || receipt.BlockNumber == nil {
		return receipt, nil
	}

	head, err := g.eth.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	mined := receipt.BlockNumber.Uint64()
	if head+1 < mined+confirmations {
		return nil, nil
	}
	return receipt, nil
}

// StorageAt reads one raw storage slot at the latest block
func (g *Gateway) StorageAt(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error) {
	raw, err := g.eth.StorageAt(ctx, account, slot, nil)
	if err != nil {
		return common.Hash{}, transient("eth_getStorageAt", err)
	}
	return common.BytesToHash(raw), nil
}

// SetStorageAt overwrites one raw storage slot
func (g *Gateway) SetStorageAt(ctx context.Context, account common.Address, slot, value common.Hash) error {
	// hardhat rejects zero-padded slot keys, anvil takes both
	key := hexutil.EncodeBig(slot.Big())
	if err := g.rpc.CallContext(ctx, nil, g.method("setStorageAt"), account, key, value); err != nil {
		return fmt.Errorf("%s: %w", g.method("setStorageAt"), err)
	}
	return nil
}

// CodeAt returns the runtime code at account
func (g *Gateway) CodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	code, err := g.eth.CodeAt(ctx, account, nil)
	if err != nil {
		return nil, transient("eth_getCode", err)
	}
	return code, nil
}

// BalanceAt returns the native balance of account
func (g *Gateway) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := g.eth.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, transient("eth_getBalance", err)
	}
	return balance, nil
}

// SetBalance sets the native balance of account
func (g *Gateway) SetBalance(ctx context.Context, account common.Address, wei *big.Int) error {
	if err := g.rpc.CallContext(ctx, nil, g.method("setBalance"), account, (*hexutil.Big)(wei)); err != nil {
		return fmt.Errorf("%s: %w", g.method("setBalance"), err)
	}
	return nil
}

// CallContract runs a read-only call at the latest block
func (g *Gateway) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return g.eth.CallContract(ctx, msg, nil)
}

// Snapshot checkpoints the node state and returns the snapshot id
func (g *Gateway) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := g.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id, nil
}

// Revert rewinds to snapshot id. The node answers false for unknown ids.
func (g *Gateway) Revert(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := g.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return false, fmt.Errorf("evm_revert: %w", err)
	}
	return ok, nil
}

type forkingParams struct {
	JSONRPCURL  string          `json:"jsonRpcUrl"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber,omitempty"`
}

type resetParams struct {
	Forking forkingParams `json:"forking"`
}

// ResetFork re-forks the node from rpcURL at blockNumber; 0 means latest
func (g *Gateway) ResetFork(ctx context.Context, rpcURL string, blockNumber uint64) error {
	params := resetParams{Forking: forkingParams{JSONRPCURL: rpcURL}}
	if blockNumber > 0 {
		bn := hexutil.Uint64(blockNumber)
		params.Forking.BlockNumber = &bn
	}
	if err := g.rpc.CallContext(ctx, nil, g.method("reset"), params); err != nil {
		return fmt.Errorf("%s: %w", g.method("reset"), err)
	}
	g.log.Info("fork reset", "url", redactURL(rpcURL), "block", blockNumber)
	return nil
}

// ImpersonateAccount lets unsigned transactions be sent from account
func (g *Gateway) ImpersonateAccount(ctx context.Context, account common.Address) error {
	if err := g.rpc.CallContext(ctx, nil, g.method("impersonateAccount"), account); err != nil {
		return fmt.Errorf("%s: %w", g.method("impersonateAccount"), err)
	}
	return nil
}

// StopImpersonatingAccount ends impersonation of account
func (g *Gateway) StopImpersonatingAccount(ctx context.Context, account common.Address) error {
	if err := g.rpc.CallContext(ctx, nil, g.method("stopImpersonatingAccount"), account); err != nil {
		return fmt.Errorf("%s: %w", g.method("stopImpersonatingAccount"), err)
	}
	return nil
}

func transient(op string, err error) error {
	return &domain.TransientGatewayError{Op: op, Err: err}
}

// redactURL drops everything after the host, where providers put API keys
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

var _ usecase.ChainGateway = (*Gateway)(nil)
