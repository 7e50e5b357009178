package usecase

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// Gateway ports. The node is split by concern so use cases only ask for
// what they touch; ChainGateway is the full surface of one connection.

// TxGateway broadcasts transactions and waits for receipts
type TxGateway interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// SendTransaction broadcasts a locally signed transaction
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// SendUnsignedTransaction asks the node to sign for req.From (impersonated accounts)
	SendUnsignedTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	// WaitMined blocks until the transaction has the given number of confirmations
	WaitMined(ctx context.Context, hash common.Hash, confirmations uint64) (*types.Receipt, error)
}

// StateGateway reads and writes account state directly
type StateGateway interface {
	StorageAt(ctx context.Context, account common.Address, slot common.Hash) (common.Hash, error)
	SetStorageAt(ctx context.Context, account common.Address, slot, value common.Hash) error
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// SnapshotGateway checkpoints and rewinds node state
type SnapshotGateway interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) (bool, error)
	ResetFork(ctx context.Context, rpcURL string, blockNumber uint64) error
}

// ImpersonationGateway lets the caller act as any account
type ImpersonationGateway interface {
	ImpersonateAccount(ctx context.Context, account common.Address) error
	StopImpersonatingAccount(ctx context.Context, account common.Address) error
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SetBalance(ctx context.Context, account common.Address, wei *big.Int) error
}

// ChainGateway is everything forkctl needs from one node connection
type ChainGateway interface {
	TxGateway
	StateGateway
	SnapshotGateway
	ImpersonationGateway
}

// TxRequest describes a transaction before signing.
// Nil GasPrice/Nonce and zero Gas are filled in by the signer.
type TxRequest struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Nonce    *uint64
}

// Signer sends transactions on behalf of one address
type Signer interface {
	Address() common.Address
	Send(ctx context.Context, req TxRequest) (common.Hash, error)
}

// SignerFactory builds signers for keys and impersonated accounts
type SignerFactory interface {
	FromPrivateKey(ctx context.Context, hexKey string) (Signer, error)
	Impersonated(account common.Address) Signer
}

// ContractFactory provides compiled contracts by name
type ContractFactory interface {
	Artifact(ctx context.Context, name string) (*models.Artifact, error)
}

// DeploymentRegistry persists deployment records. Save merges into any
// existing record for the same contract name.
type DeploymentRegistry interface {
	Save(ctx context.Context, record *models.DeploymentRecord) error
	Get(ctx context.Context, contractName string) (*models.DeploymentRecord, error)
	List(ctx context.Context) ([]*models.DeploymentRecord, error)
}

// QuoteAggregator asks an external service for a swap payload
type QuoteAggregator interface {
	Quote(ctx context.Context, chainID uint64, req models.QuoteRequest) (*models.SwapPayload, error)
}

// CDPRegistry reads vault ownership from the proxy registry and CDP manager
type CDPRegistry interface {
	ProxyOf(ctx context.Context, owner common.Address) (common.Address, error)
	CDPsOf(ctx context.Context, proxy common.Address) ([]models.CDPRecord, error)
}

// ExchangeKind selects the exchange implementation bound after deployment
type ExchangeKind string

const (
	RoutedExchangeKind ExchangeKind = "Exchange"
	DummyExchangeKind  ExchangeKind = "DummyExchange"
)

// Exchange swaps tokens through a deployed exchange contract
type Exchange interface {
	Contract() *models.BoundContract
	Quote(ctx context.Context, req models.QuoteRequest) (*models.SwapPayload, error)
	Swap(ctx context.Context, signer Signer, req models.QuoteRequest, payload *models.SwapPayload) (common.Hash, error)
}

// PricedExchange is an exchange whose prices are set by hand (test venues)
type PricedExchange interface {
	Exchange
	SetPrice(ctx context.Context, signer Signer, token common.Address, price *big.Int) (common.Hash, error)
	SetPrecision(ctx context.Context, signer Signer, token common.Address, precision uint64) (common.Hash, error)
}

// ExchangeBinder wraps a deployed exchange address in the matching implementation
type ExchangeBinder interface {
	Bind(ctx context.Context, kind ExchangeKind, contract *models.BoundContract) (Exchange, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}
