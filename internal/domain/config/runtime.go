package config

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// Defaults applied when forkctl.toml leaves a setting out
const (
	DefaultFlavor          = "anvil"
	DefaultResendInterval  = 60 * time.Second
	DefaultMaxAttempts     = 10
	DefaultMaxDuration     = 30 * time.Minute
	DefaultConfirmations   = 1
	DefaultPollInterval    = time.Second
	DefaultQuoteAttempts   = 5
	DefaultQuoteDelay      = 2 * time.Second
	DefaultQuoteTimeout    = 15 * time.Second
	DefaultQuoteBaseURL    = "https://api.1inch.io/v4.0"
	DefaultRegistryDir     = "deployments"
	DefaultArtifactCache   = 128
	DefaultFeeBps          = 20
	DefaultRegistryBackend = "file"
)

// DefaultGasPriceFloor is the seed gas price on non-production networks (2 gwei)
var DefaultGasPriceFloor = big.NewInt(2_000_000_000)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	// Network is the selected network; nil if none was given
	Network  *Network
	Networks map[string]*Network

	// Execution settings
	Debug          bool
	NonInteractive bool
	Timeout        time.Duration

	// PrivateKey is the hex deployer key, usually from .env
	PrivateKey string

	Gateway   GatewayConfig
	Deploy    DeployConfig
	System    SystemConfig
	Quote     QuoteConfig
	Registry  RegistryConfig
	Artifacts ArtifactsConfig
}

// Network represents network configuration
type Network struct {
	Name       string   `json:"name"`
	RPCURL     string   `json:"rpcUrl"`
	ChainID    uint64   `json:"chainId"`
	Production bool     `json:"production"`
	GasPrice   *big.Int `json:"gasPrice,omitempty"`

	// ForkURL and ForkBlock are what the node is reset to by "fork reset"
	ForkURL   string `json:"forkUrl,omitempty"`
	ForkBlock uint64 `json:"forkBlock,omitempty"`
}

// GatewayConfig selects the node dialect and receipt polling
type GatewayConfig struct {
	Flavor       string // "anvil" or "hardhat"
	PollInterval time.Duration
}

// DeployConfig controls the resend state machine
type DeployConfig struct {
	GasPriceFloor  *big.Int
	ResendInterval time.Duration
	// MaxAttempts of 0 resends until confirmed
	MaxAttempts int
	// MaxDuration of 0 waits forever
	MaxDuration   time.Duration
	Confirmations uint64
	GasLimit      uint64
}

// SystemConfig describes the multiply system graph
type SystemConfig struct {
	ProxyRegistry  common.Address
	CDPManager     common.Address
	GetCdps        common.Address
	FeeBeneficiary common.Address
	FeeBps         uint64
	DummyExchange  bool
	Fixtures       []models.PriceFixture
	FixturesFile   string
	WhaleBalance   *big.Int
}

// QuoteConfig configures the swap-quote aggregator client
type QuoteConfig struct {
	BaseURL   string
	Attempts  uint
	Delay     time.Duration
	Timeout   time.Duration
	Protocols []string
}

// RegistryConfig selects where deployment records are persisted
type RegistryConfig struct {
	Backend string // "file" or "postgres"
	Dir     string
	DSN     string
}

// ArtifactsConfig lists compiled artifact roots
type ArtifactsConfig struct {
	Dirs      []string
	CacheSize int
}

// NetworkName returns the selected network name or ""
func (c *RuntimeConfig) NetworkName() string {
	if c.Network == nil {
		return ""
	}
	return c.Network.Name
}

// IsProduction reports whether the selected network is the production network
func (c *RuntimeConfig) IsProduction() bool {
	return c.Network != nil && c.Network.Production
}
