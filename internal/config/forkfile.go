package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// FileName is the project config file forkctl looks for
const FileName = "forkctl.toml"

// ForkFile is the raw forkctl.toml structure. Quantities and durations are
// strings so they can carry units ("2gwei", "90s") and ${VAR} references.
type ForkFile struct {
	DefaultNetwork string                  `toml:"default_network"`
	Networks       map[string]NetworkEntry `toml:"networks"`
	Gateway        GatewayEntry            `toml:"gateway"`
	Deploy         DeployEntry             `toml:"deploy"`
	System         SystemEntry             `toml:"system"`
	Quote          QuoteEntry              `toml:"quote"`
	Registry       RegistryEntry           `toml:"registry"`
	Artifacts      ArtifactsEntry          `toml:"artifacts"`
}

type NetworkEntry struct {
	RPCURL     string `toml:"rpc_url"`
	ChainID    uint64 `toml:"chain_id"`
	Production bool   `toml:"production"`
	GasPrice   string `toml:"gas_price"`
	ForkURL    string `toml:"fork_url"`
	ForkBlock  uint64 `toml:"fork_block"`
}

type GatewayEntry struct {
	Flavor       string `toml:"flavor"`
	PollInterval string `toml:"poll_interval"`
}

type DeployEntry struct {
	PrivateKey     string `toml:"private_key"`
	GasPriceFloor  string `toml:"gas_price_floor"`
	ResendInterval string `toml:"resend_interval"`
	MaxAttempts    *int   `toml:"max_attempts"`
	MaxDuration    string `toml:"max_duration"`
	Confirmations  uint64 `toml:"confirmations"`
	GasLimit       uint64 `toml:"gas_limit"`
}

type SystemEntry struct {
	ProxyRegistry  string                `toml:"proxy_registry"`
	CDPManager     string                `toml:"cdp_manager"`
	GetCdps        string                `toml:"get_cdps"`
	FeeBeneficiary string                `toml:"fee_beneficiary"`
	FeeBps         *uint64               `toml:"fee_bps"`
	DummyExchange  bool                  `toml:"dummy_exchange"`
	WhaleBalance   string                `toml:"whale_balance"`
	FixturesFile   string                `toml:"fixtures_file"`
	Fixtures       []models.PriceFixture `toml:"fixtures"`
}

type QuoteEntry struct {
	BaseURL   string   `toml:"base_url"`
	Attempts  uint     `toml:"attempts"`
	Delay     string   `toml:"delay"`
	Timeout   string   `toml:"timeout"`
	Protocols []string `toml:"protocols"`
}

type RegistryEntry struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	DSN     string `toml:"dsn"`
}

type ArtifactsEntry struct {
	Dirs      []string `toml:"dirs"`
	CacheSize int      `toml:"cache_size"`
}

// loadEnvFiles loads .env then .env.local from the project root. Variables
// already set in the environment win.
func loadEnvFiles(projectRoot string) {
	for _, name := range []string{".env", ".env.local"} {
		envFile := filepath.Join(projectRoot, name)
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
		}
	}
}

// loadForkFile parses path, returning an empty file when it does not exist
func loadForkFile(path string) (*ForkFile, error) {
	var file ForkFile
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &file, nil
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	file.expandEnv()
	return &file, nil
}

func (f *ForkFile) expandEnv() {
	for name, n := range f.Networks {
		n.RPCURL = os.ExpandEnv(n.RPCURL)
		n.ForkURL = os.ExpandEnv(n.ForkURL)
		f.Networks[name] = n
	}
	f.Deploy.PrivateKey = os.ExpandEnv(f.Deploy.PrivateKey)
	f.Quote.BaseURL = os.ExpandEnv(f.Quote.BaseURL)
	f.Registry.DSN = os.ExpandEnv(f.Registry.DSN)
}
