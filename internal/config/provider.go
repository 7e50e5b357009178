package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
)

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	loadEnvFiles(projectRoot)

	configPath := v.GetString("config")
	if configPath == "" {
		configPath = filepath.Join(projectRoot, FileName)
	}
	file, err := loadForkFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := fromForkFile(file)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(configPath), err)
	}
	cfg.ProjectRoot = projectRoot
	cfg.DataDir = filepath.Join(projectRoot, ".forkctl")
	cfg.Debug = v.GetBool("debug")
	cfg.NonInteractive = v.GetBool("non_interactive")
	cfg.Timeout = v.GetDuration("timeout")

	applyOverrides(v, cfg)

	if cfg.System.FixturesFile != "" && len(cfg.System.Fixtures) == 0 {
		path := cfg.System.FixturesFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectRoot, path)
		}
		fixtures, err := LoadFixtures(path)
		if err != nil {
			return nil, err
		}
		cfg.System.Fixtures = fixtures
	}

	networkName := lo.Ternary(v.GetString("network") != "", v.GetString("network"), file.DefaultNetwork)
	if networkName != "" {
		network, ok := cfg.Networks[networkName]
		if !ok {
			known := lo.Keys(cfg.Networks)
			sort.Strings(known)
			return nil, fmt.Errorf("%w: network %q is not in %s (known: %s)",
				domain.ErrNotFound, networkName, FileName, strings.Join(known, ", "))
		}
		if url := v.GetString("rpc_url"); url != "" {
			network.RPCURL = url
		}
		cfg.Network = network
	}

	return cfg, nil
}

// fromForkFile resolves the raw file into a RuntimeConfig with defaults applied
func fromForkFile(f *ForkFile) (*config.RuntimeConfig, error) {
	cfg := &config.RuntimeConfig{
		Networks:   make(map[string]*config.Network, len(f.Networks)),
		PrivateKey: f.Deploy.PrivateKey,
	}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	for name, n := range f.Networks {
		gasPrice, err := ParseWei(n.GasPrice)
		collect(wrapField("networks."+name+".gas_price", err))
		cfg.Networks[name] = &config.Network{
			Name:       name,
			RPCURL:     n.RPCURL,
			ChainID:    n.ChainID,
			Production: n.Production,
			GasPrice:   gasPrice,
			ForkURL:    n.ForkURL,
			ForkBlock:  n.ForkBlock,
		}
	}
	if production := lo.Filter(lo.Values(cfg.Networks), func(n *config.Network, _ int) bool { return n.Production }); len(production) > 1 {
		errs = append(errs, fmt.Errorf("only one network may be marked production, found %d", len(production)))
	}

	var err error
	cfg.Gateway.Flavor = lo.Ternary(f.Gateway.Flavor != "", f.Gateway.Flavor, config.DefaultFlavor)
	cfg.Gateway.PollInterval, err = parseDuration(f.Gateway.PollInterval, config.DefaultPollInterval)
	collect(wrapField("gateway.poll_interval", err))

	cfg.Deploy.GasPriceFloor, err = ParseWei(f.Deploy.GasPriceFloor)
	collect(wrapField("deploy.gas_price_floor", err))
	if cfg.Deploy.GasPriceFloor == nil {
		cfg.Deploy.GasPriceFloor = new(big.Int).Set(config.DefaultGasPriceFloor)
	}
	cfg.Deploy.ResendInterval, err = parseDuration(f.Deploy.ResendInterval, config.DefaultResendInterval)
	collect(wrapField("deploy.resend_interval", err))
	cfg.Deploy.MaxDuration, err = parseDuration(f.Deploy.MaxDuration, config.DefaultMaxDuration)
	collect(wrapField("deploy.max_duration", err))
	cfg.Deploy.MaxAttempts = config.DefaultMaxAttempts
	if f.Deploy.MaxAttempts != nil {
		cfg.Deploy.MaxAttempts = *f.Deploy.MaxAttempts
	}
	cfg.Deploy.Confirmations = lo.Ternary(f.Deploy.Confirmations > 0, f.Deploy.Confirmations, config.DefaultConfirmations)
	cfg.Deploy.GasLimit = f.Deploy.GasLimit

	sys := &cfg.System
	sys.ProxyRegistry, err = parseAddress("system.proxy_registry", f.System.ProxyRegistry)
	collect(err)
	sys.CDPManager, err = parseAddress("system.cdp_manager", f.System.CDPManager)
	collect(err)
	sys.GetCdps, err = parseAddress("system.get_cdps", f.System.GetCdps)
	collect(err)
	sys.FeeBeneficiary, err = parseAddress("system.fee_beneficiary", f.System.FeeBeneficiary)
	collect(err)
	sys.FeeBps = config.DefaultFeeBps
	if f.System.FeeBps != nil {
		sys.FeeBps = *f.System.FeeBps
	}
	sys.DummyExchange = f.System.DummyExchange
	sys.WhaleBalance, err = ParseWei(f.System.WhaleBalance)
	collect(wrapField("system.whale_balance", err))
	sys.FixturesFile = f.System.FixturesFile
	sys.Fixtures = f.System.Fixtures

	cfg.Quote.BaseURL = lo.Ternary(f.Quote.BaseURL != "", f.Quote.BaseURL, config.DefaultQuoteBaseURL)
	cfg.Quote.Attempts = lo.Ternary(f.Quote.Attempts > 0, f.Quote.Attempts, uint(config.DefaultQuoteAttempts))
	cfg.Quote.Delay, err = parseDuration(f.Quote.Delay, config.DefaultQuoteDelay)
	collect(wrapField("quote.delay", err))
	cfg.Quote.Timeout, err = parseDuration(f.Quote.Timeout, config.DefaultQuoteTimeout)
	collect(wrapField("quote.timeout", err))
	cfg.Quote.Protocols = f.Quote.Protocols

	cfg.Registry.Backend = lo.Ternary(f.Registry.Backend != "", f.Registry.Backend, config.DefaultRegistryBackend)
	cfg.Registry.Dir = lo.Ternary(f.Registry.Dir != "", f.Registry.Dir, config.DefaultRegistryDir)
	cfg.Registry.DSN = f.Registry.DSN
	if cfg.Registry.Backend != "file" && cfg.Registry.Backend != "postgres" {
		errs = append(errs, fmt.Errorf("registry.backend: unknown backend %q", cfg.Registry.Backend))
	}

	cfg.Artifacts.Dirs = f.Artifacts.Dirs
	cfg.Artifacts.CacheSize = lo.Ternary(f.Artifacts.CacheSize > 0, f.Artifacts.CacheSize, config.DefaultArtifactCache)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides lets FORKCTL_* env vars, flags and the local config file
// win over forkctl.toml
func applyOverrides(v *viper.Viper, cfg *config.RuntimeConfig) {
	if key := v.GetString("private_key"); key != "" {
		cfg.PrivateKey = key
	}
	if flavor := v.GetString("gateway.flavor"); flavor != "" {
		cfg.Gateway.Flavor = flavor
	}
	if backend := v.GetString("registry.backend"); backend != "" {
		cfg.Registry.Backend = backend
	}
	if dsn := v.GetString("registry.dsn"); dsn != "" {
		cfg.Registry.DSN = dsn
	}
	if url := v.GetString("quote.base_url"); url != "" {
		cfg.Quote.BaseURL = url
	}
	if v.GetBool("dummy_exchange") {
		cfg.System.DummyExchange = true
	}
	if path := v.GetString("fixtures"); path != "" {
		cfg.System.FixturesFile = path
		cfg.System.Fixtures = nil
	}
}

func wrapField(field string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", field, err)
}

// FindProjectRoot walks up from current directory to find forkctl.toml
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a forkctl project (%s not found)", FileName)
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config.local")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".forkctl"))

	v.SetEnvPrefix("FORKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("timeout", "30m")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("project_root", projectRoot)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	if cmd != nil {
		bindFlags(v, cmd.Flags())
	}

	return v
}

// bindFlags binds flags that were set on the command line, so unset flags do
// not shadow env vars or the local config file
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})
}
