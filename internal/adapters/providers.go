package adapters

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/jonboulle/clockwork"
	"github.com/trebuchet-org/forkctl/internal/adapters/anvil"
	"github.com/trebuchet-org/forkctl/internal/adapters/artifacts"
	"github.com/trebuchet-org/forkctl/internal/adapters/exchange"
	"github.com/trebuchet-org/forkctl/internal/adapters/maker"
	"github.com/trebuchet-org/forkctl/internal/adapters/oneinch"
	"github.com/trebuchet-org/forkctl/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/forkctl/internal/adapters/signer"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// ProvideClock provides the wall clock
func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideDeploymentRegistry picks the registry backend named in the config
func ProvideDeploymentRegistry(ctx context.Context, cfg *config.RuntimeConfig) (usecase.DeploymentRegistry, func(), error) {
	switch cfg.Registry.Backend {
	case "", "file":
		repo, err := deployments.NewFileRepository(cfg)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case "postgres":
		if cfg.Registry.DSN == "" {
			return nil, nil, fmt.Errorf("registry.dsn is required for the postgres backend")
		}
		repo, err := deployments.NewPostgresRepository(ctx, cfg.Registry.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// ChainSet provides the node gateway and everything that talks to it
var ChainSet = wire.NewSet(
	ProvideClock,

	anvil.NewGateway,
	wire.Bind(new(usecase.TxGateway), new(*anvil.Gateway)),
	wire.Bind(new(usecase.StateGateway), new(*anvil.Gateway)),
	wire.Bind(new(usecase.SnapshotGateway), new(*anvil.Gateway)),
	wire.Bind(new(usecase.ImpersonationGateway), new(*anvil.Gateway)),

	signer.NewFactory,
	wire.Bind(new(usecase.SignerFactory), new(*signer.Factory)),

	maker.NewCDPRegistry,
	wire.Bind(new(usecase.CDPRegistry), new(*maker.CDPRegistry)),
)

// ExchangeSet provides the quote aggregator and exchange bindings
var ExchangeSet = wire.NewSet(
	oneinch.NewClient,
	wire.Bind(new(usecase.QuoteAggregator), new(*oneinch.Client)),

	exchange.NewBinder,
	wire.Bind(new(usecase.ExchangeBinder), new(*exchange.Binder)),
	wire.Bind(new(exchange.Quoter), new(*usecase.QuoteSwap)),
)

// StorageSet provides the artifact source and the deployment registry
var StorageSet = wire.NewSet(
	artifacts.NewFactory,
	wire.Bind(new(usecase.ContractFactory), new(*artifacts.Factory)),

	ProvideDeploymentRegistry,
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	ChainSet,
	ExchangeSet,
	StorageSet,
)
