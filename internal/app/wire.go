//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/forkctl/internal/adapters"
	"github.com/trebuchet-org/forkctl/internal/adapters/artifacts"
	"github.com/trebuchet-org/forkctl/internal/config"
	"github.com/trebuchet-org/forkctl/internal/logging"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// InitApp creates a fully wired App instance connected to the selected network
func InitApp(ctx context.Context, v *viper.Viper, sink usecase.ProgressSink) (*App, func(), error) {
	wire.Build(
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,
		wire.Bind(new(ArtifactStore), new(*artifacts.Factory)),

		// Use cases
		usecase.NewDeployContract,
		wire.Bind(new(usecase.ContractDeployer), new(*usecase.DeployContract)),
		usecase.NewDeployGraph,
		usecase.NewSandbox,
		usecase.NewDeploySystem,
		usecase.NewSnapshotManager,
		usecase.NewResetFork,
		usecase.NewFundAccount,
		usecase.NewFundToken,
		usecase.NewReadPrice,
		usecase.NewTransferProxyOwnership,
		usecase.NewListCDPs,
		usecase.NewQuoteSwap,
		usecase.NewSwapTokens,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,

		// App
		NewApp,
	)
	return nil, nil, nil
}

// InitRegistryApp creates an App for commands that work without a node
func InitRegistryApp(ctx context.Context, v *viper.Viper, sink usecase.ProgressSink) (*RegistryApp, func(), error) {
	wire.Build(
		config.Provider,
		logging.LoggingSet,
		adapters.StorageSet,
		wire.Bind(new(ArtifactStore), new(*artifacts.Factory)),
		usecase.NewListDeployments,
		usecase.NewShowDeployment,
		NewRegistryApp,
	)
	return nil, nil, nil
}
