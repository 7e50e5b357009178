package app

import (
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Shared dependencies
	Signers   usecase.SignerFactory
	Sandbox   *usecase.Sandbox
	Snapshots *usecase.SnapshotManager
	Artifacts ArtifactStore

	// Use cases
	DeployContract         *usecase.DeployContract
	DeploySystem           *usecase.DeploySystem
	ResetFork              *usecase.ResetFork
	FundAccount            *usecase.FundAccount
	FundToken              *usecase.FundToken
	ReadPrice              *usecase.ReadPrice
	TransferProxyOwnership *usecase.TransferProxyOwnership
	ListCDPs               *usecase.ListCDPs
	QuoteSwap              *usecase.QuoteSwap
	SwapTokens             *usecase.SwapTokens
	ListDeployments        *usecase.ListDeployments
	ShowDeployment         *usecase.ShowDeployment
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	signers usecase.SignerFactory,
	sandbox *usecase.Sandbox,
	snapshots *usecase.SnapshotManager,
	artifacts ArtifactStore,
	deployContract *usecase.DeployContract,
	deploySystem *usecase.DeploySystem,
	resetFork *usecase.ResetFork,
	fundAccount *usecase.FundAccount,
	fundToken *usecase.FundToken,
	readPrice *usecase.ReadPrice,
	transferProxyOwnership *usecase.TransferProxyOwnership,
	listCDPs *usecase.ListCDPs,
	quoteSwap *usecase.QuoteSwap,
	swapTokens *usecase.SwapTokens,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
) *App {
	return &App{
		Config:                 cfg,
		Signers:                signers,
		Sandbox:                sandbox,
		Snapshots:              snapshots,
		Artifacts:              artifacts,
		DeployContract:         deployContract,
		DeploySystem:           deploySystem,
		ResetFork:              resetFork,
		FundAccount:            fundAccount,
		FundToken:              fundToken,
		ReadPrice:              readPrice,
		TransferProxyOwnership: transferProxyOwnership,
		ListCDPs:               listCDPs,
		QuoteSwap:              quoteSwap,
		SwapTokens:             swapTokens,
		ListDeployments:        listDeployments,
		ShowDeployment:         showDeployment,
	}
}

// RegistryApp serves the commands that only read local state and never dial a node
type RegistryApp struct {
	Config          *config.RuntimeConfig
	Artifacts       ArtifactStore
	ListDeployments *usecase.ListDeployments
	ShowDeployment  *usecase.ShowDeployment
}

// ArtifactStore loads compiled contracts and lists the names available to deploy
type ArtifactStore interface {
	usecase.ContractFactory
	Names() ([]string, error)
}

// NewRegistryApp creates the offline application container
func NewRegistryApp(
	cfg *config.RuntimeConfig,
	artifacts ArtifactStore,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
) *RegistryApp {
	return &RegistryApp{
		Config:          cfg,
		Artifacts:       artifacts,
		ListDeployments: listDeployments,
		ShowDeployment:  showDeployment,
	}
}
