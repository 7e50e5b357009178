package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// Node names of the multiply system graph
const (
	ProxyFactoryNode  = "DSProxyFactory"
	ProxyRegistryNode = "ProxyRegistry"
	ProxyActionsNode  = "MultiplyProxyActions"
	McdViewNode       = "McdView"
)

// DeployedSystem is the fully deployed multiply system. It is only ever
// returned complete.
type DeployedSystem struct {
	ProxyRegistry *models.BoundContract
	// ProxyFactory is nil when an existing registry was reused
	ProxyFactory         *models.BoundContract
	MultiplyProxyActions *models.BoundContract
	McdView              *models.BoundContract
	Exchange             Exchange
	// Priced is the exchange again when it supports fixed prices, else nil
	Priced      PricedExchange
	Deployments map[string]*DeployContractResult
	Fixtures    []models.PriceFixture
}

// DeploySystem deploys the proxy registry, the proxy actions, the view
// contract and an exchange, then loads price fixtures into the exchange.
type DeploySystem struct {
	cfg       *config.RuntimeConfig
	graph     *DeployGraph
	state     StateGateway
	gateway   TxGateway
	artifacts ContractFactory
	exchanges ExchangeBinder
	sandbox   *Sandbox
	progress  ProgressSink
	log       *slog.Logger
}

// NewDeploySystem creates a new DeploySystem use case
func NewDeploySystem(
	cfg *config.RuntimeConfig,
	graph *DeployGraph,
	state StateGateway,
	gateway TxGateway,
	artifacts ContractFactory,
	exchanges ExchangeBinder,
	sandbox *Sandbox,
	progress ProgressSink,
	log *slog.Logger,
) *DeploySystem {
	return &DeploySystem{
		cfg:       cfg,
		graph:     graph,
		state:     state,
		gateway:   gateway,
		artifacts: artifacts,
		exchanges: exchanges,
		sandbox:   sandbox,
		progress:  progress,
		log:       log,
	}
}

// DeploySystemParams contains parameters for a system deployment
type DeploySystemParams struct {
	Signer Signer
	// DummyExchange deploys the fixed-price test exchange instead of the routed one
	DummyExchange bool
	Fixtures      []models.PriceFixture
}

// Run deploys the system
func (uc *DeploySystem) Run(ctx context.Context, params DeploySystemParams) (*DeployedSystem, error) {
	registry, err := uc.existingRegistry(ctx)
	if err != nil {
		return nil, err
	}

	kind := RoutedExchangeKind
	if params.DummyExchange {
		kind = DummyExchangeKind
	}

	plan := uc.plan(registry, kind, params.Signer)
	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:   "Planning",
		Total:   len(plan.Nodes),
		Message: fmt.Sprintf("deploying %d contracts", len(plan.Nodes)),
	})

	graph, err := uc.graph.Run(ctx, plan)
	if err != nil {
		return nil, err
	}

	system := &DeployedSystem{
		ProxyRegistry:        registry,
		MultiplyProxyActions: graph.Deployed[ProxyActionsNode].Contract,
		McdView:              graph.Deployed[McdViewNode].Contract,
		Deployments:          graph.Deployed,
	}
	if registry == nil {
		system.ProxyFactory = graph.Deployed[ProxyFactoryNode].Contract
		system.ProxyRegistry = graph.Deployed[ProxyRegistryNode].Contract
	}

	exchange, err := uc.exchanges.Bind(ctx, kind, graph.Deployed[string(kind)].Contract)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", kind, err)
	}
	system.Exchange = exchange
	if priced, ok := exchange.(PricedExchange); ok {
		system.Priced = priced
	}

	if len(params.Fixtures) > 0 {
		if system.Priced == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotPricedExchange, kind)
		}
		if err := uc.loadFixtures(ctx, params.Signer, system.Priced, params.Fixtures); err != nil {
			return nil, err
		}
		system.Fixtures = params.Fixtures
	}

	return system, nil
}

// existingRegistry returns the configured proxy registry if it has code
func (uc *DeploySystem) existingRegistry(ctx context.Context) (*models.BoundContract, error) {
	addr := uc.cfg.System.ProxyRegistry
	if addr == (common.Address{}) {
		return nil, nil
	}
	code, err := uc.state.CodeAt(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to check proxy registry %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		uc.log.Warn("configured proxy registry has no code, deploying a new one", "address", addr.Hex())
		return nil, nil
	}

	artifact, err := uc.artifacts.Artifact(ctx, ProxyRegistryNode)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", ProxyRegistryNode, err)
	}
	uc.log.Info("using existing proxy registry", "address", addr.Hex())
	return artifact.Bind(addr), nil
}

func (uc *DeploySystem) plan(registry *models.BoundContract, kind ExchangeKind, signer Signer) GraphPlan {
	var nodes []GraphNode
	if registry == nil {
		nodes = append(nodes,
			GraphNode{Name: ProxyFactoryNode},
			GraphNode{
				Name: ProxyRegistryNode,
				Deps: []string{ProxyFactoryNode},
				Args: func(d map[string]common.Address) ([]any, error) {
					return []any{d[ProxyFactoryNode]}, nil
				},
			},
		)
	}

	nodes = append(nodes,
		GraphNode{Name: ProxyActionsNode},
		GraphNode{Name: McdViewNode},
	)

	feeBps := uc.cfg.System.FeeBps
	if feeBps == 0 {
		feeBps = config.DefaultFeeBps
	}
	beneficiary := uc.cfg.System.FeeBeneficiary
	if beneficiary == (common.Address{}) {
		beneficiary = signer.Address()
	}
	fee := new(big.Int).SetUint64(feeBps)

	switch kind {
	case DummyExchangeKind:
		nodes = append(nodes, GraphNode{
			Name: string(DummyExchangeKind),
			Args: func(map[string]common.Address) ([]any, error) {
				return []any{beneficiary, fee}, nil
			},
		})
	default:
		nodes = append(nodes, GraphNode{
			Name: string(RoutedExchangeKind),
			Deps: []string{ProxyActionsNode},
			Args: func(d map[string]common.Address) ([]any, error) {
				return []any{d[ProxyActionsNode], beneficiary, fee}, nil
			},
		})
	}

	return GraphPlan{Nodes: nodes, Signer: signer}
}

// loadFixtures sets precision and price for every fixture token, then funds
// the exchange from the token's whale
func (uc *DeploySystem) loadFixtures(ctx context.Context, signer Signer, exchange PricedExchange, fixtures []models.PriceFixture) error {
	target := exchange.Contract().Address
	whaleGas := uc.cfg.System.WhaleBalance

	for i, f := range fixtures {
		label := f.Symbol
		if label == "" {
			label = f.Token.Hex()
		}
		uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   "Fixtures",
			Current: i + 1,
			Total:   len(fixtures),
			Message: label,
			Spinner: true,
		})

		if f.Precision > 0 {
			hash, err := exchange.SetPrecision(ctx, signer, f.Token, f.Precision)
			if err != nil {
				return fmt.Errorf("failed to set precision for %s: %w", label, err)
			}
			if err := waitSuccess(ctx, uc.gateway, hash, "setPrecision "+label); err != nil {
				return err
			}
		}

		if f.Price != "" {
			price, ok := new(big.Int).SetString(f.Price, 10)
			if !ok {
				return fmt.Errorf("invalid price %q for %s", f.Price, label)
			}
			hash, err := exchange.SetPrice(ctx, signer, f.Token, price)
			if err != nil {
				return fmt.Errorf("failed to set price for %s: %w", label, err)
			}
			if err := waitSuccess(ctx, uc.gateway, hash, "setPrice "+label); err != nil {
				return err
			}
		}

		if f.Amount == "" || f.Whale == (common.Address{}) {
			continue
		}
		amount, ok := new(big.Int).SetString(f.Amount, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q for %s", f.Amount, label)
		}
		_, err := WithImpersonation(ctx, uc.sandbox, f.Whale, whaleGas,
			func(ctx context.Context, whale Signer) (common.Hash, error) {
				hash, err := sendTokenTransfer(ctx, whale, f.Token, target, amount)
				if err != nil {
					return common.Hash{}, err
				}
				return hash, waitSuccess(ctx, uc.gateway, hash, "fund exchange with "+label)
			})
		if err != nil {
			return fmt.Errorf("failed to fund exchange with %s: %w", label, err)
		}
		uc.log.Info("fixture loaded", "token", label, "price", f.Price, "amount", f.Amount)
	}
	return nil
}
