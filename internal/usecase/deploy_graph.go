package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ContractDeployer deploys one contract; DeployContract is the real one
type ContractDeployer interface {
	Run(ctx context.Context, params DeployContractParams) (*DeployContractResult, error)
}

// GraphNode is one contract in a deployment graph
type GraphNode struct {
	// Name identifies the node within the graph
	Name string
	// Contract is the artifact name; defaults to Name
	Contract string
	Deps     []string
	// Args builds constructor args once every dep has an address
	Args func(deployed map[string]common.Address) ([]any, error)
}

// GraphPlan is a set of contracts to deploy from one signer
type GraphPlan struct {
	Nodes  []GraphNode
	Signer Signer
}

// GraphResult holds every deployed node
type GraphResult struct {
	Deployed map[string]*DeployContractResult
	// Order is the nonce order the nodes were assigned
	Order []string
}

// Address returns the deployed address of a node
func (r *GraphResult) Address(name string) common.Address {
	if d, ok := r.Deployed[name]; ok {
		return d.Address
	}
	return common.Address{}
}

// DeployGraph deploys a DAG of contracts. Independent nodes run concurrently;
// a node starts once all of its deps have confirmed.
type DeployGraph struct {
	deployer ContractDeployer
	gateway  TxGateway
	progress ProgressSink
	log      *slog.Logger
}

// NewDeployGraph creates a new DeployGraph use case
func NewDeployGraph(deployer ContractDeployer, gateway TxGateway, progress ProgressSink, log *slog.Logger) *DeployGraph {
	return &DeployGraph{
		deployer: deployer,
		gateway:  gateway,
		progress: progress,
		log:      log,
	}
}

// Run validates the plan, assigns nonces in topological order and deploys every
// node. On any failure the rest is cancelled and no result is returned.
func (uc *DeployGraph) Run(ctx context.Context, plan GraphPlan) (*GraphResult, error) {
	if plan.Signer == nil {
		return nil, fmt.Errorf("%w: no signer", domain.ErrInvalidGraph)
	}
	order, err := TopologicalOrder(plan.Nodes)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return &GraphResult{Deployed: map[string]*DeployContractResult{}}, nil
	}

	base, err := uc.gateway.PendingNonceAt(ctx, plan.Signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", plan.Signer.Address().Hex(), err)
	}

	nodes := lo.KeyBy(plan.Nodes, func(n GraphNode) string { return n.Name })
	nonces := make(map[string]uint64, len(order))
	ready := make(map[string]chan struct{}, len(order))
	for i, name := range order {
		nonces[name] = base + uint64(i)
		ready[name] = make(chan struct{})
	}
	uc.log.Debug("deployment graph planned", "order", order, "baseNonce", base)

	var (
		mu       sync.Mutex
		deployed = make(map[string]*DeployContractResult, len(order))
		total    = len(order)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range order {
		node := nodes[name]
		g.Go(func() error {
			for _, dep := range node.Deps {
				select {
				case <-ready[dep]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}

			mu.Lock()
			addrs := lo.MapValues(deployed, func(r *DeployContractResult, _ string) common.Address { return r.Address })
			mu.Unlock()

			var args []any
			if node.Args != nil {
				var err error
				if args, err = node.Args(addrs); err != nil {
					return fmt.Errorf("failed to build args for %s: %w", node.Name, err)
				}
			}

			nonce := nonces[node.Name]
			res, err := uc.deployer.Run(gctx, DeployContractParams{
				ContractName: lo.Ternary(node.Contract != "", node.Contract, node.Name),
				Args:         args,
				Signer:       plan.Signer,
				Nonce:        &nonce,
			})
			if err != nil {
				return fmt.Errorf("failed to deploy %s: %w", node.Name, err)
			}

			mu.Lock()
			deployed[node.Name] = res
			done := len(deployed)
			mu.Unlock()
			close(ready[node.Name])

			uc.progress.OnProgress(gctx, ProgressEvent{
				Stage:   "Deployed",
				Current: done,
				Total:   total,
				Message: fmt.Sprintf("%s at %s", node.Name, res.Address.Hex()),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &GraphResult{Deployed: deployed, Order: order}, nil
}

// TopologicalOrder returns node names so that every node follows its deps.
// Ties keep declaration order, so independent nodes come out level by level.
func TopologicalOrder(nodes []GraphNode) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("%w: node %d has no name", domain.ErrInvalidGraph, i)
		}
		if _, dup := index[n.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", domain.ErrInvalidGraph, n.Name)
		}
		index[n.Name] = i
	}

	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, dep := range lo.Uniq(n.Deps) {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on unknown node %s", domain.ErrInvalidGraph, n.Name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(nodes))
	for i := range nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, nodes[i].Name)
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) != len(nodes) {
		stuck := lo.Filter(nodes, func(n GraphNode, _ int) bool { return !lo.Contains(order, n.Name) })
		return nil, fmt.Errorf("%w: cycle through %v", domain.ErrInvalidGraph,
			lo.Map(stuck, func(n GraphNode, _ int) string { return n.Name }))
	}
	return order, nil
}
