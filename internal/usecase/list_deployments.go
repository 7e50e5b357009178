package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// ListDeploymentsParams contains parameters for listing deployments
type ListDeploymentsParams struct {
	// ContractName filters by case-insensitive substring
	ContractName string
	// Network restricts the list to records with an entry for that network;
	// empty means the selected network
	Network string
	// AllNetworks lists every network and the ABI-only records
	AllNetworks bool
}

// DeploymentEntry is one contract on one network
type DeploymentEntry struct {
	ContractName string
	Network      string
	Address      string
	Args         []any
}

// DeploymentListResult contains the flattened registry and per-network counts
type DeploymentListResult struct {
	Entries []DeploymentEntry
	// Undeployed are records that only carry an ABI
	Undeployed []string
	ByNetwork  map[string]int
}

// ListDeployments is the use case for listing deployments
type ListDeployments struct {
	config   *config.RuntimeConfig
	registry DeploymentRegistry
	sink     ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(cfg *config.RuntimeConfig, registry DeploymentRegistry, sink ProgressSink) *ListDeployments {
	return &ListDeployments{
		config:   cfg,
		registry: registry,
		sink:     sink,
	}
}

// Run executes the list deployments use case
func (uc *ListDeployments) Run(ctx context.Context, params ListDeploymentsParams) (*DeploymentListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployments from registry",
		Spinner: true,
	})

	records, err := uc.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	network := params.Network
	if network == "" {
		network = uc.config.NetworkName()
	}
	if params.AllNetworks {
		network = ""
	}
	result := flattenRecords(records, params.ContractName, network)

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "complete",
		Current: len(result.Entries),
		Total:   len(result.Entries),
		Message: "Deployments loaded",
	})
	return result, nil
}

func flattenRecords(records []*models.DeploymentRecord, nameFilter, network string) *DeploymentListResult {
	result := &DeploymentListResult{ByNetwork: make(map[string]int)}
	nameFilter = strings.ToLower(nameFilter)

	for _, rec := range records {
		if nameFilter != "" && !strings.Contains(strings.ToLower(rec.ContractName), nameFilter) {
			continue
		}
		if len(rec.Networks) == 0 {
			if network == "" {
				result.Undeployed = append(result.Undeployed, rec.ContractName)
			}
			continue
		}
		for name, nd := range rec.Networks {
			if network != "" && name != network {
				continue
			}
			result.Entries = append(result.Entries, DeploymentEntry{
				ContractName: rec.ContractName,
				Network:      name,
				Address:      nd.Address,
				Args:         nd.Args,
			})
			result.ByNetwork[name]++
		}
	}

	sortEntries(result.Entries)
	sort.Strings(result.Undeployed)
	return result
}

// sortEntries sorts by network, then contract name
func sortEntries(entries []DeploymentEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Network != entries[j].Network {
			return entries[i].Network < entries[j].Network
		}
		return entries[i].ContractName < entries[j].ContractName
	})
}
