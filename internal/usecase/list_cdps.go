package usecase

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

// ListCDPs lists the vaults an owner holds through their DSProxy
type ListCDPs struct {
	registry CDPRegistry
}

// NewListCDPs creates a new ListCDPs use case
func NewListCDPs(registry CDPRegistry) *ListCDPs {
	return &ListCDPs{registry: registry}
}

// ListCDPsResult contains the owner's vaults in ascending id order
type ListCDPsResult struct {
	Owner common.Address
	Proxy common.Address
	CDPs  []models.CDPRecord
	// Current is the most recently opened vault, nil when there are none
	Current *models.CDPRecord
}

// Run resolves the owner's proxy and lists its vaults
func (uc *ListCDPs) Run(ctx context.Context, owner common.Address) (*ListCDPsResult, error) {
	proxy, err := uc.registry.ProxyOf(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to look up proxy of %s: %w", owner.Hex(), err)
	}
	if proxy == (common.Address{}) {
		return nil, fmt.Errorf("%w: no proxy for %s", domain.ErrNotFound, owner.Hex())
	}

	cdps, err := uc.registry.CDPsOf(ctx, proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaults of %s: %w", proxy.Hex(), err)
	}

	result := &ListCDPsResult{Owner: owner, Proxy: proxy, CDPs: cdps}
	if current, ok := models.CurrentCDP(cdps); ok {
		result.Current = &current
	}
	return result, nil
}
