package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
)

// ResetFork points the node back at its upstream fork
type ResetFork struct {
	cfg       *config.RuntimeConfig
	gateway   SnapshotGateway
	snapshots *SnapshotManager
	log       *slog.Logger
}

// NewResetFork creates a new ResetFork use case
func NewResetFork(cfg *config.RuntimeConfig, gateway SnapshotGateway, snapshots *SnapshotManager, log *slog.Logger) *ResetFork {
	return &ResetFork{cfg: cfg, gateway: gateway, snapshots: snapshots, log: log}
}

// ResetForkParams overrides the configured fork source
type ResetForkParams struct {
	ForkURL   string
	ForkBlock uint64
}

// ResetForkResult describes where the fork now points
type ResetForkResult struct {
	ForkURL   string
	ForkBlock uint64
}

// Run resets the fork. Snapshots taken before the reset are gone, so any
// pending restore skip is dropped too.
func (uc *ResetFork) Run(ctx context.Context, params ResetForkParams) (*ResetForkResult, error) {
	url, block := params.ForkURL, params.ForkBlock
	if url == "" && uc.cfg.Network != nil {
		url = uc.cfg.Network.ForkURL
		if block == 0 {
			block = uc.cfg.Network.ForkBlock
		}
	}
	if url == "" {
		return nil, fmt.Errorf("%w: no fork url for %q", domain.ErrNoNetwork, uc.cfg.NetworkName())
	}

	if err := uc.gateway.ResetFork(ctx, url, block); err != nil {
		return nil, fmt.Errorf("failed to reset fork: %w", err)
	}
	uc.snapshots.ClearSkip()

	uc.log.Info("fork reset", "url", url, "block", block)
	return &ResetForkResult{ForkURL: url, ForkBlock: block}, nil
}
