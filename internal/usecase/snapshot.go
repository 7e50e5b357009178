package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/forkctl/internal/domain"
)

// SnapshotManager checkpoints node state so test runs can be rolled back.
// It is not safe for concurrent use.
type SnapshotManager struct {
	gateway SnapshotGateway
	log     *slog.Logger

	skipNextRestore bool
}

// NewSnapshotManager creates a new SnapshotManager
func NewSnapshotManager(gateway SnapshotGateway, log *slog.Logger) *SnapshotManager {
	return &SnapshotManager{gateway: gateway, log: log}
}

// Create takes a snapshot and returns its id
func (m *SnapshotManager) Create(ctx context.Context) (string, error) {
	id, err := m.gateway.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	m.log.Debug("snapshot created", "id", id)
	return id, nil
}

// Restore reverts to id, unless a skip was requested since the last restore.
// A skipped restore makes no node call and is not an error.
func (m *SnapshotManager) Restore(ctx context.Context, id string) error {
	if m.skipNextRestore {
		m.skipNextRestore = false
		m.log.Info("restore skipped", "id", id)
		return nil
	}

	ok, err := m.gateway.Revert(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to revert to snapshot %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	m.log.Debug("snapshot restored", "id", id)
	return nil
}

// SkipNextRestore makes the next Restore a no-op. Calling it twice still
// skips only one restore.
func (m *SnapshotManager) SkipNextRestore() {
	m.skipNextRestore = true
}

// SkipPending reports whether the next Restore will be skipped
func (m *SnapshotManager) SkipPending() bool {
	return m.skipNextRestore
}

// ClearSkip drops a pending skip request
func (m *SnapshotManager) ClearSkip() {
	m.skipNextRestore = false
}

// Isolate runs fn between a snapshot and a restore. The restore always runs;
// its error is joined onto fn's.
func (m *SnapshotManager) Isolate(ctx context.Context, fn func(ctx context.Context) error) error {
	id, err := m.Create(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx)
	if restoreErr := m.Restore(context.WithoutCancel(ctx), id); restoreErr != nil {
		return errors.Join(runErr, restoreErr)
	}
	return runErr
}
