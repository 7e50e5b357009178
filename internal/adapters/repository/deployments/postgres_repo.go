package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS deployment_records (
		contract_name TEXT PRIMARY KEY,
		abi           JSONB,
		networks      JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresRepository stores deployment records in PostgreSQL with the same
// merge semantics as the file registry
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects and creates the table if needed
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create deployment_records: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Close releases the connection pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// Save upserts record; networks are merged key by key with jsonb ||
func (r *PostgresRepository) Save(ctx context.Context, record *models.DeploymentRecord) error {
	networks := record.Networks
	if networks == nil {
		networks = map[string]models.NetworkDeployment{}
	}
	networksJSON, err := json.Marshal(networks)
	if err != nil {
		return fmt.Errorf("failed to marshal networks: %w", err)
	}
	var abiJSON []byte
	if len(record.ABI) > 0 {
		abiJSON = record.ABI
	}

	query := `
		INSERT INTO deployment_records (contract_name, abi, networks)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_name) DO UPDATE SET
			abi        = COALESCE(EXCLUDED.abi, deployment_records.abi),
			networks   = deployment_records.networks || EXCLUDED.networks,
			updated_at = now()
	`
	if _, err := r.pool.Exec(ctx, query, record.ContractName, abiJSON, networksJSON); err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", record.ContractName, err)
	}
	return nil
}

// Get returns the record for contractName
func (r *PostgresRepository) Get(ctx context.Context, contractName string) (*models.DeploymentRecord, error) {
	query := `
		SELECT contract_name, abi, networks
		FROM deployment_records
		WHERE contract_name = $1
	`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, contractName))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", contractName, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", contractName, err)
	}
	return rec, nil
}

// List returns every record, sorted by contract name
func (r *PostgresRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	query := `
		SELECT contract_name, abi, networks
		FROM deployment_records
		ORDER BY contract_name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var records []*models.DeploymentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*models.DeploymentRecord, error) {
	var (
		rec          models.DeploymentRecord
		abiJSON      []byte
		networksJSON []byte
	)
	if err := row.Scan(&rec.ContractName, &abiJSON, &networksJSON); err != nil {
		return nil, err
	}
	rec.ABI = abiJSON
	if err := json.Unmarshal(networksJSON, &rec.Networks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal networks: %w", err)
	}
	return &rec, nil
}

var _ usecase.DeploymentRegistry = (*PostgresRepository)(nil)
