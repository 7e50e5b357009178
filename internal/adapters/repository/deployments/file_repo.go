package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// FileRepository stores one JSON file per contract under the registry directory
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepository creates the registry directory if needed
func NewFileRepository(cfg *config.RuntimeConfig) (*FileRepository, error) {
	dir := cfg.Registry.Dir
	if dir == "" {
		dir = config.DefaultRegistryDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.ProjectRoot, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

// Dir returns the registry directory
func (r *FileRepository) Dir() string { return r.dir }

func (r *FileRepository) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid contract name %q", name)
	}
	return filepath.Join(r.dir, name+".json"), nil
}

// Save merges record into the stored record for the same contract name.
// Entries for other networks are kept.
func (r *FileRepository) Save(ctx context.Context, record *models.DeploymentRecord) error {
	path, err := r.path(record.ContractName)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(path)
	if errors.Is(err, fs.ErrNotExist) {
		existing = &models.DeploymentRecord{}
	} else if err != nil {
		return err
	}
	existing.Merge(record)
	if existing.Networks == nil {
		existing.Networks = map[string]models.NetworkDeployment{}
	}

	return r.saveFile(path, existing)
}

// Get returns the record for contractName
func (r *FileRepository) Get(ctx context.Context, contractName string) (*models.DeploymentRecord, error) {
	path, err := r.path(contractName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("deployment %s: %w", contractName, domain.ErrNotFound)
	}
	return rec, err
}

// List returns every record, sorted by contract name
func (r *FileRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	records := make([]*models.DeploymentRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := r.load(p)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *FileRepository) load(path string) (*models.DeploymentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec models.DeploymentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &rec, nil
}

// saveFile writes to a temp file in the same directory, then renames it over path
func (r *FileRepository) saveFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

var _ usecase.DeploymentRegistry = (*FileRepository)(nil)
