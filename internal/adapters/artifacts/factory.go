package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// DefaultDirs are searched when no artifact directories are configured
var DefaultDirs = []string{"out", "artifacts"}

// maxSuggestions caps the "did you mean" list
const maxSuggestions = 3

// Factory loads compiled contracts from Foundry (out/) or Hardhat (artifacts/) builds
type Factory struct {
	roots []string
	cache *lru.Cache[string, *models.Artifact]
	log   *slog.Logger

	mu    sync.Mutex
	index map[string]string // contract name -> artifact path
}

// NewFactory creates a factory over the configured artifact directories
func NewFactory(cfg *config.RuntimeConfig, log *slog.Logger) (*Factory, error) {
	dirs := cfg.Artifacts.Dirs
	if len(dirs) == 0 {
		dirs = DefaultDirs
	}
	size := cfg.Artifacts.CacheSize
	if size <= 0 {
		size = config.DefaultArtifactCache
	}
	cache, err := lru.New[string, *models.Artifact](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact cache: %w", err)
	}

	roots := lo.Map(dirs, func(d string, _ int) string {
		if filepath.IsAbs(d) {
			return d
		}
		return filepath.Join(cfg.ProjectRoot, d)
	})
	return &Factory{roots: roots, cache: cache, log: log}, nil
}

// Artifact returns the compiled contract called name
func (f *Factory) Artifact(ctx context.Context, name string) (*models.Artifact, error) {
	if a, ok := f.cache.Get(name); ok {
		return a, nil
	}

	index, err := f.loadIndex()
	if err != nil {
		return nil, err
	}
	path, ok := index[name]
	if !ok {
		return nil, f.notFound(name, index)
	}

	a, err := parseArtifact(name, path)
	if err != nil {
		return nil, err
	}
	f.cache.Add(name, a)
	f.log.Debug("loaded artifact", "contract", name, "path", path)
	return a, nil
}

// Names lists every contract with bytecode-bearing artifacts, sorted
func (f *Factory) Names() ([]string, error) {
	index, err := f.loadIndex()
	if err != nil {
		return nil, err
	}
	names := lo.Keys(index)
	sort.Strings(names)
	return names, nil
}

func (f *Factory) loadIndex() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		return f.index, nil
	}

	index := make(map[string]string)
	for _, root := range f.roots {
		if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "build-info" {
					return filepath.SkipDir
				}
				return nil
			}
			base := d.Name()
			if filepath.Ext(base) != ".json" || strings.HasSuffix(base, ".dbg.json") {
				return nil
			}
			name := strings.TrimSuffix(base, ".json")
			if existing, dup := index[name]; dup {
				f.log.Debug("duplicate artifact name, keeping first", "contract", name, "kept", existing, "skipped", path)
				return nil
			}
			index[name] = path
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifacts in %s: %w", root, err)
		}
	}
	f.index = index
	return index, nil
}

func (f *Factory) notFound(name string, index map[string]string) error {
	matches := fuzzy.Find(name, lo.Keys(index))
	if len(matches) == 0 {
		return fmt.Errorf("artifact %s: %w", name, domain.ErrNotFound)
	}
	sort.Stable(matches)
	suggestions := lo.Map(lo.Slice(matches, 0, maxSuggestions), func(m fuzzy.Match, _ int) string { return m.Str })
	return fmt.Errorf("artifact %s: %w (did you mean %s?)", name, domain.ErrNotFound, strings.Join(suggestions, ", "))
}

// artifactFile covers both layouts: Foundry nests bytecode under "object",
// Hardhat stores the hex string directly.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

func parseArtifact(name, path string) (*models.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if len(file.ABI) == 0 {
		return nil, fmt.Errorf("artifact %s has no abi", path)
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi of %s: %w", name, err)
	}
	code, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", name, err)
	}

	return &models.Artifact{
		Name:     name,
		Path:     path,
		ABI:      parsed,
		RawABI:   file.ABI,
		Bytecode: code,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var hex string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &hex); err != nil {
			return nil, err
		}
	} else {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hex = obj.Object
	}

	if hex == "" || hex == "0x" {
		return nil, nil
	}
	if strings.Contains(hex, "__") {
		return nil, errors.New("bytecode has unlinked library placeholders")
	}
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	code, err := hexutil.Decode(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode: %w", err)
	}
	return code, nil
}

var _ usecase.ContractFactory = (*Factory)(nil)
