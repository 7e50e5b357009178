package deployments_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/forkctl/internal/domain"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
)

func record(name, network, address string) *models.DeploymentRecord {
	rec := &models.DeploymentRecord{
		ContractName: name,
		ABI:          json.RawMessage(`[]`),
		Networks:     map[string]models.NetworkDeployment{},
	}
	if network != "" {
		rec.Networks[network] = models.NetworkDeployment{Address: address, Args: []any{}}
	}
	return rec
}

func TestFileRepository(t *testing.T) {
	ctx := context.Background()

	newRepo := func(t *testing.T) *deployments.FileRepository {
		repo, err := deployments.NewFileRepository(&config.RuntimeConfig{ProjectRoot: t.TempDir()})
		require.NoError(t, err)
		return repo
	}

	t.Run("save and get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, record("McdView", "mainnet", "0x01")))

		got, err := repo.Get(ctx, "McdView")
		require.NoError(t, err)
		assert.Equal(t, "0x01", got.Networks["mainnet"].Address)
		assert.FileExists(t, filepath.Join(repo.Dir(), "McdView.json"))
	})

	t.Run("merge keeps other networks", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, record("Exchange", "goerli", "0x0a")))
		require.NoError(t, repo.Save(ctx, record("Exchange", "mainnet", "0x0b")))
		require.NoError(t, repo.Save(ctx, record("Exchange", "mainnet", "0x0c")))

		got, err := repo.Get(ctx, "Exchange")
		require.NoError(t, err)
		assert.Equal(t, "0x0a", got.Networks["goerli"].Address)
		assert.Equal(t, "0x0c", got.Networks["mainnet"].Address)
	})

	t.Run("abi only update keeps addresses", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, record("Exchange", "mainnet", "0x0b")))
		update := record("Exchange", "", "")
		update.ABI = json.RawMessage(`[{"type":"fallback"}]`)
		require.NoError(t, repo.Save(ctx, update))

		got, err := repo.Get(ctx, "Exchange")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"type":"fallback"}]`, string(got.ABI))
		assert.Equal(t, "0x0b", got.Networks["mainnet"].Address)
	})

	t.Run("file layout", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, record("McdView", "mainnet", "0x01")))

		data, err := os.ReadFile(filepath.Join(repo.Dir(), "McdView.json"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"contractName":"McdView","abi":[],"networks":{"mainnet":{"address":"0x01","args":[]}}}`, string(data))

		leftovers, err := filepath.Glob(filepath.Join(repo.Dir(), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := newRepo(t).Get(ctx, "Nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects path-like names", func(t *testing.T) {
		err := newRepo(t).Save(ctx, record("../evil", "mainnet", "0x01"))
		assert.Error(t, err)
	})

	t.Run("list is sorted", func(t *testing.T) {
		repo := newRepo(t)
		for _, name := range []string{"McdView", "Exchange", "ProxyRegistry"} {
			require.NoError(t, repo.Save(ctx, record(name, "mainnet", "0x01")))
		}
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Exchange", list[0].ContractName)
		assert.Equal(t, "ProxyRegistry", list[2].ContractName)
	})

	t.Run("concurrent saves merge", func(t *testing.T) {
		repo := newRepo(t)
		networks := []string{"mainnet", "goerli", "kovan", "fork"}
		var wg sync.WaitGroup
		for _, n := range networks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.Save(ctx, record("Exchange", n, "0x01")))
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, "Exchange")
		require.NoError(t, err)
		assert.Len(t, got.Networks, len(networks))
	})
}
