package interactive

import (
	"errors"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
)

func TestConfirm(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		p.confirm = func(string) error { return nil }
		ok, err := p.Confirm("Deploy to mainnet")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("declined", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		p.confirm = func(string) error { return promptui.ErrAbort }
		ok, err := p.Confirm("Deploy to mainnet")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("interrupted", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		p.confirm = func(string) error { return promptui.ErrInterrupt }
		_, err := p.Confirm("Deploy to mainnet")
		assert.ErrorIs(t, err, promptui.ErrInterrupt)
	})

	t.Run("non-interactive", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{NonInteractive: true})
		p.confirm = func(string) error { t.Fatal("prompted"); return nil }
		_, err := p.Confirm("Deploy to mainnet")
		assert.ErrorIs(t, err, ErrNonInteractive)
	})
}

func TestSelectContract(t *testing.T) {
	names := []string{"DummyExchange", "Exchange", "McdView"}

	t.Run("single candidate skips the prompt", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{NonInteractive: true})
		name, err := p.SelectContract([]string{"McdView"}, "Contract")
		require.NoError(t, err)
		assert.Equal(t, "McdView", name)
	})

	t.Run("picks by index", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		p.selectOne = func(_ string, items []string) (int, error) { return 1, nil }
		name, err := p.SelectContract(names, "Contract")
		require.NoError(t, err)
		assert.Equal(t, "Exchange", name)
	})

	t.Run("cancelled", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		p.selectOne = func(string, []string) (int, error) { return 0, errors.New("^C") }
		_, err := p.SelectContract(names, "Contract")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{})
		_, err := p.SelectContract(nil, "Contract")
		assert.Error(t, err)
	})

	t.Run("non-interactive with several candidates", func(t *testing.T) {
		p := NewPrompter(&config.RuntimeConfig{NonInteractive: true})
		_, err := p.SelectContract(names, "Contract")
		assert.ErrorIs(t, err, ErrNonInteractive)
	})
}

func TestFuzzySearcher(t *testing.T) {
	search := fuzzySearcher([]string{"MultiplyProxyActions", "McdView"})
	assert.True(t, search("", 0))
	assert.True(t, search("proxy", 0))
	assert.True(t, search("mpa", 0))
	assert.False(t, search("zzz", 1))
}
