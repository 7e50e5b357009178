package interactive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sahilm/fuzzy"
	"github.com/trebuchet-org/forkctl/internal/domain/config"
)

// ErrNonInteractive is returned when a prompt is needed but prompts are disabled
var ErrNonInteractive = errors.New("interactive prompt not available in non-interactive mode")

// Prompter asks the operator to confirm actions and pick contracts
type Prompter struct {
	nonInteractive bool

	// confirm and selectOne are swapped out in tests
	confirm   func(label string) error
	selectOne func(label string, items []string) (int, error)
}

// NewPrompter creates a prompter honouring the non-interactive setting
func NewPrompter(cfg *config.RuntimeConfig) *Prompter {
	return &Prompter{
		nonInteractive: cfg.NonInteractive,
		confirm:        runConfirm,
		selectOne:      runSelect,
	}
}

// Confirm asks a yes/no question. Declining is not an error.
func (p *Prompter) Confirm(label string) (bool, error) {
	if p.nonInteractive {
		return false, ErrNonInteractive
	}
	if err := p.confirm(label); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// SelectContract picks one contract name. A single candidate is returned
// without prompting.
func (p *Prompter) SelectContract(names []string, label string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("no contracts to choose from")
	}
	if len(names) == 1 {
		return names[0], nil
	}
	if p.nonInteractive {
		return "", ErrNonInteractive
	}

	index, err := p.selectOne(label, names)
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return names[index], nil
}

func runConfirm(label string) error {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err
}

func runSelect(label string, items []string) (int, error) {
	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "▸ {{ . | cyan }}",
		Inactive: "  {{ . | faint }}",
		Selected: "✓ {{ . | green }}",
		Help:     color.New(color.FgYellow).Sprint("Use arrow keys to navigate, Enter to select"),
	}

	promptSelect := promptui.Select{
		Label:             label,
		Items:             items,
		Templates:         templates,
		Size:              10,
		StartInSearchMode: true,
		Searcher:          fuzzySearcher(items),
	}
	index, _, err := promptSelect.Run()
	return index, err
}

// fuzzySearcher matches by substring first, then by fuzzy score
func fuzzySearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if input == "" {
			return true
		}
		input = strings.ToLower(input)
		item := strings.ToLower(items[index])
		if strings.Contains(item, input) {
			return true
		}
		return len(fuzzy.Find(input, []string{item})) > 0
	}
}
