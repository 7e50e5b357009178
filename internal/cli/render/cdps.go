package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// CDPRenderer renders an owner's vaults
type CDPRenderer struct {
	out io.Writer
}

// NewCDPRenderer creates a new CDP renderer
func NewCDPRenderer(out io.Writer) *CDPRenderer {
	return &CDPRenderer{out: out}
}

// Render prints the vault table, marking the current vault
func (r *CDPRenderer) Render(result *usecase.ListCDPsResult) error {
	fmt.Fprintln(r.out, field("Owner", formatAddress(result.Owner)))
	fmt.Fprintln(r.out, field("Proxy", formatAddress(result.Proxy)))
	fmt.Fprintln(r.out)

	if len(result.CDPs) == 0 {
		fmt.Fprintln(r.out, "No vaults found")
		return nil
	}

	t := newTable()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"", "ID", "Ilk", "Urn"})
	for _, cdp := range result.CDPs {
		marker := ""
		if result.Current != nil && cdp.ID.Cmp(result.Current.ID) == 0 {
			marker = "*"
		}
		t.AppendRow(table.Row{marker, cdp.ID, cdp.IlkName(), cdp.Urn.Hex()})
	}
	t.Render()
	return nil
}
