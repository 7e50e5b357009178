package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// DeploymentsRenderer renders the deployment registry
type DeploymentsRenderer struct {
	out io.Writer
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer) *DeploymentsRenderer {
	return &DeploymentsRenderer{out: out}
}

// RenderList renders deployments grouped by network
func (r *DeploymentsRenderer) RenderList(result *usecase.DeploymentListResult) error {
	if len(result.Entries) == 0 && len(result.Undeployed) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	if len(result.Entries) > 0 {
		t := newTable()
		t.SetOutputMirror(r.out)
		t.AppendHeader(table.Row{"Network", "Contract", "Address", "Args"})
		for _, e := range result.Entries {
			t.AppendRow(table.Row{e.Network, e.ContractName, e.Address, formatArgs(e.Args)})
		}
		t.Render()
	}

	if len(result.Undeployed) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, warnStyle.Sprintf("ABI only: %s", strings.Join(result.Undeployed, ", ")))
	}

	networks := make([]string, 0, len(result.ByNetwork))
	for n := range result.ByNetwork {
		networks = append(networks, n)
	}
	sort.Strings(networks)
	summary := make([]string, len(networks))
	for i, n := range networks {
		summary[i] = fmt.Sprintf("%s: %d", n, result.ByNetwork[n])
	}
	if len(summary) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, labelStyle.Sprint(strings.Join(summary, "  ")))
	}
	return nil
}

// RenderRecord renders one registry record
func (r *DeploymentsRenderer) RenderRecord(record *models.DeploymentRecord) error {
	fmt.Fprintln(r.out, headerStyle.Sprint(record.ContractName))
	fmt.Fprintln(r.out, field("ABI", fmt.Sprintf("%d bytes", len(record.ABI))))
	if len(record.Networks) == 0 {
		fmt.Fprintln(r.out, field("Networks", labelStyle.Sprint("none")))
		return nil
	}

	networks := make([]string, 0, len(record.Networks))
	for n := range record.Networks {
		networks = append(networks, n)
	}
	sort.Strings(networks)
	fmt.Fprintln(r.out)
	for _, n := range networks {
		dep := record.Networks[n]
		fmt.Fprintf(r.out, "  %s\n", headerStyle.Sprint(title(n)))
		fmt.Fprintln(r.out, field("  Address", addressStyle.Sprint(dep.Address)))
		if len(dep.Args) > 0 {
			fmt.Fprintln(r.out, field("  Args", formatArgs(dep.Args)))
		}
	}
	return nil
}

// RenderArtifacts lists the compiled contract names
func (r *DeploymentsRenderer) RenderArtifacts(names []string) error {
	if len(names) == 0 {
		fmt.Fprintln(r.out, "No artifacts found")
		return nil
	}
	for _, n := range names {
		fmt.Fprintf(r.out, "  %s\n", n)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, labelStyle.Sprintf("%d contracts", len(names)))
	return nil
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, ", ")
}
