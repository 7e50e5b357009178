package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// DeployRenderer renders contract and system deployments
type DeployRenderer struct {
	out io.Writer
}

// NewDeployRenderer creates a new deploy renderer
func NewDeployRenderer(out io.Writer) *DeployRenderer {
	return &DeployRenderer{out: out}
}

// RenderContract renders a single confirmed deployment
func (r *DeployRenderer) RenderContract(result *usecase.DeployContractResult) error {
	name := ""
	if result.Contract != nil {
		name = result.Contract.Name
	}
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Deployed %s", name)))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, field("Address", formatAddress(result.Address)))
	fmt.Fprintln(r.out, field("Transaction", hashStyle.Sprint(result.TxHash.Hex())))
	fmt.Fprintln(r.out, field("Nonce", result.Nonce))
	fmt.Fprintln(r.out, field("Gas price", FormatGasPrice(result.GasPrice)))
	if result.Attempts > 1 {
		prices := make([]string, len(result.GasPrices))
		for i, p := range result.GasPrices {
			prices[i] = FormatGasPrice(p)
		}
		fmt.Fprintln(r.out, field("Attempts", fmt.Sprintf("%d (%s)", result.Attempts, strings.Join(prices, " → "))))
	}
	if result.Receipt != nil {
		fmt.Fprintln(r.out, field("Block", result.Receipt.BlockNumber))
		fmt.Fprintln(r.out, field("Gas used", result.Receipt.GasUsed))
	}
	return nil
}

// RenderSystem renders every contract of a system deployment
func (r *DeployRenderer) RenderSystem(system *usecase.DeployedSystem) error {
	fmt.Fprintln(r.out, FormatSuccess("System deployed"))
	fmt.Fprintln(r.out)

	t := newTable()
	t.SetOutputMirror(r.out)
	t.AppendHeader(table.Row{"Contract", "Address", "Transaction", "Attempts"})

	names := make([]string, 0, len(system.Deployments))
	for name := range system.Deployments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep := system.Deployments[name]
		t.AppendRow(table.Row{name, dep.Address.Hex(), dep.TxHash.Hex(), dep.Attempts})
	}
	if system.ProxyFactory == nil && system.ProxyRegistry != nil {
		t.AppendRow(table.Row{usecase.ProxyRegistryNode, system.ProxyRegistry.Address.Hex(), "existing", "-"})
	}
	t.Render()

	if system.Exchange != nil {
		kind := "routed"
		if system.Priced != nil {
			kind = "fixed-price"
		}
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, field("Exchange", fmt.Sprintf("%s (%s)", formatAddress(system.Exchange.Contract().Address), kind)))
	}

	if len(system.Fixtures) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, headerStyle.Sprint("Price fixtures"))
		ft := newTable()
		ft.SetOutputMirror(r.out)
		ft.AppendHeader(table.Row{"Token", "Symbol", "Price", "Precision", "Funded"})
		for _, f := range system.Fixtures {
			ft.AppendRow(table.Row{f.Token.Hex(), f.Symbol, f.Price, f.Precision, f.Amount})
		}
		ft.Render()
	}
	return nil
}
