package render

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	labelStyle   = color.New(color.Faint)
	addressStyle = color.New(color.FgCyan)
	hashStyle    = color.New(color.FgWhite)
	headerStyle  = color.New(color.Bold, color.FgHiWhite)
	warnStyle    = color.New(color.FgYellow)
)

var ether = new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	// Extract just the error message part (after the last colon if it's an error chain)
	parts := strings.Split(message, ": ")
	msg := parts[len(parts)-1]

	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}

	return color.New(color.FgRed).Sprintf("❌ %s", msg)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// FormatEther renders a wei amount in ether, trimming trailing zeros
func FormatEther(amount *big.Int) string {
	if amount == nil {
		return "-"
	}
	value := new(big.Rat).Quo(new(big.Rat).SetInt(amount), ether)
	s := strings.TrimRight(strings.TrimRight(value.FloatString(18), "0"), ".")
	return s + " ETH"
}

// FormatGasPrice renders a gas price with an SI prefix, e.g. "2.5Gwei"
func FormatGasPrice(price *big.Int) string {
	if price == nil {
		return "-"
	}
	f, _ := new(big.Float).SetInt(price).Float64()
	return unitconv.FormatPrefix(f, unitconv.SI, 1) + "wei"
}

// FormatRat renders an exact fraction with up to 18 decimals
func FormatRat(r *big.Rat) string {
	if r == nil {
		return "-"
	}
	s := r.FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func formatAddress(addr common.Address) string {
	if addr == (common.Address{}) {
		return labelStyle.Sprint("none")
	}
	return addressStyle.Sprint(addr.Hex())
}

// title turns a name into a heading, "proxy_registry" -> "Proxy Registry"
func title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	return t
}

func field(label string, value any) string {
	return fmt.Sprintf("  %s %v", labelStyle.Sprintf("%-14s", label+":"), value)
}
