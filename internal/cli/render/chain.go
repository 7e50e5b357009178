package render

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// ChainRenderer renders results of commands that poke node state directly
type ChainRenderer struct {
	out io.Writer
}

// NewChainRenderer creates a new chain renderer
func NewChainRenderer(out io.Writer) *ChainRenderer {
	return &ChainRenderer{out: out}
}

// RenderReset renders a fork reset
func (r *ChainRenderer) RenderReset(result *usecase.ResetForkResult) error {
	fmt.Fprintln(r.out, FormatSuccess("Fork reset"))
	fmt.Fprintln(r.out, field("Fork URL", result.ForkURL))
	if result.ForkBlock > 0 {
		fmt.Fprintln(r.out, field("Block", result.ForkBlock))
	} else {
		fmt.Fprintln(r.out, field("Block", "latest"))
	}
	return nil
}

// RenderSnapshot renders a new snapshot id
func (r *ChainRenderer) RenderSnapshot(id string) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Snapshot %s created", id)))
	return nil
}

// RenderRevert renders a snapshot restore
func (r *ChainRenderer) RenderRevert(id string, skipped bool) error {
	if skipped {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("Restore of snapshot %s skipped", id)))
		return nil
	}
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Reverted to snapshot %s", id)))
	return nil
}

// RenderFund renders a balance change
func (r *ChainRenderer) RenderFund(result *usecase.FundAccountResult) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Funded %s", result.Account.Hex())))
	fmt.Fprintln(r.out, field("Previous", FormatEther(result.Previous)))
	fmt.Fprintln(r.out, field("Balance", FormatEther(result.Balance)))
	return nil
}

// RenderFundToken renders a token transfer out of a whale
func (r *ChainRenderer) RenderFundToken(params usecase.FundTokenParams, result *usecase.FundTokenResult) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Sent %s of %s to %s", params.Amount, params.Token.Hex(), params.Recipient.Hex())))
	fmt.Fprintln(r.out, field("From", formatAddress(params.Whale)))
	fmt.Fprintln(r.out, field("Transaction", hashStyle.Sprint(result.TxHash.Hex())))
	fmt.Fprintln(r.out, field("Balance", result.Balance))
	return nil
}

// RenderPrice renders a decoded oracle price word
func (r *ChainRenderer) RenderPrice(result *usecase.ReadPriceResult) error {
	fmt.Fprintln(r.out, field("Oracle", formatAddress(result.Oracle)))
	fmt.Fprintln(r.out, field("Slot", result.Slot.Hex()))
	fmt.Fprintln(r.out, field("Raw", result.Raw.Hex()))
	fmt.Fprintln(r.out, field("Current", result.Word.Current))
	if result.Word.Pending != nil && result.Word.Pending.Sign() > 0 {
		fmt.Fprintln(r.out, field("Pending", result.Word.Pending))
	}
	fmt.Fprintln(r.out, field("Price", headerStyle.Sprint(FormatRat(result.Price))))
	return nil
}

// RenderProxyTransfer renders the storage writes of an ownership transfer
func (r *ChainRenderer) RenderProxyTransfer(params usecase.TransferProxyOwnershipParams, result *usecase.TransferProxyOwnershipResult) error {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Proxy %s now owned by %s", params.Proxy.Hex(), params.NewOwner.Hex())))
	fmt.Fprintln(r.out, field("Previous", formatAddress(result.PreviousOwner)))
	fmt.Fprintln(r.out, field("Registry slot", result.RegistrySlot.Hex()))
	fmt.Fprintln(r.out, field("Owner slot", result.OwnerSlot.Hex()))
	if result.ClearedSlot != (common.Hash{}) {
		fmt.Fprintln(r.out, field("Cleared slot", result.ClearedSlot.Hex()))
	}
	return nil
}

// RenderQuote renders an aggregator payload
func (r *ChainRenderer) RenderQuote(amount *big.Int, to common.Address, data []byte) error {
	fmt.Fprintln(r.out, field("Amount", amount))
	fmt.Fprintln(r.out, field("Target", formatAddress(to)))
	fmt.Fprintln(r.out, field("Calldata", fmt.Sprintf("%d bytes", len(data))))
	if len(data) > 0 {
		fmt.Fprintln(r.out, common.Bytes2Hex(data))
	}
	return nil
}

// RenderSwap renders a mined swap
func (r *ChainRenderer) RenderSwap(result *usecase.SwapTokensResult) error {
	fmt.Fprintln(r.out, FormatSuccess("Swap executed"))
	fmt.Fprintln(r.out, field("Transaction", hashStyle.Sprint(result.TxHash.Hex())))
	if result.Payload != nil {
		fmt.Fprintln(r.out, field("Target", formatAddress(result.Payload.To)))
	}
	return nil
}
