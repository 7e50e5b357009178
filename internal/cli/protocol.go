package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/forkctl/internal/cli/render"
	"github.com/trebuchet-org/forkctl/internal/domain/models"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// NewCDPsCmd creates the cdps command
func NewCDPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cdps <owner>",
		Short: "List the vaults held by an owner's proxy",
		Long: `Resolve the owner's DSProxy through the proxy registry and list its
vaults from the CDP manager in ascending id order. The newest vault is
marked as current.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			owner, err := parseAddress("owner", args[0])
			if err != nil {
				return err
			}
			result, err := a.ListCDPs.Run(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return render.NewCDPRenderer(cmd.OutOrStdout()).Render(result)
		},
	}
}

// quoteFlags are shared by quote and swap
type quoteFlags struct {
	slippageBps uint64
	beneficiary string
	minReceive  string
	protocols   []string
}

func (f *quoteFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.slippageBps, "slippage-bps", 100, "Allowed slippage in basis points")
	cmd.Flags().StringVar(&f.beneficiary, "beneficiary", "", "Address that receives the output tokens")
	cmd.Flags().StringVar(&f.minReceive, "min-receive", "", "Least amount of the output token to accept")
	cmd.Flags().StringSliceVar(&f.protocols, "protocols", nil, "Restrict routing to these protocols")
}

func (f *quoteFlags) request(from, to, amount string) (models.QuoteRequest, error) {
	req := models.QuoteRequest{SlippageBps: f.slippageBps, Protocols: f.protocols}
	var err error
	if req.From, err = parseAddress("from token", from); err != nil {
		return req, err
	}
	if req.To, err = parseAddress("to token", to); err != nil {
		return req, err
	}
	if req.Amount, err = parseAmount("amount", amount); err != nil {
		return req, err
	}
	if req.MinReceive, err = parseOptionalAmount("min receive", f.minReceive); err != nil {
		return req, err
	}
	if f.beneficiary != "" {
		if req.Beneficiary, err = parseAddress("beneficiary", f.beneficiary); err != nil {
			return req, err
		}
	}
	return req, nil
}

// NewQuoteCmd creates the quote command
func NewQuoteCmd() *cobra.Command {
	var flags quoteFlags

	cmd := &cobra.Command{
		Use:   "quote <from-token> <to-token> <amount>",
		Short: "Ask the swap aggregator for a route",
		Long: `Request swap calldata from the aggregator for the selected chain. Failed
or empty quotes are retried a bounded number of times.

Examples:
  forkctl quote 0x6B17...1d0F 0xC02a...6Cc2 1000ether --slippage-bps 50`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			req, err := flags.request(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			payload, err := a.QuoteSwap.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderQuote(req.Amount, payload.To, payload.Data)
		},
	}

	flags.register(cmd)
	return cmd
}

// NewSwapCmd creates the swap command
func NewSwapCmd() *cobra.Command {
	var flags quoteFlags
	var impersonate string
	var dummy bool

	cmd := &cobra.Command{
		Use:   "swap <exchange> <from-token> <to-token> <amount>",
		Short: "Swap tokens through a deployed exchange",
		Long: `Quote a trade and send it through a deployed exchange contract. The
routed exchange takes its calldata from the aggregator; the fixed-price
exchange (--dummy) needs no quote.

Examples:
  forkctl swap 0x... 0x6B17...1d0F 0xC02a...6Cc2 1000ether
  forkctl swap 0x... 0x6B17...1d0F 0xC02a...6Cc2 1000ether --dummy --impersonate 0x...`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			exchange, err := parseAddress("exchange", args[0])
			if err != nil {
				return err
			}
			req, err := flags.request(args[1], args[2], args[3])
			if err != nil {
				return err
			}
			kind := usecase.RoutedExchangeKind
			if dummy {
				kind = usecase.DummyExchangeKind
			}

			result, err := withSigner(cmd.Context(), a, impersonate, func(ctx context.Context, signer usecase.Signer) (*usecase.SwapTokensResult, error) {
				return a.SwapTokens.Run(ctx, usecase.SwapTokensParams{
					Exchange: exchange,
					Kind:     kind,
					Request:  req,
					Signer:   signer,
				})
			})
			finishProgress(cmd)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderSwap(result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&impersonate, "impersonate", "", "Swap from an impersonated account instead of the configured key")
	cmd.Flags().BoolVar(&dummy, "dummy", false, "The exchange is the fixed-price exchange")
	return cmd
}
