package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/forkctl/internal/cli/render"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// NewFundCmd creates the fund command
func NewFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <amount>",
		Short: "Set an account's native balance",
		Long: `Set the native balance of an account on the fork. The amount accepts
wei, gwei and ether suffixes.

Examples:
  forkctl fund 0x... 100ether`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			account, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			result, err := a.FundAccount.Run(cmd.Context(), account, amount)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderFund(result)
		},
	}
}

// NewFundTokenCmd creates the fund-token command
func NewFundTokenCmd() *cobra.Command {
	var whale string
	var whaleGas string

	cmd := &cobra.Command{
		Use:   "fund-token <token> <recipient> <amount>",
		Short: "Transfer ERC-20 tokens out of an impersonated holder",
		Long: `Impersonate a large holder of a token and transfer tokens to a recipient.
The amount is in the token's smallest unit; the ether suffix works for
18-decimal tokens.

Examples:
  forkctl fund-token 0x6B17...1d0F 0x... 1000ether --whale 0x...`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			params := usecase.FundTokenParams{}
			if params.Token, err = parseAddress("token", args[0]); err != nil {
				return err
			}
			if params.Recipient, err = parseAddress("recipient", args[1]); err != nil {
				return err
			}
			if params.Amount, err = parseAmount("amount", args[2]); err != nil {
				return err
			}
			if params.Whale, err = parseAddress("whale", whale); err != nil {
				return err
			}
			if params.WhaleGas, err = parseOptionalAmount("whale gas", whaleGas); err != nil {
				return err
			}
			if params.WhaleGas == nil {
				params.WhaleGas = a.Config.System.WhaleBalance
			}

			result, err := a.FundToken.Run(cmd.Context(), params)
			finishProgress(cmd)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderFundToken(params, result)
		},
	}

	cmd.Flags().StringVar(&whale, "whale", "", "Token holder to impersonate")
	cmd.Flags().StringVar(&whaleGas, "whale-gas", "", "Native balance the holder is topped up to (e.g. 1ether)")
	_ = cmd.MarkFlagRequired("whale")
	return cmd
}

// NewPriceCmd creates the price command
func NewPriceCmd() *cobra.Command {
	var slot string

	cmd := &cobra.Command{
		Use:   "price <oracle>",
		Short: "Read and decode an oracle's packed price word",
		Long: `Read the storage word holding an oracle's price and split it into the
current and pending values. The default slot is the OSM's cur/nxt slot.

Examples:
  forkctl price 0x81FE72B5A8d1A857d176C3E7d5Bd2679A9B85763
  forkctl price 0x... --slot 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			params := usecase.ReadPriceParams{}
			if params.Oracle, err = parseAddress("oracle", args[0]); err != nil {
				return err
			}
			if params.Slot, err = parseSlot(slot); err != nil {
				return err
			}
			result, err := a.ReadPrice.Run(cmd.Context(), params)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderPrice(result)
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "Storage slot of the price word")
	return cmd
}

// NewProxyCmd creates the proxy command group
func NewProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Manipulate DSProxy ownership",
	}

	var registry, registrySlot, ownerSlot string
	transfer := &cobra.Command{
		Use:   "transfer <proxy> <new-owner>",
		Short: "Hand a proxy to a new owner by writing storage directly",
		Long: `Rewrite the proxy registry entry and the proxy's owner slot so that
new-owner controls the proxy, then read every slot back.

Examples:
  forkctl proxy transfer 0x... 0x...
  forkctl proxy transfer 0x... 0x... --registry 0x4678f0a6958e4D2Bc4F1BAF7Bc52E8F3564f3fE4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			params := usecase.TransferProxyOwnershipParams{Registry: a.Config.System.ProxyRegistry}
			if params.Proxy, err = parseAddress("proxy", args[0]); err != nil {
				return err
			}
			if params.NewOwner, err = parseAddress("new owner", args[1]); err != nil {
				return err
			}
			if registry != "" {
				if params.Registry, err = parseAddress("registry", registry); err != nil {
					return err
				}
			}
			if params.RegistrySlot, err = parseSlot(registrySlot); err != nil {
				return err
			}
			if params.OwnerSlot, err = parseSlot(ownerSlot); err != nil {
				return err
			}

			result, err := a.TransferProxyOwnership.Run(cmd.Context(), params)
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderProxyTransfer(params, result)
		},
	}
	transfer.Flags().StringVar(&registry, "registry", "", "Proxy registry address (defaults to the network's proxy_registry)")
	transfer.Flags().StringVar(&registrySlot, "registry-slot", "", "Declaration slot of the registry's proxies mapping")
	transfer.Flags().StringVar(&ownerSlot, "owner-slot", "", "Storage slot of the proxy owner")

	cmd.AddCommand(transfer)
	return cmd
}
