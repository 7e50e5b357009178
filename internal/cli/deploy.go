package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/forkctl/internal/adapters/interactive"
	"github.com/trebuchet-org/forkctl/internal/app"
	"github.com/trebuchet-org/forkctl/internal/cli/render"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

var errAborted = errors.New("aborted")

// NewDeployCmd creates the deploy command group
func NewDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy contracts",
		Long:  "Deploy single contracts or the whole multiply system to the selected network",
	}
	cmd.AddCommand(newDeploySystemCmd(), newDeployContractCmd())
	return cmd
}

func newDeploySystemCmd() *cobra.Command {
	var impersonate string
	var yes bool

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Deploy the proxy registry, proxy actions, view and exchange contracts",
		Long: `Deploy the multiply system. An existing proxy registry from the network
configuration is reused when it has code; otherwise the proxy factory and
registry are deployed too.

With --dummy-exchange the fixed-price exchange is deployed and loaded with
the configured price fixtures, each funded from its whale.

Examples:
  forkctl deploy system
  forkctl deploy system --dummy-exchange --fixtures fixtures.yaml
  forkctl deploy system --impersonate 0x...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			if err := confirmProduction(a, yes, "Deploy the system to %s"); err != nil {
				return err
			}

			system, err := withSigner(cmd.Context(), a, impersonate, func(ctx context.Context, signer usecase.Signer) (*usecase.DeployedSystem, error) {
				return a.DeploySystem.Run(ctx, usecase.DeploySystemParams{
					Signer:        signer,
					DummyExchange: a.Config.System.DummyExchange,
					Fixtures:      a.Config.System.Fixtures,
				})
			})
			finishProgress(cmd)
			if err != nil {
				return fmt.Errorf("system deployment failed: %w", err)
			}
			return render.NewDeployRenderer(cmd.OutOrStdout()).RenderSystem(system)
		},
	}

	cmd.Flags().Bool("dummy-exchange", false, "Deploy the fixed-price exchange instead of the routed one")
	cmd.Flags().String("fixtures", "", "YAML file with price fixtures for the fixed-price exchange")
	cmd.Flags().StringVar(&impersonate, "impersonate", "", "Deploy from an impersonated account instead of the configured key")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the production confirmation")

	return cmd
}

func newDeployContractCmd() *cobra.Command {
	var impersonate string
	var gasPrice string
	var nonce int64
	var yes bool

	cmd := &cobra.Command{
		Use:   "contract [name] [constructor args...]",
		Short: "Deploy a single contract and record it in the registry",
		Long: `Deploy one compiled contract. Unconfirmed transactions are resent with the
same nonce and a higher gas price until one is mined.

Without a name, the contract is picked interactively from the artifacts.
Integer arguments accept unit suffixes, e.g. 1.5ether.

Examples:
  forkctl deploy contract McdView
  forkctl deploy contract DummyExchange 0x... 20
  forkctl deploy contract McdView --gas-price 3gwei --nonce 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			name, rawArgs, err := contractFromArgs(a, args)
			if err != nil {
				return err
			}
			artifact, err := a.Artifacts.Artifact(cmd.Context(), name)
			if err != nil {
				return err
			}
			ctorArgs, err := parseConstructorArgs(artifact, rawArgs)
			if err != nil {
				return err
			}
			price, err := parseOptionalAmount("gas price", gasPrice)
			if err != nil {
				return err
			}
			params := usecase.DeployContractParams{ContractName: name, Args: ctorArgs, GasPrice: price}
			if nonce >= 0 {
				n := uint64(nonce)
				params.Nonce = &n
			}

			if err := confirmProduction(a, yes, "Deploy "+name+" to %s"); err != nil {
				return err
			}

			result, err := withSigner(cmd.Context(), a, impersonate, func(ctx context.Context, signer usecase.Signer) (*usecase.DeployContractResult, error) {
				params.Signer = signer
				return a.DeployContract.Run(ctx, params)
			})
			finishProgress(cmd)
			if err != nil {
				return fmt.Errorf("deployment of %s failed: %w", name, err)
			}
			return render.NewDeployRenderer(cmd.OutOrStdout()).RenderContract(result)
		},
	}

	cmd.Flags().StringVar(&impersonate, "impersonate", "", "Deploy from an impersonated account instead of the configured key")
	cmd.Flags().StringVar(&gasPrice, "gas-price", "", "Gas price of the first attempt (e.g. 3gwei)")
	cmd.Flags().Int64Var(&nonce, "nonce", -1, "Pin the deployment nonce")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the production confirmation")

	return cmd
}

// contractFromArgs splits the contract name from its constructor args,
// prompting for the name when none was given
func contractFromArgs(a *app.App, args []string) (string, []string, error) {
	if len(args) > 0 {
		return args[0], args[1:], nil
	}
	names, err := a.Artifacts.Names()
	if err != nil {
		return "", nil, err
	}
	name, err := interactive.NewPrompter(a.Config).SelectContract(names, "Select contract to deploy")
	if err != nil {
		return "", nil, err
	}
	return name, nil, nil
}

// confirmProduction asks before touching a production network
func confirmProduction(a *app.App, yes bool, label string) error {
	if yes || !a.Config.IsProduction() {
		return nil
	}
	network := a.Config.NetworkName()
	ok, err := interactive.NewPrompter(a.Config).Confirm(fmt.Sprintf(label, network))
	if errors.Is(err, interactive.ErrNonInteractive) {
		return fmt.Errorf("%s is a production network, pass --yes to deploy without a prompt", network)
	}
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}
