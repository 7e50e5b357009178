package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/forkctl/internal/cli/render"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// NewDeploymentsCmd creates the deployments command group
func NewDeploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployments",
		Aliases: []string{"ls"},
		Short:   "Inspect the deployment registry",
	}

	var contract string
	var all bool
	list := offline(&cobra.Command{
		Use:   "list",
		Short: "List recorded deployments",
		Long: `List deployment records. By default only the selected network is shown;
use --all for every network.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getRegistryApp(cmd)
			if err != nil {
				return err
			}
			params := usecase.ListDeploymentsParams{ContractName: contract, AllNetworks: all}
			result, err := a.ListDeployments.Run(cmd.Context(), params)
			finishProgress(cmd)
			if err != nil {
				return fmt.Errorf("failed to list deployments: %w", err)
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderList(result)
		},
	})
	list.Flags().StringVar(&contract, "contract", "", "Filter by contract name")
	list.Flags().BoolVar(&all, "all", false, "Show every network")

	show := offline(&cobra.Command{
		Use:   "show <contract>",
		Short: "Show one deployment record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getRegistryApp(cmd)
			if err != nil {
				return err
			}
			record, err := a.ShowDeployment.Run(cmd.Context(), args[0])
			finishProgress(cmd)
			if err != nil {
				return err
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderRecord(record)
		},
	})

	cmd.AddCommand(list, show)
	return cmd
}

// NewArtifactsCmd creates the artifacts command
func NewArtifactsCmd() *cobra.Command {
	return offline(&cobra.Command{
		Use:   "artifacts",
		Short: "List compiled contracts available to deploy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getRegistryApp(cmd)
			if err != nil {
				return err
			}
			names, err := a.Artifacts.Names()
			if err != nil {
				return err
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderArtifacts(names)
		},
	})
}
