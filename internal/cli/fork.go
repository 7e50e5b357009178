package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/forkctl/internal/cli/render"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// NewForkCmd creates the fork command group
func NewForkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fork",
		Short: "Manage the forked node",
	}
	cmd.AddCommand(newForkResetCmd())
	return cmd
}

func newForkResetCmd() *cobra.Command {
	var url string
	var block uint64

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the fork to its upstream source",
		Long: `Reset the node to a fresh fork of the upstream chain. Without flags the
fork_url and fork_block of the selected network are used. All snapshots
are discarded.

Examples:
  forkctl fork reset
  forkctl fork reset --block 17500000
  forkctl fork reset --url https://eth.llamarpc.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			result, err := a.ResetFork.Run(cmd.Context(), usecase.ResetForkParams{ForkURL: url, ForkBlock: block})
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderReset(result)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Upstream RPC URL to fork from")
	cmd.Flags().Uint64Var(&block, "block", 0, "Block number to fork at (0 for latest)")
	return cmd
}

// NewSnapshotCmd creates the snapshot command group
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Checkpoint and restore node state",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Take a snapshot and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			id, err := a.Snapshots.Create(cmd.Context())
			if err != nil {
				return err
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderSnapshot(id)
		},
	}

	var keep bool
	revert := &cobra.Command{
		Use:   "revert <id>",
		Short: "Restore a snapshot",
		Long: `Restore the node to a snapshot. Snapshots are single use on Anvil and
Hardhat, so take a new one after reverting if you need it again.

With --keep the restore is skipped and the current state kept, which is
handy in scripts that always revert after a run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			if keep {
				a.Snapshots.SkipNextRestore()
			}
			skipped := a.Snapshots.SkipPending()
			if err := a.Snapshots.Restore(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to revert: %w", err)
			}
			return render.NewChainRenderer(cmd.OutOrStdout()).RenderRevert(args[0], skipped)
		},
	}
	revert.Flags().BoolVar(&keep, "keep", false, "Skip this restore and keep the current state")

	cmd.AddCommand(create, revert)
	return cmd
}
