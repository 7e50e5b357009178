package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/forkctl/internal/adapters/progress"
	"github.com/trebuchet-org/forkctl/internal/app"
	"github.com/trebuchet-org/forkctl/internal/config"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
	// registryKey is the context key for the offline app instance
	registryKey contextKey = "registry"
	// sinkKey is the context key for the progress sink
	sinkKey contextKey = "sink"

	// offlineAnnotation marks commands that never dial the node
	offlineAnnotation = "forkctl/offline"
)

// session owns what PersistentPreRunE opens so it can be released after the
// command, whether or not it failed
type session struct {
	sink    usecase.ProgressSink
	cleanup func()
	cancel  context.CancelFunc
}

func (s *session) close() {
	if sp, ok := s.sink.(*progress.SpinnerSink); ok {
		sp.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Execute runs the CLI and releases the node connection afterwards
func Execute(ctx context.Context) error {
	s := &session{}
	defer s.close()
	return newRootCmd(s).ExecuteContext(ctx)
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&session{})
}

func newRootCmd(s *session) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forkctl",
		Short: "Deploy and drive a DeFi contract system on forked chains",
		Long: `forkctl deploys the multiply proxy system to an Anvil or Hardhat fork,
manipulates fork state (balances, oracle prices, proxy ownership, snapshots)
and talks to the deployed exchange and vaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				// a missing forkctl.toml still allows flag and env only runs
				projectRoot = "."
			}

			v := config.SetupViper(projectRoot, cmd)
			s.sink = progress.NewSink(v.GetBool("non_interactive"))

			ctx := context.WithValue(cmd.Context(), sinkKey, s.sink)
			if cmd.Annotations[offlineAnnotation] == "true" {
				ctx, err = initRegistryApp(ctx, v, s)
			} else {
				ctx, err = initApp(ctx, v, s)
			}
			if err != nil {
				return err
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network to use (e.g., local, mainnet)")
	rootCmd.PersistentFlags().String("rpc-url", "", "Override the network's RPC URL")
	rootCmd.PersistentFlags().String("config", "", "Path to forkctl.toml")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable interactive prompts")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Deployment Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "fork",
		Title: "Fork Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "protocol",
		Title: "Protocol Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "registry",
		Title: "Registry Commands",
	})

	addGrouped(rootCmd, "main", NewDeployCmd())
	addGrouped(rootCmd, "fork",
		NewForkCmd(),
		NewSnapshotCmd(),
		NewFundCmd(),
		NewFundTokenCmd(),
		NewPriceCmd(),
		NewProxyCmd(),
	)
	addGrouped(rootCmd, "protocol",
		NewCDPsCmd(),
		NewQuoteCmd(),
		NewSwapCmd(),
	)
	addGrouped(rootCmd, "registry",
		NewDeploymentsCmd(),
		NewArtifactsCmd(),
	)

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

func addGrouped(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
		root.AddCommand(c)
	}
}

func initApp(ctx context.Context, v *viper.Viper, s *session) (context.Context, error) {
	appInstance, cleanup, err := app.InitApp(ctx, v, s.sink)
	if err != nil {
		return ctx, fmt.Errorf("failed to initialize app: %w", err)
	}
	s.cleanup = cleanup

	ctx = context.WithValue(ctx, appKey, appInstance)
	return withTimeout(ctx, appInstance.Config.Timeout, s), nil
}

func initRegistryApp(ctx context.Context, v *viper.Viper, s *session) (context.Context, error) {
	registry, cleanup, err := app.InitRegistryApp(ctx, v, s.sink)
	if err != nil {
		return ctx, fmt.Errorf("failed to initialize app: %w", err)
	}
	s.cleanup = cleanup

	ctx = context.WithValue(ctx, registryKey, registry)
	return withTimeout(ctx, registry.Config.Timeout, s), nil
}

func withTimeout(ctx context.Context, timeout time.Duration, s *session) context.Context {
	if timeout <= 0 {
		return ctx
	}
	ctx, s.cancel = context.WithTimeout(ctx, timeout)
	return ctx
}

// offline marks cmd as not needing a node connection
func offline(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[offlineAnnotation] = "true"
	return cmd
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance, ok := cmd.Context().Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return appInstance, nil
}

// getRegistryApp retrieves the offline app instance from the command context
func getRegistryApp(cmd *cobra.Command) (*app.RegistryApp, error) {
	registry, ok := cmd.Context().Value(registryKey).(*app.RegistryApp)
	if !ok || registry == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return registry, nil
}

// finishProgress closes out the spinner so results print on a clean line
func finishProgress(cmd *cobra.Command) {
	if sp, ok := cmd.Context().Value(sinkKey).(*progress.SpinnerSink); ok {
		sp.Stop()
	}
}
