package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/curator-desk/internal/config"
	"github.com/spec-kit/curator-desk/internal/observability"
	"github.com/spec-kit/curator-desk/internal/persistence"
	"github.com/spec-kit/curator-desk/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "curatorctl",
	Short: "Administer the curator desk",
	Long: `curatorctl mints admin API tokens, manages the curator directory and
replays a ticket's action log. It reads the same environment as the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// environment is what every store-backed command needs.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *repository.Store
	close  func()
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Commands print their results; only warnings go to the log.
	cfg.Logger.Level = "warn"
	cfg.Logger.Format = "console"
	cfg.Logger.Output = "stderr"
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger, store: store, close: closeStore}, nil
}
