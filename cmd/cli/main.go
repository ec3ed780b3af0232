package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/cmd/cli/commands"
	"github.com/jakechorley/charity-hub/internal/auth"
	"github.com/jakechorley/charity-hub/internal/config"
	"github.com/jakechorley/charity-hub/internal/telemetry"
	"github.com/jakechorley/charity-hub/pkg/core/coordinator"
	"github.com/jakechorley/charity-hub/pkg/db"
	"github.com/jakechorley/charity-hub/pkg/postgres"
	"github.com/jakechorley/charity-hub/pkg/sqlite"
	"github.com/jakechorley/charity-hub/pkg/utils/logging"
)

var (
	env     string
	app     = &commands.AppContext{}
	cleanup []func(context.Context) error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app.Ctx = ctx

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Charity Hub CLI - Manage volunteers, projects and teams",
		Long: `A CLI tool for registering volunteers and charities, running projects and teams,
logging and approving volunteer activity, and rating and messaging.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(ctx)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().StringVar(&app.ActorID, "as", "", "User ID to act as")
	rootCmd.PersistentFlags().StringVar(&app.Email, "email", "", "Sign in by email, password from CHARITY_HUB_PASSWORD")
	rootCmd.MarkFlagsMutuallyExclusive("as", "email")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.RegisterCmd(app))
	rootCmd.AddCommand(commands.WhoAmICmd(app))
	rootCmd.AddCommand(commands.DeactivateUserCmd(app))
	rootCmd.AddCommand(commands.PurgeUserCmd(app))
	rootCmd.AddCommand(commands.VerifyCharityCmd(app))
	rootCmd.AddCommand(commands.CreateProjectCmd(app))
	rootCmd.AddCommand(commands.SetProjectStatusCmd(app))
	rootCmd.AddCommand(commands.DeleteProjectCmd(app))
	rootCmd.AddCommand(commands.CreateSkillCmd(app))
	rootCmd.AddCommand(commands.AddProjectSkillCmd(app))
	rootCmd.AddCommand(commands.SetVolunteerSkillCmd(app))
	rootCmd.AddCommand(commands.CreateTeamCmd(app))
	rootCmd.AddCommand(commands.JoinCmd(app))
	rootCmd.AddCommand(commands.LeaveCmd(app))
	rootCmd.AddCommand(commands.AssignLeaderCmd(app))
	rootCmd.AddCommand(commands.MembersCmd(app))
	rootCmd.AddCommand(commands.LogActivityCmd(app))
	rootCmd.AddCommand(commands.ApproveCmd(app))
	rootCmd.AddCommand(commands.RejectCmd(app))
	rootCmd.AddCommand(commands.ActivitiesCmd(app))
	rootCmd.AddCommand(commands.PointsCmd(app))
	rootCmd.AddCommand(commands.ReconcileCmd(app))
	rootCmd.AddCommand(commands.RateCmd(app))
	rootCmd.AddCommand(commands.RatingsCmd(app))
	rootCmd.AddCommand(commands.PostMessageCmd(app))
	rootCmd.AddCommand(commands.MessagesCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		_ = shutdown()
		os.Exit(1)
	}
}

// initApp loads config and sets up the logger, tracing, store and coordinator
func initApp(ctx context.Context) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Cfg = cfg

	app.Logger, err = logging.InitLogger(env, cfg.Logging.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Debug("Starting application",
		zap.String("environment", env),
		zap.String("storage", cfg.Storage.Driver))

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	cleanup = append(cleanup, shutdownTracing)

	app.Store, err = openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	cleanup = append(cleanup, func(context.Context) error { return app.Store.Close() })
	app.Logger.Debug("Store opened")

	app.Coordinator = coordinator.New(app.Store, app.Logger, coordinator.WithRetryPolicy(coordinator.RetryPolicy{
		ConflictAttempts: cfg.Retry.ConflictAttempts,
		StorageAttempts:  cfg.Retry.StorageAttempts,
		InitialInterval:  cfg.Retry.InitialInterval,
		MaxInterval:      cfg.Retry.MaxInterval,
	}))
	app.Resolver = auth.NewResolver(app.Store)

	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.NewDB(ctx, cfg.DatabaseURL)
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
}

// shutdown releases resources in reverse order of acquisition
func shutdown() error {
	var firstErr error
	for i := len(cleanup) - 1; i >= 0; i-- {
		if err := cleanup[i](context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cleanup = nil
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
	return firstErr
}
