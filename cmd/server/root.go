package main

import (
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/wbcms/internal/logging"
	"github.com/dmitrijs2005/wbcms/internal/server"
	"github.com/dmitrijs2005/wbcms/internal/server/config"
	"github.com/dmitrijs2005/wbcms/internal/server/models"
	"github.com/dmitrijs2005/wbcms/internal/server/services"
	"github.com/spf13/cobra"
)

// backend is the slice of the server application the subcommands drive.
type backend interface {
	Run(ctx context.Context) error
	Migrate(ctx context.Context) error
	CreateUser(ctx context.Context, u services.NewUser) (*models.User, error)
	PurgeExpired(ctx context.Context) (resetTokens, refreshTokens int64, err error)
	Close() error
}

type appBackend struct {
	*server.App
}

func (b appBackend) CreateUser(ctx context.Context, u services.NewUser) (*models.User, error) {
	return b.Users().CreateUser(ctx, u)
}

func (b appBackend) PurgeExpired(ctx context.Context) (int64, int64, error) {
	return b.Resets().PurgeExpired(ctx)
}

// newBackend is replaced in tests.
var newBackend = func(ctx context.Context, cfg *config.Config, l logging.Logger) (backend, error) {
	app, err := server.NewApp(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	return appBackend{app}, nil
}

// loadConfig is replaced in tests.
var loadConfig = config.LoadConfig

// NewRootCmd creates the root command for the WBCMS auth server.
//
// Server settings keep their single-dash flags (-a, -d, -s, ...) and the
// -c/-config JSON file. The config package reads them from the raw
// arguments; callers strip them with config.CommandArgs before Execute.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "WBCMS authentication server",
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewMaintenanceCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		Long: `Apply pending migrations, then serve the JSON API and the gRPC health
service until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, os.Stdout, func(ctx context.Context, b backend) error {
				return b.Run(ctx)
			})
		},
	}
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, os.Stderr, func(ctx context.Context, b backend) error {
				if err := b.Migrate(ctx); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

// withBackend loads the configuration, builds the backend, runs fn and
// closes the backend again. Logs go to logOut.
func withBackend(cmd *cobra.Command, logOut io.Writer, fn func(ctx context.Context, b backend) error) error {
	cfg := loadConfig()
	logger := logging.NewJSON(logOut, cfg.LogLevel)
	ctx := cmd.Context()

	b, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logging.LogError(ctx, logger, "startup failed", err)
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logging.LogError(ctx, logger, "shutdown failed", err)
		}
	}()

	return fn(ctx, b)
}
