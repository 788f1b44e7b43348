// Package cli defines the service's cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/database"
	"github.com/sandeepkv93/device-session-guard/internal/di"
	"github.com/sandeepkv93/device-session-guard/internal/domain"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
	"github.com/sandeepkv93/device-session-guard/internal/service"
	"github.com/sandeepkv93/device-session-guard/internal/tools/ui"
)

type options struct {
	envFile string
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "device-session-guard",
		Short:         "Device-bound session and token lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file; environment variables take precedence")
	cmd.AddCommand(newServeCommand(opts), newMigrateCommand(opts), newSweepCommand(opts))
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, lp, err := bootstrap(ctx, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a, cleanup, err := di.InitializeApp(ctx, cfg, lp)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed the default role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, _, err := bootstrap(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			seeded, err := database.SeedDefaultRole(ctx, db)
			if err != nil {
				return err
			}
			details := []string{"tables: roles, users, user_devices, refresh_tokens"}
			if seeded {
				details = append(details, "seeded role: "+domain.DefaultUserRole)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderResult("migrate", details, nil))
			return nil
		},
	}
}

func newSweepCommand(opts *options) *cobra.Command {
	var (
		userID uint
		plain  bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stored sessions of a user whose tokens no longer verify",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 {
				return fmt.Errorf("--user-id is required")
			}
			ctx := cmd.Context()
			cfg, _, err := bootstrap(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			core, cleanup, err := di.InitializeSessionCore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize session core: %w", err)
			}
			defer cleanup()

			if plain {
				report := core.InvalidateStale(ctx, userID)
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSweepReport(report))
				return sweepError(report)
			}
			var report service.SweepReport
			_, err = ui.Run(ctx, cmd.OutOrStdout(), fmt.Sprintf("sweep user %d", userID), func(ctx context.Context) ([]string, error) {
				report = core.InvalidateStale(ctx, userID)
				return []string{ui.RenderSweepReport(report)}, sweepError(report)
			})
			return err
		},
	}
	cmd.Flags().UintVar(&userID, "user-id", 0, "user whose sessions are checked")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the report without the interactive spinner")
	return cmd
}

func sweepError(r service.SweepReport) error {
	if r.Failed > 0 {
		return fmt.Errorf("%d of %d sessions could not be checked", r.Failed, r.Checked)
	}
	return nil
}

func bootstrap(ctx context.Context, opts *options, logOut io.Writer) (*config.Config, *sdklog.LoggerProvider, error) {
	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, lp, err := observability.NewLogger(ctx, cfg, logOut)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, lp, nil
}
