// Command burnerd runs the custom-burner coordinator: it accepts
// burner registrations, queues burn requests, and dispatches them to
// idle, image-capable burners.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/config"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/coordinator"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/ingress"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/storage"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbosity  int
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "burnerd",
		Short: "Coordinate a fleet of disc-burning workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadCoordinator(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, verbosity)
		},
	}

	flags := cmd.Flags()
	flags.IntP("port", "p", 1234, "port to accept burner connections on")
	flags.StringP("state-path", "s", "custom_burner_server.db", "path to the persisted state file")
	flags.UintP("pool-size", "w", 16, "maximum number of connections handled concurrently")
	flags.IntP("retry-limit", "r", 5, "maximum retries for a failed burn before it is abandoned")
	flags.String("refresh-cron", "@every 30s", "cron schedule for the periodic dispatch sweep")
	flags.StringP("logfile", "l", "", "write logs to this file instead of stdout")
	flags.BoolP("curses", "c", false, "accepted for compatibility; this binary has no curses display and only logs a warning")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&configPath, "config", "", "optional YAML config file")

	return cmd
}

func run(ctx context.Context, cfg config.Coordinator, verbosity int) error {
	logDest := os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logDest = f
	}
	log.Init(log.Config{Level: log.LevelFromVerbosity(verbosity), Output: logDest})

	store, err := storage.NewBoltStore(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	coord, err := coordinator.New(coordinator.Config{
		Store:       store,
		RetryPolicy: types.RetryPolicy{MaxRetries: cfg.RetryLimit},
	})
	if err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, coord.TriggerRefresh); err != nil {
		return fmt.Errorf("invalid refresh-cron schedule: %w", err)
	}
	c.Start()
	defer c.Stop()

	srv := ingress.New(fmt.Sprintf(":%d", cfg.Port), coord, cfg.PoolSize)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	if cfg.Curses {
		log.WithComponent("burnerd").Warn().Msg("curses operator display is not part of this binary; --curses is ignored")
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("ingress server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return coord.Shutdown(shutdownCtx)
}
