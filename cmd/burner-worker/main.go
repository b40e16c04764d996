// Command burner-worker runs one disc-burning worker: it registers
// with a coordinator, accepts pushed burn requests for the images it
// holds, and reports the outcome of each one back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/config"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	"github.com/BackupTheBerlios/custom-burner-svn/pkg/workerclient"
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
		Use:   "burner-worker",
		Short: "Register with a coordinator and burn pushed images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWorker(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			if err := validate(cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, verbosity)
		},
	}

	flags := cmd.Flags()
	flags.StringP("name", "n", "", "this burner's name, advertised to the coordinator (required)")
	flags.StringP("device", "d", "/dev/sr0", "burn device node passed to the burn command")
	flags.StringP("image-dir", "D", "", "directory of images this burner can serve; mutually exclusive with -S")
	flags.StringP("single-image", "S", "", "path to the one image this burner can serve; mutually exclusive with -D")
	flags.StringP("coordinator", "c", "", "coordinator address, host:port (required)")
	flags.IntP("listen-port", "p", 1235, "port this burner accepts pushed burns on")
	flags.StringP("listen-addr", "s", ":1235", "address this burner binds its listener to")
	flags.StringP("burn-command", "t", "/usr/local/bin/do-burn", "external command invoked to burn an image")
	flags.CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&configPath, "config", "", "optional YAML config file")

	return cmd
}

func validate(cfg config.Worker) error {
	if cfg.Name == "" {
		return fmt.Errorf("burner-worker: -n/--name is required")
	}
	if cfg.CoordinatorAddr == "" {
		return fmt.Errorf("burner-worker: -c/--coordinator is required")
	}
	if cfg.ImageDir != "" && cfg.SingleImage != "" {
		return fmt.Errorf("burner-worker: -D/--image-dir and -S/--single-image are mutually exclusive")
	}
	if cfg.ImageDir == "" && cfg.SingleImage == "" {
		return fmt.Errorf("burner-worker: exactly one of -D/--image-dir or -S/--single-image is required")
	}
	return nil
}

func imageList(cfg config.Worker) ([]string, string, error) {
	if cfg.SingleImage != "" {
		return []string{filepath.Base(cfg.SingleImage)}, filepath.Dir(cfg.SingleImage), nil
	}

	entries, err := os.ReadDir(cfg.ImageDir)
	if err != nil {
		return nil, "", fmt.Errorf("reading image directory: %w", err)
	}
	var images []string
	for _, e := range entries {
		if !e.IsDir() {
			images = append(images, e.Name())
		}
	}
	return images, cfg.ImageDir, nil
}

func run(ctx context.Context, cfg config.Worker, verbosity int) error {
	log.Init(log.Config{Level: log.LevelFromVerbosity(verbosity)})

	images, imageDir, err := imageList(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := workerclient.New(workerclient.Config{
		Name:            cfg.Name,
		ListenAddr:      cfg.ListenAddr,
		ListenPort:      cfg.ListenPort,
		CoordinatorAddr: cfg.CoordinatorAddr,
		Images:          images,
		Runner:          workerclient.ExecRunner{Command: cfg.BurnCommand, ImageDir: imageDir},
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- client.ListenAndServe(ctx) }()

	if err := client.Register(ctx); err != nil {
		return fmt.Errorf("registering with coordinator: %w", err)
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listener: %w", err)
		}
	}

	byeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return client.SayGoodbye(byeCtx)
}
