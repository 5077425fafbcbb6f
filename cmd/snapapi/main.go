package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"snapapi/internal/config"
	"snapapi/internal/logger"
)

// rootOptions is shared by every subcommand. cfg and log are filled in by
// the root PersistentPreRunE.
type rootOptions struct {
	ConfigPath string

	cfg *config.AppConfig
	log *zap.Logger
}

// @title Snapshot Image API
// @version 1.0
// @description Recent camera captures held for a limited time.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "snapapi",
		Short: "Camera snapshot capture and query service",
		Long: `snapapi captures still images on a trigger, keeps them in a record store
for a limited time and serves the most recent ones over HTTP.

Run "snapapi capture" next to the camera and "snapapi serve" wherever the API
should live; both talk to the same STORE_URL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.cfg = cfg
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (env: CONFIG_FILE)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCaptureCommand(opts))

	return cmd
}
