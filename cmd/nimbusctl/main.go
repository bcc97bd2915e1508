package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blakestevenson/nimbus-acquire/internal/app"
	"github.com/blakestevenson/nimbus-acquire/internal/config"
	"github.com/blakestevenson/nimbus-acquire/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "nimbusctl",
		Short:         "One-shot operations against a nimbus-acquire database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")

	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger := zap.NewNop()
		if verbose {
			if logger, err = logging.NewLogger(true, cfg.LogFile); err != nil {
				return nil, err
			}
		}
		return app.New(ctx, cfg, logger)
	}

	rootCmd.AddCommand(RunSearchCommand(open))
	rootCmd.AddCommand(RunPollCommand(open))
	rootCmd.AddCommand(RunClientsCommand(open))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
