// Command screenscribe is the CLI entry point for the batch video-review
// engine: it extracts audio, transcribes it, detects candidate moments,
// captures frames, runs them through a vision-language model, and renders a
// findings report.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "screenscribe",
	Short:   "Batch video-review engine",
	Long:    "screenscribe extracts audio, transcribes it, detects candidate moments, captures frames, runs them through a vision-language model, and renders a findings report.",
	Version: version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "screenscribe: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
