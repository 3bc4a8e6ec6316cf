// Package cli implements boardctl, the operator CLI of Planboard.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard-core/config"
	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/infrastructure/settings"
	"github.com/planboard/planboard-core/pkg/logger"
)

var (
	verbose      bool
	jsonOutput   bool
	settingsPath string
	rootCmd      *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "boardctl",
		Short: "Inspect the Planboard project board",
		Long: `boardctl reads the same stores as the worker and prints the ranked board,
project progress and the member directory. It also manages the default
ranking mode and the database schema.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default: user config dir)")

	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newLogger logs to stderr so stdout stays machine-readable.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logger.New(logger.Options{Output: os.Stderr, Level: level, Format: logger.FormatText})
}

// withApp loads config, builds the component graph and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.Build(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func settingsStore() (*settings.Store, error) {
	path := settingsPath
	if path == "" {
		var err error
		if path, err = settings.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return settings.NewStore(path), nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
