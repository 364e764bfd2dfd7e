// heatsd is the launcher daemon. It keeps provider caches warm, watches
// the trigger file for mode activations, and serves external dmenu-style
// sessions on a unix socket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/daemon"
)

var (
	flagTUI      bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "heatsd",
	Short: "heats launcher daemon",
	Long: `heatsd runs the heats launcher in the background.

Providers are cached and refreshed per config, modes are activated by
writing to the trigger file (see "heats show"), and anything piped to
"heats" opens an external selection session.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := daemon.Stop(config.DefaultPaths()); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(daemon.Status(config.DefaultPaths()))
	},
}

func runDaemon() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(flagLogLevel),
	}))
	slog.SetDefault(logger)

	return daemon.Run(context.Background(), daemon.Options{
		Paths:  config.DefaultPaths(),
		Logger: logger,
		TUI:    flagTUI,
	})
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagTUI, "tui", false, "render sessions in this terminal")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "heatsd: %v\n", err)
		os.Exit(1)
	}
}
