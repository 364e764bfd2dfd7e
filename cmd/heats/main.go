// heats is the launcher client. Piped input opens a dmenu-style selection
// session on the daemon; the chosen line is printed to stdout. "heats show"
// activates a configured mode, which is what hotkey bindings call.
//
// Exit codes: 0 selection made, 1 cancelled, 2 error.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/heats/internal/config"
	"github.com/runger/heats/internal/ipc"
	"github.com/runger/heats/internal/trigger"
)

const (
	exitSelected  = 0
	exitCancelled = 1
	exitError     = 2
)

var flagFormat string

var rootCmd = &cobra.Command{
	Use:   "heats",
	Short: "heats launcher client",
	Long: `heats pipes items to the launcher daemon and prints the selection.

  ls | heats
  my-items --json | heats --format jsonl`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pick()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <mode>",
	Short: "Activate a configured mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.DefaultPaths()
		if err := trigger.Activate(paths.TriggerFile(), args[0]); err != nil {
			return fmt.Errorf("writing trigger: %w", err)
		}
		return nil
	},
}

func pick() error {
	format := ipc.Format(flagFormat)
	switch format {
	case ipc.FormatText, ipc.FormatJSONL:
	default:
		return fmt.Errorf("invalid format %q (want \"text\" or \"jsonl\")", flagFormat)
	}

	client := ipc.NewClient(config.DefaultPaths().SocketFile(), 2*time.Second)
	reply, err := client.Request(format, os.Stdin)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func init() {
	rootCmd.Flags().StringVar(&flagFormat, "format", "text", "item format (text or jsonl)")
	rootCmd.AddCommand(showCmd)
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitSelected)
	}
	if errors.Is(err, ipc.ErrCancelled) {
		os.Exit(exitCancelled)
	}
	fmt.Fprintf(os.Stderr, "heats: %v\n", err)
	os.Exit(exitError)
}
