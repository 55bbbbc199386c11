package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List the windows that can be allowed in a session",
	Long: `List the open top-level windows that can be allowed in a focus session.
The indexes are the ones 'monkmode start --allow' accepts.`,
	Args: cobra.NoArgs,
	RunE: runWindows,
}

func init() {
	RootCmd.AddCommand(windowsCmd)
}

func runWindows(cmd *cobra.Command, args []string) error {
	cfg := NewConfigFromFlags(cmd)

	app, err := loadAppConfig(cmd, cfg)
	if err != nil {
		return err
	}

	log, err := initializeLogger(app)
	if err != nil {
		return err
	}

	defer log.Close()

	enum, err := newEnumerator(log)
	if err != nil {
		return err
	}

	list := enum.Enumerate()
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No selectable windows are open")
		return nil
	}

	log.Debug("Listing windows", slog.Int("count", len(list)))
	printWindows(cmd.OutOrStdout(), list)

	return nil
}
