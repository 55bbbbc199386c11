package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Undo the system changes of an interrupted session",
	Long: `Undo everything a session may have left behind after a crash: show the
taskbar, remove the blocked domains from the hosts file and turn
notifications back on. Safe to run at any time.`,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	RootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
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

	if !isElevated() {
		log.Warn("Not running as administrator, the hosts file may not be writable")
	}

	b, err := newRecoveryBlocker(log, app)
	if err != nil {
		return err
	}

	b.EmergencyCleanup()
	fmt.Fprintln(cmd.OutOrStdout(), "System settings restored")

	return nil
}
