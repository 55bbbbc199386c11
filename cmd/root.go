package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/version"
)

// ErrUnsupportedPlatform is returned by commands that drive the desktop when
// monkmode runs on anything but Windows.
var ErrUnsupportedPlatform = errors.New("monkmode requires Windows")

// RootCmd is the root command for the monkmode CLI application.
var RootCmd = &cobra.Command{
	Use:   "monkmode",
	Short: "monkmode - Lock your desktop to the windows you chose",
	Long: `monkmode runs timed focus sessions. During a session only the windows
you allowed may hold the foreground, blocked programs are closed and
blocked sites stop resolving. Ending early requires typing a phrase.`,
	Version:      version.GetVersion(),
	Args:         cobra.NoArgs,
	RunE:         Execute,
	SilenceUsage: true, // Don't show usage on runtime errors
}

func init() {
	// Set custom version template to show full version info
	RootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolP("logs", "l", false, "print the current log file to stdout and exit")
	RootCmd.PersistentFlags().String("config", "", "config file (default %APPDATA%\\monkmode\\config.yaml)")
}

// handleLogsFlag processes the --logs flag and exits if needed
func handleLogsFlag(cfg *Config, opts logger.LoggerOptions, exitFunc func(int)) error {
	if !cfg.ShowLogs {
		return nil
	}

	if err := logger.PrintLogFile(nil, opts); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Log file does not exist: %s\n", logger.GetLogPath(opts))
			exitFunc(1)
			return nil
		}

		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		exitFunc(1)
		return nil
	}

	exitFunc(0)
	return nil // Won't actually reach here due to exitFunc
}

// logOptions derives the logger options from the effective configuration
func logOptions(app *config.Config) logger.LoggerOptions {
	return logger.LoggerOptions{
		Verbose:  app.Log.Verbose,
		LogDir:   app.Log.Dir,
		Compress: true,
	}
}

// initializeLogger creates a logger and logs startup information
func initializeLogger(app *config.Config) (logger.LoggerInterface, error) {
	log, err := logger.NewLogger(logOptions(app))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	log.Debug("Starting monkmode",
		slog.String("version", version.GetFullVersion()),
		slog.Any("args", os.Args[1:]),
	)

	return log, nil
}

// ensureElevatedWithDeps is the testable version with injected dependencies
func ensureElevatedWithDeps(
	log logger.LoggerInterface,
	isElevated func() bool,
	relaunchAsAdmin func() error,
	exitFunc func(int),
) error {
	log.Debug("Checking elevation status")
	if !isElevated() {
		log.Info("Blocking domains requires administrator privileges")
		log.Info("Relaunching as administrator")

		if err := relaunchAsAdmin(); err != nil {
			log.Error("RelaunchAsAdmin failed", slog.Any("error", err))
			return fmt.Errorf("error relaunching as admin: %w", err)
		}

		// Exit this instance, the elevated one will continue
		log.Debug("Relaunched successfully, exiting non-elevated instance")
		log.Close()
		exitFunc(0)
		return nil
	}

	log.Debug("Running with administrator privileges")
	return nil
}

// Execute runs the root command: it prints the log file for --logs and the
// help text otherwise.
func Execute(cmd *cobra.Command, args []string) error {
	cfg := NewConfigFromFlags(cmd)

	app, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	if err := handleLogsFlag(cfg, logOptions(app), os.Exit); err != nil {
		return err
	}

	return cmd.Help()
}
