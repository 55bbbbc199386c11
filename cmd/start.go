package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lattixe/MonkMode-windows/internal/api"
	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/enumerator"
	"github.com/Lattixe/MonkMode-windows/internal/focus"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

// exitInterrupted is the exit code after an emergency cleanup.
const exitInterrupted = 130

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session",
	Long: `Start a focus session. Only the allowed windows may hold the foreground
until the timer runs out; anything else is minimized. Ctrl+C or the end
hotkey asks for the confirmation phrase before ending early.`,
	Example: `  monkmode start --duration 50m --task "write report" --allow 1,3
  monkmode start -d 25m --block-process discord --block-domain youtube.com --elevate`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.DurationP("duration", "d", 0, "session length (default from config)")
	f.StringP("task", "t", "", "what this session is for")
	f.StringP("allow", "a", "", "windows to allow, by index from 'monkmode windows' (e.g. 1,3)")
	f.StringSlice("block-process", nil, "program to close during the session (repeatable)")
	f.StringSlice("block-domain", nil, "domain to block during the session (repeatable)")
	f.Bool("hide-taskbar", false, "hide the taskbar during the session")
	f.String("serve", "", "serve the local API on this address (e.g. 127.0.0.1:7878)")
	f.Bool("elevate", false, "relaunch as administrator so domains can be blocked")

	RootCmd.AddCommand(startCmd)
}

// sessionControl is what the signal handlers need from a running session.
type sessionControl interface {
	PromptEnd()
	EmergencyCleanup()
}

// ExecutionContext holds the state the signal handlers act on.
type ExecutionContext struct {
	log      logger.LoggerInterface
	session  sessionControl
	exitFunc func(int) // Injectable for testing; defaults to os.Exit
}

// emergencyExit reverts every system change and terminates the process.
func (ctx *ExecutionContext) emergencyExit() {
	ctx.log.Info("Cleaning up before exit")
	ctx.session.EmergencyCleanup()
	ctx.log.Debug("Cleanup completed, exiting")
	ctx.log.Close()
	ctx.exitFunc(exitInterrupted)
}

// handleConsoleEvent reacts to a console control event. Ctrl+C asks for the
// confirmation phrase; close, logoff and shutdown clean up and exit because
// Windows kills the process a few seconds later.
func handleConsoleEvent(ctx *ExecutionContext, ctrlType uint32) bool {
	ctx.log.Debug("Received console control event",
		slog.String("type", windows.GetCtrlTypeName(ctrlType)),
		slog.Uint64("code", uint64(ctrlType)),
	)

	switch ctrlType {
	case windows.CTRL_C_EVENT, windows.CTRL_BREAK_EVENT:
		ctx.session.PromptEnd()
		return true
	case windows.CTRL_CLOSE_EVENT, windows.CTRL_LOGOFF_EVENT, windows.CTRL_SHUTDOWN_EVENT:
		ctx.emergencyExit()
		return true
	default:
		return false
	}
}

// handleSignal reacts to a signal delivered through os/signal.
func handleSignal(ctx *ExecutionContext, sig os.Signal) {
	ctx.log.Debug("Received signal", slog.Any("signal", sig))

	if sig == os.Interrupt {
		ctx.session.PromptEnd()
		return
	}

	ctx.emergencyExit()
}

// setupSignalHandlers installs the console control handler and the signal
// handler. The returned function removes both.
func setupSignalHandlers(ctx *ExecutionContext) func() {
	if err := installConsoleHandler(func(ctrlType uint32) bool {
		return handleConsoleEvent(ctx, ctrlType)
	}); err != nil {
		ctx.log.Warn("Console control handler not installed", slog.Any("error", err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			handleSignal(ctx, sig)
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(sigChan)
		_ = installConsoleHandler(func(uint32) bool { return false })
	}
}

// sessionOptions builds the runner options from the effective configuration.
func sessionOptions(app *config.Config, allowed []enumerator.Descriptor) focus.Options {
	return focus.Options{
		Task:           app.Session.Task,
		Duration:       app.Session.Duration,
		Phrase:         app.Session.ConfirmationPhrase,
		Allowed:        allowed,
		Processes:      app.Block.Processes,
		Domains:        app.Block.Domains,
		HideTaskbar:    app.Block.HideTaskbar,
		EndHotkey:      app.Session.EndHotkey,
		ExtendHotkey:   app.Session.ExtendHotkey,
		SettleDelay:    app.Enforcement.SettleDelay,
		HostRetryDelay: app.Enforcement.HostRetryDelay,
	}
}

// printSummary shows the outcome of a session.
func printSummary(w io.Writer, res session.Result) {
	outcome := color.GreenString("complete")
	if !res.Completed {
		outcome = color.YellowString("ended early")
	}

	noun := "interventions"
	if res.Interventions == 1 {
		noun = "intervention"
	}

	fmt.Fprintf(w, "\nSession %s: focused %s of %s, %s %s\n",
		outcome,
		res.Actual.Round(time.Second),
		res.Planned,
		humanize.Comma(int64(res.Interventions)),
		noun,
	)

	if !res.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started %s\n", humanize.Time(res.StartedAt))
	}
}

func runStart(cmd *cobra.Command, args []string) error {
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

	if elevate, _ := cmd.Flags().GetBool("elevate"); elevate {
		if err := ensureElevated(log); err != nil {
			return err
		}
	} else if len(app.Block.Domains) > 0 && !isElevated() {
		log.Warn("Not running as administrator, blocked domains may not apply (use --elevate)")
	}

	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	runner, err := newRunner(log, app, &lineConfirmer{in: in, out: out})
	if err != nil {
		return err
	}

	defer func() {
		if err := runner.Close(); err != nil {
			log.Debug("Hotkey release failed", slog.Any("error", err))
		}
	}()

	// Recover from panics, reverting system changes first
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC RECOVERED",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			runner.EmergencyCleanup()

			fmt.Fprintf(os.Stderr, "\n*** PANIC: %v ***\n", r)
			fmt.Fprintf(os.Stderr, "Check log file for details\n")
		}
	}()

	list := runner.Windows()

	var allowed []enumerator.Descriptor
	if selection, _ := cmd.Flags().GetString("allow"); selection != "" {
		allowed, err = selectWindows(list, selection)
	} else {
		allowed, err = promptWindows(in, out, list)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopSignals := setupSignalHandlers(&ExecutionContext{
		log:      log,
		session:  runner,
		exitFunc: os.Exit,
	})
	defer stopSignals()

	if app.API.Enabled {
		srv := api.NewServer(log, runner, runner.Bus())
		go func() {
			if err := srv.Serve(ctx, app.API.Addr); err != nil {
				log.Warn("Local API failed", slog.Any("error", err))
			}
		}()
	}

	fmt.Fprintf(out, "Focusing for %s. Press Ctrl+C", app.Session.Duration)
	if app.Session.EndHotkey != "" {
		fmt.Fprintf(out, " or %s", app.Session.EndHotkey)
	}
	fmt.Fprintln(out, " to end early.")

	res, err := runner.Run(ctx, sessionOptions(app, allowed))
	if err != nil {
		return err
	}

	printSummary(out, res)
	return nil
}
