package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/version"
)

// resetFlags restores every flag of every command to its default between
// tests, including the help and version flags cobra adds on first execute.
func resetFlags() {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(resetFlag)
		}
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}

	walk(RootCmd)
}

func resetFlag(f *pflag.Flag) {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		_ = sv.Replace(nil)
	} else {
		_ = f.Value.Set(f.DefValue)
	}
	f.Changed = false
}

// TestHandleLogsFlag_PrintsLogFile tests the --logs flag functionality
func TestHandleLogsFlag_PrintsLogFile(t *testing.T) {
	logDir := t.TempDir()
	opts := logger.LoggerOptions{LogDir: logDir}

	testContent := "Test log content\nLine 2\nLine 3"
	err := os.WriteFile(logger.GetLogPath(opts), []byte(testContent), 0o644)
	require.NoError(t, err)

	// Capture stdout
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	exitCalled := false
	exitCode := -1
	mockExit := func(code int) {
		exitCalled = true
		exitCode = code
	}

	err = handleLogsFlag(&Config{ShowLogs: true}, opts, mockExit)
	assert.NoError(t, err)

	// Restore stdout
	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	assert.True(t, exitCalled, "Should call exit function for --logs flag")
	assert.Equal(t, 0, exitCode, "Should exit with code 0 for --logs")
	assert.Contains(t, buf.String(), testContent, "Should print log file content to stdout")
}

// TestHandleLogsFlag_NoLogFile tests --logs when nothing was logged yet
func TestHandleLogsFlag_NoLogFile(t *testing.T) {
	t.Parallel()

	exitCode := -1
	err := handleLogsFlag(&Config{ShowLogs: true}, logger.LoggerOptions{LogDir: t.TempDir()}, func(code int) {
		exitCode = code
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, exitCode, "Should exit with code 1 when the log file is missing")
}

// TestHandleLogsFlag_NotSet tests that nothing happens without --logs
func TestHandleLogsFlag_NotSet(t *testing.T) {
	t.Parallel()

	exitCalled := false
	err := handleLogsFlag(&Config{}, logger.LoggerOptions{LogDir: t.TempDir()}, func(int) {
		exitCalled = true
	})

	assert.NoError(t, err)
	assert.False(t, exitCalled, "Should not exit without --logs")
}

// TestRootCmd_Version tests --version flag
func TestRootCmd_Version(t *testing.T) {
	resetFlags()

	output := captureCommandOutput(t, []string{"--version"})

	assert.Contains(t, output, version.GetVersion(), "Should print version information")
}

// TestRootCmd_Help tests --help flag
func TestRootCmd_Help(t *testing.T) {
	resetFlags()

	output := captureCommandOutput(t, []string{"--help"})

	assert.Contains(t, output, "monkmode", "Should show usage")
	assert.Contains(t, output, "focus sessions", "Should show description")
	for _, sub := range []string{"start", "windows", "restore", "config"} {
		assert.Contains(t, output, sub, "Should list the %s command", sub)
	}
	assert.Contains(t, output, "--verbose", "Should list verbose flag")
	assert.Contains(t, output, "--logs", "Should list logs flag")
	assert.Contains(t, output, "--config", "Should list config flag")
}

// TestRootCmd_Flags tests flag parsing
func TestRootCmd_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		args            []string
		expectedVerbose bool
		expectedLogs    bool
		expectedConfig  string
	}{
		{
			name: "no flags",
			args: []string{},
		},
		{
			name:            "verbose flag short",
			args:            []string{"-V"},
			expectedVerbose: true,
		},
		{
			name:            "verbose flag long",
			args:            []string{"--verbose"},
			expectedVerbose: true,
		},
		{
			name:         "logs flag short",
			args:         []string{"-l"},
			expectedLogs: true,
		},
		{
			name:           "config flag",
			args:           []string{"--config", "monk.toml"},
			expectedConfig: "monk.toml",
		},
		{
			name:            "all flags",
			args:            []string{"--verbose", "--logs", "--config=monk.yaml"},
			expectedVerbose: true,
			expectedLogs:    true,
			expectedConfig:  "monk.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create a new command instance to avoid flag conflicts
			cmd := &cobra.Command{Use: "test"}
			cmd.PersistentFlags().BoolP("verbose", "V", false, "enable verbose output")
			cmd.PersistentFlags().BoolP("logs", "l", false, "print log file")
			cmd.PersistentFlags().String("config", "", "config file")

			err := cmd.ParseFlags(tt.args)
			assert.NoError(t, err, "Flag parsing should not error")

			cfg := NewConfigFromFlags(cmd)
			assert.Equal(t, tt.expectedVerbose, cfg.Verbose, "Verbose flag mismatch")
			assert.Equal(t, tt.expectedLogs, cfg.ShowLogs, "Logs flag mismatch")
			assert.Equal(t, tt.expectedConfig, cfg.ConfigPath, "Config flag mismatch")
		})
	}
}

// TestRootCmd_InvalidFlag tests behavior with unknown flags
func TestRootCmd_InvalidFlag(t *testing.T) {
	resetFlags()

	var stderr bytes.Buffer
	RootCmd.SetErr(&stderr)
	defer RootCmd.SetErr(nil)

	RootCmd.SetArgs([]string{"--invalid-flag"})
	err := RootCmd.Execute()

	assert.Error(t, err, "Should return error for invalid flag")
	assert.Contains(t, stderr.String(), "unknown flag", "Error message should mention unknown flag")
}

// TestRootCmd_RejectsArguments tests that the root command takes no arguments
func TestRootCmd_RejectsArguments(t *testing.T) {
	resetFlags()

	var stderr bytes.Buffer
	RootCmd.SetErr(&stderr)
	defer RootCmd.SetErr(nil)

	RootCmd.SetArgs([]string{"deep-work"})
	err := RootCmd.Execute()

	assert.Error(t, err, "Should reject positional arguments")
}

// Helper function to capture command output
func captureCommandOutput(_ *testing.T, args []string) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	RootCmd.SetArgs(args)
	_ = RootCmd.Execute()

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	return buf.String()
}

// TestEnsureElevated_AlreadyElevated tests when process is already elevated
func TestEnsureElevated_AlreadyElevated(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCalled := false
	relaunchCalled := false

	isElevated := func() bool { return true }
	relaunchAsAdmin := func() error {
		relaunchCalled = true
		return nil
	}
	exitFunc := func(code int) {
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	assert.NoError(t, err, "Should not error when already elevated")
	assert.False(t, relaunchCalled, "Should not relaunch when already elevated")
	assert.False(t, exitCalled, "Should not exit when already elevated")
}

// TestEnsureElevated_NotElevated_SuccessfulRelaunch tests auto-elevation flow
func TestEnsureElevated_NotElevated_SuccessfulRelaunch(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCode := -1
	exitCalled := false
	relaunchCalled := false

	isElevated := func() bool { return false }
	relaunchAsAdmin := func() error {
		relaunchCalled = true
		return nil
	}
	exitFunc := func(code int) {
		exitCode = code
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	// The function should not return an error - it calls exitFunc instead
	assert.NoError(t, err, "Should not return error on successful relaunch")
	assert.True(t, relaunchCalled, "Should call relaunch when not elevated")
	assert.True(t, exitCalled, "Should call exit after successful relaunch")
	assert.Equal(t, 0, exitCode, "Should exit with code 0 after successful relaunch")
}

// TestEnsureElevated_NotElevated_RelaunchFails tests relaunch failure handling
func TestEnsureElevated_NotElevated_RelaunchFails(t *testing.T) {
	t.Parallel()

	mockLog := logger.NewNoOpLogger()
	exitCalled := false
	relaunchErr := fmt.Errorf("failed to relaunch")

	isElevated := func() bool { return false }
	relaunchAsAdmin := func() error { return relaunchErr }
	exitFunc := func(code int) {
		exitCalled = true
	}

	err := ensureElevatedWithDeps(mockLog, isElevated, relaunchAsAdmin, exitFunc)

	assert.Error(t, err, "Should return error when relaunch fails")
	assert.False(t, exitCalled, "Should not exit when relaunch fails")
	assert.Contains(t, err.Error(), "error relaunching as admin", "Error should mention relaunch failure")
	assert.ErrorIs(t, err, relaunchErr, "Should wrap the relaunch error")
}

// TestInitializeLogger_UsesConfiguredDir tests that the log file lands in log.dir
func TestInitializeLogger_UsesConfiguredDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	app := config.Default()
	app.Log.Dir = dir

	log, err := initializeLogger(app)
	require.NoError(t, err)
	defer log.Close()

	assert.Equal(t, filepath.Join(dir, logger.AppName+".log"), log.GetLogPath())
}
