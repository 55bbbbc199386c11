package cmd

import (
	"bytes"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lattixe/MonkMode-windows/internal/config"
	"github.com/Lattixe/MonkMode-windows/internal/logger"
	"github.com/Lattixe/MonkMode-windows/internal/session"
	"github.com/Lattixe/MonkMode-windows/internal/windows"
)

type fakeSession struct {
	mu       sync.Mutex
	prompts  int
	cleanups int
}

func (f *fakeSession) PromptEnd() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
}

func (f *fakeSession) EmergencyCleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

func (f *fakeSession) counts() (prompts, cleanups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts, f.cleanups
}

func newExecutionContext() (*ExecutionContext, *fakeSession, *int) {
	sess := &fakeSession{}
	exitCode := -1

	ctx := &ExecutionContext{
		log:      logger.NewNoOpLogger(),
		session:  sess,
		exitFunc: func(code int) { exitCode = code },
	}

	return ctx, sess, &exitCode
}

func TestHandleConsoleEvent_CtrlCPromptsForPhrase(t *testing.T) {
	t.Parallel()

	for _, ev := range []uint32{windows.CTRL_C_EVENT, windows.CTRL_BREAK_EVENT} {
		ctx, sess, exitCode := newExecutionContext()

		handled := handleConsoleEvent(ctx, ev)

		prompts, cleanups := sess.counts()
		assert.True(t, handled, windows.GetCtrlTypeName(ev))
		assert.Equal(t, 1, prompts)
		assert.Equal(t, 0, cleanups)
		assert.Equal(t, -1, *exitCode, "Ctrl+C must not exit the session")
	}
}

func TestHandleConsoleEvent_CloseCleansUpAndExits(t *testing.T) {
	t.Parallel()

	for _, ev := range []uint32{windows.CTRL_CLOSE_EVENT, windows.CTRL_LOGOFF_EVENT, windows.CTRL_SHUTDOWN_EVENT} {
		ctx, sess, exitCode := newExecutionContext()

		handled := handleConsoleEvent(ctx, ev)

		prompts, cleanups := sess.counts()
		assert.True(t, handled, windows.GetCtrlTypeName(ev))
		assert.Equal(t, 0, prompts)
		assert.Equal(t, 1, cleanups)
		assert.Equal(t, exitInterrupted, *exitCode)
	}
}

func TestHandleConsoleEvent_UnknownEventNotHandled(t *testing.T) {
	t.Parallel()

	ctx, sess, exitCode := newExecutionContext()

	assert.False(t, handleConsoleEvent(ctx, 42))

	prompts, cleanups := sess.counts()
	assert.Zero(t, prompts)
	assert.Zero(t, cleanups)
	assert.Equal(t, -1, *exitCode)
}

func TestHandleSignal(t *testing.T) {
	t.Parallel()

	ctx, sess, exitCode := newExecutionContext()
	handleSignal(ctx, os.Interrupt)

	prompts, cleanups := sess.counts()
	assert.Equal(t, 1, prompts)
	assert.Zero(t, cleanups)
	assert.Equal(t, -1, *exitCode)

	ctx, sess, exitCode = newExecutionContext()
	handleSignal(ctx, syscall.SIGTERM)

	prompts, cleanups = sess.counts()
	assert.Zero(t, prompts)
	assert.Equal(t, 1, cleanups)
	assert.Equal(t, exitInterrupted, *exitCode)
}

func TestSessionOptions_FromConfig(t *testing.T) {
	t.Parallel()

	app := config.Default()
	app.Session.Duration = 50 * time.Minute
	app.Session.Task = "thesis"
	app.Block.Processes = []string{"discord"}
	app.Block.Domains = []string{"youtube.com"}
	app.Block.HideTaskbar = true

	opts := sessionOptions(app, sampleWindows[:1])

	assert.Equal(t, "thesis", opts.Task)
	assert.Equal(t, 50*time.Minute, opts.Duration)
	assert.Equal(t, session.DefaultConfirmationPhrase, opts.Phrase)
	assert.Equal(t, sampleWindows[:1], opts.Allowed)
	assert.Equal(t, []string{"discord"}, opts.Processes)
	assert.Equal(t, []string{"youtube.com"}, opts.Domains)
	assert.True(t, opts.HideTaskbar)
	assert.Equal(t, "ctrl+alt+q", opts.EndHotkey)
	assert.Equal(t, "ctrl+alt+e", opts.ExtendHotkey)
	assert.Equal(t, app.Enforcement.SettleDelay, opts.SettleDelay)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummary(&buf, session.Result{
		Planned:       25 * time.Minute,
		Actual:        25*time.Minute + 400*time.Millisecond,
		Completed:     true,
		StartedAt:     time.Now().Add(-25 * time.Minute),
		Interventions: 1234,
	})

	out := buf.String()
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "focused 25m0s of 25m0s")
	assert.Contains(t, out, "1,234 interventions")
	assert.Contains(t, out, "Started 25 minutes ago")
}

func TestPrintSummary_EndedEarly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummary(&buf, session.Result{
		Planned:       25 * time.Minute,
		Actual:        3 * time.Minute,
		Interventions: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "ended early")
	assert.Contains(t, out, "focused 3m0s of 25m0s")
	assert.Contains(t, out, "1 intervention\n")
	assert.NotContains(t, out, "Started")
}
