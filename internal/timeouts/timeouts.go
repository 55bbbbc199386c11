// Package timeouts defines the polling intervals and delays used during a focus session.
package timeouts

import "time"

const (
	// Polling Intervals

	// GeometryPollInterval is the cadence of the foreground geometry tracker.
	// Roughly one frame at 60Hz so the overlay follows window moves smoothly.
	GeometryPollInterval = 16 * time.Millisecond

	// EnforcePollInterval is the cadence of the foreground classification tick
	// once the claim pass has run.
	EnforcePollInterval = 500 * time.Millisecond

	// ProcessScanInterval is the delay between blocked-process scans while the
	// system blocker is active.
	ProcessScanInterval = 1 * time.Second

	// SessionTickInterval is how often the session timer checks for expiry.
	SessionTickInterval = 1 * time.Second

	// Startup Delays

	// ClaimSettleDelay is the fallback delay before the claim pass when no
	// explicit readiness signal arrives from the host window.
	ClaimSettleDelay = 500 * time.Millisecond

	// HostRetryDelay is the one-shot delay before retrying the host window
	// lookup when no handle is available at start.
	HostRetryDelay = 250 * time.Millisecond

	// External Commands

	// DNSFlushTimeout bounds the `ipconfig /flushdns` call after hosts edits.
	DNSFlushTimeout = 5 * time.Second

	// EmergencyFlushTimeout is the shorter DNS flush bound used during
	// emergency cleanup, which must fit inside ConsoleCleanupBudget.
	EmergencyFlushTimeout = 2 * time.Second

	// Shutdown

	// ConsoleCleanupBudget is the time we allow emergency cleanup to run from a
	// console close, logoff or shutdown event. Windows terminates the process
	// roughly 5 seconds after delivering those events.
	ConsoleCleanupBudget = 4 * time.Second

	// APIShutdownTimeout bounds the graceful shutdown of the local API server.
	APIShutdownTimeout = 2 * time.Second
)
