// Package pkg provides shared utilities for the softi3c protocol engines.
//
// This package contains common functionality used by both the controller
// and target engines, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel and typed errors for protocol and application faults
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with engine context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentTarget, "header", "addr", 0x50)
//
// # Errors
//
// Application-level faults are sentinel values or typed errors that unwrap
// to one:
//
//	if errors.Is(err, pkg.ErrPrematureEnd) {
//	    // Target ended the recovery read early
//	}
//
// A [ProtocolViolationError] is fatal. It aborts a simulation run rather than
// being handled by the caller.
package pkg
