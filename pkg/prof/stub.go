//go:build !profile

package prof

import "io"

// Profiling errors. The stubs never return them.
var (
	ErrCPUProfileActive error
	ErrInvalidProfile   error
)

// Profile names a snapshot profile.
type Profile string

// Snapshot profiles.
const (
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// Enabled reports whether profiling was compiled in.
func Enabled() bool { return false }

// StartCPU is a no-op.
func StartCPU(string) error { return nil }

// StartCPUWriter is a no-op.
func StartCPUWriter(io.Writer) error { return nil }

// StopCPU is a no-op.
func StopCPU() {}

// IsCPUActive always reports false.
func IsCPUActive() bool { return false }

// Snapshot is a no-op.
func Snapshot(Profile, string) error { return nil }

// SnapshotTo is a no-op.
func SnapshotTo(Profile, io.Writer) error { return nil }
