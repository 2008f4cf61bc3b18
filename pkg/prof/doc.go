// Package prof profiles simulation runs with [runtime/pprof].
//
// The package is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/i3csim
//
// Without the tag every function is a no-op and [Enabled] reports false,
// so callers can leave profiling hooks in place.
//
// A CPU profile spans an explicit StartCPU/StopCPU pair:
//
//	if err := prof.StartCPU("cpu.prof"); err != nil {
//	    return err
//	}
//	defer prof.StopCPU()
//
// Other profiles are point-in-time snapshots:
//
//	prof.Snapshot(prof.ProfileHeap, "heap.prof")
//
// The simulator parks one goroutine per bus task, so [ProfileGoroutine]
// and [ProfileBlock] show where tasks wait on the timeline.
package prof
