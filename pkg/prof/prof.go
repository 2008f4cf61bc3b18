//go:build profile

package prof

import (
	"errors"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/softi3c/pkg"
)

// Profiling errors.
var (
	ErrCPUProfileActive = errors.New("cpu profile already active")
	ErrInvalidProfile   = errors.New("invalid profile")
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

var (
	cpuMutex sync.Mutex
	cpuFile  *os.File
	cpuOn    bool
)

// Enabled reports whether profiling was compiled in.
func Enabled() bool { return true }

// StartCPU starts a CPU profile written to path.
func StartCPU(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := StartCPUWriter(f); err != nil {
		f.Close()
		return err
	}
	cpuMutex.Lock()
	cpuFile = f
	cpuMutex.Unlock()
	pkg.LogInfo(pkg.ComponentSim, "cpu profile started", "path", path)
	return nil
}

// StartCPUWriter starts a CPU profile written to w.
func StartCPUWriter(w io.Writer) error {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if cpuOn {
		return ErrCPUProfileActive
	}
	if err := pprof.StartCPUProfile(w); err != nil {
		return err
	}
	cpuOn = true
	return nil
}

// StopCPU ends the CPU profile, if any.
func StopCPU() {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if !cpuOn {
		return
	}
	pprof.StopCPUProfile()
	if cpuFile != nil {
		cpuFile.Close()
		cpuFile = nil
	}
	cpuOn = false
}

// IsCPUActive reports whether a CPU profile is being recorded.
func IsCPUActive() bool {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	return cpuOn
}

// Snapshot writes profile p to path.
func Snapshot(p Profile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return SnapshotTo(p, f)
}

// SnapshotTo writes profile p to w in protobuf form.
func SnapshotTo(p Profile, w io.Writer) error {
	if p == ProfileBlock {
		runtime.SetBlockProfileRate(1)
	}
	prof := pprof.Lookup(string(p))
	if prof == nil {
		return ErrInvalidProfile
	}
	return prof.WriteTo(w, 0)
}
