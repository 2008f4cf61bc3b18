package bus

import (
	"context"
	"fmt"
	"math"
)

// Line identifies one of the two bus signals.
type Line uint8

// Bus lines.
const (
	SDA Line = iota // Serial data
	SCL             // Serial clock
)

// String returns the signal name.
func (l Line) String() string {
	switch l {
	case SDA:
		return "SDA"
	case SCL:
		return "SCL"
	default:
		return "unknown"
	}
}

// Time is a point or span on the simulated timeline, in picoseconds.
type Time int64

// Time units.
const (
	Picosecond  Time = 1
	Nanosecond       = 1000 * Picosecond
	Microsecond      = 1000 * Nanosecond
	Millisecond      = 1000 * Microsecond
)

// Nanoseconds converts a possibly fractional nanosecond count, rounding to
// the nearest picosecond.
func Nanoseconds(ns float64) Time {
	return Time(math.Round(ns * 1000))
}

// Nanoseconds returns t as fractional nanoseconds.
func (t Time) Nanoseconds() float64 {
	return float64(t) / float64(Nanosecond)
}

// String formats t in nanoseconds.
func (t Time) String() string {
	return fmt.Sprintf("%gns", t.Nanoseconds())
}

// Transition selects which level changes an Edge matches.
type Transition uint8

// Transitions.
const (
	Falling Transition = iota
	Rising
	Toggle // either direction
)

// Edge names a transition on a line.
type Edge struct {
	Line       Line
	Transition Transition
}

// Fall returns the falling edge of l.
func Fall(l Line) Edge { return Edge{Line: l, Transition: Falling} }

// Rise returns the rising edge of l.
func Rise(l Line) Edge { return Edge{Line: l, Transition: Rising} }

// Change returns an edge matching any transition of l.
func Change(l Line) Edge { return Edge{Line: l, Transition: Toggle} }

// Matches reports whether a change of l to level high satisfies e.
func (e Edge) Matches(l Line, high bool) bool {
	if e.Line != l {
		return false
	}
	switch e.Transition {
	case Falling:
		return !high
	case Rising:
		return high
	default:
		return true
	}
}

// String formats the edge as e.g. "SDA↓".
func (e Edge) String() string {
	switch e.Transition {
	case Falling:
		return e.Line.String() + "↓"
	case Rising:
		return e.Line.String() + "↑"
	default:
		return e.Line.String() + "↕"
	}
}

// Wires is one device's attachment to the two-wire bus.
//
// Both lines are open drain: a device either pulls a line low or releases
// it, and the line reads high only while every attached device releases it.
// Blocking methods suspend the calling task on the bus timeline and must be
// called with the context handed to that task.
type Wires interface {
	// Get returns the resolved level of l.
	Get(l Line) bool

	// Set drives l low (high=false) or releases it (high=true).
	Set(l Line, high bool)

	// Now returns the current bus time.
	Now() Time

	// Delay suspends the calling task for d. A non-positive d yields to
	// other tasks ready at the current time.
	Delay(ctx context.Context, d Time) error

	// WaitEdge suspends the calling task until one of edges occurs and
	// returns its index. It returns -1 when timeout elapses first. A
	// non-positive timeout waits without bound.
	WaitEdge(ctx context.Context, timeout Time, edges ...Edge) (int, error)

	// Go starts fn as a concurrent task on the bus timeline. An error
	// returned by fn is reported by the bus owner.
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// WaitLevel suspends until l reads the given level, returning immediately
// when it already does.
func WaitLevel(ctx context.Context, w Wires, l Line, high bool) error {
	if w.Get(l) == high {
		return nil
	}
	e := Fall(l)
	if high {
		e = Rise(l)
	}
	_, err := w.WaitEdge(ctx, 0, e)
	return err
}
