package sim

import "github.com/ardnew/softi3c/bus"

// Sample is the resolved state of both lines after a change.
type Sample struct {
	At  bus.Time
	SDA bool
	SCL bool
}

// ConditionKind classifies a bus condition found in a trace.
type ConditionKind uint8

// Bus conditions.
const (
	Start         ConditionKind = iota // SDA fell with SCL high on a free bus
	RepeatedStart                      // SDA fell with SCL high on an active bus
	Stop                               // SDA rose with SCL high
)

// String returns the conventional abbreviation.
func (k ConditionKind) String() string {
	switch k {
	case Start:
		return "S"
	case RepeatedStart:
		return "Sr"
	case Stop:
		return "P"
	default:
		return "?"
	}
}

// Condition is a START, repeated START or STOP found in a trace.
type Condition struct {
	At   bus.Time
	Kind ConditionKind
}

// Decode scans a trace for bus conditions. Both lines are assumed released
// before the first sample.
func Decode(trace []Sample) []Condition {
	var out []Condition
	prev := Sample{SDA: true, SCL: true}
	free := true
	for _, cur := range trace {
		if prev.SCL && cur.SCL {
			switch {
			case prev.SDA && !cur.SDA:
				kind := RepeatedStart
				if free {
					kind = Start
				}
				out = append(out, Condition{At: cur.At, Kind: kind})
				free = false
			case !prev.SDA && cur.SDA:
				out = append(out, Condition{At: cur.At, Kind: Stop})
				free = true
			}
		}
		prev = cur
	}
	return out
}

// Count returns how many conditions of kind k are in cs.
func Count(cs []Condition, k ConditionKind) int {
	n := 0
	for _, c := range cs {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// FallsWithClockLow counts SDA falling edges that happen while SCL is low.
// The HDR exit and target reset patterns consist of such edges.
func FallsWithClockLow(trace []Sample) int {
	n := 0
	prev := Sample{SDA: true, SCL: true}
	for _, cur := range trace {
		if !prev.SCL && !cur.SCL && prev.SDA && !cur.SDA {
			n++
		}
		prev = cur
	}
	return n
}
