package protocol

import (
	"strings"
	"testing"

	"github.com/ardnew/softi3c/bus"
)

func TestScaleFullSpeed(t *testing.T) {
	tm := ControllerProfile().Scale(FullSpeed)

	checks := []struct {
		name string
		got  bus.Time
		want bus.Time
	}{
		{"Hold", tm.Hold, 6 * bus.Nanosecond},
		{"High", tm.High, 32 * bus.Nanosecond},
		{"Low", tm.Low, 32 * bus.Nanosecond},
		{"LowAfterHold", tm.LowAfterHold, 26 * bus.Nanosecond},
		{"LowAfterSCO", tm.LowAfterSCO, 20 * bus.Nanosecond},
		{"CAS", tm.CAS, bus.Nanoseconds(38.4)},
		{"Free", tm.Free, bus.Nanoseconds(38.4)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if TargetProfile().Scale(0).Hold != 0 {
		t.Error("target hold must default to zero")
	}
}

func TestScaleSlowerBus(t *testing.T) {
	tm := TargetProfile().Scale(FullSpeed / 4)
	if tm.High != 128*bus.Nanosecond {
		t.Errorf("High = %v, want 128ns", tm.High)
	}
	if tm.Speed != FullSpeed/4 {
		t.Errorf("Speed = %g", tm.Speed)
	}
}

func TestScaleClampsToSetup(t *testing.T) {
	p := Profile{Low: 5, Hold: 4, SetupPP: 3, ClockToDO: 10}
	tm := p.Scale(FullSpeed)
	if tm.LowAfterHold != 3*bus.Nanosecond {
		t.Errorf("LowAfterHold = %v, want 3ns", tm.LowAfterHold)
	}
	if tm.LowAfterSCO != 3*bus.Nanosecond {
		t.Errorf("LowAfterSCO = %v, want 3ns", tm.LowAfterSCO)
	}
}

func TestReport(t *testing.T) {
	lines := ControllerProfile().Scale(FullSpeed).Report()
	if !strings.HasPrefix(lines[0], "Rate: 12500kHz (100%)") {
		t.Errorf("Report()[0] = %q", lines[0])
	}
	if len(lines) != 12 {
		t.Errorf("len(Report()) = %d, want 12", len(lines))
	}
}

func TestStateStrings(t *testing.T) {
	if StateAwaitRepeatedOrStop.String() != "AWAIT_SR_OR_P" || BusState(200).String() != "UNKNOWN" {
		t.Error("BusState.String() mismatch")
	}
	if HeaderReserved.String() != "RESERVED" || Header(9).String() != "UNKNOWN" {
		t.Error("Header.String() mismatch")
	}
}
