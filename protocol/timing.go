package protocol

import (
	"fmt"

	"github.com/ardnew/softi3c/bus"
)

// FullSpeed is the nominal SDR clock rate in Hz. Timing profiles are
// expressed at this rate and scaled for slower buses.
const FullSpeed = 12.5e6

// Profile holds minimum timing intervals in nanoseconds at FullSpeed.
//
// Values follow the open-drain and push-pull timing tables of the I3C Basic
// specification. Analog-only parameters (open-drain low period, first
// broadcast high period) are not modeled.
type Profile struct {
	Hold      float64 // tHD_PP: SDA hold time
	High      float64 // tDIG_H: SCL high period
	Low       float64 // tDIG_L: SCL low period
	CAS       float64 // tCAS: clock after START
	CBP       float64 // tCBP: clock before STOP
	CBSr      float64 // tCBSr: clock before repeated START
	CASr      float64 // tCASr: clock after repeated START
	Free      float64 // tFREE: bus free
	SetupOD   float64 // tSU_OD: open-drain setup
	SetupPP   float64 // tSU_PP: push-pull setup
	ClockToDO float64 // tSCO: clock in to data out (target, max)
}

func baseProfile() Profile {
	return Profile{
		High:      32.0,
		Low:       32.0,
		CAS:       38.4,
		CBP:       19.2,
		CBSr:      19.2,
		CASr:      19.2,
		Free:      38.4,
		SetupOD:   3.0,
		SetupPP:   3.0,
		ClockToDO: 12.0,
	}
}

// ControllerProfile returns the controller's default profile (hold 6ns).
func ControllerProfile() Profile {
	p := baseProfile()
	p.Hold = 6.0
	return p
}

// TargetProfile returns the target's default profile (hold 0ns).
func TargetProfile() Profile {
	return baseProfile()
}

// Timings are a Profile scaled to a bus speed, with the derived low-phase
// remainders the bit primitives use.
type Timings struct {
	Hold         bus.Time
	High         bus.Time
	Low          bus.Time // max(tDIG_L, tSU_PP)
	LowAfterHold bus.Time // max(tDIG_L - tHD_PP, tSU_PP)
	LowAfterSCO  bus.Time // max(tDIG_L - tSCO, tSU_PP)
	CAS          bus.Time
	CBP          bus.Time
	CBSr         bus.Time
	CASr         bus.Time
	Free         bus.Time
	SetupOD      bus.Time
	SetupPP      bus.Time
	ClockToDO    bus.Time
	Speed        float64
}

// Scale converts p to bus time at speed Hz. A non-positive speed selects FullSpeed.
func (p Profile) Scale(speed float64) Timings {
	if speed <= 0 {
		speed = FullSpeed
	}
	ratio := FullSpeed / speed
	at := func(ns float64) bus.Time { return bus.Nanoseconds(ns * ratio) }
	atLeastSetup := func(ns float64) bus.Time {
		if ns < p.SetupPP {
			ns = p.SetupPP
		}
		return at(ns)
	}
	return Timings{
		Hold:         at(p.Hold),
		High:         at(p.High),
		Low:          atLeastSetup(p.Low),
		LowAfterHold: atLeastSetup(p.Low - p.Hold),
		LowAfterSCO:  atLeastSetup(p.Low - p.ClockToDO),
		CAS:          at(p.CAS),
		CBP:          at(p.CBP),
		CBSr:         at(p.CBSr),
		CASr:         at(p.CASr),
		Free:         at(p.Free),
		SetupOD:      at(p.SetupOD),
		SetupPP:      at(p.SetupPP),
		ClockToDO:    at(p.ClockToDO),
		Speed:        speed,
	}
}

// Report returns the configuration report lines logged by the engines.
func (t Timings) Report() []string {
	return []string{
		fmt.Sprintf("Rate: %gkHz (%g%%)", t.Speed/1000.0, 100.0*t.Speed/FullSpeed),
		fmt.Sprintf("SCL Clock High Period: %v", t.High),
		fmt.Sprintf("SCL Clock Low Period: %v", t.Low),
		fmt.Sprintf("Clock After START (S) Condition: %v", t.CAS),
		fmt.Sprintf("Clock Before STOP (P) Condition: %v", t.CBP),
		fmt.Sprintf("Clock Before Repeated START (Sr) Condition: %v", t.CBSr),
		fmt.Sprintf("Clock After Repeated START (Sr) Condition: %v", t.CASr),
		fmt.Sprintf("Bus Free Condition: %v", t.Free),
		fmt.Sprintf("Open-drain Set-up Time: %v", t.SetupOD),
		fmt.Sprintf("SDA Set-up Time (Push-Pull): %v", t.SetupPP),
		fmt.Sprintf("SDA Hold Time (Push-Pull): %v", t.Hold),
		fmt.Sprintf("Clock in to Data Out for Target: %v", t.ClockToDO),
	}
}
