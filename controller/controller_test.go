package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/bus/sim"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

func newTestController(opts ...Option) *Controller {
	return New(sim.New().Port("controller"), opts...)
}

// =============================================================================
// Construction and options
// =============================================================================

func TestNewDefaults(t *testing.T) {
	c := newTestController()

	if c.State() != protocol.StateFree {
		t.Errorf("State() = %v, want %v", c.State(), protocol.StateFree)
	}
	if c.IsRunning() {
		t.Error("IsRunning() should be false before Start")
	}
	if c.cfg.MaxIBIPayload != 255 {
		t.Errorf("MaxIBIPayload = %d, want 255", c.cfg.MaxIBIPayload)
	}
	if want := protocol.ControllerProfile().Scale(protocol.FullSpeed); c.Timings() != want {
		t.Errorf("Timings() = %+v, want %+v", c.Timings(), want)
	}
	if !c.monitorEnabled.Load() || !c.monitorIdle.Load() {
		t.Error("IBI monitor should start enabled and idle")
	}
}

func TestOptions(t *testing.T) {
	var states []protocol.BusState
	c := newTestController(
		WithSpeed(protocol.FullSpeed/4),
		WithMaxIBIPayload(8),
		WithPollInterval(3*bus.Nanosecond),
		WithStateObserver(func(s protocol.BusState) { states = append(states, s) }),
	)

	if c.cfg.Speed != protocol.FullSpeed/4 {
		t.Errorf("Speed = %v, want %v", c.cfg.Speed, protocol.FullSpeed/4)
	}
	if c.cfg.MaxIBIPayload != 8 {
		t.Errorf("MaxIBIPayload = %d, want 8", c.cfg.MaxIBIPayload)
	}
	if c.cfg.PollInterval != 3*bus.Nanosecond {
		t.Errorf("PollInterval = %v, want 3ns", c.cfg.PollInterval)
	}

	c.setState(protocol.StateStart)
	c.setState(protocol.StateStart)
	c.setState(protocol.StateStop)
	if len(states) != 2 || states[0] != protocol.StateStart || states[1] != protocol.StateStop {
		t.Errorf("observed states = %v, want [START STOP]", states)
	}
}

func TestXferOptions(t *testing.T) {
	x := applyXfer([]XferOption{NoStop(), Legacy()})
	if !x.noStop || !x.legacy {
		t.Errorf("applyXfer() = %+v, want noStop and legacy", x)
	}
	if x := applyXfer(nil); x.noStop || x.legacy {
		t.Errorf("applyXfer(nil) = %+v, want zero", x)
	}
}

func TestHDROptions(t *testing.T) {
	cmd := [4]byte{1, 2, 3, 4}
	h := applyHDR([]HDROption{
		CRCOnReject(), CRC32(), Handoff(), CCCContinuation(),
		InterruptAfter(3), Discard(), BTCommandBytes(cmd),
	})
	if !h.crcOnReject || !h.crc32 || !h.handoff || !h.ccc || !h.discard {
		t.Errorf("applyHDR() flags = %+v", h)
	}
	if h.interruptAfter != 3 || h.command != cmd {
		t.Errorf("applyHDR() = %+v, want interruptAfter 3 and command %v", h, cmd)
	}
}

func TestStartStop(t *testing.T) {
	s := sim.New()
	c := New(s.Port("controller"))

	err := s.Run(context.Background(), func(ctx context.Context) error {
		if err := c.Start(ctx); err != nil {
			return err
		}
		if !c.IsRunning() {
			t.Error("IsRunning() should be true after Start")
		}
		if err := c.Start(ctx); !errors.Is(err, pkg.ErrAlreadyRunning) {
			t.Errorf("second Start() error = %v, want %v", err, pkg.ErrAlreadyRunning)
		}
		if err := c.w.Delay(ctx, bus.Microsecond); err != nil {
			return err
		}
		if err := c.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
		if c.IsRunning() {
			t.Error("IsRunning() should be false after Stop")
		}
		if err := c.Stop(); err != nil {
			t.Errorf("second Stop() error = %v", err)
		}
		return c.w.Delay(ctx, bus.Microsecond)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// =============================================================================
// Bus control handshake
// =============================================================================

func TestBusControlNesting(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if err := c.TakeBusControl(ctx); err != nil {
		t.Fatalf("TakeBusControl() error = %v", err)
	}
	if err := c.TakeBusControl(ctx); err != nil {
		t.Fatalf("nested TakeBusControl() error = %v", err)
	}
	if c.monitorEnabled.Load() {
		t.Error("monitor should be disabled while the bus is taken")
	}

	c.GiveBusControl()
	if c.monitorEnabled.Load() {
		t.Error("monitor re-enabled before the outermost give")
	}
	c.GiveBusControl()
	if !c.monitorEnabled.Load() {
		t.Error("monitor not re-enabled after the outermost give")
	}

	c.GiveBusControl()
	if c.depth != 0 {
		t.Errorf("depth = %d after unmatched give, want 0", c.depth)
	}
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistry(t *testing.T) {
	c := newTestController()

	tests := []struct {
		name string
		addr uint8
		want error
	}{
		{"valid", 0x50, nil},
		{"second", 0x21, nil},
		{"duplicate", 0x50, pkg.ErrDuplicateTarget},
		{"zero", 0x00, pkg.ErrInvalidParameter},
		{"reserved", 0x7E, pkg.ErrInvalidParameter},
		{"broadcast limit", 0x7F, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddTarget(tt.addr, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("AddTarget(0x%02X) error = %v, want %v", tt.addr, err, tt.want)
			}
		})
	}

	targets := c.Targets()
	if len(targets) != 2 || targets[0].Address != 0x21 || targets[1].Address != 0x50 {
		t.Errorf("Targets() = %+v, want 0x21 then 0x50", targets)
	}

	if err := c.RemoveTarget(0x21); err != nil {
		t.Errorf("RemoveTarget() error = %v", err)
	}
	if err := c.RemoveTarget(0x21); !errors.Is(err, pkg.ErrUnknownTarget) {
		t.Errorf("RemoveTarget() twice error = %v, want %v", err, pkg.ErrUnknownTarget)
	}
	if _, ok := c.Target(0x21); ok {
		t.Error("Target(0x21) found after removal")
	}
}

func TestRegistrySetters(t *testing.T) {
	c := newTestController()
	if err := c.AddTarget(0x50, 0); err != nil {
		t.Fatal(err)
	}

	setters := []struct {
		name string
		set  func(uint8, bool) error
		flag protocol.BCR
	}{
		{"speed limitation", c.SetSpeedLimitation, protocol.BCRSpeedLimitation},
		{"IBI capable", c.SetIBICapable, protocol.BCRIBICapable},
		{"IBI payload", c.SetIBIPayload, protocol.BCRIBIPayload},
		{"offline capable", c.SetOfflineCapable, protocol.BCROfflineCapable},
		{"virtual target", c.SetVirtualTarget, protocol.BCRVirtualTarget},
		{"advanced capabilities", c.SetAdvancedCapabilities, protocol.BCRAdvancedCapabilities},
	}
	for _, s := range setters {
		t.Run(s.name, func(t *testing.T) {
			if err := s.set(0x50, true); err != nil {
				t.Fatalf("set error = %v", err)
			}
			info, _ := c.Target(0x50)
			if !info.BCR.Has(s.flag) {
				t.Errorf("BCR 0x%02X missing flag 0x%02X", uint8(info.BCR), uint8(s.flag))
			}
			if err := s.set(0x50, false); err != nil {
				t.Fatalf("clear error = %v", err)
			}
			info, _ = c.Target(0x50)
			if info.BCR.Has(s.flag) {
				t.Errorf("BCR 0x%02X still has flag 0x%02X", uint8(info.BCR), uint8(s.flag))
			}
			if err := s.set(0x33, true); !errors.Is(err, pkg.ErrUnknownTarget) {
				t.Errorf("set on unknown target error = %v, want %v", err, pkg.ErrUnknownTarget)
			}
		})
	}

	if err := c.SetRole(0x50, protocol.RoleControllerCapable); err != nil {
		t.Fatal(err)
	}
	if info, _ := c.Target(0x50); info.BCR.Role() != protocol.RoleControllerCapable {
		t.Errorf("Role() = %v, want controller capable", info.BCR.Role())
	}
}

// =============================================================================
// Target reset planning
// =============================================================================

func TestResetPlan(t *testing.T) {
	c := newTestController()
	_ = c.AddTarget(0x50, 0)
	_ = c.AddTarget(0x51, 0)

	tests := []struct {
		name    string
		req     ResetRequest
		queries int
		frames  int
		wantErr error
	}{
		{"pattern", ResetPattern(), 0, 0, nil},
		{"pattern with query", ResetPattern().WithTimeQuery(), 0, 0, pkg.ErrUnsupportedReset},
		{"broadcast", BroadcastReset(protocol.ResetWholeTarget), 0, 1, nil},
		{"broadcast query", BroadcastReset(protocol.ResetPeripheral).WithTimeQuery(), 2, 1, nil},
		{"broadcast query without time", BroadcastReset(protocol.ResetDebugNetworkAdapter).WithTimeQuery(), 0, 0, pkg.ErrUnsupportedReset},
		{"directed", DirectedReset([]ResetTarget{
			{0x50, protocol.ResetPeripheral},
			{0x51, protocol.ResetPeripheral},
		}, false), 0, 2, nil},
		{"directed merged", DirectedReset([]ResetTarget{
			{0x50, protocol.ResetPeripheral},
			{0x51, protocol.ResetPeripheral},
		}, true), 0, 1, nil},
		{"directed merged mixed", DirectedReset([]ResetTarget{
			{0x50, protocol.ResetPeripheral},
			{0x51, protocol.ResetWholeTarget},
			{0x52, protocol.ResetPeripheral},
		}, true), 0, 2, nil},
		{"directed query", DirectedReset([]ResetTarget{{0x50, protocol.ResetWholeTarget}}, false).WithTimeQuery(), 1, 1, nil},
		{"directed query without time", DirectedReset([]ResetTarget{{0x50, protocol.ResetNone}}, false).WithTimeQuery(), 0, 0, pkg.ErrUnsupportedReset},
		{"directed empty", DirectedReset(nil, false), 0, 0, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries, frames, err := c.resetPlan(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("resetPlan() error = %v, want %v", err, tt.wantErr)
			}
			if len(queries) != tt.queries || len(frames) != tt.frames {
				t.Errorf("resetPlan() = %d queries, %d frames; want %d, %d",
					len(queries), len(frames), tt.queries, tt.frames)
			}
		})
	}
}

func TestResetPlanEmptyRegistry(t *testing.T) {
	c := newTestController()
	_, _, err := c.resetPlan(BroadcastReset(protocol.ResetPeripheral).WithTimeQuery())
	var qe *pkg.ResetQueryError
	if !errors.As(err, &qe) {
		t.Fatalf("resetPlan() error = %v, want *ResetQueryError", err)
	}
}

func TestAddResetFrameMerge(t *testing.T) {
	var frames []CCC
	frames = addResetFrame(frames, ResetTarget{0x50, protocol.ResetPeripheral}, true)
	frames = addResetFrame(frames, ResetTarget{0x51, protocol.ResetPeripheral}, true)

	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	f := frames[0]
	if f.Code != protocol.CCCResetActionDirected || !f.HasDefining || f.Defining != uint8(protocol.ResetPeripheral) {
		t.Errorf("frame = %v, want RSTACT directed with peripheral action", f)
	}
	if len(f.Targets) != 2 || f.Targets[1].Address != 0x51 {
		t.Errorf("frame targets = %+v", f.Targets)
	}
}

// =============================================================================
// Argument validation
// =============================================================================

func TestHDRArgumentErrors(t *testing.T) {
	c := newTestController()
	ctx := context.Background()

	if _, err := c.DDRWrite(ctx, 0x50, 0x01, []byte{1, 2, 3}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("DDRWrite(odd payload) error = %v", err)
	}
	if _, err := c.DDRWrite(ctx, 0x7E, 0x01, []byte{1, 2}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("DDRWrite(reserved address) error = %v", err)
	}
	if _, err := c.DDRRead(ctx, 0x50, 0x80, 1); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("DDRRead(code 0x80) error = %v", err)
	}
	if _, err := c.BTWrite(ctx, 0x50, []byte{1}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("BTWrite(odd payload) error = %v", err)
	}
	if _, err := c.BTRead(ctx, 0x50, 4, Handoff(), InterruptAfter(2)); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("BTRead(handoff+interrupt) error = %v", err)
	}
	if _, err := c.BTRead(ctx, 0x50, 0x10000); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("BTRead(too many words) error = %v", err)
	}
	if _, err := c.CCCRead(ctx, CCC{Code: protocol.CCCSetMRLBroadcast}, 0x50, 2); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("CCCRead(broadcast) error = %v", err)
	}
}

func TestCCCString(t *testing.T) {
	tests := []struct {
		cmd  CCC
		want string
	}{
		{CCC{Code: 0x0A}, "CCC 0x0A"},
		{CCC{Code: 0x9A, Defining: 0x81, HasDefining: true}, "CCC 0x9A/0x81"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestResetKindString(t *testing.T) {
	for k, want := range map[ResetKind]string{
		ResetKindPattern:   "pattern",
		ResetKindBroadcast: "broadcast",
		ResetKindDirected:  "directed",
		ResetKind(9):       "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("ResetKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
