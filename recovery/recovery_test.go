package recovery_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/bus/sim"
	"github.com/ardnew/softi3c/controller"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
	"github.com/ardnew/softi3c/recovery"
	"github.com/ardnew/softi3c/target"
)

const addr = 0x61

// runRecovery attaches a Device-backed target and runs fn with an adapter.
func runRecovery(t *testing.T, dev *recovery.Device, fn func(ctx context.Context, a *recovery.Adapter) error) {
	t.Helper()
	s := sim.New(sim.WithTimeLimit(5000 * bus.Microsecond))
	c := controller.New(s.Port("controller"))
	tgt := target.New(s.Port("target"), addr, target.WithStorage(dev))
	if err := c.AddTarget(addr, 0); err != nil {
		t.Fatal(err)
	}
	a := recovery.New(c)

	err := s.Run(context.Background(), func(ctx context.Context) error {
		if err := c.Start(ctx); err != nil {
			return err
		}
		if err := tgt.Start(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  recovery.Command
		want string
	}{
		{recovery.ProtCap, "PROT_CAP"},
		{recovery.RecoveryCtrl, "RECOVERY_CTRL"},
		{recovery.IndirectFIFOData, "INDIRECT_FIFO_DATA"},
		{recovery.Command(99), "COMMAND(99)"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("Command(%d).String() = %q, want %q", uint8(tt.cmd), got, tt.want)
		}
	}
}

func TestCorruptPEC(t *testing.T) {
	for pec := 0; pec < 256; pec++ {
		for range 8 {
			if got := recovery.CorruptPEC(byte(pec)); got == byte(pec) {
				t.Fatalf("CorruptPEC(0x%02X) returned the same value", pec)
			}
		}
	}
}

// =============================================================================
// Round trips
// =============================================================================

func TestWriteThenRead(t *testing.T) {
	dev := recovery.NewDevice(addr)
	var wr controller.WriteResult
	var rd recovery.ReadResult

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		var err error
		if wr, err = a.CommandWrite(ctx, addr, recovery.RecoveryCtrl, []byte{0x01, 0x02, 0x03}); err != nil {
			return err
		}
		rd, err = a.CommandRead(ctx, addr, recovery.RecoveryCtrl)
		return err
	})

	if wr.NACK || wr.Written != 7 {
		t.Errorf("CommandWrite() = %+v, want 7 bytes written", wr)
	}
	if got, ok := dev.Register(recovery.RecoveryCtrl); !ok || !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Register() = %X, %v", got, ok)
	}
	if rd.Length != 3 || !bytes.Equal(rd.Data, []byte{1, 2, 3}) || !rd.PECValid {
		t.Errorf("CommandRead() = %+v", rd)
	}
	if dev.PECErrors() != 0 {
		t.Errorf("PECErrors() = %d, want 0", dev.PECErrors())
	}
}

func TestReadPreloadedRegister(t *testing.T) {
	dev := recovery.NewDevice(addr)
	dev.SetRegister(recovery.DeviceID, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	var rd recovery.ReadResult

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		var err error
		rd, err = a.CommandRead(ctx, addr, recovery.DeviceID)
		return err
	})

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(rd.Data, want) || !rd.PECValid {
		t.Errorf("CommandRead() = %+v, want %X", rd, want)
	}
	if want := protocol.PEC(addr, true, []byte{4, 0, 0xDE, 0xAD, 0xBE, 0xEF}); rd.PEC != want {
		t.Errorf("PEC = 0x%02X, want 0x%02X", rd.PEC, want)
	}
}

// =============================================================================
// PEC faults
// =============================================================================

func TestWritePECError(t *testing.T) {
	dev := recovery.NewDevice(addr)

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		_, err := a.CommandWrite(ctx, addr, recovery.DeviceReset, []byte{0x01}, recovery.WithPECError())
		return err
	})

	if dev.PECErrors() != 1 {
		t.Errorf("PECErrors() = %d, want 1", dev.PECErrors())
	}
	if _, ok := dev.Register(recovery.DeviceReset); ok {
		t.Error("register written despite a bad PEC")
	}
}

func TestReadRequestPECError(t *testing.T) {
	dev := recovery.NewDevice(addr)
	dev.SetRegister(recovery.DeviceStatus, []byte{0x00})
	var readErr error

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		_, readErr = a.CommandRead(ctx, addr, recovery.DeviceStatus, recovery.WithPECError())
		return nil
	})

	if dev.PECErrors() != 1 {
		t.Errorf("PECErrors() = %d, want 1", dev.PECErrors())
	}
	var re *pkg.RecoveryError
	if !errors.As(readErr, &re) || re.Stage != "length" {
		t.Fatalf("CommandRead() error = %v, want RecoveryError at length", readErr)
	}
	if !errors.Is(readErr, pkg.ErrPrematureEnd) {
		t.Errorf("CommandRead() error = %v, want %v", readErr, pkg.ErrPrematureEnd)
	}
}

func TestResponsePECError(t *testing.T) {
	dev := recovery.NewDevice(addr)
	dev.SetRegister(recovery.HWStatus, []byte{0x07, 0x00})
	dev.CorruptResponsePEC(true)
	var rd recovery.ReadResult

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		var err error
		rd, err = a.CommandRead(ctx, addr, recovery.HWStatus)
		return err
	})

	if rd.PECValid {
		t.Error("PECValid = true for a corrupted response")
	}
	if !bytes.Equal(rd.Data, []byte{0x07, 0x00}) {
		t.Errorf("Data = %X, want [07 00]", rd.Data)
	}
}

func TestReadUnknownTarget(t *testing.T) {
	dev := recovery.NewDevice(addr)
	var readErr error

	runRecovery(t, dev, func(ctx context.Context, a *recovery.Adapter) error {
		_, readErr = a.CommandRead(ctx, 0x22, recovery.ProtCap)
		return nil
	})

	var re *pkg.RecoveryError
	if !errors.As(readErr, &re) || re.Stage != "request" || !errors.Is(readErr, pkg.ErrNACK) {
		t.Errorf("CommandRead() error = %v, want NACKed request", readErr)
	}
}

func TestWriteTooLong(t *testing.T) {
	a := recovery.New(controller.New(sim.New().Port("controller")))
	_, err := a.CommandWrite(context.Background(), addr, recovery.Vendor, make([]byte, recovery.MaxPayload+1))
	if !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("CommandWrite() error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
}

// =============================================================================
// Device
// =============================================================================

func TestDeviceReset(t *testing.T) {
	dev := recovery.NewDevice(addr)
	dev.SetRegister(recovery.ProtCap, []byte{1})
	dev.Reset()
	if _, ok := dev.Register(recovery.ProtCap); ok {
		t.Error("register survived Reset")
	}
	if dev.Available() != 0 || dev.Read() != 0xFF {
		t.Error("Reset left a pending response")
	}
}

var _ target.Storage = (*recovery.Device)(nil)
var _ target.Resetter = (*recovery.Device)(nil)
