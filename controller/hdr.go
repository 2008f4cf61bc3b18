package controller

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Number of SDA falls with SCL low in the HDR exit pattern.
const hdrExitFalls = 4

// HDROption modifies a single HDR transaction.
type HDROption func(*hdrConfig)

type hdrConfig struct {
	crcOnReject    bool
	crc32          bool
	handoff        bool
	ccc            bool
	discard        bool
	interruptAfter int
	command        [4]byte
}

func applyHDR(opts []HDROption) hdrConfig {
	var h hdrConfig
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// CRCOnReject still sends the HDR-DDR CRC after a target rejects a word.
func CRCOnReject() HDROption {
	return func(h *hdrConfig) { h.crcOnReject = true }
}

// CRC32 selects CRC-32 instead of CRC-16 for HDR-BT.
func CRC32() HDROption {
	return func(h *hdrConfig) { h.crc32 = true }
}

// Handoff lets the target drive SCL during an HDR-BT read data phase.
func Handoff() HDROption {
	return func(h *hdrConfig) { h.handoff = true }
}

// CCCContinuation marks an HDR-BT command as continuing a CCC.
func CCCContinuation() HDROption {
	return func(h *hdrConfig) { h.ccc = true }
}

// InterruptAfter abandons an HDR-BT read after n words by stopping the
// clock and exiting HDR.
func InterruptAfter(n int) HDROption {
	return func(h *hdrConfig) { h.interruptAfter = n }
}

// Discard fails the transition-verify byte of an HDR-BT read and drops
// the received data.
func Discard() HDROption {
	return func(h *hdrConfig) { h.discard = true }
}

// BTCommandBytes sets the four command bytes of an HDR-BT command. A read
// overwrites the first two with the requested word count.
func BTCommandBytes(b [4]byte) HDROption {
	return func(h *hdrConfig) { h.command = b }
}

// SendHDRExit emits the HDR exit pattern followed by a STOP.
func (c *Controller) SendHDRExit(ctx context.Context) error {
	return c.withBus(ctx, func() error {
		c.setState(protocol.StateHDR)
		return c.exitHDR(ctx)
	})
}

func (c *Controller) exitHDR(ctx context.Context) error {
	if err := c.togglePattern(ctx, hdrExitFalls, false); err != nil {
		return err
	}
	c.hold = false
	return c.SendStop(ctx)
}

// enterHDR broadcasts ENTHDRx. The SCL fall that follows starts the first
// HDR bit. It returns true if the reserved byte was not acknowledged, in
// which case the frame has already been stopped.
func (c *Controller) enterHDR(ctx context.Context, code uint8) (bool, error) {
	nack, err := c.sendCCCHead(ctx, CCC{Code: code})
	if err != nil {
		return false, err
	}
	if nack {
		return true, c.SendStop(ctx)
	}
	c.setState(protocol.StateHDR)
	c.scl(false)
	return false, nil
}

// phase is the length of the SCL phase in progress.
func (c *Controller) phase() bus.Time {
	if c.w.Get(bus.SCL) {
		return c.t.High
	}
	return c.t.Low
}

func (c *Controller) toggleSCL() {
	c.scl(!c.w.Get(bus.SCL))
}

// hdrSend drives one double-data-rate bit: SDA changes a hold time into the
// SCL phase and the phase ends with an SCL edge.
func (c *Controller) hdrSend(ctx context.Context, bit bool) error {
	half := c.phase()
	if err := c.wait(ctx, c.t.Hold); err != nil {
		return err
	}
	c.sda(bit)
	if err := c.wait(ctx, max(half-c.t.Hold, 0)); err != nil {
		return err
	}
	c.toggleSCL()
	return nil
}

// hdrRecv samples one double-data-rate bit at the end of the SCL phase.
func (c *Controller) hdrRecv(ctx context.Context) (bool, error) {
	c.sda(true)
	if c.follow {
		i, err := c.w.WaitEdge(ctx, 4*(c.t.High+c.t.Low), bus.Change(bus.SCL))
		if err != nil {
			return false, err
		}
		if i < 0 {
			return false, fmt.Errorf("target stopped driving SCL: %w", pkg.ErrTimeout)
		}
		return c.w.Get(bus.SDA), nil
	}
	if err := c.wait(ctx, c.phase()); err != nil {
		return false, err
	}
	b := c.w.Get(bus.SDA)
	c.toggleSCL()
	return b, nil
}

func (c *Controller) hdrSendBits(ctx context.Context, v uint64, n int) error {
	for i := n - 1; i >= 0; i-- {
		if err := c.hdrSend(ctx, v>>i&1 != 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) hdrRecvBits(ctx context.Context, n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := c.hdrRecv(ctx)
		if err != nil {
			return 0, err
		}
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v, nil
}

// releaseClock hands SCL to the target. The target holds SCL at its
// current level before the controller lets go.
func (c *Controller) releaseClock(ctx context.Context) error {
	if err := c.wait(ctx, c.t.Hold); err != nil {
		return err
	}
	c.scl(true)
	c.follow = true
	pkg.LogDebug(pkg.ComponentHDR, "SCL handed to target", pkg.KeyTime, c.w.Now())
	return nil
}

// reclaimClock takes SCL back at the level the target left it.
func (c *Controller) reclaimClock() {
	c.scl(c.w.Get(bus.SCL))
	c.follow = false
	pkg.LogDebug(pkg.ComponentHDR, "SCL reclaimed", pkg.KeyTime, c.w.Now())
}
