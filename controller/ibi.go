package controller

import (
	"context"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// IBI is an in-band interrupt received from a target.
type IBI struct {
	Address uint8
	MDB     byte
	HasMDB  bool
	Payload []byte
	At      bus.Time // Time the STOP closing the IBI completed
}

// EnableIBI makes the controller acknowledge IBI requests.
func (c *Controller) EnableIBI() {
	c.mutex.Lock()
	c.ibiEnabled = true
	c.mutex.Unlock()
}

// DisableIBI makes the controller NACK IBI requests.
func (c *Controller) DisableIBI() {
	c.mutex.Lock()
	c.ibiEnabled = false
	c.mutex.Unlock()
}

// IBIEnabled reports whether IBI requests are acknowledged.
func (c *Controller) IBIEnabled() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.ibiEnabled
}

// TakeIBI consumes the pending IBI, if any.
func (c *Controller) TakeIBI() (IBI, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.pending == nil {
		return IBI{}, false
	}
	ibi := *c.pending
	c.pending = nil
	return ibi, true
}

// WaitIBI blocks on the bus timeline until an IBI is pending and consumes
// it. A positive timeout bounds the wait with pkg.ErrTimeout.
func (c *Controller) WaitIBI(ctx context.Context, timeout bus.Time) (IBI, error) {
	deadline := c.w.Now() + timeout
	for {
		if ibi, ok := c.TakeIBI(); ok {
			return ibi, nil
		}
		if timeout > 0 && c.w.Now() >= deadline {
			return IBI{}, pkg.ErrTimeout
		}
		if err := c.w.Delay(ctx, c.cfg.PollInterval); err != nil {
			return IBI{}, err
		}
	}
}

func (c *Controller) publish(ibi IBI) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.pending != nil {
		pkg.LogWarn(pkg.ComponentController, "unconsumed IBI overwritten",
			pkg.KeyAddress, c.pending.Address)
	}
	c.pending = &ibi
}

func (c *Controller) busFree() bool {
	return c.w.Get(bus.SDA) && c.w.Get(bus.SCL)
}

// monitorIBI watches a free bus for a target pulling SDA low. An SCL fall
// or no edge within tCAS is not a START and the watch starts over. SDA
// found low with SCL high while the controller is idle is also taken as
// an IBI request.
func (c *Controller) monitorIBI(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.monitorIdle.Store(true)
		held := !c.w.Get(bus.SDA) && c.w.Get(bus.SCL) && !c.active()
		if !c.monitorEnabled.Load() || !(c.busFree() || held) {
			if err := c.w.Delay(ctx, c.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}
		c.monitorIdle.Store(false)

		// A target already holds SDA low on an idle bus.
		if held {
			if err := c.receiveIBI(ctx); err != nil {
				return err
			}
			continue
		}

		i, err := c.w.WaitEdge(ctx, c.t.CAS, bus.Fall(bus.SDA), bus.Fall(bus.SCL))
		if err != nil {
			return err
		}
		if i != 0 {
			continue
		}
		if err := c.receiveIBI(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) receiveIBI(ctx context.Context) error {
	c.setState(protocol.StateStart)
	if err := c.wait(ctx, c.t.CAS); err != nil {
		return err
	}
	c.scl(false)
	c.hold = false
	if err := c.wait(ctx, c.t.CASr); err != nil {
		return err
	}

	c.setState(protocol.StateAddr)
	hdr, err := c.recvBits(ctx)
	if err != nil {
		return err
	}
	addr, read := hdr>>1, hdr&1 != 0
	ack := c.IBIEnabled() && read

	c.setState(protocol.StateAck)
	if err := c.SendBit(ctx, !ack); err != nil {
		return err
	}
	if !ack {
		pkg.LogInfo(pkg.ComponentController, "IBI NACKed", pkg.KeyAddress, addr, "read", read)
		return c.SendStop(ctx)
	}

	ibi := IBI{Address: addr}
	if info, ok := c.Target(addr); ok && info.BCR.Has(protocol.BCRIBIPayload) {
		data, err := c.ReceiveUntilEOD(ctx, 1+c.cfg.MaxIBIPayload)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			ibi.MDB, ibi.HasMDB = data[0], true
			ibi.Payload = data[1:]
		}
	}
	if err := c.SendStop(ctx); err != nil {
		return err
	}
	ibi.At = c.w.Now()
	c.publish(ibi)
	pkg.LogInfo(pkg.ComponentController, "IBI received",
		pkg.KeyAddress, addr, pkg.KeyMDB, ibi.MDB, "payload", len(ibi.Payload))
	return nil
}
