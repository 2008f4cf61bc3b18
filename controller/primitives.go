package controller

import (
	"context"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

func (c *Controller) sda(high bool) { c.w.Set(bus.SDA, high) }
func (c *Controller) scl(high bool) { c.w.Set(bus.SCL, high) }

func (c *Controller) wait(ctx context.Context, d bus.Time) error {
	return c.w.Delay(ctx, d)
}

// remainingLow is what is left of the SCL low period once the hold time,
// if owed, has been spent.
func (c *Controller) remainingLow() bus.Time {
	if c.hold {
		return c.t.LowAfterHold
	}
	return c.t.Low
}

// SendStart issues a START from a free bus or a repeated START while the
// bus is active. SCL is low on return.
func (c *Controller) SendStart(ctx context.Context) error {
	repeated := c.active()
	if repeated {
		c.setState(protocol.StateRepeatedStart)
		c.scl(false)
		if err := c.wait(ctx, c.t.Hold); err != nil {
			return err
		}
		c.sda(true)
		if err := c.wait(ctx, c.t.LowAfterHold); err != nil {
			return err
		}
		c.scl(true)
		if err := c.wait(ctx, c.t.CBSr); err != nil {
			return err
		}
		c.sda(false)
		if err := c.wait(ctx, c.t.CASr); err != nil {
			return err
		}
		c.count(func(s *Stats) { s.RepeatedStarts++ })
	} else {
		c.setState(protocol.StateStart)
		c.sda(true)
		c.scl(true)
		if err := c.wait(ctx, c.t.Free); err != nil {
			return err
		}
		c.sda(false)
		if err := c.wait(ctx, c.t.CAS); err != nil {
			return err
		}
		c.count(func(s *Stats) { s.Starts++ })
	}
	c.scl(false)
	c.hold = false
	return c.wait(ctx, c.t.CASr)
}

// SendStop issues a STOP. It does nothing while the bus is free.
func (c *Controller) SendStop(ctx context.Context) error {
	if !c.active() {
		return nil
	}
	c.setState(protocol.StateStop)

	c.scl(false)
	if c.hold {
		if err := c.wait(ctx, c.t.Hold); err != nil {
			return err
		}
	}
	c.sda(false)
	if err := c.wait(ctx, c.remainingLow()); err != nil {
		return err
	}
	c.scl(true)
	if err := c.wait(ctx, c.t.CBP); err != nil {
		return err
	}
	c.sda(true)
	c.hold = false
	c.count(func(s *Stats) { s.Stops++ })
	if err := c.wait(ctx, c.t.Free); err != nil {
		return err
	}
	c.setState(protocol.StateFree)
	return nil
}

func (c *Controller) ensureStarted(ctx context.Context) error {
	if c.active() {
		return nil
	}
	return c.SendStart(ctx)
}

// SendBit drives one push-pull bit.
func (c *Controller) SendBit(ctx context.Context, b bool) error {
	if err := c.ensureStarted(ctx); err != nil {
		return err
	}
	c.scl(false)
	if c.hold {
		if err := c.wait(ctx, c.t.Hold); err != nil {
			return err
		}
	}
	c.sda(b)
	if err := c.wait(ctx, c.remainingLow()); err != nil {
		return err
	}
	c.scl(true)
	if err := c.wait(ctx, c.t.High); err != nil {
		return err
	}
	c.hold = true
	return nil
}

// RecvBit releases SDA for one push-pull bit and samples it before the
// rising SCL edge.
func (c *Controller) RecvBit(ctx context.Context) (bool, error) {
	if err := c.ensureStarted(ctx); err != nil {
		return false, err
	}
	c.scl(false)
	if c.hold {
		if err := c.wait(ctx, c.t.Hold); err != nil {
			return false, err
		}
	}
	c.sda(true)
	if err := c.wait(ctx, c.remainingLow()); err != nil {
		return false, err
	}
	b := c.w.Get(bus.SDA)
	c.scl(true)
	if err := c.wait(ctx, c.t.High); err != nil {
		return false, err
	}
	c.hold = false
	return b, nil
}

// RecvBitOD samples an open-drain ACK/NACK bit. SDA is released at the
// falling edge and the full low period elapses before sampling, so no
// hold time is consumed.
func (c *Controller) RecvBitOD(ctx context.Context) (bool, error) {
	if err := c.ensureStarted(ctx); err != nil {
		return false, err
	}
	c.scl(false)
	c.sda(true)
	if err := c.wait(ctx, c.t.Low); err != nil {
		return false, err
	}
	b := c.w.Get(bus.SDA)
	c.scl(true)
	if err := c.wait(ctx, c.t.High); err != nil {
		return false, err
	}
	c.hold = false
	return b, nil
}

// SendByte sends b most significant bit first and returns true on NACK.
func (c *Controller) SendByte(ctx context.Context, b byte, addr bool) (bool, error) {
	if addr {
		c.setState(protocol.StateAddr)
	} else {
		c.setState(protocol.StateDataWrite)
	}
	for i := 7; i >= 0; i-- {
		if err := c.SendBit(ctx, b&(1<<i) != 0); err != nil {
			return false, err
		}
	}
	c.setState(protocol.StateAck)
	return c.RecvBitOD(ctx)
}

// RecvByte receives a byte with legacy framing and answers NACK when last
// is set, ACK otherwise.
func (c *Controller) RecvByte(ctx context.Context, last bool) (byte, error) {
	c.setState(protocol.StateDataRead)
	b, err := c.recvBits(ctx)
	if err != nil {
		return 0, err
	}
	c.setState(protocol.StateAck)
	return b, c.SendBit(ctx, last)
}

func (c *Controller) recvBits(ctx context.Context) (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		bit, err := c.RecvBit(ctx)
		if err != nil {
			return 0, err
		}
		b <<= 1
		if bit {
			b |= 1
		}
	}
	return b, nil
}

// SendByteTbit sends b followed by its T-bit. A non-nil tbit overrides the
// computed parity for fault injection.
func (c *Controller) SendByteTbit(ctx context.Context, b byte, tbit *bool) error {
	c.setState(protocol.StateDataWrite)
	for i := 7; i >= 0; i-- {
		if err := c.SendBit(ctx, b&(1<<i) != 0); err != nil {
			return err
		}
	}
	c.setState(protocol.StateTBitWrite)
	t := protocol.TBit(b)
	if tbit != nil {
		t = *tbit
	}
	return c.SendBit(ctx, t)
}

// tbitEOD clocks a read T-bit. The target ends the data phase by driving
// it low; the controller ends it by pulling SDA low while SCL is high.
// It returns true when the target signaled end of data.
func (c *Controller) tbitEOD(ctx context.Context, requestEnd bool) (bool, error) {
	c.scl(false)
	if err := c.wait(ctx, c.t.ClockToDO); err != nil {
		return false, err
	}
	eod := !c.w.Get(bus.SDA)
	if err := c.wait(ctx, c.t.LowAfterSCO); err != nil {
		return false, err
	}
	c.scl(true)

	switch {
	case eod:
		c.sda(false)
		c.hold = false
		c.setState(protocol.StateAwaitRepeatedOrStop)
		return true, c.wait(ctx, c.t.High)
	case requestEnd:
		if err := c.wait(ctx, c.t.CBSr); err != nil {
			return false, err
		}
		c.sda(false)
		c.hold = false
		c.setState(protocol.StateAwaitRepeatedOrStop)
		return false, c.wait(ctx, c.t.CASr)
	default:
		c.hold = false
		return false, c.wait(ctx, c.t.High)
	}
}

// RecvByteTbit receives a byte and its T-bit. When requestEnd is set the
// controller terminates the data phase after this byte. targetEOD reports
// whether the target ended it first.
func (c *Controller) RecvByteTbit(ctx context.Context, requestEnd bool) (b byte, targetEOD bool, err error) {
	c.setState(protocol.StateDataRead)
	if b, err = c.recvBits(ctx); err != nil {
		return 0, false, err
	}
	c.setState(protocol.StateTBitRead)
	targetEOD, err = c.tbitEOD(ctx, requestEnd)
	return b, targetEOD, err
}

// ReceiveUntilEOD reads up to count bytes, or until the target signals
// end of data when count is 0. The target's signal always wins.
func (c *Controller) ReceiveUntilEOD(ctx context.Context, count int) ([]byte, error) {
	var data []byte
	for i := 0; count == 0 || i < count; i++ {
		last := count > 0 && i == count-1
		b, eod, err := c.RecvByteTbit(ctx, last)
		if err != nil {
			return data, err
		}
		data = append(data, b)
		if eod || last {
			break
		}
	}
	return data, nil
}

// WriteAddrHeader sends a 7-bit address with the R/W bit and returns true
// on NACK.
func (c *Controller) WriteAddrHeader(ctx context.Context, addr uint8, read bool) (bool, error) {
	c.count(func(s *Stats) { s.Headers++ })
	nack, err := c.SendByte(ctx, protocol.AddressHeader(addr, read), true)
	if err != nil {
		return false, err
	}
	if addr == protocol.ReservedByte {
		pkg.LogDebug(pkg.ComponentController, "reserved address header", "nack", nack)
	} else {
		pkg.LogDebug(pkg.ComponentController, "address header",
			pkg.KeyAddress, addr, "read", read, "nack", nack)
	}
	return nack, nil
}
