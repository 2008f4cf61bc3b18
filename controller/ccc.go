package controller

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Directed is one target's part of a directed CCC.
type Directed struct {
	Address uint8
	Data    []byte
}

// CCC describes a common command code frame.
type CCC struct {
	Code uint8

	// Data is the payload of a broadcast CCC.
	Data []byte

	// Targets lists the per-target payloads of a directed CCC.
	Targets []Directed

	Defining    uint8
	HasDefining bool
}

func (c CCC) String() string {
	if c.HasDefining {
		return fmt.Sprintf("CCC 0x%02X/0x%02X", c.Code, c.Defining)
	}
	return fmt.Sprintf("CCC 0x%02X", c.Code)
}

// sendCCCHead opens a frame with the reserved byte and sends the command
// code and defining byte.
func (c *Controller) sendCCCHead(ctx context.Context, cmd CCC) (bool, error) {
	if err := c.SendStart(ctx); err != nil {
		return false, err
	}
	nack, err := c.WriteAddrHeader(ctx, protocol.ReservedByte, false)
	if err != nil {
		return false, err
	}
	c.count(func(s *Stats) { s.CCCs++ })
	c.setState(protocol.StateCCC)
	if err := c.SendByteTbit(ctx, cmd.Code, nil); err != nil {
		return nack, err
	}
	if cmd.HasDefining {
		if err := c.SendByteTbit(ctx, cmd.Defining, nil); err != nil {
			return nack, err
		}
	}
	return nack, nil
}

// CCCWrite issues a CCC write frame. Codes up to 0x7F broadcast cmd.Data;
// higher codes address every entry of cmd.Targets after a repeated START.
// The result's NACK is set if any header was not acknowledged.
func (c *Controller) CCCWrite(ctx context.Context, cmd CCC, opts ...XferOption) (WriteResult, error) {
	x := applyXfer(opts)
	var res WriteResult

	err := c.withBus(ctx, func() error {
		broadcast := protocol.IsBroadcast(cmd.Code)
		pkg.LogDebug(pkg.ComponentController, "CCC write",
			"ccc", cmd, "broadcast", broadcast, "targets", len(cmd.Targets))

		nack, err := c.sendCCCHead(ctx, cmd)
		if err != nil {
			return err
		}
		res.NACK = nack

		if broadcast {
			for _, b := range cmd.Data {
				if err := c.SendByteTbit(ctx, b, nil); err != nil {
					return err
				}
				res.Written++
			}
			return c.closeFrame(ctx, x)
		}

		for _, d := range cmd.Targets {
			if err := c.SendStart(ctx); err != nil {
				return err
			}
			nack, err := c.WriteAddrHeader(ctx, d.Address, false)
			if err != nil {
				return err
			}
			res.NACK = res.NACK || nack
			for _, b := range d.Data {
				if err := c.SendByteTbit(ctx, b, nil); err != nil {
					return err
				}
				res.Written++
			}
		}
		return c.closeFrame(ctx, x)
	})
	return res, err
}

// CCCRead issues a directed CCC read of up to count bytes from addr.
func (c *Controller) CCCRead(ctx context.Context, cmd CCC, addr uint8, count int, opts ...XferOption) (ReadResult, error) {
	x := applyXfer(opts)
	var res ReadResult

	if protocol.IsBroadcast(cmd.Code) {
		return res, fmt.Errorf("%v is not a directed CCC: %w", cmd, pkg.ErrInvalidParameter)
	}

	err := c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentController, "CCC read", "ccc", cmd, pkg.KeyAddress, addr)

		nack, err := c.sendCCCHead(ctx, cmd)
		if err != nil {
			return err
		}
		if err := c.SendStart(ctx); err != nil {
			return err
		}
		tnack, err := c.WriteAddrHeader(ctx, addr, true)
		if err != nil {
			return err
		}
		res.NACK = nack || tnack
		if !tnack {
			if res.Data, err = c.ReceiveUntilEOD(ctx, count); err != nil {
				return err
			}
		}
		return c.closeFrame(ctx, x)
	})
	return res, err
}
