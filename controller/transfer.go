package controller

import (
	"context"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// WriteResult reports the outcome of a write transfer.
type WriteResult struct {
	NACK    bool // An address header was not acknowledged
	Written int  // Data bytes clocked out
}

// ReadResult reports the outcome of a read transfer.
type ReadResult struct {
	NACK bool
	Data []byte
}

// openFrame issues START, the reserved byte and a repeated START followed
// by the target header. It returns true if either header was NACKed.
func (c *Controller) openFrame(ctx context.Context, addr uint8, read bool) (bool, error) {
	if err := c.SendStart(ctx); err != nil {
		return false, err
	}
	nack, err := c.WriteAddrHeader(ctx, protocol.ReservedByte, false)
	if err != nil || nack {
		return nack, err
	}
	if err := c.SendStart(ctx); err != nil {
		return false, err
	}
	return c.WriteAddrHeader(ctx, addr, read)
}

func (c *Controller) closeFrame(ctx context.Context, x xferConfig) error {
	if x.noStop {
		c.setState(protocol.StateAwaitRepeatedOrStop)
		return nil
	}
	return c.SendStop(ctx)
}

// PrivateWrite writes data to the target at addr.
func (c *Controller) PrivateWrite(ctx context.Context, addr uint8, data []byte, opts ...XferOption) (WriteResult, error) {
	x := applyXfer(opts)
	var res WriteResult

	err := c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentController, "private write",
			pkg.KeyAddress, addr, "len", len(data), "legacy", x.legacy)

		nack, err := c.openFrame(ctx, addr, false)
		if err != nil {
			return err
		}
		res.NACK = nack
		if !nack {
			for _, b := range data {
				if x.legacy {
					if nack, err = c.SendByte(ctx, b, false); err != nil {
						return err
					}
					res.Written++
					if nack {
						break
					}
					continue
				}
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

// PrivateRead reads up to count bytes from the target at addr. With T-bit
// framing a count of 0 reads until the target ends the transfer.
func (c *Controller) PrivateRead(ctx context.Context, addr uint8, count int, opts ...XferOption) (ReadResult, error) {
	x := applyXfer(opts)
	var res ReadResult

	err := c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentController, "private read",
			pkg.KeyAddress, addr, "count", count, "legacy", x.legacy)

		nack, err := c.openFrame(ctx, addr, true)
		if err != nil {
			return err
		}
		res.NACK = nack
		if !nack {
			if x.legacy {
				for i := 0; i < count; i++ {
					b, err := c.RecvByte(ctx, i == count-1)
					if err != nil {
						return err
					}
					res.Data = append(res.Data, b)
				}
			} else if res.Data, err = c.ReceiveUntilEOD(ctx, count); err != nil {
				return err
			}
		}
		return c.closeFrame(ctx, x)
	})
	return res, err
}
