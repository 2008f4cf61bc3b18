package controller

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// BTWriteResult reports the outcome of an HDR-BT write.
type BTWriteResult struct {
	NACK     bool // Reserved byte not acknowledged
	Acked    bool // Target acknowledged the command
	Verified bool // Target confirmed the CRC
}

// BTReadResult reports the outcome of an HDR-BT read.
type BTReadResult struct {
	NACK        bool
	Acked       bool
	Data        []byte
	CRCValid    bool
	Interrupted bool // Abandoned by InterruptAfter
}

func (c *Controller) btCommand(read bool, addr uint8, h hdrConfig) (protocol.BTCommand, error) {
	if !validAddress(addr) {
		return protocol.BTCommand{}, fmt.Errorf("HDR-BT address 0x%02X: %w", addr, pkg.ErrInvalidParameter)
	}
	return protocol.BTCommand{
		Read:    read,
		Address: addr,
		Command: h.command,
		CRC32:   h.crc32,
		Handoff: h.handoff,
		CCC:     h.ccc,
	}, nil
}

// openBT enters HDR-BT, sends the command and samples the transition
// byte. It reports whether the target acknowledged.
func (c *Controller) openBT(ctx context.Context, cmd protocol.BTCommand) (nack, acked bool, err error) {
	if nack, err = c.enterHDR(ctx, protocol.CCCEnterHDR3); err != nil || nack {
		return nack, false, err
	}
	for _, b := range cmd.Bytes() {
		if err := c.hdrSendBits(ctx, uint64(b), 8); err != nil {
			return false, false, err
		}
	}
	tb, err := c.hdrRecvBits(ctx, 8)
	if err != nil {
		return false, false, err
	}
	return false, byte(tb) == protocol.BTAck, nil
}

// BTWrite writes data as 16-bit words in HDR-BT mode, in blocks of up to
// 16 words. data must have even length.
func (c *Controller) BTWrite(ctx context.Context, addr uint8, data []byte, opts ...HDROption) (BTWriteResult, error) {
	h := applyHDR(opts)
	var res BTWriteResult

	words, ok := protocol.BytesToWords(data)
	if !ok {
		return res, fmt.Errorf("HDR-BT payload of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}
	cmd, err := c.btCommand(false, addr, h)
	if err != nil {
		return res, err
	}

	err = c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentHDR, "BT write", pkg.KeyAddress, addr, "words", len(words), "crc32", h.crc32)

		nack, acked, err := c.openBT(ctx, cmd)
		if err != nil || nack {
			res.NACK = nack
			return err
		}
		res.Acked = acked
		if !acked {
			pkg.LogInfo(pkg.ComponentHDR, "BT command not acknowledged", pkg.KeyAddress, addr)
			return c.exitHDR(ctx)
		}

		var crcData []byte
		for start := 0; ; start += protocol.BTBlockWords {
			end := min(start+protocol.BTBlockWords, len(words))
			last := end == len(words)
			ctrl := protocol.BTControl(last, end-start)
			if err := c.hdrSendBits(ctx, uint64(ctrl), 8); err != nil {
				return err
			}
			crcData = append(crcData, ctrl)
			for _, w := range words[start:end] {
				if err := c.hdrSendBits(ctx, uint64(w), 16); err != nil {
					return err
				}
			}
			crcData = append(crcData, protocol.WordsToBytes(words[start:end])...)
			if last {
				break
			}
		}

		if err := c.hdrSendBits(ctx, uint64(protocol.CRCToken), 4); err != nil {
			return err
		}
		crc := protocol.BTCRC(h.crc32, crcData)
		if err := c.hdrSendBits(ctx, uint64(crc), protocol.BTCRCBits(h.crc32)); err != nil {
			return err
		}

		verify, err := c.hdrRecvBits(ctx, 8)
		if err != nil {
			return err
		}
		res.Verified = byte(verify) == protocol.BTVerifyOK
		return c.exitHDR(ctx)
	})
	return res, err
}

// BTRead reads words in HDR-BT mode. With Handoff the target drives SCL
// for the data phase.
func (c *Controller) BTRead(ctx context.Context, addr uint8, words int, opts ...HDROption) (BTReadResult, error) {
	h := applyHDR(opts)
	var res BTReadResult

	if words < 0 || words > 0xFFFF {
		return res, fmt.Errorf("HDR-BT read of %d words: %w", words, pkg.ErrInvalidParameter)
	}
	if h.handoff && h.interruptAfter > 0 {
		return res, fmt.Errorf("interrupting a handed-off read: %w", pkg.ErrInvalidParameter)
	}
	h.command[0], h.command[1] = byte(words>>8), byte(words)
	cmd, err := c.btCommand(true, addr, h)
	if err != nil {
		return res, err
	}

	err = c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentHDR, "BT read", pkg.KeyAddress, addr, "words", words,
			"handoff", h.handoff, "crc32", h.crc32)

		nack, acked, err := c.openBT(ctx, cmd)
		if err != nil || nack {
			res.NACK = nack
			return err
		}
		res.Acked = acked
		if !acked {
			pkg.LogInfo(pkg.ComponentHDR, "BT command not acknowledged", pkg.KeyAddress, addr)
			return c.exitHDR(ctx)
		}

		if h.handoff {
			if err := c.releaseClock(ctx); err != nil {
				return err
			}
		}

		var crcData []byte
		var data []uint16
		badControl := false
		for last := false; !last; {
			v, err := c.hdrRecvBits(ctx, 8)
			if err != nil {
				return err
			}
			ctrl := byte(v)
			var n int
			var ok bool
			last, n, ok = protocol.ParseBTControl(ctrl)
			badControl = badControl || !ok
			crcData = append(crcData, ctrl)

			for i := 0; i < n; i++ {
				w, err := c.hdrRecvBits(ctx, 16)
				if err != nil {
					return err
				}
				data = append(data, uint16(w))
				crcData = append(crcData, byte(w>>8), byte(w))

				if h.interruptAfter > 0 && len(data) == h.interruptAfter {
					res.Interrupted = true
					res.Data = protocol.WordsToBytes(data)
					pkg.LogInfo(pkg.ComponentHDR, "BT read interrupted", "words", len(data))
					if err := c.wait(ctx, 4*(c.t.High+c.t.Low)); err != nil {
						return err
					}
					return c.exitHDR(ctx)
				}
			}
		}

		v, err := c.hdrRecvBits(ctx, 4+protocol.BTCRCBits(h.crc32))
		if err != nil {
			return err
		}
		width := protocol.BTCRCBits(h.crc32)
		token, crc := uint8(v>>width), uint32(v&(1<<width-1))
		if h.handoff {
			c.reclaimClock()
		}

		res.CRCValid = !badControl && token == protocol.CRCToken &&
			crc == protocol.BTCRC(h.crc32, crcData)
		verify := protocol.BTVerifyOK
		if !res.CRCValid || h.discard {
			verify = ^protocol.BTVerifyOK
		}
		if err := c.hdrSendBits(ctx, uint64(verify), 8); err != nil {
			return err
		}
		if !h.discard {
			res.Data = protocol.WordsToBytes(data)
		}
		return c.exitHDR(ctx)
	})
	return res, err
}
