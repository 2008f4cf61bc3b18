package controller

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// DDRWriteResult reports the outcome of an HDR-DDR write.
type DDRWriteResult struct {
	NACK     bool // Reserved byte not acknowledged
	Accepted int  // Data words accepted by the target
	Rejected bool // The target rejected a word
}

// DDRReadResult reports the outcome of an HDR-DDR read.
type DDRReadResult struct {
	NACK        bool
	Data        []byte
	CRCValid    bool
	ParityError bool // A received word failed its parity check
}

func ddrCommand(read bool, addr, code uint8) (uint16, error) {
	if code > 0x7F || !validAddress(addr) {
		return 0, fmt.Errorf("HDR-DDR command 0x%02X to 0x%02X: %w", code, addr, pkg.ErrInvalidParameter)
	}
	return protocol.DDRCommand{Read: read, Code: code, Address: addr}.Word(), nil
}

// sendDDRCommand sends preamble 01, the command word and its parity.
func (c *Controller) sendDDRCommand(ctx context.Context, word uint16) error {
	if err := c.hdrSendBits(ctx, 0b01, 2); err != nil {
		return err
	}
	if err := c.hdrSendBits(ctx, uint64(word), 16); err != nil {
		return err
	}
	return c.hdrSendBits(ctx, uint64(protocol.WordParity(word)), 4)
}

// DDRWrite writes data as 16-bit words in HDR-DDR mode. data must have
// even length.
func (c *Controller) DDRWrite(ctx context.Context, addr, code uint8, data []byte, opts ...HDROption) (DDRWriteResult, error) {
	h := applyHDR(opts)
	var res DDRWriteResult

	words, ok := protocol.BytesToWords(data)
	if !ok {
		return res, fmt.Errorf("HDR-DDR payload of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}
	cmd, err := ddrCommand(false, addr, code)
	if err != nil {
		return res, err
	}

	err = c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentHDR, "DDR write", pkg.KeyAddress, addr, pkg.KeyCode, code, "words", len(words))

		nack, err := c.enterHDR(ctx, protocol.CCCEnterHDR0)
		if err != nil || nack {
			res.NACK = nack
			return err
		}
		if err := c.sendDDRCommand(ctx, cmd); err != nil {
			return err
		}

		sent := []uint16{cmd}
		for _, w := range words {
			if err := c.hdrSend(ctx, true); err != nil {
				return err
			}
			reject, err := c.hdrRecv(ctx)
			if err != nil {
				return err
			}
			if reject {
				res.Rejected = true
				pkg.LogInfo(pkg.ComponentHDR, "DDR word rejected", pkg.KeyAddress, addr, "index", res.Accepted)
				break
			}
			if err := c.hdrSendBits(ctx, uint64(w), 16); err != nil {
				return err
			}
			if err := c.hdrSendBits(ctx, uint64(protocol.WordParity(w)), 4); err != nil {
				return err
			}
			sent = append(sent, w)
			res.Accepted++
		}

		if !res.Rejected || h.crcOnReject {
			if err := c.sendDDRCRC(ctx, sent); err != nil {
				return err
			}
		}
		return c.exitHDR(ctx)
	})
	return res, err
}

// sendDDRCRC sends preamble 01, the CRC token, the CRC-5 and a stop bit.
func (c *Controller) sendDDRCRC(ctx context.Context, words []uint16) error {
	crc := protocol.CRC5(protocol.WordsToBytes(words))
	if err := c.hdrSendBits(ctx, 0b01, 2); err != nil {
		return err
	}
	if err := c.hdrSendBits(ctx, uint64(protocol.CRCToken), 4); err != nil {
		return err
	}
	if err := c.hdrSendBits(ctx, uint64(crc), 5); err != nil {
		return err
	}
	return c.hdrSend(ctx, true)
}

// DDRRead reads 16-bit words in HDR-DDR mode. maxWords bounds the words
// requested; 0 reads until the target sends its CRC. code is the 7-bit
// command code; the read bit is set here.
func (c *Controller) DDRRead(ctx context.Context, addr, code uint8, maxWords int) (DDRReadResult, error) {
	var res DDRReadResult

	cmd, err := ddrCommand(true, addr, code)
	if err != nil {
		return res, err
	}

	err = c.withBus(ctx, func() error {
		pkg.LogDebug(pkg.ComponentHDR, "DDR read", pkg.KeyAddress, addr, pkg.KeyCode, code, "max", maxWords)

		nack, err := c.enterHDR(ctx, protocol.CCCEnterHDR0)
		if err != nil || nack {
			res.NACK = nack
			return err
		}
		if err := c.sendDDRCommand(ctx, cmd); err != nil {
			return err
		}

		received := []uint16{cmd}
		for {
			more := !res.ParityError && (maxWords == 0 || len(received)-1 < maxWords)
			if err := c.hdrSend(ctx, more); err != nil {
				return err
			}
			crcFollows, err := c.hdrRecv(ctx)
			if err != nil {
				return err
			}
			if crcFollows {
				break
			}
			v, err := c.hdrRecvBits(ctx, 20)
			if err != nil {
				return err
			}
			w, parity := uint16(v>>4), uint8(v&0xF)
			if parity != protocol.WordParity(w) {
				res.ParityError = true
				pkg.LogWarn(pkg.ComponentHDR, "DDR word parity error", "word", w)
			}
			received = append(received, w)
		}

		v, err := c.hdrRecvBits(ctx, 10)
		if err != nil {
			return err
		}
		token, crc, stop := uint8(v>>6), uint8(v>>1)&0x1F, v&1 != 0
		res.CRCValid = token == protocol.CRCToken && stop &&
			crc == protocol.CRC5(protocol.WordsToBytes(received))
		res.Data = protocol.WordsToBytes(received[1:])
		if !res.CRCValid {
			pkg.LogWarn(pkg.ComponentHDR, "DDR read CRC mismatch", "token", token, "crc", crc)
		}
		return c.exitHDR(ctx)
	})
	return res, err
}
