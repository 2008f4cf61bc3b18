package recovery

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/ardnew/softi3c/controller"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Adapter issues recovery commands through a controller. Every frame
// carries a PEC computed over the address header and the frame bytes.
type Adapter struct {
	c *controller.Controller
}

// New returns an adapter driving c.
func New(c *controller.Controller) *Adapter {
	return &Adapter{c: c}
}

// Option modifies a single recovery command.
type Option func(*options)

type options struct {
	badPEC bool
}

// WithPECError replaces the outgoing PEC with a random wrong value.
func WithPECError() Option {
	return func(o *options) { o.badPEC = true }
}

func (o options) pec(correct byte) byte {
	if !o.badPEC {
		return correct
	}
	return CorruptPEC(correct)
}

// CorruptPEC returns a uniformly random byte different from pec.
func CorruptPEC(pec byte) byte {
	r := byte(rand.IntN(255))
	if r >= pec {
		r++
	}
	return r
}

// ReadResult is the response to a recovery read command.
type ReadResult struct {
	Data     []byte
	Length   int  // Length announced by the target
	PEC      byte // PEC received from the target
	PECValid bool
}

// CommandWrite sends cmd with data as one private write.
func (a *Adapter) CommandWrite(ctx context.Context, addr uint8, cmd Command, data []byte, opts ...Option) (controller.WriteResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(data) > MaxPayload {
		return controller.WriteResult{}, fmt.Errorf("recovery payload of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}

	f := frame(cmd, data)
	f = append(f, o.pec(protocol.PEC(addr, false, f)))
	pkg.LogDebug(pkg.ComponentRecovery, "command write",
		pkg.KeyAddress, addr,
		"command", cmd,
		"len", len(data),
		"pec", f[len(f)-1])

	res, err := a.c.PrivateWrite(ctx, addr, f)
	if err == nil && res.NACK {
		pkg.LogInfo(pkg.ComponentRecovery, "command write NACKed", pkg.KeyAddress, addr, "command", cmd)
	}
	return res, err
}

// CommandRead sends the read request for cmd and receives the response.
// A PEC mismatch is reported in the result; framing faults are returned
// as a *pkg.RecoveryError.
func (a *Adapter) CommandRead(ctx context.Context, addr uint8, cmd Command, opts ...Option) (ReadResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var res ReadResult

	if err := a.c.TakeBusControl(ctx); err != nil {
		return res, err
	}
	defer a.c.GiveBusControl()

	req := []byte{byte(cmd)}
	req = append(req, o.pec(protocol.PEC(addr, false, req)))
	pkg.LogDebug(pkg.ComponentRecovery, "command read", pkg.KeyAddress, addr, "command", cmd, "pec", req[1])

	wr, err := a.c.PrivateWrite(ctx, addr, req, controller.NoStop())
	if err != nil {
		return res, err
	}
	if wr.NACK {
		return res, a.abort(ctx, "request", pkg.ErrNACK)
	}

	if err := a.c.SendStart(ctx); err != nil {
		return res, err
	}
	nack, err := a.c.WriteAddrHeader(ctx, addr, true)
	if err != nil {
		return res, err
	}
	if nack {
		return res, a.abort(ctx, "response header", pkg.ErrNACK)
	}

	var head [2]byte
	for i := range head {
		b, eod, err := a.c.RecvByteTbit(ctx, false)
		if err != nil {
			return res, err
		}
		head[i] = b
		if eod {
			return res, a.abort(ctx, "length", pkg.ErrPrematureEnd)
		}
	}
	res.Length = int(head[0]) | int(head[1])<<8

	for i := 0; i < res.Length; i++ {
		b, eod, err := a.c.RecvByteTbit(ctx, false)
		if err != nil {
			return res, err
		}
		res.Data = append(res.Data, b)
		if eod {
			pkg.LogWarn(pkg.ComponentRecovery, "short response",
				pkg.KeyAddress, addr,
				"command", cmd,
				"length", res.Length,
				"received", len(res.Data))
			return res, a.c.SendStop(ctx)
		}
	}

	pec, eod, err := a.c.RecvByteTbit(ctx, true)
	if err != nil {
		return res, err
	}
	if !eod {
		return res, a.abort(ctx, "pec", pkg.ErrUnexpectedData)
	}
	res.PEC = pec
	res.PECValid = pec == protocol.PEC(addr, true, append(head[:], res.Data...))
	if !res.PECValid {
		pkg.LogWarn(pkg.ComponentRecovery, "response PEC mismatch", pkg.KeyAddress, addr, "command", cmd, "pec", pec)
	}
	return res, a.c.SendStop(ctx)
}

// abort stops the bus and reports a failed stage.
func (a *Adapter) abort(ctx context.Context, stage string, cause error) error {
	if err := a.c.SendStop(ctx); err != nil {
		return err
	}
	return &pkg.RecoveryError{Stage: stage, Err: cause}
}
