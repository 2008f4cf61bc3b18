package main

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/controller"
	"github.com/ardnew/softi3c/protocol"
	"github.com/ardnew/softi3c/recovery"
	"github.com/ardnew/softi3c/target"
)

// PrivateCmd writes bytes to the target and reads them back.
type PrivateCmd struct {
	Data   []string `arg:"" optional:"" help:"Bytes to write." default:"0xAA,0xBB"`
	Read   int      `help:"Bytes to read back (0 reads until the target ends)."`
	Legacy bool     `help:"Use I2C ACK/NACK framing."`
}

// Run executes the private command.
func (c *PrivateCmd) Run(g *Globals) error {
	data, err := parseBytes(c.Data)
	if err != nil {
		return err
	}
	var topts []target.Option
	var xopts []controller.XferOption
	if c.Legacy {
		topts = append(topts, target.WithLegacy())
		xopts = append(xopts, controller.Legacy())
	}
	b, err := g.bench(0, topts...)
	if err != nil {
		return err
	}
	count := c.Read
	if c.Legacy && count == 0 {
		count = len(data)
	}
	return b.run(g, func(ctx context.Context) error {
		wr, err := b.ctrl.PrivateWrite(ctx, b.addr, data, xopts...)
		if err != nil {
			return err
		}
		fmt.Printf("Write: NACK=%v written=%d\n", wr.NACK, wr.Written)
		rd, err := b.ctrl.PrivateRead(ctx, b.addr, count, xopts...)
		if err != nil {
			return err
		}
		fmt.Printf("Read:  NACK=%v data=% X\n", rd.NACK, rd.Data)
		return nil
	})
}

// CCCCmd sends a CCC, directed to the target when the code is above 0x7F.
type CCCCmd struct {
	Code     string   `arg:"" optional:"" help:"Command code." default:"0x0A"`
	Data     []string `help:"Payload bytes." default:"0x00,0x40"`
	Defining string   `help:"Defining byte."`
	Read     int      `help:"Bytes to read for a directed GET."`
}

// Run executes the ccc command.
func (c *CCCCmd) Run(g *Globals) error {
	code, err := parseByte(c.Code)
	if err != nil {
		return err
	}
	data, err := parseBytes(c.Data)
	if err != nil {
		return err
	}
	cmd := controller.CCC{Code: code}
	if c.Defining != "" {
		if cmd.Defining, err = parseByte(c.Defining); err != nil {
			return err
		}
		cmd.HasDefining = true
	}
	b, err := g.bench(0)
	if err != nil {
		return err
	}
	return b.run(g, func(ctx context.Context) error {
		switch {
		case c.Read > 0:
			rd, err := b.ctrl.CCCRead(ctx, cmd, b.addr, c.Read)
			if err != nil {
				return err
			}
			fmt.Printf("%v GET: NACK=%v data=% X\n", cmd, rd.NACK, rd.Data)
		default:
			if protocol.IsBroadcast(code) {
				cmd.Data = data
			} else {
				cmd.Targets = []controller.Directed{{Address: b.addr, Data: data}}
			}
			wr, err := b.ctrl.CCCWrite(ctx, cmd)
			if err != nil {
				return err
			}
			fmt.Printf("%v: NACK=%v written=%d\n", cmd, wr.NACK, wr.Written)
		}
		for _, r := range b.tgt.CCCs() {
			fmt.Printf("Target saw CCC 0x%02X defining=0x%02X data=% X\n", r.Code, r.Defining, r.Data)
		}
		fmt.Printf("Target max read length: %d\n", b.tgt.MaxReadLength())
		return nil
	})
}

// IBICmd raises an IBI from the target.
type IBICmd struct {
	MDB     string   `help:"Mandatory data byte; enables the IBI payload BCR bit."`
	Payload []string `help:"Bytes following the MDB."`
	Disable bool     `help:"Leave IBIs disabled so the controller NACKs."`
}

// Run executes the ibi command.
func (c *IBICmd) Run(g *Globals) error {
	payload, err := parseBytes(c.Payload)
	if err != nil {
		return err
	}
	req := target.IBIRequest{Payload: payload}
	bcr := protocol.BCR(0).With(protocol.BCRIBICapable, true)
	if c.MDB != "" {
		if req.MDB, err = parseByte(c.MDB); err != nil {
			return err
		}
		req.HasMDB = true
		bcr = bcr.With(protocol.BCRIBIPayload, true)
	}
	b, err := g.bench(bcr)
	if err != nil {
		return err
	}
	if !c.Disable {
		b.ctrl.EnableIBI()
	}
	return b.run(g, func(ctx context.Context) error {
		acked, err := b.tgt.SendIBI(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("IBI acknowledged: %v\n", acked)
		if !acked {
			return nil
		}
		ibi, err := b.ctrl.WaitIBI(ctx, 10*bus.Microsecond)
		if err != nil {
			return err
		}
		fmt.Printf("Controller got IBI from 0x%02X mdb=0x%02X payload=% X at %v\n",
			ibi.Address, ibi.MDB, ibi.Payload, ibi.At)
		return nil
	})
}

// ResetCmd issues a target reset.
type ResetCmd struct {
	Kind   string `help:"Reset call shape." enum:"pattern,broadcast,directed" default:"pattern"`
	Action string `help:"RSTACT defining byte." default:"0x01"`
	Query  bool   `help:"Query the reset time first."`
}

// Run executes the reset command.
func (c *ResetCmd) Run(g *Globals) error {
	a, err := parseByte(c.Action)
	if err != nil {
		return err
	}
	action := protocol.ResetAction(a)
	b, err := g.bench(0)
	if err != nil {
		return err
	}
	var req controller.ResetRequest
	switch c.Kind {
	case "broadcast":
		req = controller.BroadcastReset(action)
	case "directed":
		req = controller.DirectedReset([]controller.ResetTarget{{Address: b.addr, Action: action}}, false)
	default:
		req = controller.ResetPattern()
	}
	if c.Query {
		req = req.WithTimeQuery()
	}
	return b.run(g, func(ctx context.Context) error {
		res, err := b.ctrl.TargetReset(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("%v reset: frames=%d times=%v wait=%v\n", req.Kind, res.Frames, res.Times, res.Wait)
		fmt.Printf("Target resets=%d last=%v\n", b.tgt.ResetCount(), b.tgt.LastReset())
		return nil
	})
}

// HDRCmd writes words in an HDR mode and reads them back.
type HDRCmd struct {
	Mode    string   `help:"HDR mode." enum:"ddr,bt" default:"ddr"`
	Data    []string `arg:"" optional:"" help:"Bytes to write (even count)." default:"0x12,0x34,0x56,0x78"`
	Code    string   `help:"HDR-DDR command code." default:"0x01"`
	CRC32   bool     `name:"crc32" help:"Use CRC-32 in HDR-BT."`
	Handoff bool     `help:"Let the target drive SCL for the HDR-BT read."`
}

// Run executes the hdr command.
func (c *HDRCmd) Run(g *Globals) error {
	data, err := parseBytes(c.Data)
	if err != nil {
		return err
	}
	code, err := parseByte(c.Code)
	if err != nil {
		return err
	}
	b, err := g.bench(0)
	if err != nil {
		return err
	}
	var opts []controller.HDROption
	if c.CRC32 {
		opts = append(opts, controller.CRC32())
	}
	return b.run(g, func(ctx context.Context) error {
		if c.Mode == "bt" {
			wr, err := b.ctrl.BTWrite(ctx, b.addr, data, opts...)
			if err != nil {
				return err
			}
			fmt.Printf("BT write: acked=%v verified=%v\n", wr.Acked, wr.Verified)
			if c.Handoff {
				opts = append(opts, controller.Handoff())
			}
			rd, err := b.ctrl.BTRead(ctx, b.addr, len(data)/2, opts...)
			if err != nil {
				return err
			}
			fmt.Printf("BT read: acked=%v crc=%v data=% X\n", rd.Acked, rd.CRCValid, rd.Data)
			return nil
		}
		wr, err := b.ctrl.DDRWrite(ctx, b.addr, code, data, opts...)
		if err != nil {
			return err
		}
		fmt.Printf("DDR write: accepted=%d rejected=%v\n", wr.Accepted, wr.Rejected)
		rd, err := b.ctrl.DDRRead(ctx, b.addr, code, len(data)/2)
		if err != nil {
			return err
		}
		fmt.Printf("DDR read: crc=%v parity_error=%v data=% X\n", rd.CRCValid, rd.ParityError, rd.Data)
		return nil
	})
}

// RecoveryCmd writes a recovery register and reads it back.
type RecoveryCmd struct {
	Command  uint8    `help:"Recovery command code." default:"34"`
	Data     []string `arg:"" optional:"" help:"Register payload." default:"0x24,0x25,0x26"`
	PECError bool     `name:"pec-error" help:"Corrupt the PEC of both commands."`
}

// Run executes the recovery command.
func (c *RecoveryCmd) Run(g *Globals) error {
	data, err := parseBytes(c.Data)
	if err != nil {
		return err
	}
	addr, err := g.address()
	if err != nil {
		return err
	}
	dev := recovery.NewDevice(addr)
	b, err := g.bench(0, target.WithStorage(dev))
	if err != nil {
		return err
	}
	rec := recovery.New(b.ctrl)
	var opts []recovery.Option
	if c.PECError {
		opts = append(opts, recovery.WithPECError())
	}
	cmd := recovery.Command(c.Command)
	return b.run(g, func(ctx context.Context) error {
		if _, err := rec.CommandWrite(ctx, addr, cmd, data, opts...); err != nil {
			return err
		}
		reg, _ := dev.Register(cmd)
		fmt.Printf("%v write: register=% X pec_errors=%d\n", cmd, reg, dev.PECErrors())
		res, err := rec.CommandRead(ctx, addr, cmd, opts...)
		if err != nil {
			return err
		}
		fmt.Printf("%v read: data=% X pec_valid=%v\n", cmd, res.Data, res.PECValid)
		return nil
	})
}
