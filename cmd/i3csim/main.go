// Package main provides the i3csim CLI: it runs I3C scenarios between a
// controller and targets on the simulated bus and prints the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/bus/sim"
	"github.com/ardnew/softi3c/controller"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/pkg/prof"
	"github.com/ardnew/softi3c/protocol"
	"github.com/ardnew/softi3c/target"
)

var (
	// ErrInvalidByte indicates a byte argument could not be parsed.
	ErrInvalidByte = errors.New("invalid byte value")

	// ErrInvalidAddress indicates a target address outside 0x01..0x7D.
	ErrInvalidAddress = errors.New("address must be between 0x01 and 0x7D")
)

// Globals are flags shared by every command.
type Globals struct {
	Speed     float64 `help:"SDR clock rate in kHz." default:"12500"`
	Address   string  `short:"a" help:"Target address." default:"0x50"`
	LogLevel  string  `help:"Log level." enum:"debug,info,warn,error" default:"warn"`
	LogFormat string  `help:"Log format." enum:"text,json" default:"text"`
	Trace     bool    `help:"Print the bus conditions decoded from the wire trace."`
	Limit     int     `help:"Simulated time limit in microseconds." default:"10000"`

	CPUProfile  string `name:"cpu-profile" help:"Write a CPU profile (requires -tags profile)." type:"path"`
	HeapProfile string `name:"heap-profile" help:"Write a heap profile after the run (requires -tags profile)." type:"path"`
}

// CLI represents the command-line interface structure.
type CLI struct {
	Globals

	Private  PrivateCmd  `cmd:"" help:"Private write then read."`
	CCC      CCCCmd      `cmd:"" name:"ccc" help:"Send a common command code."`
	IBI      IBICmd      `cmd:"" name:"ibi" help:"Raise an in-band interrupt from the target."`
	Reset    ResetCmd    `cmd:"" help:"Reset targets."`
	HDR      HDRCmd      `cmd:"" name:"hdr" help:"HDR-DDR or HDR-BT write then read."`
	Recovery RecoveryCmd `cmd:"" help:"Recovery command write then read."`
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidByte, s)
	}
	return byte(v), nil
}

func parseBytes(ss []string) ([]byte, error) {
	out := make([]byte, 0, len(ss))
	for _, s := range ss {
		b, err := parseByte(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (g *Globals) address() (uint8, error) {
	a, err := parseByte(g.Address)
	if err != nil {
		return 0, err
	}
	if a == 0 || a >= protocol.ReservedByte {
		return 0, fmt.Errorf("%w: got 0x%02X", ErrInvalidAddress, a)
	}
	return a, nil
}

func (g *Globals) configureLogging() {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	pkg.SetLogLevel(levels[g.LogLevel])
	if g.LogFormat == "json" {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}
}

// bench is one controller and one target on a simulated bus.
type bench struct {
	sim  *sim.Sim
	ctrl *controller.Controller
	tgt  *target.Target
	addr uint8
}

func (g *Globals) bench(bcr protocol.BCR, topts ...target.Option) (*bench, error) {
	g.configureLogging()
	addr, err := g.address()
	if err != nil {
		return nil, err
	}
	opts := []sim.Option{sim.WithTimeLimit(bus.Time(g.Limit) * bus.Microsecond)}
	if g.Trace {
		opts = append(opts, sim.WithTrace())
	}
	s := sim.New(opts...)
	hz := g.Speed * 1e3
	b := &bench{
		sim:  s,
		ctrl: controller.New(s.Port("controller"), controller.WithSpeed(hz)),
		addr: addr,
	}
	topts = append([]target.Option{target.WithSpeed(hz), target.WithBCR(bcr)}, topts...)
	b.tgt = target.New(s.Port("target"), addr, topts...)
	if err := b.ctrl.AddTarget(addr, bcr); err != nil {
		return nil, err
	}
	return b, nil
}

// run starts both engines and runs fn on the bus timeline.
func (b *bench) run(g *Globals, fn func(ctx context.Context) error) error {
	err := b.sim.Run(context.Background(), func(ctx context.Context) error {
		if err := b.ctrl.Start(ctx); err != nil {
			return err
		}
		if err := b.tgt.Start(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
	if g.Trace {
		for _, c := range sim.Decode(b.sim.Trace()) {
			fmt.Printf("  %12v  %v\n", c.At, c.Kind)
		}
	}
	fmt.Printf("Simulated time: %v\n", b.sim.Now())
	return err
}

// profile brackets run with the requested profiles.
func (g *Globals) profile(run func() error) error {
	if (g.CPUProfile != "" || g.HeapProfile != "") && !prof.Enabled() {
		pkg.LogWarn(pkg.ComponentSim, "profiling not compiled in; rebuild with -tags profile")
	}
	if g.CPUProfile != "" {
		if err := prof.StartCPU(g.CPUProfile); err != nil {
			return err
		}
		defer prof.StopCPU()
	}
	if err := run(); err != nil {
		return err
	}
	if g.HeapProfile != "" {
		return prof.Snapshot(prof.ProfileHeap, g.HeapProfile)
	}
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("i3csim"),
		kong.Description("Timing-accurate I3C controller and target simulation."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := cli.Globals.profile(func() error { return ctx.Run() })
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
