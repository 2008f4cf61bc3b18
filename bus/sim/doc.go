// Package sim provides an in-process simulation backend for [bus.Wires].
//
// A [Sim] owns one simulated timeline and the resolved levels of SDA and
// SCL. Each engine attaches through its own [Port]; a line reads high only
// while every port releases it (wired-AND), which models the open-drain
// bus without any analog behavior.
//
// # Scheduling
//
// Tasks are goroutines, but only one of them runs at a time. A task keeps
// running until it blocks in [Port.Delay] or [Port.WaitEdge], so protocol
// code never sees another engine act in the middle of a bit. When several
// tasks are due at the same instant they run in the order they were
// scheduled, which keeps every run deterministic.
//
// # Usage
//
//	s := sim.New(sim.WithTimeLimit(100 * bus.Microsecond))
//	ctl := controller.New(s.Port("controller"))
//	tgt := target.New(s.Port("target"), 0x50)
//
//	err := s.Run(context.Background(), func(ctx context.Context) error {
//	    if err := tgt.Start(ctx); err != nil {
//	        return err
//	    }
//	    _, err := ctl.PrivateWrite(ctx, 0x50, []byte{0xAA, 0xBB})
//	    return err
//	})
//
// Background tasks (monitors, watchers) are stopped when the root task
// returns. A background task that fails with an error other than
// [ErrStopped] aborts the run; the target engine uses this to make
// transition-bit parity violations fatal.
//
// # Tracing
//
// With [WithTrace] every resolved line change is recorded. [Decode] turns
// a trace into START, repeated START and STOP conditions for assertions.
package sim
