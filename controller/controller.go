package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Stats counts framing events issued by the controller.
type Stats struct {
	Starts         int // START conditions from a free bus
	RepeatedStarts int // Repeated START conditions
	Stops          int // STOP conditions
	Headers        int // Address header cycles, reserved byte included
	CCCs           int // CCC frames
}

// Controller is an I3C bus controller. It always drives SCL.
//
// Foreground calls must be serialized by the caller and issued from a task
// on the bus timeline. The only background activity is the IBI monitor
// started by Start.
type Controller struct {
	w   bus.Wires
	cfg Config
	t   protocol.Timings

	// Protocol state, owned by whichever of the foreground caller or the
	// IBI monitor holds the bus.
	state protocol.BusState
	hold  bool

	// follow is set while a target drives SCL during an HDR-BT handoff.
	follow bool

	// Ownership handshake with the IBI monitor.
	monitorEnabled atomic.Bool
	monitorIdle    atomic.Bool
	depth          int

	// State
	running bool
	cancel  context.CancelFunc
	mutex   sync.RWMutex

	stats    Stats
	registry registry

	ibiEnabled bool
	pending    *IBI
}

// New creates a controller attached to w and releases both lines.
func New(w bus.Wires, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Controller{
		w:        w,
		cfg:      cfg,
		t:        cfg.Profile.Scale(cfg.Speed),
		registry: newRegistry(),
	}
	c.monitorIdle.Store(true)
	c.monitorEnabled.Store(true)

	w.Set(bus.SDA, true)
	w.Set(bus.SCL, true)

	pkg.LogInfo(pkg.ComponentController, "I3C controller configuration")
	for _, line := range c.t.Report() {
		pkg.LogInfo(pkg.ComponentController, line)
	}
	return c
}

// Start launches the IBI monitor on the bus timeline.
func (c *Controller) Start(ctx context.Context) error {
	c.mutex.Lock()
	if c.running {
		c.mutex.Unlock()
		return pkg.ErrAlreadyRunning
	}
	c.running = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mutex.Unlock()

	c.w.Go(ctx, "ibi-monitor", c.monitorIBI)
	pkg.LogInfo(pkg.ComponentController, "controller started")
	return nil
}

// Stop cancels the IBI monitor. It exits at its current wait, so a
// following Start never runs alongside it.
func (c *Controller) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	c.cancel()
	c.cancel = nil
	c.monitorIdle.Store(true)
	pkg.LogInfo(pkg.ComponentController, "controller stopped")
	return nil
}

// IsRunning returns true if the IBI monitor is running.
func (c *Controller) IsRunning() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.running
}

// State returns the current protocol state.
func (c *Controller) State() protocol.BusState {
	return c.state
}

// Timings returns the scaled timing table in use.
func (c *Controller) Timings() protocol.Timings {
	return c.t
}

// Stats returns a snapshot of the framing counters.
func (c *Controller) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}

// ResetStats zeroes the framing counters.
func (c *Controller) ResetStats() {
	c.mutex.Lock()
	c.stats = Stats{}
	c.mutex.Unlock()
}

func (c *Controller) count(fn func(*Stats)) {
	c.mutex.Lock()
	fn(&c.stats)
	c.mutex.Unlock()
}

func (c *Controller) setState(s protocol.BusState) {
	if s == c.state {
		return
	}
	c.state = s
	if pkg.DebugEnabled() {
		pkg.LogDebug(pkg.ComponentController, "state", pkg.KeyState, s, pkg.KeyTime, c.w.Now())
	}
	if c.cfg.StateObserver != nil {
		c.cfg.StateObserver(s)
	}
}

func (c *Controller) active() bool {
	return c.state != protocol.StateFree
}

// TakeBusControl disables the IBI monitor and blocks until it reports idle.
// Calls nest; only the outermost one waits.
func (c *Controller) TakeBusControl(ctx context.Context) error {
	c.depth++
	if c.depth > 1 {
		return nil
	}
	c.monitorEnabled.Store(false)
	for !c.monitorIdle.Load() {
		if err := c.w.Delay(ctx, c.cfg.PollInterval); err != nil {
			c.GiveBusControl()
			return err
		}
	}
	return nil
}

// GiveBusControl re-enables the IBI monitor once the outermost
// TakeBusControl is matched.
func (c *Controller) GiveBusControl() {
	if c.depth == 0 {
		return
	}
	c.depth--
	if c.depth == 0 {
		c.monitorEnabled.Store(true)
	}
}

// withBus brackets fn with TakeBusControl and GiveBusControl.
func (c *Controller) withBus(ctx context.Context, fn func() error) error {
	if err := c.TakeBusControl(ctx); err != nil {
		return err
	}
	defer c.GiveBusControl()
	return fn()
}
