package sim

import (
	"container/heap"
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
)

// Errors.
var (
	// ErrStopped is returned from waits once the simulation is shutting down.
	ErrStopped = errors.New("simulation stopped")

	// ErrDeadlock indicates every task is waiting on an edge that cannot occur.
	ErrDeadlock = errors.New("simulation deadlocked")

	// ErrTimeLimit indicates the configured time limit was reached.
	ErrTimeLimit = errors.New("simulation time limit reached")

	// ErrNotInTask indicates a blocking call with a context not issued by the simulator.
	ErrNotInTask = errors.New("context not bound to a simulation task")

	// ErrAlreadyRun indicates Run was called twice.
	ErrAlreadyRun = errors.New("simulation already run")
)

// Config holds simulator settings.
type Config struct {
	// TimeLimit aborts the run when the timeline would pass it (0 = none).
	TimeLimit bus.Time

	// Trace records every resolved line change.
	Trace bool
}

// Option configures a Sim.
type Option func(*Config)

// WithTimeLimit bounds the simulated timeline.
func WithTimeLimit(t bus.Time) Option {
	return func(c *Config) {
		c.TimeLimit = t
	}
}

// WithTrace enables trace recording, see [Sim.Trace].
func WithTrace() Option {
	return func(c *Config) {
		c.Trace = true
	}
}

type taskKey struct{}

type result struct {
	index int
	err   error
}

type task struct {
	name   string
	main   bool
	ctx    context.Context
	wake   chan result
	parked *pending
	done   bool
}

// pending is one suspension of a task. It may sit in the waiter list, the
// timer heap, or both; whichever resolves it first wins.
type pending struct {
	task  *task
	edges []bus.Edge
	at    bus.Time
	seq   uint64
	fired bool
	res   result
}

// Sim is a cooperative discrete-event simulation of a two-wire open-drain bus.
//
// Exactly one task runs at any moment. A task runs until it suspends in
// Delay or WaitEdge, so everything it does between two suspensions happens
// at a single instant. Line changes made by a running task wake matching
// waiters immediately, but they only run once the current task suspends.
type Sim struct {
	cfg Config

	now   bus.Time
	level [2]bool
	ports []*Port

	timers  timerHeap
	ready   []*pending
	waiters []*pending
	seq     uint64

	yield    chan struct{}
	tasks    []*task
	ran      bool
	stopping bool
	failure  error
	mainDone bool
	mainErr  error

	trace []Sample
}

// New creates a simulator with both lines released.
func New(opts ...Option) *Sim {
	s := &Sim{
		level: [2]bool{true, true},
		yield: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// Port attaches a new device to the bus. Its drivers start released.
func (s *Sim) Port(name string) *Port {
	p := &Port{sim: s, name: name, drive: [2]bool{true, true}}
	s.ports = append(s.ports, p)
	return p
}

// Now returns the current simulated time.
func (s *Sim) Now() bus.Time {
	return s.now
}

// Level returns the resolved level of l.
func (s *Sim) Level(l bus.Line) bool {
	return s.level[l]
}

// Trace returns the recorded line changes. It is empty unless WithTrace was given.
func (s *Sim) Trace() []Sample {
	return s.trace
}

// Live returns the names of the tasks that have not returned.
func (s *Sim) Live() []string {
	var names []string
	for _, t := range s.tasks {
		if !t.done {
			names = append(names, t.name)
		}
	}
	return names
}

// Run executes main as the root task and drives the timeline until main
// returns. Background tasks started with Go are stopped afterwards. A
// background task returning an error other than a stop aborts the run
// with that error.
func (s *Sim) Run(ctx context.Context, main func(ctx context.Context) error) error {
	if s.ran {
		return ErrAlreadyRun
	}
	s.ran = true

	s.spawn(ctx, "main", main, true)
	err := s.loop(ctx)
	s.shutdown()

	if err != nil {
		return err
	}
	return s.mainErr
}

func (s *Sim) loop(ctx context.Context) error {
	for !s.mainDone {
		if s.failure != nil {
			return s.failure
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(s.ready) > 0 {
			pd := s.ready[0]
			s.ready[0] = nil
			s.ready = s.ready[1:]
			s.resume(pd)
			s.wakeCanceled()
			continue
		}
		pd := s.nextTimer()
		if pd == nil {
			return fmt.Errorf("%w at %v", ErrDeadlock, s.now)
		}
		if s.cfg.TimeLimit > 0 && pd.at > s.cfg.TimeLimit {
			return fmt.Errorf("%w (%v)", ErrTimeLimit, s.cfg.TimeLimit)
		}
		s.now = pd.at
		s.fire(pd, result{index: -1})
	}
	return s.failure
}

// shutdown wakes every live task with ErrStopped until all have returned.
// Waits issued while stopping fail immediately, so each task runs to
// completion once resumed.
func (s *Sim) shutdown() {
	s.stopping = true
	for {
		var live *task
		for _, t := range s.tasks {
			if !t.done {
				live = t
				break
			}
		}
		if live == nil {
			break
		}
		s.resume(&pending{task: live, res: result{err: ErrStopped}})
	}
	s.tasks = nil
	s.ready = nil
	s.waiters = nil
	s.timers = nil
}

func (s *Sim) spawn(parent context.Context, name string, fn func(ctx context.Context) error, main bool) {
	if s.stopping {
		return
	}
	t := &task{name: name, main: main, wake: make(chan result)}
	ctx := context.WithValue(parent, taskKey{}, t)
	t.ctx = ctx
	s.tasks = append(s.tasks, t)

	pd := &pending{task: t}
	t.parked = pd
	s.fire(pd, result{})

	go func() {
		r := <-t.wake
		err := r.err
		if err == nil {
			err = fn(ctx)
		}
		s.finish(t, err)
	}()
	pkg.LogDebug(pkg.ComponentSim, "task spawned", "task", name, pkg.KeyTime, s.now)
}

func (s *Sim) finish(t *task, err error) {
	t.done = true
	switch {
	case t.main:
		s.mainDone = true
		s.mainErr = err
	case err != nil && !s.stopping && s.failure == nil &&
		!errors.Is(err, ErrStopped) && !errors.Is(err, context.Canceled):
		s.failure = fmt.Errorf("%s: %w", t.name, err)
		pkg.LogError(pkg.ComponentSim, "task failed", "task", t.name, pkg.KeyTime, s.now, "err", err)
	}
	s.yield <- struct{}{}
}

// wakeCanceled resumes every parked task whose context was canceled with
// the context's error.
func (s *Sim) wakeCanceled() {
	for _, t := range s.tasks {
		if t.done || t.parked == nil || t.parked.fired {
			continue
		}
		if err := t.ctx.Err(); err != nil {
			s.fire(t.parked, result{index: -1, err: err})
		}
	}
}

// resume hands the baton to a parked task and waits for it to park again
// or finish.
func (s *Sim) resume(pd *pending) {
	t := pd.task
	if t.done {
		return
	}
	t.parked = nil
	t.wake <- pd.res
	<-s.yield
}

// park suspends the calling task until pd fires.
func (s *Sim) park(pd *pending) (int, error) {
	t := pd.task
	t.parked = pd
	s.yield <- struct{}{}
	r := <-t.wake
	return r.index, r.err
}

func (s *Sim) fire(pd *pending, r result) {
	if pd.fired {
		return
	}
	pd.fired = true
	pd.res = r
	s.ready = append(s.ready, pd)
}

func (s *Sim) schedule(pd *pending, at bus.Time) {
	s.seq++
	pd.at = at
	pd.seq = s.seq
	heap.Push(&s.timers, pd)
}

func (s *Sim) nextTimer() *pending {
	for s.timers.Len() > 0 {
		pd := heap.Pop(&s.timers).(*pending)
		if !pd.fired {
			return pd
		}
	}
	return nil
}

func (s *Sim) current(ctx context.Context) (*task, error) {
	t, ok := ctx.Value(taskKey{}).(*task)
	if !ok {
		return nil, ErrNotInTask
	}
	if s.stopping {
		return nil, ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Sim) delay(ctx context.Context, d bus.Time) error {
	t, err := s.current(ctx)
	if err != nil {
		return err
	}
	pd := &pending{task: t}
	if d <= 0 {
		s.fire(pd, result{})
	} else {
		s.schedule(pd, s.now+d)
	}
	_, err = s.park(pd)
	return err
}

func (s *Sim) waitEdge(ctx context.Context, timeout bus.Time, edges []bus.Edge) (int, error) {
	t, err := s.current(ctx)
	if err != nil {
		return -1, err
	}
	pd := &pending{task: t, edges: edges}
	if len(edges) > 0 {
		s.waiters = append(s.waiters, pd)
	}
	if timeout > 0 {
		s.schedule(pd, s.now+timeout)
	}
	return s.park(pd)
}

// resolve recomputes the wired-AND level of l and notifies waiters on change.
func (s *Sim) resolve(l bus.Line) {
	level := true
	for _, p := range s.ports {
		level = level && p.drive[l]
	}
	if level == s.level[l] {
		return
	}
	s.level[l] = level
	if s.cfg.Trace {
		s.trace = append(s.trace, Sample{At: s.now, SDA: s.level[bus.SDA], SCL: s.level[bus.SCL]})
	}

	kept := s.waiters[:0]
	for _, pd := range s.waiters {
		if pd.fired {
			continue
		}
		if i := matchEdge(pd.edges, l, level); i >= 0 {
			s.fire(pd, result{index: i})
			continue
		}
		kept = append(kept, pd)
	}
	for i := len(kept); i < len(s.waiters); i++ {
		s.waiters[i] = nil
	}
	s.waiters = kept
}

func matchEdge(edges []bus.Edge, l bus.Line, high bool) int {
	for i, e := range edges {
		if e.Matches(l, high) {
			return i
		}
	}
	return -1
}

// timerHeap orders suspensions by wake time, then by scheduling order.
type timerHeap []*pending

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(*pending)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	pd := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return pd
}

// Port is one device's attachment to a Sim. It implements [bus.Wires].
type Port struct {
	sim   *Sim
	name  string
	drive [2]bool
}

var _ bus.Wires = (*Port)(nil)

// Name returns the port name given to Sim.Port.
func (p *Port) Name() string { return p.name }

// Get returns the resolved level of l.
func (p *Port) Get(l bus.Line) bool { return p.sim.level[l] }

// Set drives l low or releases it.
func (p *Port) Set(l bus.Line, high bool) {
	if p.drive[l] == high {
		return
	}
	p.drive[l] = high
	p.sim.resolve(l)
}

// Now returns the current simulated time.
func (p *Port) Now() bus.Time { return p.sim.now }

// Delay suspends the calling task for d.
func (p *Port) Delay(ctx context.Context, d bus.Time) error {
	return p.sim.delay(ctx, d)
}

// WaitEdge suspends the calling task until one of edges occurs or timeout elapses.
func (p *Port) WaitEdge(ctx context.Context, timeout bus.Time, edges ...bus.Edge) (int, error) {
	return p.sim.waitEdge(ctx, timeout, edges)
}

// Go starts fn as a background task.
func (p *Port) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	p.sim.spawn(ctx, p.name+"/"+name, fn, false)
}
