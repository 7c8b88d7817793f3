// Package modectl owns the top-level operating mode. It debounces the panel
// selector and runs the exit and enter hooks of the modes it switches between.
package modectl

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/types"
)

const (
	Debounce   = 50 * time.Millisecond
	LoopPeriod = 10 * time.Millisecond
)

var TopicMode = bus.T("state", "mode")

// Mode is the behaviour bound to one SystemMode.
type Mode interface {
	Enter(ctx context.Context)
	Exit(ctx context.Context)
	Tick(ctx context.Context)
}

// Hooks adapts plain functions to Mode. Nil fields are skipped.
type Hooks struct {
	OnEnter func(ctx context.Context)
	OnExit  func(ctx context.Context)
	OnTick  func(ctx context.Context)
}

func (h Hooks) Enter(ctx context.Context) {
	if h.OnEnter != nil {
		h.OnEnter(ctx)
	}
}

func (h Hooks) Exit(ctx context.Context) {
	if h.OnExit != nil {
		h.OnExit(ctx)
	}
}

func (h Hooks) Tick(ctx context.Context) {
	if h.OnTick != nil {
		h.OnTick(ctx)
	}
}

// Reader supplies raw selector positions.
type Reader interface {
	Read() types.SystemMode
}

// Ticker is the per-pass input work run ahead of the controller, normally
// the input manager's button classifier.
type Ticker interface {
	Tick()
}

type Config struct {
	Clock    clockwork.Clock
	Debounce time.Duration
	Period   time.Duration
	Logger   *slog.Logger
	// Conn, when set, receives a retained state/mode message on each commit.
	Conn *bus.Connection
	// Input is ticked before the controller on every Run pass.
	Input Ticker
}

type Controller struct {
	sel   Reader
	cfg   Config
	log   *slog.Logger
	modes map[types.SystemMode]Mode

	current   types.SystemMode
	candidate types.SystemMode
	since     time.Time
	commits   int

	jobs chan func()
}

func New(sel Reader, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = Debounce
	}
	if cfg.Period <= 0 {
		cfg.Period = LoopPeriod
	}
	return &Controller{
		sel:   sel,
		cfg:   cfg,
		log:   cfg.Logger.With("svc", "modectl"),
		modes: make(map[types.SystemMode]Mode),
		jobs:  make(chan func()),
	}
}

// Register binds m to mode, replacing any earlier binding. Register before Run.
func (c *Controller) Register(mode types.SystemMode, m Mode) {
	c.modes[mode] = m
}

// Current is the last committed mode; ModeUnknown until the first commit.
func (c *Controller) Current() types.SystemMode { return c.current }

// Commits counts committed mode changes.
func (c *Controller) Commits() int { return c.commits }

// Tick samples the selector once, commits a stable change and then runs the
// current mode's per-tick work.
func (c *Controller) Tick(ctx context.Context) {
	now := c.cfg.Clock.Now()
	raw := c.sel.Read()

	if raw != c.candidate {
		c.candidate = raw
		c.since = now
	} else if raw != types.ModeUnknown && raw != c.current && now.Sub(c.since) >= c.cfg.Debounce {
		c.commit(ctx, raw, now)
	}

	if m := c.modes[c.current]; m != nil {
		m.Tick(ctx)
	}
}

func (c *Controller) commit(ctx context.Context, next types.SystemMode, now time.Time) {
	prev := c.current
	c.log.Info("mode change", "from", prev, "to", next)
	if m := c.modes[prev]; m != nil {
		m.Exit(ctx)
	}
	c.current = next
	c.commits++
	if m := c.modes[next]; m != nil {
		m.Enter(ctx)
	}
	if c.cfg.Conn != nil {
		c.cfg.Conn.Publish(c.cfg.Conn.NewMessage(TopicMode, types.ModeValue{
			Mode:     next.String(),
			Previous: prev.String(),
			TS:       now.UnixMilli(),
		}, true))
	}
}

// Run drives the main loop until ctx is cancelled. The current mode is
// exited on the way out.
func (c *Controller) Run(ctx context.Context) error {
	tick := c.cfg.Clock.NewTicker(c.cfg.Period)
	defer tick.Stop()
	c.log.Info("main loop started", "period", c.cfg.Period)
	for {
		select {
		case <-ctx.Done():
			if m := c.modes[c.current]; m != nil {
				// hooks get a live context for their cleanup
				m.Exit(context.WithoutCancel(ctx))
			}
			c.log.Info("main loop stopped", "mode", c.current)
			return ctx.Err()
		case job := <-c.jobs:
			job()
		case <-tick.Chan():
			if c.cfg.Input != nil {
				c.cfg.Input.Tick()
			}
			c.Tick(ctx)
		}
	}
}

// Do runs fn on the loop goroutine between two passes and waits for it to
// return. Use it for anything that touches loop-owned state from outside.
func (c *Controller) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case c.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}
