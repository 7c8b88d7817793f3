// Package input turns encoder and button pin levels into rotation steps and
// gestures.
//
// The encoder is sampled on its own goroutine (Run) and handed over through a
// bounded ring. The button is classified on the caller's loop (Tick), which is
// also the only reader of the gesture flags.
package input

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/types"
	"plantcode-go/x/ring"
	"plantcode-go/x/timex"
)

const (
	QueueSize  = 16
	SampleRate = 1000 // Hz
)

type Pins struct {
	EncoderA Pin
	EncoderB Pin
	Button   Pin
	// ButtonActiveLow inverts the button level (pull-up wiring).
	ButtonActiveLow bool
}

type Config struct {
	Clock      clockwork.Clock
	Timing     ButtonTiming
	Threshold  int
	QueueSize  int
	SampleRate uint32
	Logger     *slog.Logger
}

type Manager struct {
	pins  Pins
	clock clockwork.Clock
	log   *slog.Logger
	rate  uint32

	// sampler side
	dec      *Decoder
	queue    *ring.Ring[int8]
	resetDec atomic.Bool
	acc      atomic.Int32

	// main-loop side
	btn           *Classifier
	clicked       bool
	doubleClicked bool
	longPressed   bool
}

func NewManager(pins Pins, cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = QueueSize
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = SampleRate
	}
	m := &Manager{
		pins:  pins,
		clock: cfg.Clock,
		log:   cfg.Logger.With("svc", "input"),
		rate:  cfg.SampleRate,
		dec:   NewDecoder(cfg.Threshold),
		queue: ring.New[int8](cfg.QueueSize),
		btn:   NewClassifier(cfg.Timing),
	}
	if pins.EncoderA != nil && pins.EncoderB != nil {
		m.dec.Reset(pins.EncoderA.Get(), pins.EncoderB.Get())
	}
	return m
}

// Run samples the encoder until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	tick := m.clock.NewTicker(timex.PeriodFromHz(m.rate))
	defer tick.Stop()
	m.log.Info("encoder sampling started", "hz", m.rate)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("encoder sampling stopped")
			return ctx.Err()
		case <-tick.Chan():
			m.SampleEncoder()
		}
	}
}

// SampleEncoder performs one sampler tick. Only the sampling goroutine may
// call it.
func (m *Manager) SampleEncoder() {
	if m.pins.EncoderA == nil || m.pins.EncoderB == nil {
		return
	}
	a, b := m.pins.EncoderA.Get(), m.pins.EncoderB.Get()
	if m.resetDec.Swap(false) {
		m.dec.Reset(a, b)
		m.queue.Reset()
		m.acc.Store(0)
		return
	}
	if step := m.dec.Sample(a, b); step != 0 {
		m.queue.Push(step)
	}
	m.acc.Store(int32(m.dec.Accumulator()))
}

// Tick samples and classifies the button. Call it once per main-loop pass.
func (m *Manager) Tick() {
	if m.pins.Button == nil {
		return
	}
	lvl := m.pins.Button.Get()
	if m.pins.ButtonActiveLow {
		lvl = !lvl
	}
	switch m.btn.Update(lvl, m.clock.Now()) {
	case Click:
		m.clicked = true
	case DoubleClick:
		m.doubleClicked = true
	case LongPress:
		m.longPressed = true
	}
}

// PollRotation removes one queued rotation step.
func (m *Manager) PollRotation() (int8, bool) { return m.queue.Pop() }

// Rotated exposes the queue's readable edge for consumers that block.
func (m *Manager) Rotated() <-chan struct{} { return m.queue.Readable() }

func (m *Manager) TakeClick() bool {
	v := m.clicked
	m.clicked = false
	return v
}

func (m *Manager) TakeDoubleClick() bool {
	v := m.doubleClicked
	m.doubleClicked = false
	return v
}

func (m *Manager) TakeLongPress() bool {
	v := m.longPressed
	m.longPressed = false
	return v
}

// ClearAll drops queued rotation, the encoder accumulator and every button
// event, including a click still waiting for its double-click window.
func (m *Manager) ClearAll() {
	m.queue.Reset()
	m.resetDec.Store(true)
	m.ClearButtonOnly()
}

// ClearButtonOnly drops button events but keeps queued rotation.
func (m *Manager) ClearButtonOnly() {
	m.clicked = false
	m.doubleClicked = false
	m.longPressed = false
	m.btn.Reset()
}

// Status is a non-consuming snapshot. Mode is left for the caller to fill.
func (m *Manager) Status() types.InputStatus {
	return types.InputStatus{
		Queued:        m.queue.Len(),
		Dropped:       m.queue.Dropped(),
		Accumulator:   int(m.acc.Load()),
		Clicked:       m.clicked,
		DoubleClicked: m.doubleClicked,
		LongPressed:   m.longPressed,
	}
}

// Now exposes the manager's clock so loop owners share one time base.
func (m *Manager) Now() time.Time { return m.clock.Now() }
