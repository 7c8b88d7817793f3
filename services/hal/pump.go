package hal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/errcode"
	"plantcode-go/services/hal/internal/halcore"
	"plantcode-go/types"
	"plantcode-go/x/ramp"
)

// Pump drives the pump PWM behind the 12 V boost gate. A run is owned by
// one goroutine: gate on, settle, soft-start ramp, hold, then everything
// off again.
type Pump struct {
	pwm       halcore.PWM
	gates     *PowerGates
	clock     clockwork.Clock
	log       *slog.Logger
	settle    time.Duration
	rampTime  time.Duration
	rampSteps int

	mu      sync.Mutex
	running bool
	runs    int
	stop    chan struct{}
	done    chan struct{}
	watch   func()
}

// StartTimed begins a run and returns immediately.
func (p *Pump) StartTimed(power uint8, d time.Duration) error {
	_, err := p.start(power, d)
	return err
}

// Run is the blocking form of StartTimed. Cancelling ctx stops the pump.
func (p *Pump) Run(ctx context.Context, power uint8, d time.Duration) error {
	done, err := p.start(power, d)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

func (p *Pump) start(power uint8, d time.Duration) (<-chan struct{}, error) {
	if d <= 0 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "pump.start", Msg: "duration must be positive"}
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, &errcode.E{C: errcode.PumpBusy, Op: "pump.start", Msg: "pump already running"}
	}
	p.running = true
	p.runs++
	stop, done := make(chan struct{}), make(chan struct{})
	p.stop, p.done = stop, done
	fn := p.watch
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
	p.log.Info("pump start", "power", power, "duration", d)
	go p.run(power, d, stop, done)
	return done, nil
}

func (p *Pump) run(power uint8, d time.Duration, stop, done chan struct{}) {
	defer close(done)
	defer p.off()

	wait := func(d time.Duration) bool {
		if d <= 0 {
			return true
		}
		select {
		case <-p.clock.After(d):
			return true
		case <-stop:
			return false
		}
	}

	p.gates.Set(GatePump, true)
	if !wait(p.settle) {
		return
	}
	start := p.clock.Now()
	set := func(l uint8) {
		if err := p.pwm.Set(l); err != nil {
			p.log.Warn("pump pwm ramp failed", "level", l, "err", err)
		}
	}
	if !ramp.Linear(0, power, p.rampTime, p.rampSteps, wait, set) {
		return
	}
	wait(d - p.clock.Since(start))
}

func (p *Pump) off() {
	if err := p.pwm.Set(0); err != nil {
		p.log.Warn("pump pwm off failed", "err", err)
	}
	p.gates.Set(GatePump, false)
	p.mu.Lock()
	p.running = false
	fn := p.watch
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
	p.log.Info("pump stop")
}

func (p *Pump) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop ends the current run and waits for the outputs to be off.
func (p *Pump) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stop, done := p.stop, p.done
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	<-done
}

func (p *Pump) Status() types.PumpStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.PumpStatus{Running: p.running, Duty: p.pwm.Duty(), Runs: p.runs}
}

func (p *Pump) onChange(fn func()) {
	p.mu.Lock()
	p.watch = fn
	p.mu.Unlock()
}
