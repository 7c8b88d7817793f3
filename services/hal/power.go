package hal

import (
	"strings"
	"sync"

	"plantcode-go/errcode"
	"plantcode-go/services/hal/internal/halcore"
	"plantcode-go/types"
)

// Gate is one switched peripheral supply.
type Gate uint8

const (
	GateSensor Gate = iota
	GatePump
	GateScreen
	numGates
)

var gateNames = [numGates]string{"sensor", "pump", "screen"}

func (g Gate) String() string {
	if g < numGates {
		return gateNames[g]
	}
	return "unknown"
}

// ParseGate accepts the gate names used by the harness. "display" is an
// alias for the screen gate.
func ParseGate(s string) (Gate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "display" {
		return GateScreen, nil
	}
	for i, n := range gateNames {
		if n == s {
			return Gate(i), nil
		}
	}
	return 0, &errcode.E{C: errcode.InvalidParams, Op: "power.gate", Msg: "unknown gate " + s}
}

// PowerGates owns the three supply enables. All gates start off.
type PowerGates struct {
	mu    sync.Mutex
	pins  [numGates]halcore.GPIOPin
	on    [numGates]bool
	watch func()
}

func newPowerGates(sensor, pump, screen halcore.GPIOPin) (*PowerGates, error) {
	g := &PowerGates{pins: [numGates]halcore.GPIOPin{sensor, pump, screen}}
	for _, p := range g.pins {
		if err := p.ConfigureOutput(false); err != nil {
			return nil, errcode.Wrap(errcode.Error, "power.init", err)
		}
	}
	return g, nil
}

// Set drives one gate and reports whether its state changed.
func (g *PowerGates) Set(gate Gate, on bool) bool {
	if gate >= numGates {
		return false
	}
	g.mu.Lock()
	if g.on[gate] == on {
		g.mu.Unlock()
		return false
	}
	g.pins[gate].Set(on)
	g.on[gate] = on
	fn := g.watch
	g.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

func (g *PowerGates) On(gate Gate) bool {
	if gate >= numGates {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on[gate]
}

func (g *PowerGates) Status() types.PowerStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return types.PowerStatus{
		Sensor: g.on[GateSensor],
		Pump:   g.on[GatePump],
		Screen: g.on[GateScreen],
	}
}

func (g *PowerGates) AllOff() {
	for i := Gate(0); i < numGates; i++ {
		g.Set(i, false)
	}
}

// onChange registers a single observer, called outside the lock.
func (g *PowerGates) onChange(fn func()) {
	g.mu.Lock()
	g.watch = fn
	g.mu.Unlock()
}
