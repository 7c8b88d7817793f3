package input

import "plantcode-go/types"

// Pin is the read side of a GPIO input.
type Pin interface {
	Get() bool
}

// Selector reads the 3-position mode switch. Both pins are pulled up, so a
// closed contact reads low.
type Selector struct {
	a, b Pin
}

func NewSelector(a, b Pin) *Selector { return &Selector{a: a, b: b} }

// Read maps the raw pins to a mode without any debouncing.
func (s *Selector) Read() types.SystemMode {
	if s == nil || s.a == nil || s.b == nil {
		return types.ModeUnknown
	}
	switch {
	case !s.a.Get():
		return types.ModeOff
	case !s.b.Get():
		return types.ModeRun
	default:
		return types.ModeInteractive
	}
}
