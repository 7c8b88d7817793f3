package ramp

import (
	"time"

	"plantcode-go/x/mathx"
)

// Step sets the new logical level in [0..top].
type Step func(level uint8)

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Linear drives level from cur to 'to' in equal steps over d. It is
// synchronous: run it from the goroutine that owns the output.
// steps==0 or d<=0 snaps to 'to'. The final level is always set unless
// tick cancels first, in which case Linear reports false.
func Linear(cur, to uint8, d time.Duration, steps int, tick Tick, set Step) bool {
	if steps <= 0 || d <= 0 {
		set(to)
		return true
	}
	stepDur := mathx.Max(d/time.Duration(steps), time.Millisecond)
	delta := int(to) - int(cur)
	for i := 1; i < steps; i++ {
		if !tick(stepDur) {
			return false
		}
		lvl := int(cur) + delta*i/steps
		set(uint8(mathx.Clamp(lvl, 0, 255)))
	}
	if !tick(stepDur) {
		return false
	}
	set(to)
	return true
}
