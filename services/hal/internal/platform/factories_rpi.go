// services/hal/internal/platform/factories_rpi.go
//go:build rpi && !(rp2040 || rp2350)

package platform

import (
	"context"
	"sync"

	"github.com/stianeikeland/go-rpio"

	"plantcode-go/services/hal/internal/halcore"
)

var (
	rpioOnce sync.Once
	rpioErr  error
)

func openRPIO() error {
	rpioOnce.Do(func() { rpioErr = rpio.Open() })
	return rpioErr
}

// Default maps BCM GPIO numbers through /dev/gpiomem. The Pi has no ADC, so
// analogue reads fail with errcode.Unsupported. If the GPIO memory cannot be
// mapped every factory reports pins as unavailable.
func Default() halcore.Platform {
	ok := openRPIO() == nil
	return halcore.Platform{
		Name:    "rpi",
		Pins:    rpiPinFactory{ok: ok},
		ADCs:    rpiADCFactory{},
		PWMs:    rpiPWMFactory{ok: ok},
		Sleeper: rpiSleeper{},
	}
}

// ---- GPIO ----

type rpiPinFactory struct{ ok bool }

func (f rpiPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	if !f.ok || n < 0 || n > 27 {
		return nil, false
	}
	return &rpiPin{p: rpio.Pin(n), n: n}, true
}

type rpiPin struct {
	p rpio.Pin
	n int
}

func (r *rpiPin) ConfigureInput(pull halcore.Pull) error {
	r.p.Input()
	switch pull {
	case halcore.PullUp:
		r.p.PullUp()
	case halcore.PullDown:
		r.p.PullDown()
	default:
		r.p.PullOff()
	}
	return nil
}

func (r *rpiPin) ConfigureOutput(initial bool) error {
	r.p.Output()
	r.Set(initial)
	return nil
}

func (r *rpiPin) Set(level bool) {
	if level {
		r.p.High()
	} else {
		r.p.Low()
	}
}

func (r *rpiPin) Get() bool   { return r.p.Read() == rpio.High }
func (r *rpiPin) Toggle()     { r.p.Toggle() }
func (r *rpiPin) Number() int { return r.n }

// ---- ADC ----

type rpiADCFactory struct{}

func (rpiADCFactory) ByPin(int) (halcore.ADC, bool) { return unsupportedADC{}, true }

type unsupportedADC struct{}

func (unsupportedADC) Read() (uint16, error) { return 0, errADCUnsupported }

// ---- PWM ----

type rpiPWMFactory struct{ ok bool }

// ByPin accepts the hardware PWM pins (BCM 12, 13, 18, 19).
func (f rpiPWMFactory) ByPin(n int) (halcore.PWM, bool) {
	switch n {
	case 12, 13, 18, 19:
	default:
		return nil, false
	}
	if !f.ok {
		return nil, false
	}
	p := rpio.Pin(n)
	p.Mode(rpio.Pwm)
	// 255 steps per period at 1 kHz
	p.Freq(255 * 1000)
	p.DutyCycle(0, 255)
	return &rpiPWM{p: p}, true
}

type rpiPWM struct {
	p    rpio.Pin
	duty uint8
}

func (r *rpiPWM) Set(duty uint8) error {
	r.duty = duty
	r.p.DutyCycle(uint32(duty), 255)
	return nil
}

func (r *rpiPWM) Duty() uint8 { return r.duty }

// ---- Sleep ----

type rpiSleeper struct{}

func (rpiSleeper) Sleep(context.Context) error { return nil }
