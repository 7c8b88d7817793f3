// services/hal/internal/halcore/types.go
package halcore

import (
	"context"

	"tinygo.org/x/drivers"
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// PinFactory supplies GPIO pins by the platform's number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// ---- Analogue in ----

// ADC reads one channel as a 12-bit value (0..4095).
type ADC interface {
	Read() (uint16, error)
}

type ADCFactory interface {
	ByPin(n int) (ADC, bool)
}

// ---- PWM out ----

// PWM drives one output with an 8-bit duty (0 = off, 255 = full).
type PWM interface {
	Set(duty uint8) error
	Duty() uint8
}

type PWMFactory interface {
	ByPin(n int) (PWM, bool)
}

// ---- Power ----

// Sleeper puts the MCU into its lowest power state until woken. Platforms
// without one return immediately.
type Sleeper interface {
	Sleep(ctx context.Context) error
}

// Refresher is implemented by displays with distinct full and partial
// refresh modes (e-paper).
type Refresher interface {
	SetFullRefresh(full bool)
}

// Platform bundles what one build target provides. Display may be nil.
type Platform struct {
	Name    string
	Pins    PinFactory
	ADCs    ADCFactory
	PWMs    PWMFactory
	Display drivers.Displayer
	Sleeper Sleeper
}
