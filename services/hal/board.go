// Package hal is the hardware layer of the device: input pins, the soil and
// battery sensors, the pump, the supply gates and the display, all built
// on one platform (host fakes, RP2040/RP2350 or Raspberry Pi).
package hal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"tinygo.org/x/drivers"

	"plantcode-go/errcode"
	"plantcode-go/services/hal/internal/halcore"
	"plantcode-go/services/hal/internal/platform"
)

// Pins maps board functions to platform pin numbers.
type Pins struct {
	EncoderA   int
	EncoderB   int
	EncoderSW  int
	ModeA      int
	ModeB      int
	Pump       int
	GateSensor int
	GatePump   int
	GateScreen int
	Soil       int
	Battery    int
}

// DefaultPins is the prototype board wiring.
var DefaultPins = Pins{
	EncoderA:   1,
	EncoderB:   2,
	EncoderSW:  21,
	ModeA:      5,
	ModeB:      6,
	Pump:       12,
	GateSensor: 10,
	GatePump:   9,
	GateScreen: 11,
	Soil:       4,
	Battery:    7,
}

// PicoPins is the Raspberry Pi Pico carrier wiring. The ADC inputs must be
// on GP26..GP29.
var PicoPins = Pins{
	EncoderA:   2,
	EncoderB:   3,
	EncoderSW:  4,
	ModeA:      5,
	ModeB:      6,
	Pump:       16,
	GateSensor: 18,
	GatePump:   17,
	GateScreen: 19,
	Soil:       26,
	Battery:    27,
}

type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger

	// Zero picks the default, a negative value disables the wait.
	SoilSettle  time.Duration
	SoilSamples int

	BatteryRef   float32 // ADC reference volts
	BatteryRatio float32 // divider ratio

	// Zero picks the default, a negative value disables.
	PumpSettle time.Duration
	RampTime   time.Duration
	RampSteps  int
}

const (
	defaultSoilSettle   = 200 * time.Millisecond
	defaultSoilSamples  = 4
	defaultBatteryRef   = 3.3
	defaultBatteryRatio = 2.0
	defaultPumpSettle   = 50 * time.Millisecond
	defaultRampTime     = 300 * time.Millisecond
	defaultRampSteps    = 10
)

func orDefault[T ~int | ~int64](v, def T) T {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}

func (o *Options) withDefaults() {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.SoilSettle = orDefault(o.SoilSettle, defaultSoilSettle)
	if o.SoilSamples <= 0 {
		o.SoilSamples = defaultSoilSamples
	}
	if o.BatteryRef <= 0 {
		o.BatteryRef = defaultBatteryRef
	}
	if o.BatteryRatio <= 0 {
		o.BatteryRatio = defaultBatteryRatio
	}
	o.PumpSettle = orDefault(o.PumpSettle, defaultPumpSettle)
	o.RampTime = orDefault(o.RampTime, defaultRampTime)
	o.RampSteps = orDefault(o.RampSteps, defaultRampSteps)
}

// Board is the opened hardware. Input pins are configured pulled up.
type Board struct {
	Name string

	EncoderA halcore.GPIOPin
	EncoderB halcore.GPIOPin
	Button   halcore.GPIOPin
	ModeA    halcore.GPIOPin
	ModeB    halcore.GPIOPin

	Gates   *PowerGates
	Soil    *SoilSensor
	Battery *BatteryMonitor
	Pump    *Pump

	display drivers.Displayer
	sleeper halcore.Sleeper
	clock   clockwork.Clock
	log     *slog.Logger
}

// Platform is what one build target provides.
type Platform = halcore.Platform

// DefaultPlatform returns the platform of the current build target.
func DefaultPlatform() Platform { return platform.Default() }

func Open(p Platform, pins Pins, opt Options) (*Board, error) {
	opt.withDefaults()
	b := &Board{Name: p.Name, display: p.Display, sleeper: p.Sleeper, clock: opt.Clock, log: opt.Logger.With("svc", "hal")}

	in := func(n int) (halcore.GPIOPin, error) {
		pin, ok := p.Pins.ByNumber(n)
		if !ok {
			return nil, unknownPin(n)
		}
		if err := pin.ConfigureInput(halcore.PullUp); err != nil {
			return nil, errcode.Wrap(errcode.Error, "hal.open", err)
		}
		return pin, nil
	}
	out := func(n int) (halcore.GPIOPin, error) {
		pin, ok := p.Pins.ByNumber(n)
		if !ok {
			return nil, unknownPin(n)
		}
		return pin, nil
	}

	var err error
	for _, x := range []struct {
		dst *halcore.GPIOPin
		n   int
	}{
		{&b.EncoderA, pins.EncoderA},
		{&b.EncoderB, pins.EncoderB},
		{&b.Button, pins.EncoderSW},
		{&b.ModeA, pins.ModeA},
		{&b.ModeB, pins.ModeB},
	} {
		if *x.dst, err = in(x.n); err != nil {
			return nil, err
		}
	}

	var gs [numGates]halcore.GPIOPin
	for i, n := range [numGates]int{pins.GateSensor, pins.GatePump, pins.GateScreen} {
		if gs[i], err = out(n); err != nil {
			return nil, err
		}
	}
	if b.Gates, err = newPowerGates(gs[GateSensor], gs[GatePump], gs[GateScreen]); err != nil {
		return nil, err
	}

	soil, ok := p.ADCs.ByPin(pins.Soil)
	if !ok {
		return nil, unknownPin(pins.Soil)
	}
	batt, ok := p.ADCs.ByPin(pins.Battery)
	if !ok {
		return nil, unknownPin(pins.Battery)
	}
	pwm, ok := p.PWMs.ByPin(pins.Pump)
	if !ok {
		return nil, unknownPin(pins.Pump)
	}
	if err := pwm.Set(0); err != nil {
		return nil, errcode.Wrap(errcode.Error, "hal.open", err)
	}

	b.Soil = &SoilSensor{
		adc:     soil,
		gates:   b.Gates,
		clock:   opt.Clock,
		settle:  opt.SoilSettle,
		samples: opt.SoilSamples,
	}
	b.Battery = &BatteryMonitor{adc: batt, ref: opt.BatteryRef, ratio: opt.BatteryRatio}
	b.Pump = &Pump{
		pwm:       pwm,
		gates:     b.Gates,
		clock:     opt.Clock,
		log:       b.log.With("dev", "pump"),
		settle:    opt.PumpSettle,
		rampTime:  opt.RampTime,
		rampSteps: opt.RampSteps,
	}
	b.log.Info("board open", "platform", p.Name)
	return b, nil
}

func unknownPin(n int) error {
	return &errcode.E{C: errcode.UnknownPin, Op: "hal.open", Msg: fmt.Sprintf("pin %d not available", n)}
}

func (b *Board) ReadSoilHumidity() (float32, error)   { return b.Soil.Read() }
func (b *Board) ReadBatteryVoltage() (float32, error) { return b.Battery.Read() }

// Display returns the panel, or nil on headless platforms.
func (b *Board) Display() drivers.Displayer { return b.display }

// Sleep enters the platform's low-power state.
func (b *Board) Sleep(ctx context.Context) error {
	if b.sleeper == nil {
		return nil
	}
	b.log.Info("entering deep sleep")
	return b.sleeper.Sleep(ctx)
}

// Shutdown stops the pump and cuts every supply.
func (b *Board) Shutdown() {
	b.Pump.Stop()
	b.Gates.AllOff()
}
