// services/hal/internal/platform/factories_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"context"
	"image/color"
	"machine"

	"tinygo.org/x/drivers/waveshare-epd/epd2in13"

	"plantcode-go/services/hal/internal/halcore"
)

// Waveshare Pico-ePaper-2.13 wiring.
const (
	epdDC   = machine.GP8
	epdCS   = machine.GP9
	epdSCK  = machine.GP10
	epdSDO  = machine.GP11
	epdRST  = machine.GP12
	epdBUSY = machine.GP13
)

// Default configures the RP2 peripherals used by the plant board.
func Default() halcore.Platform {
	machine.InitADC()
	return halcore.Platform{
		Name:    "rp2",
		Pins:    rp2PinFactory{},
		ADCs:    rp2ADCFactory{},
		PWMs:    rp2PWMFactory{},
		Display: newEPaper(),
		Sleeper: rp2Sleeper{},
	}
}

// ---- GPIO ----

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	// Constrain to RP2's user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	var mode machine.PinMode
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Toggle()        { r.p.Set(!r.p.Get()) }
func (r *rp2Pin) Number() int    { return r.n }

// ---- ADC ----

type rp2ADCFactory struct{}

// ByPin accepts GP26..GP29, the RP2040's ADC inputs.
func (rp2ADCFactory) ByPin(n int) (halcore.ADC, bool) {
	if n < 26 || n > 29 {
		return nil, false
	}
	a := machine.ADC{Pin: machine.Pin(n)}
	a.Configure(machine.ADCConfig{})
	return rp2ADC{a}, true
}

type rp2ADC struct{ a machine.ADC }

// Read scales the 16-bit machine reading down to 12 bits.
func (r rp2ADC) Read() (uint16, error) { return r.a.Get() >> 4, nil }

// ---- PWM ----

type pwmSlice interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Set(channel uint8, value uint32)
	Top() uint32
}

var pwmSlices = []pwmSlice{
	machine.PWM0, machine.PWM1, machine.PWM2, machine.PWM3,
	machine.PWM4, machine.PWM5, machine.PWM6, machine.PWM7,
}

type rp2PWMFactory struct{}

// ByPin configures the pin's slice at 1 kHz.
func (rp2PWMFactory) ByPin(n int) (halcore.PWM, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	s := pwmSlices[(n>>1)&7]
	if err := s.Configure(machine.PWMConfig{Period: 1e6}); err != nil {
		return nil, false
	}
	ch, err := s.Channel(machine.Pin(n))
	if err != nil {
		return nil, false
	}
	s.Set(ch, 0)
	return &rp2PWM{s: s, ch: ch}, true
}

type rp2PWM struct {
	s    pwmSlice
	ch   uint8
	duty uint8
}

func (p *rp2PWM) Set(duty uint8) error {
	p.duty = duty
	p.s.Set(p.ch, p.s.Top()*uint32(duty)/255)
	return nil
}

func (p *rp2PWM) Duty() uint8 { return p.duty }

// ---- E-paper ----

type ePaper struct {
	dev *epd2in13.Device
}

func newEPaper() *ePaper {
	machine.SPI1.Configure(machine.SPIConfig{
		Frequency: 4000000,
		SCK:       epdSCK,
		SDO:       epdSDO,
	})
	dev := epd2in13.New(machine.SPI1, epdCS, epdDC, epdRST, epdBUSY)
	dev.Configure(epd2in13.Config{})
	dev.ClearBuffer()
	return &ePaper{dev: &dev}
}

func (e *ePaper) Size() (int16, int16)              { return e.dev.Size() }
func (e *ePaper) SetPixel(x, y int16, c color.RGBA) { e.dev.SetPixel(x, y, c) }
func (e *ePaper) Display() error                    { return e.dev.Display() }

// SetFullRefresh switches the waveform LUT. A full refresh also blanks the
// panel first to clear ghosting.
func (e *ePaper) SetFullRefresh(full bool) {
	e.dev.SetLUT(full)
	if full {
		e.dev.ClearDisplay()
	}
}

// ---- Sleep ----

// rp2Sleeper has no dormant mode wired up yet; the OFF loop keeps polling
// the selector with every load powered down.
type rp2Sleeper struct{}

func (rp2Sleeper) Sleep(context.Context) error { return nil }
