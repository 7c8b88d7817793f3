// services/hal/internal/platform/factories_host.go
//go:build !rp2040 && !rp2350 && !rpi

package platform

import (
	"context"
	"image/color"
	"sync"
	"sync/atomic"

	"plantcode-go/services/hal/internal/halcore"
)

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements GPIOPin for host runs and tests. Inputs are driven
// with Set like any output.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    halcore.Pull
}

func (p *FakePin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	// a pulled-up input idles high
	if pull == halcore.PullUp {
		p.level = true
	}
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() {
	p.mu.Lock()
	p.level = !p.level
	p.mu.Unlock()
}

func (p *FakePin) Number() int { return p.number }

// IsOutput reports the configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

// ----------------------------- ADC (host) ------------------------------------

// FakeADC returns whatever value was last stored.
type FakeADC struct {
	value atomic.Uint32
	fail  atomic.Bool
	reads atomic.Uint32
}

func (a *FakeADC) Read() (uint16, error) {
	a.reads.Add(1)
	if a.fail.Load() {
		return 0, errADCFailed
	}
	return uint16(a.value.Load()), nil
}

func (a *FakeADC) SetValue(v uint16) { a.value.Store(uint32(v & 0x0FFF)) }
func (a *FakeADC) SetFail(fail bool) { a.fail.Store(fail) }
func (a *FakeADC) Reads() int        { return int(a.reads.Load()) }

// ----------------------------- PWM (host) ------------------------------------

type FakePWM struct {
	mu      sync.Mutex
	duty    uint8
	history []uint8
	fail    bool
}

func (p *FakePWM) Set(duty uint8) error {
	p.mu.Lock()
	if p.fail {
		p.mu.Unlock()
		return errPWMFailed
	}
	p.duty = duty
	p.history = append(p.history, duty)
	p.mu.Unlock()
	return nil
}

func (p *FakePWM) Duty() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// SetFail makes later writes fail and leave the duty unchanged.
func (p *FakePWM) SetFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

// History lists every duty written, oldest first.
func (p *FakePWM) History() []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint8(nil), p.history...)
}

// ----------------------------- Display (host) --------------------------------

// Framebuffer is a 1-bit in-memory drivers.Displayer.
type Framebuffer struct {
	mu      sync.Mutex
	w, h    int16
	pix     []bool
	frames  int
	full    int
	fullReq bool
}

func NewFramebuffer(w, h int16) *Framebuffer {
	return &Framebuffer{w: w, h: h, pix: make([]bool, int(w)*int(h))}
}

func (f *Framebuffer) Size() (int16, int16) { return f.w, f.h }

// SetPixel marks any non-white colour as ink.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return
	}
	ink := !(c.R > 127 && c.G > 127 && c.B > 127)
	f.mu.Lock()
	f.pix[int(y)*int(f.w)+int(x)] = ink
	f.mu.Unlock()
}

func (f *Framebuffer) Display() error {
	f.mu.Lock()
	f.frames++
	if f.fullReq {
		f.full++
	}
	f.mu.Unlock()
	return nil
}

func (f *Framebuffer) SetFullRefresh(full bool) {
	f.mu.Lock()
	f.fullReq = full
	f.mu.Unlock()
}

func (f *Framebuffer) Pixel(x, y int16) bool {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pix[int(y)*int(f.w)+int(x)]
}

// Ink counts set pixels.
func (f *Framebuffer) Ink() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pix {
		if p {
			n++
		}
	}
	return n
}

// Frames returns total and full refresh counts.
func (f *Framebuffer) Frames() (total, full int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames, f.full
}

// ----------------------------- Sleep (host) ----------------------------------

type countingSleeper struct{ n atomic.Int32 }

func (s *countingSleeper) Sleep(context.Context) error {
	s.n.Add(1)
	return nil
}

// ----------------------------- Host platform ---------------------------------

// Host owns every fake so tests and the simulator can drive them.
type Host struct {
	mu    sync.Mutex
	pins  map[int]*FakePin
	adcs  map[int]*FakeADC
	pwms  map[int]*FakePWM
	fb    *Framebuffer
	sleep countingSleeper
}

func NewHost() *Host {
	return &Host{
		pins: make(map[int]*FakePin),
		adcs: make(map[int]*FakeADC),
		pwms: make(map[int]*FakePWM),
		fb:   NewFramebuffer(250, 122),
	}
}

func (h *Host) Pin(n int) *FakePin {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pins[n]
	if !ok {
		p = &FakePin{number: n}
		h.pins[n] = p
	}
	return p
}

func (h *Host) ADC(n int) *FakeADC {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.adcs[n]
	if !ok {
		a = &FakeADC{}
		h.adcs[n] = a
	}
	return a
}

func (h *Host) PWM(n int) *FakePWM {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pwms[n]
	if !ok {
		p = &FakePWM{}
		h.pwms[n] = p
	}
	return p
}

func (h *Host) Framebuffer() *Framebuffer { return h.fb }

func (h *Host) Sleeps() int { return int(h.sleep.n.Load()) }

func (h *Host) ByNumber(n int) (halcore.GPIOPin, bool) { return h.Pin(n), true }

type hostADCs struct{ h *Host }

func (f hostADCs) ByPin(n int) (halcore.ADC, bool) { return f.h.ADC(n), true }

type hostPWMs struct{ h *Host }

func (f hostPWMs) ByPin(n int) (halcore.PWM, bool) { return f.h.PWM(n), true }

func (h *Host) Platform() halcore.Platform {
	return halcore.Platform{
		Name:    "host",
		Pins:    h,
		ADCs:    hostADCs{h},
		PWMs:    hostPWMs{h},
		Display: h.fb,
		Sleeper: &h.sleep,
	}
}

// Default returns a fresh host platform.
func Default() halcore.Platform { return NewHost().Platform() }
