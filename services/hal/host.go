//go:build !rp2040 && !rp2350 && !rpi

package hal

import "plantcode-go/services/hal/internal/platform"

// Host is the simulated platform. Its fakes stay reachable so tests and
// the simulator can drive pins and ADCs.
type (
	Host        = platform.Host
	FakePin     = platform.FakePin
	FakeADC     = platform.FakeADC
	FakePWM     = platform.FakePWM
	Framebuffer = platform.Framebuffer
)

func NewHost() *Host { return platform.NewHost() }

// SeedNominal sets plausible resting values on the host ADCs for the given
// wiring: a damp probe and a healthy cell.
func SeedNominal(h *Host, pins Pins) {
	h.ADC(pins.Soil).SetValue(1800)
	h.ADC(pins.Battery).SetValue(2482)
}

// NewFramebuffer returns an in-memory 1-bit display.
func NewFramebuffer(w, h int16) *Framebuffer { return platform.NewFramebuffer(w, h) }
