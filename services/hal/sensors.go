package hal

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/errcode"
	"plantcode-go/services/hal/internal/halcore"
)

const (
	adcFullScale = 4095

	// Readings outside this window mean a disconnected divider or a bad
	// conversion rather than a real cell voltage.
	MinBatteryVolts = 2.0
	MaxBatteryVolts = 5.0
)

// SoilSensor powers the probe, waits for it to settle and averages a burst
// of conversions. The result is the raw 12-bit value: higher is drier.
type SoilSensor struct {
	mu      sync.Mutex
	adc     halcore.ADC
	gates   *PowerGates
	clock   clockwork.Clock
	settle  time.Duration
	samples int
}

func (s *SoilSensor) Read() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// leave the gate alone if someone else switched it on
	if !s.gates.On(GateSensor) {
		s.gates.Set(GateSensor, true)
		defer s.gates.Set(GateSensor, false)
		if s.settle > 0 {
			s.clock.Sleep(s.settle)
		}
	}

	var sum uint32
	for i := 0; i < s.samples; i++ {
		v, err := s.adc.Read()
		if err != nil {
			return 0, errcode.Wrap(errcode.SensorFailed, "soil.read", err)
		}
		sum += uint32(v)
	}
	return float32(sum) / float32(s.samples), nil
}

// BatteryMonitor converts the divider tap to cell volts.
type BatteryMonitor struct {
	adc   halcore.ADC
	ref   float32
	ratio float32
}

func (b *BatteryMonitor) Read() (float32, error) {
	raw, err := b.adc.Read()
	if err != nil {
		return 0, errcode.Wrap(errcode.SensorFailed, "battery.read", err)
	}
	v := float32(raw) * b.ref / adcFullScale * b.ratio
	if v < MinBatteryVolts || v > MaxBatteryVolts {
		return v, &errcode.E{
			C:   errcode.SensorFailed,
			Op:  "battery.read",
			Msg: fmt.Sprintf("%.2f V out of range", v),
		}
	}
	return v, nil
}
