// Package runmode is the autonomous watering loop: it samples the soil on a
// fixed schedule, waters when the soil is drier than the configured
// threshold and keeps a dashboard on the display.
package runmode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/types"
	"plantcode-go/x/mathx"
	"plantcode-go/x/timex"
)

const (
	CheckInterval       = 5 * time.Second
	HumidityDelta       = 5.0 // percent
	VoltageDelta        = 0.1 // volts
	PartialRefreshLimit = 10
	FullRefreshInterval = 30 * time.Minute
)

const (
	statusMonitoring = "Monitoring..."
	statusWatering   = "Watering..."
	statusSensorErr  = "Sensor error"
)

var TopicRun = bus.T("state", "run")

type Sensors interface {
	ReadSoilHumidity() (float32, error)
	ReadBatteryVoltage() (float32, error)
}

type Pump interface {
	StartTimed(power uint8, d time.Duration) error
	IsRunning() bool
	Stop()
}

type Presenter interface {
	ShowDashboard(v types.DashboardView, full bool)
}

type ConfigSource interface {
	Get() types.Config
}

type Deps struct {
	Sensors   Sensors
	Pump      Pump
	Presenter Presenter
	Config    ConfigSource
}

type Options struct {
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Conn          *bus.Connection
	CheckInterval time.Duration
	// ScreenPower switches the display supply on Enter and Exit.
	ScreenPower func(on bool)
}

// Mode implements modectl.Mode for RUN.
type Mode struct {
	d   Deps
	opt Options
	log *slog.Logger

	mu        sync.Mutex
	lastCheck time.Time
	lastWater time.Time
	waterings uint32

	// what the dashboard currently shows
	shownPct   float32
	shownVolts float32
	shownPump  bool
	partials   int
	lastFull   time.Time
	status     string
}

func New(d Deps, opt Options) *Mode {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.CheckInterval <= 0 {
		opt.CheckInterval = CheckInterval
	}
	return &Mode{d: d, opt: opt, log: opt.Logger.With("svc", "runmode"), status: statusMonitoring}
}

func (m *Mode) Enter(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("entering run mode", "check_interval", m.opt.CheckInterval)
	if m.opt.ScreenPower != nil {
		m.opt.ScreenPower(true)
	}
	now := m.opt.Clock.Now()
	m.lastCheck = now
	m.lastFull = now
	m.partials = 0
	m.shownPct, m.shownVolts, m.shownPump = -1, -1, false

	pct, volts, _, err := m.sample()
	m.setStatus(err)
	m.render(pct, volts, true)
	m.publish()
}

func (m *Mode) Exit(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("exiting run mode", "waterings", m.waterings)
	m.d.Pump.Stop()
	if m.opt.ScreenPower != nil {
		m.opt.ScreenPower(false)
	}
}

func (m *Mode) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opt.Clock.Now()
	if now.Sub(m.lastCheck) < m.opt.CheckInterval {
		return
	}
	m.lastCheck = now
	m.check()
}

// ForceWater runs one watering cycle regardless of the threshold and the
// minimum interval.
func (m *Mode) ForceWater() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.d.Sensors.ReadSoilHumidity()
	if err != nil {
		return err
	}
	return m.water(raw, true)
}

// Status is what state/run carries.
func (m *Mode) Status() types.RunValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value()
}

func (m *Mode) check() {
	pct, volts, raw, err := m.sample()
	pumping := m.d.Pump.IsRunning()

	changed := m.shownPct < 0 || mathx.Abs(pct-m.shownPct) >= HumidityDelta ||
		m.shownVolts < 0 || mathx.Abs(volts-m.shownVolts) >= VoltageDelta ||
		pumping != m.shownPump

	if err != nil {
		m.log.Warn("sensor read failed", "err", err)
	} else if werr := m.water(raw, false); werr != nil {
		m.log.Warn("watering failed", "err", werr)
		err = werr
	}
	prev := m.status
	m.setStatus(err)
	if changed || prev != m.status {
		m.render(pct, volts, false)
	}
}

// water starts the pump when the soil reads drier than the threshold.
// Higher raw values are drier.
func (m *Mode) water(raw float32, force bool) error {
	cfg := m.d.Config.Get().Watering
	now := m.opt.Clock.Now()
	if !force {
		if raw <= float32(cfg.Threshold) {
			m.log.Debug("soil ok", "raw", raw, "threshold", cfg.Threshold)
			return nil
		}
		if !m.lastWater.IsZero() && now.Sub(m.lastWater) < cfg.MinInterval() {
			m.log.Debug("soil dry but watered recently", "raw", raw, "since", now.Sub(m.lastWater))
			return nil
		}
	}
	if err := m.d.Pump.StartTimed(cfg.Power, cfg.Duration()); err != nil {
		return errcode.Wrap(errcode.Of(err), "runmode.water", err)
	}
	m.waterings++
	m.lastWater = now
	m.log.Info("watering", "n", m.waterings, "raw", raw, "power", cfg.Power, "duration", cfg.Duration(), "forced", force)
	m.publish()
	return nil
}

func (m *Mode) sample() (pct, volts, raw float32, err error) {
	cfg := m.d.Config.Get().Watering
	raw, err = m.d.Sensors.ReadSoilHumidity()
	if err != nil {
		return m.shownPct, m.shownVolts, 0, err
	}
	pct, _ = mathx.InversePercent(raw, float32(cfg.HumidityWet), float32(cfg.HumidityDry))
	volts, err = m.d.Sensors.ReadBatteryVoltage()
	if err != nil {
		return pct, m.shownVolts, raw, err
	}
	return pct, volts, raw, nil
}

func (m *Mode) setStatus(err error) {
	switch {
	case err != nil:
		m.status = statusSensorErr
	case m.d.Pump.IsRunning():
		m.status = statusWatering
	default:
		m.status = statusMonitoring
	}
}

func (m *Mode) render(pct, volts float32, force bool) {
	cfg := m.d.Config.Get().Watering
	now := m.opt.Clock.Now()
	threshold, _ := mathx.InversePercent(float32(cfg.Threshold), float32(cfg.HumidityWet), float32(cfg.HumidityDry))
	pumping := m.d.Pump.IsRunning()

	full := force || m.partials >= PartialRefreshLimit || now.Sub(m.lastFull) >= FullRefreshInterval
	if full {
		m.partials = 0
		m.lastFull = now
	} else {
		m.partials++
	}

	m.d.Presenter.ShowDashboard(types.DashboardView{
		HumidityPct:  mathx.Max(pct, 0),
		ThresholdPct: threshold,
		Battery:      mathx.Max(volts, 0),
		LastWatering: timex.Ago(now.Sub(m.lastWater), !m.lastWater.IsZero()),
		Status:       m.status,
		Pumping:      pumping,
	}, full)
	m.shownPct, m.shownVolts, m.shownPump = pct, volts, pumping
}

func (m *Mode) value() types.RunValue {
	v := types.RunValue{Waterings: m.waterings, Status: m.status}
	if !m.lastWater.IsZero() {
		v.LastWaterTS = m.lastWater.UnixMilli()
	}
	return v
}

func (m *Mode) publish() {
	if m.opt.Conn == nil {
		return
	}
	m.opt.Conn.Publish(m.opt.Conn.NewMessage(TopicRun, m.value(), true))
}
