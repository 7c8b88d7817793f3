package system

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/services/hal"
)

// ShutdownSettle lets the shutdown frame reach the panel before its supply
// is cut.
const ShutdownSettle = 200 * time.Millisecond

type gateSetter interface {
	Set(g hal.Gate, on bool) bool
}

type sleeper interface {
	Sleep(ctx context.Context) error
}

type shutdownPresenter interface {
	ShowShutdown()
	TriggerFullRefresh()
}

// OffMode parks the device: pump stopped, shutdown screen drawn, every
// supply cut and the MCU put to sleep. Leaving OFF powers the display
// again.
type OffMode struct {
	Pump      interface{ Stop() }
	Presenter shutdownPresenter
	Gates     gateSetter
	Sleeper   sleeper
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Settle    time.Duration
	// NoSleep keeps the MCU awake, as harness builds need.
	NoSleep bool
}

func (o *OffMode) Enter(ctx context.Context) {
	o.Logger.Info("entering off mode")
	o.Pump.Stop()

	o.Gates.Set(hal.GateScreen, true)
	o.Presenter.ShowShutdown()
	if o.Settle > 0 {
		o.Clock.Sleep(o.Settle)
	}

	o.Gates.Set(hal.GateSensor, false)
	o.Gates.Set(hal.GatePump, false)
	o.Gates.Set(hal.GateScreen, false)

	if o.NoSleep {
		o.Logger.Info("deep sleep skipped")
		return
	}
	if err := o.Sleeper.Sleep(ctx); err != nil {
		o.Logger.Error("deep sleep failed", "err", err)
	}
}

func (o *OffMode) Exit(ctx context.Context) {
	o.Logger.Info("leaving off mode")
	o.Gates.Set(hal.GateScreen, true)
	o.Presenter.TriggerFullRefresh()
}

func (o *OffMode) Tick(ctx context.Context) {}
