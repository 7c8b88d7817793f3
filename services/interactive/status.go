package interactive

import (
	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

type statusScreen struct {
	dirty bool
}

func (s *statusScreen) enter(m *Machine) { s.dirty = true }

func (s *statusScreen) handle(m *Machine, st *types.WorkflowState) {
	if s.dirty {
		s.dirty = false
		v, err := m.readStatus()
		if err != nil {
			m.fail("status.read", err)
			return
		}
		m.d.Presenter.ShowStatus(v)
	}
	if m.d.Input.TakeDoubleClick() {
		m.switchState(st, stMainMenu)
	}
}

func (m *Machine) readStatus() (types.StatusView, error) {
	cfg := m.d.Config.Get()
	v := types.StatusView{Watering: cfg.Watering}
	raw, err := m.d.Sensors.ReadSoilHumidity()
	if err != nil {
		return v, err
	}
	v.HumidityRaw = raw
	v.HumidityPct, _ = mathx.InversePercent(raw, float32(cfg.Watering.HumidityWet), float32(cfg.Watering.HumidityDry))
	if v.Battery, err = m.d.Sensors.ReadBatteryVoltage(); err != nil {
		return v, err
	}
	if m.d.Net != nil {
		v.WiFi = m.d.Net.WiFiConnected()
		v.TimeSynced = m.d.Net.TimeSynced()
	}
	return v, nil
}
