package interactive

import (
	"fmt"

	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

type settingDef struct {
	name           string
	unit           string
	min, max, step int
	get            func(w *types.WateringConfig) int
	set            func(w *types.WateringConfig, v int)
}

var settingDefs = []settingDef{
	{"Watering Threshold", "ADC", 100, 4000, 50,
		func(w *types.WateringConfig) int { return int(w.Threshold) },
		func(w *types.WateringConfig, v int) { w.Threshold = uint16(v) }},
	{"Pump Power", "", 0, 255, 10,
		func(w *types.WateringConfig) int { return int(w.Power) },
		func(w *types.WateringConfig, v int) { w.Power = uint8(v) }},
	{"Watering Duration", "ms", 1000, 60000, 500,
		func(w *types.WateringConfig) int { return int(w.DurationMs) },
		func(w *types.WateringConfig, v int) { w.DurationMs = uint32(v) }},
	{"Min Interval", "s", 60, 3600, 60,
		func(w *types.WateringConfig) int { return int(w.MinIntervalS) },
		func(w *types.WateringConfig, v int) { w.MinIntervalS = uint32(v) }},
	{"Humidity Wet", "ADC", 100, 3000, 100,
		func(w *types.WateringConfig) int { return int(w.HumidityWet) },
		func(w *types.WateringConfig, v int) { w.HumidityWet = uint16(v) }},
	{"Humidity Dry", "ADC", 100, 3000, 100,
		func(w *types.WateringConfig) int { return int(w.HumidityDry) },
		func(w *types.WateringConfig, v int) { w.HumidityDry = uint16(v) }},
}

func (d settingDef) view(v int) types.SettingView {
	return types.SettingView{Name: d.name, Unit: d.unit, Value: v, Min: d.min, Max: d.max, Step: d.step}
}

type settingsScreen struct {
	index int
	dirty bool
}

func (s *settingsScreen) enter(m *Machine) {
	s.index = 0
	s.dirty = true
}

func (s *settingsScreen) handle(m *Machine, st *types.WorkflowState) {
	if s.dirty {
		w := m.d.Config.Get().Watering
		items := make([]string, len(settingDefs))
		for i, d := range settingDefs {
			items[i] = fmt.Sprintf("%s: %d %s", d.name, d.get(&w), d.unit)
		}
		m.d.Presenter.ShowMenu("Settings", items, s.index)
		s.dirty = false
	}

	if d := m.rotation(); d != 0 {
		s.index = mathx.Wrap(s.index, d, len(settingDefs))
		s.dirty = true
	}

	if m.d.Input.TakeClick() {
		m.log.Info("editing setting", "name", settingDefs[s.index].name)
		m.edit.item = s.index
		m.switchState(st, stSettingEdit)
		return
	}

	if m.d.Input.TakeDoubleClick() {
		m.switchState(st, stMainMenu)
	}
}

// editScreen adjusts a preview of one setting. Nothing is stored until the
// preview is confirmed.
type editScreen struct {
	item    int
	preview int
	dirty   bool
}

func (s *editScreen) enter(m *Machine) {
	w := m.d.Config.Get().Watering
	s.preview = settingDefs[s.item].get(&w)
	s.dirty = true
}

func (s *editScreen) handle(m *Machine, st *types.WorkflowState) {
	def := settingDefs[s.item]
	if s.dirty {
		m.d.Presenter.ShowSettingEdit(def.view(s.preview))
		s.dirty = false
	}

	if d := m.rotation(); d != 0 {
		s.preview = mathx.Clamp(s.preview+d*def.step, def.min, def.max)
		s.dirty = true
	}

	if m.d.Input.TakeClick() {
		v := s.preview
		err := m.d.Config.Update(func(c *types.Config) { def.set(&c.Watering, v) })
		if err != nil {
			m.fail("settings.save", err)
			return
		}
		m.log.Info("setting saved", "name", def.name, "value", v)
		m.switchState(st, stSettings)
		return
	}

	if m.d.Input.TakeDoubleClick() {
		m.log.Info("setting edit cancelled", "name", def.name)
		m.switchState(st, stSettings)
	}
}
