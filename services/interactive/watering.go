package interactive

import (
	"time"

	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

type wateringScreen struct {
	plan    types.WateringPlan
	after   float32
	started time.Time
	lastPct int
	dirty   bool
}

func (s *wateringScreen) enter(m *Machine) {
	*s = wateringScreen{dirty: true, lastPct: -1}
}

func (s *wateringScreen) handle(m *Machine, st *types.WorkflowState) {
	switch st.Step {
	case types.WateringConfirm:
		s.confirm(m, st)
	case types.WateringInProgress:
		s.progress(m, st)
	case types.WateringComplete:
		s.complete(m, st)
	default:
		m.log.Error("unknown watering step, restarting", "step", int(st.Step))
		s.enter(m)
		st.Step = types.WateringConfirm
	}
}

func (s *wateringScreen) confirm(m *Machine, st *types.WorkflowState) {
	if s.dirty {
		s.dirty = false
		w := m.d.Config.Get().Watering
		before, err := m.d.Sensors.ReadSoilHumidity()
		if err != nil {
			m.fail("watering.read", err)
			return
		}
		s.plan = types.WateringPlan{Power: w.Power, Duration: w.Duration(), Before: before}
		m.d.Presenter.ShowWateringConfirm(s.plan)
	}

	if m.d.Input.TakeClick() {
		if err := m.d.Pump.StartTimed(s.plan.Power, s.plan.Duration); err != nil {
			m.fail("watering.start", err)
			return
		}
		m.log.Info("manual watering started", "power", s.plan.Power, "duration", s.plan.Duration)
		s.started = m.clock.Now()
		s.lastPct = -1
		m.switchState(st, types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringInProgress})
		return
	}

	if m.d.Input.TakeDoubleClick() {
		m.log.Info("watering cancelled")
		m.switchState(st, stMainMenu)
	}
}

func (s *wateringScreen) progress(m *Machine, st *types.WorkflowState) {
	if m.d.Pump.IsRunning() {
		pct := mathx.ProgressPercent(int64(m.clock.Since(s.started)), int64(s.plan.Duration))
		// redraw in 10 % steps; e-paper cannot keep up with more
		if s.lastPct < 0 || pct/10 != s.lastPct/10 {
			m.d.Presenter.ShowWateringProgress(pct)
			s.lastPct = pct
		}
		return
	}

	after, err := m.d.Sensors.ReadSoilHumidity()
	if err != nil {
		m.fail("watering.read", err)
		return
	}
	s.after = after
	m.log.Info("manual watering complete", "before", s.plan.Before, "after", after)
	m.d.Presenter.ShowWateringResult(s.plan.Before, after)
	m.switchState(st, types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringComplete})
}

func (s *wateringScreen) complete(m *Machine, st *types.WorkflowState) {
	if m.d.Input.TakeDoubleClick() {
		m.switchState(st, stMainMenu)
	}
}
