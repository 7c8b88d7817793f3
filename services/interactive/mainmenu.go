package interactive

import (
	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

var mainMenuItems = []string{"Status", "Settings", "Water now", "Chat"}

var mainMenuTargets = []types.WorkflowState{stStatus, stSettings, stWatering, stChat}

type mainMenu struct {
	index int
	dirty bool
}

func (s *mainMenu) enter(m *Machine) {
	s.index = 0
	s.dirty = true
}

func (s *mainMenu) handle(m *Machine, st *types.WorkflowState) {
	if s.dirty {
		// the first screen after mode entry clears e-paper ghosting
		if m.fullRefresh {
			m.d.Presenter.TriggerFullRefresh()
			m.fullRefresh = false
		}
		m.d.Presenter.ShowMenu("Main Menu", mainMenuItems, s.index)
		s.dirty = false
	}

	if d := m.rotation(); d != 0 {
		s.index = mathx.Wrap(s.index, d, len(mainMenuItems))
		m.log.Info("menu selection", "item", mainMenuItems[s.index])
		s.dirty = true
	}

	if m.d.Input.TakeClick() {
		m.log.Info("menu confirmed", "item", mainMenuItems[s.index])
		m.switchState(st, mainMenuTargets[s.index])
		return
	}

	if m.d.Input.TakeDoubleClick() {
		if m.opt.ExitOnMainMenuDoubleClick {
			m.log.Info("double click on main menu, exit requested")
			m.exit = true
		}
	}
}
