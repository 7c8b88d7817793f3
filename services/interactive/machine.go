// Package interactive is the on-device menu workflow active in INTERACTIVE
// mode. It consumes input events on the main loop and drives one screen at a
// time.
package interactive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/types"
)

const ErrorTimeout = 3 * time.Second

var TopicState = bus.T("state", "interactive")

var (
	stMainMenu    = types.WorkflowState{Kind: types.WorkflowMainMenu}
	stStatus      = types.WorkflowState{Kind: types.WorkflowStatus}
	stSettings    = types.WorkflowState{Kind: types.WorkflowSettings}
	stSettingEdit = types.WorkflowState{Kind: types.WorkflowSettingEdit}
	stWatering    = types.WorkflowState{Kind: types.WorkflowWatering, Step: types.WateringConfirm}
	stChat        = types.WorkflowState{Kind: types.WorkflowChat}
)

// Deps are the collaborators the workflow calls out to. Input, Presenter
// and Config are required; a nil Assistant or NetStatus degrades the
// screens that use them.
type Deps struct {
	Input     Input
	Sensors   Sensors
	Pump      Pump
	Presenter Presenter
	Assistant Assistant
	Config    ConfigStore
	Net       NetStatus
}

type Options struct {
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Conn         *bus.Connection
	ErrorTimeout time.Duration
	// ExitOnMainMenuDoubleClick lets a scripted harness leave the workflow
	// with a double click on the main menu. See ShouldExit.
	ExitOnMainMenuDoubleClick bool
}

// screen is one variant of the workflow. enter runs once when the machine
// switches to it; handle runs every tick while it is active and may write a
// new state.
type screen interface {
	enter(m *Machine)
	handle(m *Machine, st *types.WorkflowState)
}

type Machine struct {
	d     Deps
	opt   Options
	log   *slog.Logger
	clock clockwork.Clock
	ctx   context.Context

	state    types.WorkflowState
	menu     mainMenu
	status   statusScreen
	settings settingsScreen
	edit     editScreen
	water    wateringScreen
	chat     chatScreen

	fullRefresh bool
	errUntil    time.Time
	exit        bool
}

func New(d Deps, opt Options) *Machine {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.ErrorTimeout <= 0 {
		opt.ErrorTimeout = ErrorTimeout
	}
	return &Machine{
		d:     d,
		opt:   opt,
		log:   opt.Logger.With("svc", "interactive"),
		clock: opt.Clock,
		ctx:   context.Background(),
		state: stMainMenu,
	}
}

func (m *Machine) screen(k types.WorkflowKind) screen {
	switch k {
	case types.WorkflowMainMenu:
		return &m.menu
	case types.WorkflowStatus:
		return &m.status
	case types.WorkflowSettings:
		return &m.settings
	case types.WorkflowSettingEdit:
		return &m.edit
	case types.WorkflowWatering:
		return &m.water
	case types.WorkflowChat:
		return &m.chat
	}
	return nil
}

// Enter starts the workflow at the main menu with no stale input.
func (m *Machine) Enter(ctx context.Context) {
	m.ctx = ctx
	m.log.Info("entering interactive mode")
	m.d.Input.ClearAll()
	m.state = stMainMenu
	m.exit = false
	m.errUntil = time.Time{}
	m.fullRefresh = true
	m.menu.enter(m)
	m.publish()
}

// Exit leaves the workflow. A manual watering still running is stopped.
func (m *Machine) Exit(ctx context.Context) {
	if m.state.Kind == types.WorkflowWatering && m.state.Step == types.WateringInProgress &&
		m.d.Pump != nil && m.d.Pump.IsRunning() {
		m.log.Info("stopping pump on exit")
		m.d.Pump.Stop()
	}
	m.log.Info("exiting interactive mode", "state", m.state)
}

// Tick runs the active screen once.
func (m *Machine) Tick(ctx context.Context) {
	m.ctx = ctx
	prev := m.state
	next := prev
	reenter := false

	switch s := m.screen(prev.Kind); {
	case !m.errUntil.IsZero():
		if m.clock.Now().Before(m.errUntil) {
			m.discardInput()
			return
		}
		m.errUntil = time.Time{}
		m.switchState(&next, stMainMenu)
		reenter = true
	case s == nil:
		m.log.Error("unknown workflow state, resetting", "kind", int(prev.Kind))
		next = stMainMenu
	default:
		s.handle(m, &next)
	}

	m.state = next
	if next.Kind != prev.Kind || reenter {
		m.screen(next.Kind).enter(m)
	}
	if next != prev || reenter {
		m.log.Debug("workflow transition", "from", prev, "to", next)
		m.publish()
	}
}

// State is the active workflow state.
func (m *Machine) State() types.WorkflowState { return m.state }

// Selected is the highlighted index of the active screen, or 0.
func (m *Machine) Selected() int {
	switch m.state.Kind {
	case types.WorkflowMainMenu:
		return m.menu.index
	case types.WorkflowSettings:
		return m.settings.index
	case types.WorkflowSettingEdit:
		return m.edit.item
	case types.WorkflowChat:
		return m.chat.selected
	}
	return 0
}

// ShowingError reports whether an error screen is counting down.
func (m *Machine) ShowingError() bool { return !m.errUntil.IsZero() }

// ShouldExit reports a harness exit request. See Options.
func (m *Machine) ShouldExit() bool { return m.exit }

// switchState moves to a new state. Queued rotation is kept so a turn made
// during the switch still lands on the next screen.
func (m *Machine) switchState(st *types.WorkflowState, to types.WorkflowState) {
	*st = to
	m.d.Input.ClearButtonOnly()
}

// rotation returns the next queued step, or 0.
func (m *Machine) rotation() int {
	v, ok := m.d.Input.PollRotation()
	if !ok {
		return 0
	}
	return int(v)
}

func (m *Machine) discardInput() {
	for {
		if _, ok := m.d.Input.PollRotation(); !ok {
			break
		}
	}
	m.d.Input.TakeClick()
	m.d.Input.TakeDoubleClick()
	m.d.Input.TakeLongPress()
}

// fail shows err on an error screen and schedules the return to the main
// menu.
func (m *Machine) fail(op string, err error) {
	m.log.Error("workflow step failed", "op", op, "err", err)
	msg := err.Error()
	var e *errcode.E
	if errors.As(err, &e) && e.Msg != "" {
		msg = e.Msg
	}
	m.d.Presenter.ShowError(msg)
	m.errUntil = m.clock.Now().Add(m.opt.ErrorTimeout)
}

func (m *Machine) publish() {
	if m.opt.Conn == nil {
		return
	}
	m.opt.Conn.Publish(m.opt.Conn.NewMessage(TopicState, types.WorkflowValue{
		State:    m.state.String(),
		Selected: m.Selected(),
		TS:       m.clock.Now().UnixMilli(),
	}, true))
}
