package interactive

import (
	"plantcode-go/errcode"
	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

const (
	chatGreeting   = "Hi! Pick a question for your plant."
	maxChatOptions = 3
)

var defaultChatOptions = []string{
	"How is my plant doing?",
	"Should I water now?",
	"Tell me a plant fact",
}

type chatScreen struct {
	message  string
	options  []string
	selected int
	dirty    bool
}

func (s *chatScreen) enter(m *Machine) {
	s.message = chatGreeting
	s.options = defaultChatOptions
	s.selected = 0
	s.dirty = true
}

func (s *chatScreen) handle(m *Machine, st *types.WorkflowState) {
	if s.dirty {
		m.d.Presenter.ShowChat(s.message, s.options, s.selected)
		s.dirty = false
	}

	if d := m.rotation(); d != 0 && len(s.options) > 0 {
		s.selected = mathx.Wrap(s.selected, d, len(s.options))
		s.dirty = true
	}

	if m.d.Input.TakeClick() && len(s.options) > 0 {
		s.ask(m, s.options[s.selected])
		return
	}

	if m.d.Input.TakeDoubleClick() {
		m.switchState(st, stMainMenu)
	}
}

// ask blocks the main loop until the assistant answers or gives up.
func (s *chatScreen) ask(m *Machine, question string) {
	if m.d.Assistant == nil {
		m.fail("chat.ask", &errcode.E{C: errcode.AssistantNotConfigured, Op: "chat.ask", Msg: "assistant not configured"})
		return
	}
	m.log.Info("chat request", "question", question)
	m.d.Presenter.ShowLoading("Thinking...")
	reply, opts, err := m.d.Assistant.ChatWithOptions(m.ctx, question)
	// gestures made while waiting are stale
	m.d.Input.ClearAll()
	if err != nil {
		m.fail("chat.ask", err)
		return
	}
	if len(opts) == 0 {
		opts = defaultChatOptions
	}
	if len(opts) > maxChatOptions {
		opts = opts[:maxChatOptions]
	}
	s.message = reply
	s.options = opts
	s.selected = 0
	s.dirty = true
}
