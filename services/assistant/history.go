package assistant

import (
	"sync"

	"gopkg.in/yaml.v3"
)

const MaxTurns = 5

// Turn is one question and the reply it got.
type Turn struct {
	User    string   `yaml:"user" json:"user"`
	Reply   string   `yaml:"reply" json:"reply"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
	TS      int64    `yaml:"ts" json:"ts"`
}

// History keeps the most recent turns, oldest first.
type History struct {
	mu    sync.Mutex
	max   int
	turns []Turn
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxTurns
	}
	return &History{max: limit}
}

func (h *History) Add(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
	if n := len(h.turns) - h.max; n > 0 {
		h.turns = append(h.turns[:0:0], h.turns[n:]...)
	}
}

// Turns returns a copy.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}

func (h *History) Marshal() ([]byte, error) {
	return yaml.Marshal(h.Turns())
}

// Unmarshal replaces the history, keeping only the newest max turns.
func (h *History) Unmarshal(b []byte) error {
	var turns []Turn
	if err := yaml.Unmarshal(b, &turns); err != nil {
		return err
	}
	h.Clear()
	for _, t := range turns {
		h.Add(t)
	}
	return nil
}
