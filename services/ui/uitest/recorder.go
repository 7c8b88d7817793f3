// Package uitest provides a presenter that records what would have been drawn.
package uitest

import (
	"fmt"
	"strings"
	"sync"

	"plantcode-go/types"
)

// Recorder implements the interactive and run-mode presenters. Every call is
// appended to Calls as "Method arg..." and the last payload of each kind is
// kept for assertions.
type Recorder struct {
	mu    sync.Mutex
	Calls []string

	MenuTitle    string
	MenuItems    []string
	MenuSelected int
	Status       types.StatusView
	Setting      types.SettingView
	Plan         types.WateringPlan
	Progress     int
	Before       float32
	After        float32
	ChatMessage  string
	ChatOptions  []string
	ChatSelected int
	Loading      string
	Error        string
	Dashboard    types.DashboardView
	FullRefresh  int
	Shutdown     int
}

func (r *Recorder) add(format string, args ...any) {
	r.Calls = append(r.Calls, fmt.Sprintf(format, args...))
}

func (r *Recorder) ShowMenu(title string, items []string, selected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.MenuTitle, r.MenuItems, r.MenuSelected = title, items, selected
	r.add("ShowMenu %s %d", title, selected)
}

func (r *Recorder) ShowStatus(v types.StatusView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = v
	r.add("ShowStatus")
}

func (r *Recorder) ShowSettingEdit(v types.SettingView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Setting = v
	r.add("ShowSettingEdit %s %d", v.Name, v.Value)
}

func (r *Recorder) ShowWateringConfirm(p types.WateringPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Plan = p
	r.add("ShowWateringConfirm")
}

func (r *Recorder) ShowWateringProgress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress = percent
	r.add("ShowWateringProgress %d", percent)
}

func (r *Recorder) ShowWateringResult(before, after float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Before, r.After = before, after
	r.add("ShowWateringResult")
}

func (r *Recorder) ShowChat(message string, options []string, selected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ChatMessage, r.ChatOptions, r.ChatSelected = message, options, selected
	r.add("ShowChat %d", selected)
}

func (r *Recorder) ShowLoading(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Loading = message
	r.add("ShowLoading")
}

func (r *Recorder) ShowError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Error = message
	r.add("ShowError %s", message)
}

func (r *Recorder) ShowDashboard(v types.DashboardView, full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dashboard = v
	r.add("ShowDashboard full=%t", full)
}

func (r *Recorder) ShowShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shutdown++
	r.add("ShowShutdown")
}

func (r *Recorder) TriggerFullRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FullRefresh++
	r.add("TriggerFullRefresh")
}

// Count returns how many recorded calls start with prefix.
func (r *Recorder) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Last returns the most recent call, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Calls) == 0 {
		return ""
	}
	return r.Calls[len(r.Calls)-1]
}
