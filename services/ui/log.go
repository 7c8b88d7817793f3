package ui

import (
	"log/slog"

	"plantcode-go/types"
)

// LogPresenter renders every screen as one structured log record. Used on
// headless hosts.
type LogPresenter struct {
	log *slog.Logger
}

func NewLogPresenter(log *slog.Logger) *LogPresenter {
	if log == nil {
		log = slog.Default()
	}
	return &LogPresenter{log: log.With("svc", "ui")}
}

func (p *LogPresenter) ShowMenu(title string, items []string, selected int) {
	item := ""
	if selected >= 0 && selected < len(items) {
		item = items[selected]
	}
	p.log.Info("screen", "page", "menu", "title", title, "selected", selected, "item", item)
}

func (p *LogPresenter) ShowStatus(v types.StatusView) {
	p.log.Info("screen", "page", "status",
		"humidity_raw", v.HumidityRaw, "humidity_pct", v.HumidityPct,
		"battery", v.Battery, "wifi", v.WiFi, "time_synced", v.TimeSynced)
}

func (p *LogPresenter) ShowSettingEdit(v types.SettingView) {
	p.log.Info("screen", "page", "setting", "name", v.Name, "value", v.Value, "min", v.Min, "max", v.Max)
}

func (p *LogPresenter) ShowWateringConfirm(w types.WateringPlan) {
	p.log.Info("screen", "page", "watering_confirm", "power", w.Power, "duration", w.Duration, "before", w.Before)
}

func (p *LogPresenter) ShowWateringProgress(percent int) {
	p.log.Info("screen", "page", "watering_progress", "percent", percent)
}

func (p *LogPresenter) ShowWateringResult(before, after float32) {
	p.log.Info("screen", "page", "watering_result", "before", before, "after", after)
}

func (p *LogPresenter) ShowChat(message string, options []string, selected int) {
	p.log.Info("screen", "page", "chat", "message", message, "options", options, "selected", selected)
}

func (p *LogPresenter) ShowLoading(message string) {
	p.log.Info("screen", "page", "loading", "message", message)
}

func (p *LogPresenter) ShowError(message string) {
	p.log.Warn("screen", "page", "error", "message", message)
}

func (p *LogPresenter) ShowDashboard(v types.DashboardView, full bool) {
	p.log.Info("screen", "page", "dashboard",
		"humidity_pct", v.HumidityPct, "threshold_pct", v.ThresholdPct,
		"battery", v.Battery, "last", v.LastWatering, "status", v.Status,
		"pumping", v.Pumping, "full", full)
}

func (p *LogPresenter) ShowShutdown() { p.log.Info("screen", "page", "shutdown") }

func (p *LogPresenter) TriggerFullRefresh() { p.log.Debug("screen full refresh requested") }
