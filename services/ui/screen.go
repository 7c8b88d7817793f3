package ui

import (
	"image/color"
	"log/slog"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"plantcode-go/types"
	"plantcode-go/x/strx"
)

var (
	ink   = color.RGBA{0, 0, 0, 255}
	paper = color.RGBA{255, 255, 255, 255}
)

const (
	titleBaseline = 14
	ruleY         = 19
	firstBaseline = 36
	lineHeight    = 16
	marginX       = 4
	charWidth     = 11 // freemono 9pt advance
	barHeight     = 12
)

// Refresher is implemented by panels with separate full and partial
// refresh (e-paper). Full refreshes clear ghosting but flash the panel.
type Refresher interface {
	SetFullRefresh(full bool)
}

// Screen draws pages onto a display. It is safe for use from one goroutine
// at a time; calls are serialised.
type Screen struct {
	mu       sync.Mutex
	d        drivers.Displayer
	r        Refresher
	log      *slog.Logger
	w, h     int16
	cols     int
	rows     int
	fullNext bool
	text     []string
}

func NewScreen(d drivers.Displayer, log *slog.Logger) *Screen {
	if log == nil {
		log = slog.Default()
	}
	w, h := d.Size()
	s := &Screen{
		d:        d,
		log:      log.With("svc", "ui"),
		w:        w,
		h:        h,
		cols:     int(w-2*marginX) / charWidth,
		rows:     int(h-firstBaseline)/lineHeight + 1,
		fullNext: true,
	}
	s.r, _ = d.(Refresher)
	return s
}

func (s *Screen) ShowMenu(title string, items []string, selected int) {
	s.draw(menuPage(title, items, selected), false)
}

func (s *Screen) ShowStatus(v types.StatusView)            { s.draw(statusPage(v), false) }
func (s *Screen) ShowSettingEdit(v types.SettingView)      { s.draw(settingPage(v), false) }
func (s *Screen) ShowWateringConfirm(p types.WateringPlan) { s.draw(confirmPage(p), false) }
func (s *Screen) ShowWateringProgress(percent int)         { s.draw(progressPage(percent), false) }

func (s *Screen) ShowWateringResult(before, after float32) {
	s.draw(resultPage(before, after), false)
}

func (s *Screen) ShowChat(message string, options []string, selected int) {
	s.draw(chatPage(message, options, selected, s.cols-2), false)
}

func (s *Screen) ShowLoading(message string) { s.draw(textPage("Please wait", message), false) }

func (s *Screen) ShowError(message string) {
	p := textPage("Error")
	p.lines = strx.Wrap(message, s.cols-2)
	s.draw(p, false)
}

func (s *Screen) ShowDashboard(v types.DashboardView, full bool) { s.draw(dashboardPage(v), full) }

func (s *Screen) ShowShutdown() { s.draw(shutdownPage(), true) }

// TriggerFullRefresh makes the next frame a full refresh.
func (s *Screen) TriggerFullRefresh() {
	s.mu.Lock()
	s.fullNext = true
	s.mu.Unlock()
}

// Text returns the lines of the last frame, title first.
func (s *Screen) Text() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.text...)
}

func (s *Screen) draw(p page, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fill(0, 0, s.w, s.h, paper)
	tinyfont.WriteLine(s.d, &freemono.Bold9pt7b, marginX, titleBaseline, clip(p.title, s.cols), ink)
	s.fill(0, ruleY, s.w, 1, ink)

	s.text = s.text[:0]
	s.text = append(s.text, p.title)

	lines, sel := window(p.lines, p.sel, s.rows)
	for i, l := range lines {
		y := int16(firstBaseline + i*lineHeight)
		prefix := "  "
		if i == sel {
			prefix = "> "
		}
		l = prefix + clip(l, s.cols-2)
		tinyfont.WriteLine(s.d, &freemono.Regular9pt7b, marginX, y, l, ink)
		s.text = append(s.text, l)
	}
	if p.bar >= 0 {
		s.progress(p.bar)
	}

	full = full || s.fullNext
	s.fullNext = false
	if s.r != nil {
		s.r.SetFullRefresh(full)
	}
	if err := s.d.Display(); err != nil {
		s.log.Warn("display refresh failed", "err", err)
	}
}

func (s *Screen) progress(pct int) {
	x, y := int16(marginX), s.h-barHeight-marginX
	w := s.w - 2*marginX
	s.fill(x, y, w, 1, ink)
	s.fill(x, y+barHeight-1, w, 1, ink)
	s.fill(x, y, 1, barHeight, ink)
	s.fill(x+w-1, y, 1, barHeight, ink)
	s.fill(x+2, y+2, (w-4)*int16(pct)/100, barHeight-4, ink)
}

func (s *Screen) fill(x, y, w, h int16, c color.RGBA) {
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			s.d.SetPixel(i, j, c)
		}
	}
}

// window scrolls lines so that sel stays visible and returns the visible
// slice with sel relative to it.
func window(lines []string, sel, rows int) ([]string, int) {
	if len(lines) <= rows {
		return lines, sel
	}
	start := 0
	if sel >= rows {
		start = sel - rows + 1
	}
	return lines[start : start+rows], sel - start
}

func clip(s string, n int) string { return strx.Truncate(s, n) }
