//go:build !rp2040 && !rp2350 && !rpi

// plant-sim runs the whole controller on host fakes and drives its pins
// from the keyboard.
//
//	left/right  turn the encoder one detent
//	space       click        d  double click     l  long press
//	1 2 3       mode switch OFF, RUN, INTERACTIVE
//	w s         soil drier / wetter
//	q, Ctrl-C   quit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dikkadev/prettyslog"
	"github.com/nsf/termbox-go"
	"golang.org/x/sync/errgroup"

	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/services/system"
	"plantcode-go/x/mathx"
)

// Encoder levels after each quarter step, starting from the pulled-up
// detent (A high, B high).
var (
	cwSteps  = [][2]bool{{false, true}, {false, false}, {true, false}, {true, true}}
	ccwSteps = [][2]bool{{true, false}, {false, false}, {false, true}, {true, true}}
)

const quarterStep = 3 * time.Millisecond

type texter interface{ Text() []string }

type sim struct {
	host *hal.Host
	pins hal.Pins
	sys  *system.System

	mu   sync.Mutex
	soil uint16
	mode string
}

func main() {
	logPath := flag.String("log", "plant-sim.log", "log file")
	cfgPath := flag.String("config", "", "configuration file, empty for in-memory")
	flag.Parse()

	lf, err := os.Create(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "plant-sim:", err)
		os.Exit(1)
	}
	defer lf.Close()
	log := slog.New(prettyslog.NewPrettyslogHandler("sim",
		prettyslog.WithLevel(slog.LevelDebug),
		prettyslog.WithWriter(lf),
	))
	slog.SetDefault(log)

	s := &sim{host: hal.NewHost(), pins: hal.DefaultPins, soil: 1800, mode: "INTERACTIVE"}
	hal.SeedNominal(s.host, s.pins)

	var store config.Persister = &config.MemoryStore{}
	if *cfgPath != "" {
		store = config.FileStore{Path: *cfgPath}
	}
	s.sys, err = system.New(system.Options{
		Platform: s.host.Platform(),
		Pins:     s.pins,
		Logger:   log,
		Device:   "host",
		Store:    store,
		NoSleep:  true,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "plant-sim:", err)
		os.Exit(1)
	}

	if err := termbox.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "plant-sim:", err)
		os.Exit(1)
	}
	defer termbox.Close()
	termbox.SetInputMode(termbox.InputEsc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sys.Run(ctx) })
	g.Go(func() error {
		defer cancel()
		return s.keys(ctx)
	})
	g.Go(func() error { return s.render(ctx) })
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("simulator stopped", "err", err)
	}
}

// keys turns key presses into pin activity until quit.
func (s *sim) keys(ctx context.Context) error {
	evs := make(chan termbox.Event)
	go func() {
		for {
			ev := termbox.PollEvent()
			select {
			case evs <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		var ev termbox.Event
		select {
		case <-ctx.Done():
			termbox.Interrupt()
			return nil
		case ev = <-evs:
		}
		if ev.Type != termbox.EventKey {
			continue
		}
		switch {
		case ev.Key == termbox.KeyCtrlC || ev.Ch == 'q':
			return nil
		case ev.Key == termbox.KeyArrowRight:
			s.turn(cwSteps)
		case ev.Key == termbox.KeyArrowLeft:
			s.turn(ccwSteps)
		case ev.Key == termbox.KeySpace:
			s.press(80 * time.Millisecond)
		case ev.Ch == 'd':
			s.press(70 * time.Millisecond)
			time.Sleep(60 * time.Millisecond)
			s.press(70 * time.Millisecond)
		case ev.Ch == 'l':
			s.press(1200 * time.Millisecond)
		case ev.Ch == '1':
			s.setMode(false, true, "OFF")
		case ev.Ch == '2':
			s.setMode(true, false, "RUN")
		case ev.Ch == '3':
			s.setMode(true, true, "INTERACTIVE")
		case ev.Ch == 'w':
			s.setSoil(100)
		case ev.Ch == 's':
			s.setSoil(-100)
		}
	}
}

func (s *sim) turn(seq [][2]bool) {
	a, b := s.host.Pin(s.pins.EncoderA), s.host.Pin(s.pins.EncoderB)
	for _, lv := range seq {
		a.Set(lv[0])
		b.Set(lv[1])
		time.Sleep(quarterStep)
	}
}

// press holds the active-low button for d.
func (s *sim) press(d time.Duration) {
	btn := s.host.Pin(s.pins.EncoderSW)
	btn.Set(false)
	time.Sleep(d)
	btn.Set(true)
}

func (s *sim) setMode(a, b bool, name string) {
	s.host.Pin(s.pins.ModeA).Set(a)
	s.host.Pin(s.pins.ModeB).Set(b)
	s.mu.Lock()
	s.mode = name
	s.mu.Unlock()
}

// setSoil moves the soil reading by delta, within the 12-bit range.
func (s *sim) setSoil(delta int) {
	s.mu.Lock()
	s.soil = uint16(mathx.Clamp(int(s.soil)+delta, 0, 4095))
	v := s.soil
	s.mu.Unlock()
	s.host.ADC(s.pins.Soil).SetValue(v)
}

// render redraws the screen text and a status line ten times a second.
func (s *sim) render(ctx context.Context) error {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	scr, _ := s.sys.Presenter.(texter)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		_ = termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
		y := 0
		put(0, y, "+------------------------+")
		if scr != nil {
			for _, l := range scr.Text() {
				y++
				put(0, y, "| "+pad(l, 22)+" |")
			}
		}
		y++
		put(0, y, "+------------------------+")
		y += 2
		gates := s.sys.Board.Gates.Status()
		s.mu.Lock()
		mode, soil := s.mode, s.soil
		s.mu.Unlock()
		put(0, y, fmt.Sprintf("switch %-11s soil %4d  pump duty %3d", mode, soil, s.host.PWM(s.pins.Pump).Duty()))
		y++
		put(0, y, fmt.Sprintf("gates  sensor %-5t pump %-5t screen %-5t", gates.Sensor, gates.Pump, gates.Screen))
		y += 2
		put(0, y, "<- -> turn  space click  d double  l long  1/2/3 mode  w/s soil  q quit")
		_ = termbox.Flush()
	}
}

func put(x, y int, s string) {
	for _, r := range s {
		termbox.SetCell(x, y, r, termbox.ColorDefault, termbox.ColorDefault)
		x++
	}
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + fmt.Sprintf("%*s", n-len(s), "")
}
