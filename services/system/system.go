// Package system assembles the device: hardware, input, the three operating
// modes and the background services, all on one bus.
package system

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"plantcode-go/bus"
	"plantcode-go/services/assistant"
	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/services/heartbeat"
	"plantcode-go/services/input"
	"plantcode-go/services/interactive"
	"plantcode-go/services/modectl"
	"plantcode-go/services/netstate"
	"plantcode-go/services/runmode"
	"plantcode-go/services/ui"
	"plantcode-go/types"
)

const busQueueLen = 16

// Presenter is everything the modes draw.
type Presenter interface {
	interactive.Presenter
	ShowDashboard(v types.DashboardView, full bool)
	ShowShutdown()
}

type Options struct {
	Platform hal.Platform
	Pins     hal.Pins
	Board    hal.Options

	Clock  clockwork.Clock
	Logger *slog.Logger

	// Device picks the embedded configuration defaults.
	Device string
	Store  config.Persister
	// History, when set, keeps chat history across restarts.
	History config.Persister

	// Presenter defaults to a Screen on the board display, or to a
	// LogPresenter on headless platforms.
	Presenter  Presenter
	HTTPClient *http.Client
	NetProbes  netstate.Probes

	NoSleep                   bool
	ExitOnMainMenuDoubleClick bool
}

type System struct {
	Bus         *bus.Bus
	Board       *hal.Board
	Config      *config.Store
	Input       *input.Manager
	Modes       *modectl.Controller
	Interactive *interactive.Machine
	RunMode     *runmode.Mode
	Off         *OffMode
	Assistant   *assistant.Client
	Net         *netstate.State
	HAL         *hal.Service
	Heartbeat   *heartbeat.Service
	Presenter   Presenter

	opt Options
	log *slog.Logger
}

func New(opt Options) (*System, error) {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Store == nil {
		opt.Store = &config.MemoryStore{}
	}
	opt.Board.Clock = opt.Clock
	opt.Board.Logger = opt.Logger

	s := &System{Bus: bus.NewBus(busQueueLen, "+", "#"), opt: opt, log: opt.Logger.With("svc", "system")}

	s.Config = config.NewStore(opt.Store, config.Options{
		Device: opt.Device,
		Conn:   s.Bus.NewConnection("config"),
		Logger: opt.Logger,
	})
	if err := s.Config.Load(); err != nil {
		// keep running on defaults; the harness can repair the file
		s.log.Error("config load failed, using defaults", "err", err)
	}

	board, err := hal.Open(opt.Platform, opt.Pins, opt.Board)
	if err != nil {
		return nil, err
	}
	s.Board = board
	s.HAL = hal.NewService(board, s.Bus.NewConnection("hal"))

	s.Presenter = opt.Presenter
	if s.Presenter == nil {
		if d := board.Display(); d != nil {
			s.Presenter = ui.NewScreen(d, opt.Logger)
		} else {
			s.Presenter = ui.NewLogPresenter(opt.Logger)
		}
	}

	s.Net = netstate.New(s.Bus.NewConnection("net"), opt.Logger)

	hist := assistant.NewHistory(assistant.MaxTurns)
	if opt.History != nil {
		if b, err := opt.History.Load(); err == nil {
			if err := hist.Unmarshal(b); err != nil {
				s.log.Warn("chat history unreadable", "err", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("chat history load failed", "err", err)
		}
	}
	s.Assistant = assistant.New(s.Config, assistant.Options{
		Sensors:    board,
		TimeSynced: s.Net.TimeSynced,
		History:    hist,
		HTTPClient: opt.HTTPClient,
		Clock:      opt.Clock,
		Logger:     opt.Logger,
	})

	s.Input = input.NewManager(input.Pins{
		EncoderA:        board.EncoderA,
		EncoderB:        board.EncoderB,
		Button:          board.Button,
		ButtonActiveLow: true,
	}, input.Config{Clock: opt.Clock, Logger: opt.Logger})

	s.Modes = modectl.New(input.NewSelector(board.ModeA, board.ModeB), modectl.Config{
		Clock:  opt.Clock,
		Logger: opt.Logger,
		Conn:   s.Bus.NewConnection("modectl"),
		Input:  s.Input,
	})

	s.Off = &OffMode{
		Pump:      board.Pump,
		Presenter: s.Presenter,
		Gates:     board.Gates,
		Sleeper:   board,
		Clock:     opt.Clock,
		Logger:    opt.Logger.With("svc", "off"),
		Settle:    ShutdownSettle,
		NoSleep:   opt.NoSleep,
	}

	s.RunMode = runmode.New(runmode.Deps{
		Sensors:   board,
		Pump:      board.Pump,
		Presenter: s.Presenter,
		Config:    s.Config,
	}, runmode.Options{
		Clock:       opt.Clock,
		Logger:      opt.Logger,
		Conn:        s.Bus.NewConnection("runmode"),
		ScreenPower: func(on bool) { board.Gates.Set(hal.GateScreen, on) },
	})

	s.Interactive = interactive.New(interactive.Deps{
		Input:     s.Input,
		Sensors:   board,
		Pump:      board.Pump,
		Presenter: s.Presenter,
		Assistant: s.Assistant,
		Config:    s.Config,
		Net:       s.Net,
	}, interactive.Options{
		Clock:                     opt.Clock,
		Logger:                    opt.Logger,
		Conn:                      s.Bus.NewConnection("interactive"),
		ExitOnMainMenuDoubleClick: opt.ExitOnMainMenuDoubleClick,
	})

	s.Modes.Register(types.ModeOff, s.Off)
	s.Modes.Register(types.ModeRun, s.RunMode)
	s.Modes.Register(types.ModeInteractive, modectl.Hooks{
		OnEnter: func(ctx context.Context) {
			board.Gates.Set(hal.GateScreen, true)
			s.Interactive.Enter(ctx)
		},
		OnExit: s.Interactive.Exit,
		OnTick: s.Interactive.Tick,
	})

	s.Heartbeat = &heartbeat.Service{Sensors: board, Clock: opt.Clock, Logger: opt.Logger}
	return s, nil
}

// Do runs fn on the main loop.
func (s *System) Do(ctx context.Context, fn func()) error { return s.Modes.Do(ctx, fn) }

// Run starts every loop and blocks until ctx is cancelled or one of them
// fails. Cancellation is not an error.
func (s *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Input.Run(ctx) })
	g.Go(func() error { return s.Modes.Run(ctx) })
	g.Go(func() error { return s.HAL.Run(ctx) })
	g.Go(func() error { return s.Heartbeat.Run(ctx, s.Bus.NewConnection("heartbeat")) })
	if s.opt.NetProbes.WiFi != nil || s.opt.NetProbes.Time != nil {
		g.Go(func() error {
			return s.Net.Watch(ctx, s.opt.Clock, netstate.DefaultPeriod, s.opt.NetProbes)
		})
	}
	s.log.Info("system running", "platform", s.Board.Name)

	err := g.Wait()
	s.Board.Shutdown()
	s.saveHistory()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *System) saveHistory() {
	if s.opt.History == nil {
		return
	}
	b, err := s.Assistant.History().Marshal()
	if err == nil {
		err = s.opt.History.Save(b)
	}
	if err != nil {
		s.log.Warn("chat history save failed", "err", err)
	}
}
