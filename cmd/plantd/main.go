//go:build !rp2040 && !rp2350

// plantd runs the controller on a Linux host or a Raspberry Pi, with the
// monitor API and an optional console on stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/services/harness"
	"plantcode-go/services/monitor"
	"plantcode-go/services/netstate"
	"plantcode-go/services/system"
)

func main() {
	cfgPath := flag.String("config", "plant.yaml", "configuration file")
	histPath := flag.String("history", "chat_history.yaml", "chat history file, empty to disable")
	device := flag.String("device", "host", "embedded defaults to start from")
	listen := flag.String("listen", ":8080", "monitor listen address, empty to disable")
	logFile := flag.String("log-file", "", "rotating log file, in addition to stderr")
	logLevel := flag.String("log-level", "", "error, warn, info or debug; defaults to system.log_level")
	console := flag.Bool("console", false, "serve the test console on stdin/stdout")
	flag.Parse()

	// the level is only known after the config is loaded
	level := new(slog.LevelVar)
	log := newLogger(level, *logFile)
	slog.SetDefault(log)

	opt := system.Options{
		Platform:  hal.DefaultPlatform(),
		Pins:      hal.DefaultPins,
		Logger:    log,
		Device:    *device,
		Store:     config.FileStore{Path: *cfgPath},
		NetProbes: netstate.Probes{WiFi: netstate.HostLink, Time: func() bool { return netstate.ClockSane(time.Now()) }},
		NoSleep:   true,
		// a scripted console leaves the workflow with a main-menu double click
		ExitOnMainMenuDoubleClick: *console,
	}
	if *histPath != "" {
		opt.History = config.FileStore{Path: *histPath}
	}
	sys, err := system.New(opt)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	lvl := *logLevel
	if lvl == "" {
		lvl = sys.Config.Get().System.LogLevel
	}
	if l, err := parseLogLevel(lvl); err != nil {
		log.Warn("bad log level, using info", "err", err)
	} else {
		level.Set(l)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sys.Run(ctx) })
	if *listen != "" {
		mon := monitor.New(sys.Bus, sys.Config, monitor.Options{Addr: *listen, Logger: log})
		g.Go(func() error { return ignoreCanceled(mon.Run(ctx)) })
	}
	if *console {
		g.Go(func() error {
			return ignoreCanceled(harness.ServeLink(ctx, sys, harness.Stdio{In: os.Stdin, Out: os.Stdout}, harness.Options{Logger: log}))
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("plantd stopped", "err", err)
		os.Exit(1)
	}
	log.Info("plantd stopped")
}

// newLogger logs text to stderr and, when path is set, to a rotating file.
// stdout stays free for the console.
func newLogger(level *slog.LevelVar, path string) *slog.Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (must be error, warn, info or debug)", s)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
