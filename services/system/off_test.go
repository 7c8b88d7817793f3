package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"plantcode-go/services/hal"
)

type callLog struct{ calls []string }

func (l *callLog) add(format string, args ...any) { l.calls = append(l.calls, fmt.Sprintf(format, args...)) }

type logPump struct{ l *callLog }

func (p logPump) Stop() { p.l.add("pump stop") }

type logGates struct{ l *callLog }

func (g logGates) Set(gate hal.Gate, on bool) bool {
	g.l.add("%s %t", gate, on)
	return true
}

type logScreen struct{ l *callLog }

func (s logScreen) ShowShutdown()       { s.l.add("shutdown screen") }
func (s logScreen) TriggerFullRefresh() { s.l.add("full refresh") }

type logSleeper struct {
	l   *callLog
	err error
}

func (s logSleeper) Sleep(context.Context) error {
	s.l.add("sleep")
	return s.err
}

func newOff(l *callLog) *OffMode {
	return &OffMode{
		Pump:      logPump{l},
		Presenter: logScreen{l},
		Gates:     logGates{l},
		Sleeper:   logSleeper{l: l},
		Clock:     clockwork.NewFakeClock(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestOffMode_EnterOrder(t *testing.T) {
	l := &callLog{}
	newOff(l).Enter(context.Background())

	want := "pump stop,screen true,shutdown screen,sensor false,pump false,screen false,sleep"
	if got := strings.Join(l.calls, ","); got != want {
		t.Fatalf("calls\n got %s\nwant %s", got, want)
	}
}

func TestOffMode_NoSleep(t *testing.T) {
	l := &callLog{}
	o := newOff(l)
	o.NoSleep = true
	o.Enter(context.Background())

	if last := l.calls[len(l.calls)-1]; last != "screen false" {
		t.Fatalf("last call %q, want screen false", last)
	}
}

func TestOffMode_SleepErrorIsLogged(t *testing.T) {
	l := &callLog{}
	o := newOff(l)
	o.Sleeper = logSleeper{l: l, err: errors.New("no wake source")}
	o.Enter(context.Background()) // must not panic
	if l.calls[len(l.calls)-1] != "sleep" {
		t.Fatalf("calls %v", l.calls)
	}
}

func TestOffMode_SettleWaitsForPanel(t *testing.T) {
	l := &callLog{}
	o := newOff(l)
	clk := clockwork.NewFakeClock()
	o.Clock = clk
	o.Settle = ShutdownSettle

	done := make(chan struct{})
	go func() {
		o.Enter(context.Background())
		close(done)
	}()

	clk.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("entered off before the shutdown frame settled")
	default:
	}
	clk.Advance(ShutdownSettle)
	<-done
}

func TestOffMode_ExitPowersScreen(t *testing.T) {
	l := &callLog{}
	newOff(l).Exit(context.Background())
	if got := strings.Join(l.calls, ","); got != "screen true,full refresh" {
		t.Fatalf("calls %s", got)
	}
}
