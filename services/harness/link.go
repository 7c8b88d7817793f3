package harness

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/services/system"
)

// TopicLink carries the retained link state.
var TopicLink = bus.T("harness", "link")

// LinkState is retained on harness/link.
type LinkState struct {
	Level  string `json:"level"`  // "up", "degraded", "down"
	Status string `json:"status"` // short machine string
	Link   string `json:"link"`
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// Transport opens the byte stream the console is served on.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

// Stdio serves the console on a process's standard streams. Closing it
// is a no-op.
type Stdio struct {
	In  io.Reader
	Out io.Writer
}

func (s Stdio) Open(context.Context) (io.ReadWriteCloser, error) { return stdioRWC{s}, nil }
func (Stdio) String() string                                     { return "stdio" }

type stdioRWC struct{ s Stdio }

func (c stdioRWC) Read(p []byte) (int, error)  { return c.s.In.Read(p) }
func (c stdioRWC) Write(p []byte) (int, error) { return c.s.Out.Write(p) }
func (stdioRWC) Close() error                  { return nil }

// ServeLink keeps a console session open on tr until ctx is cancelled. A
// failed open or a dropped link is retried with a growing delay. A clean
// EOF on a transport that cannot be reopened ends the session.
func ServeLink(ctx context.Context, sys *system.System, tr Transport, opt Options) error {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	conn := sys.Bus.NewConnection("harness-link")
	state := func(level, status string, err error) {
		st := LinkState{Level: level, Status: status, Link: tr.String(), TS: opt.Clock.Now().UnixMilli()}
		if err != nil {
			st.Error = err.Error()
		}
		conn.Publish(conn.NewMessage(TopicLink, st, true))
	}
	newBackoff := func() func() time.Duration { return backoffSeq(250*time.Millisecond, 5*time.Second) }
	backoff := newBackoff()

	for {
		rwc, err := tr.Open(ctx)
		if err != nil {
			state("degraded", "open_failed_retrying", err)
			if !sleep(ctx, opt.Clock, backoff()) {
				state("down", "stopped", nil)
				return ctx.Err()
			}
			continue
		}

		state("up", "link_established", nil)
		backoff = newBackoff()
		stop := context.AfterFunc(ctx, func() { _ = rwc.Close() })
		err = New(sys, rwc, opt).Serve(ctx, rwc)
		stop()
		_ = rwc.Close()

		switch {
		case ctx.Err() != nil:
			state("down", "stopped", nil)
			return ctx.Err()
		case err == nil || errors.Is(err, io.EOF):
			if _, ok := tr.(Stdio); ok {
				state("down", "eof", nil)
				return nil
			}
		}
		state("degraded", "link_lost_retrying", err)
		if !sleep(ctx, opt.Clock, backoff()) {
			state("down", "stopped", nil)
			return ctx.Err()
		}
	}
}

func backoffSeq(first, limit time.Duration) func() time.Duration {
	cur := first
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > limit {
			cur = limit
		}
		return d
	}
}

func sleep(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-clk.After(d):
		return true
	}
}
