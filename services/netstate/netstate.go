// Package netstate tracks network reachability and wall-clock validity and
// publishes changes on net/status.
package netstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/types"
)

const DefaultPeriod = 30 * time.Second

var TopicStatus = bus.T("net", "status")

// Probes report the current condition. Nil probes leave the flag alone.
type Probes struct {
	WiFi func() bool
	Time func() bool
}

type State struct {
	mu   sync.Mutex
	st   types.NetStatus
	conn *bus.Connection
	log  *slog.Logger
}

func New(conn *bus.Connection, log *slog.Logger) *State {
	if log == nil {
		log = slog.Default()
	}
	s := &State{conn: conn, log: log.With("svc", "netstate")}
	s.publish(s.st)
	return s
}

func (s *State) WiFiConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.WiFi
}

func (s *State) TimeSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TimeSynced
}

func (s *State) Status() types.NetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *State) SetWiFi(up bool) { s.update(func(st *types.NetStatus) { st.WiFi = up }) }

func (s *State) SetTimeSynced(ok bool) { s.update(func(st *types.NetStatus) { st.TimeSynced = ok }) }

func (s *State) update(fn func(*types.NetStatus)) {
	s.mu.Lock()
	next := s.st
	fn(&next)
	changed := next != s.st
	s.st = next
	s.mu.Unlock()
	if changed {
		s.log.Info("network status", "wifi", next.WiFi, "time_synced", next.TimeSynced)
		s.publish(next)
	}
}

func (s *State) publish(st types.NetStatus) {
	if s.conn != nil {
		s.conn.Publish(s.conn.NewMessage(TopicStatus, st, true))
	}
}

// Watch runs the probes now and then every period until ctx is cancelled.
func (s *State) Watch(ctx context.Context, clock clockwork.Clock, period time.Duration, p Probes) error {
	if period <= 0 {
		period = DefaultPeriod
	}
	probe := func() {
		if p.WiFi != nil {
			s.SetWiFi(p.WiFi())
		}
		if p.Time != nil {
			s.SetTimeSynced(p.Time())
		}
	}
	probe()
	tick := clock.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.Chan():
			probe()
		}
	}
}

// ClockSane reports whether now looks like a synchronised wall clock rather
// than a clock counting from power-on.
func ClockSane(now time.Time) bool { return now.Year() >= 2024 }
