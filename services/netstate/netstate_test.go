package netstate

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/types"
)

func TestState_PublishesOnlyChanges(t *testing.T) {
	b := bus.NewBus(8, "+", "#")
	c := b.NewConnection("test")
	s := New(b.NewConnection("net"), nil)
	sub := c.Subscribe(TopicStatus)
	if m := <-sub.Channel(); m.Payload.(types.NetStatus) != (types.NetStatus{}) {
		t.Fatalf("initial=%+v", m.Payload)
	}

	s.SetWiFi(true)
	s.SetWiFi(true)
	s.SetTimeSynced(true)

	want := []types.NetStatus{{WiFi: true}, {WiFi: true, TimeSynced: true}}
	for _, w := range want {
		select {
		case m := <-sub.Channel():
			if got := m.Payload.(types.NetStatus); got != w {
				t.Fatalf("got %+v want %+v", got, w)
			}
		case <-time.After(time.Second):
			t.Fatal("missing update")
		}
	}
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected update %+v", m.Payload)
	default:
	}
	if !s.WiFiConnected() || !s.TimeSynced() {
		t.Fatal("flags not set")
	}
}

func TestWatch_ProbesPeriodically(t *testing.T) {
	s := New(nil, nil)
	clk := clockwork.NewFakeClock()
	up := make(chan bool, 1)
	up <- false
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Watch(ctx, clk, time.Second, Probes{
		WiFi: func() bool {
			select {
			case v := <-up:
				return v
			default:
				return true
			}
		},
		Time: func() bool { return ClockSane(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) },
	})
	clk.BlockUntil(1)
	clk.Advance(time.Second)

	deadline := time.Now().Add(time.Second)
	for !s.WiFiConnected() {
		if time.Now().After(deadline) {
			t.Fatal("second probe not applied")
		}
		time.Sleep(time.Millisecond)
	}
	if !s.TimeSynced() {
		t.Fatal("time not marked synced")
	}
	if ClockSane(time.Unix(0, 0)) {
		t.Fatal("epoch accepted as synced")
	}
}
