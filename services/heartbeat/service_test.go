package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/types"
)

type sensors struct {
	soil float32
	err  error
}

func (s sensors) ReadSoilHumidity() (float32, error)   { return s.soil, s.err }
func (s sensors) ReadBatteryVoltage() (float32, error) { return 3.8, nil }

func recv(t *testing.T, sub *bus.Subscription) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(time.Second):
		t.Fatalf("nothing on %v", sub.Topic())
		return nil
	}
}

func TestHeartbeat_PublishesOnInterval(t *testing.T) {
	b := bus.NewBus(8, "+", "#")
	cfg := b.NewConnection("cfg")
	c := b.NewConnection("test")
	clk := clockwork.NewFakeClock()

	sc := types.DefaultConfig().System
	sc.TelemetryIntervalS = 10
	cfg.Publish(cfg.NewMessage(topicConfigSystem, sc, true))

	soilSub := c.Subscribe(TopicSoil)
	battSub := c.Subscribe(TopicBattery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Sensors: sensors{soil: 1800}, Clock: clk}
	go s.Run(ctx, b.NewConnection("heartbeat"))

	clk.BlockUntil(1)
	// the retained config may land after the first wait; poll until the
	// ticker runs at the configured period
	deadline := time.Now().Add(time.Second)
	for {
		clk.Advance(10 * time.Second)
		select {
		case m := <-soilSub.Channel():
			r := m.Payload.(types.SoilReading)
			if r.Raw != 1800 || r.Percent != 50 || r.Error != "" {
				t.Fatalf("soil=%+v", r)
			}
			if v := recv(t, battSub).Payload.(types.BatteryReading); v.Volts != 3.8 {
				t.Fatalf("battery=%+v", v)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no telemetry at the configured interval")
		}
	}
}

func TestHeartbeat_ReportsSensorError(t *testing.T) {
	b := bus.NewBus(8, "+", "#")
	c := b.NewConnection("test")
	soilSub := c.Subscribe(TopicSoil)

	s := &Service{Sensors: sensors{err: errors.New("adc")}, Clock: clockwork.NewFakeClock()}
	s.init()
	s.publish(b.NewConnection("hb"))

	if r := recv(t, soilSub).Payload.(types.SoilReading); r.Error != "error" {
		t.Fatalf("soil=%+v", r)
	}
}
