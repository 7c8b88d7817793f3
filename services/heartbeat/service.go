// Package heartbeat publishes periodic sensor telemetry. The period follows
// system.telemetry_interval_s from the retained config/system group. Readings
// are retained so late subscribers start from the last one.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

const DefaultInterval = 60 * time.Second

var (
	TopicSoil    = bus.T("telemetry", "soil")
	TopicBattery = bus.T("telemetry", "battery")

	topicConfigSystem   = bus.T("config", "system")
	topicConfigWatering = bus.T("config", "watering")
)

type Sensors interface {
	ReadSoilHumidity() (float32, error)
	ReadBatteryVoltage() (float32, error)
}

type Service struct {
	Sensors Sensors
	Clock   clockwork.Clock
	Logger  *slog.Logger

	interval time.Duration
	cal      types.WateringConfig
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) error {
	sysSub := conn.Subscribe(topicConfigSystem)
	defer conn.Unsubscribe(sysSub)
	calSub := conn.Subscribe(topicConfigWatering)
	defer conn.Unsubscribe(calSub)

	tick := s.Clock.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("heartbeat stopping")
			return ctx.Err()
		case <-tick.Chan():
			s.publish(conn)
		case msg := <-sysSub.Channel():
			sc, ok := msg.Payload.(types.SystemConfig)
			if !ok || sc.TelemetryIntervalS == 0 {
				continue
			}
			if d := time.Duration(sc.TelemetryIntervalS) * time.Second; d != s.interval {
				s.interval = d
				tick.Reset(d)
				s.Logger.Info("telemetry interval set", "interval", d)
			}
		case msg := <-calSub.Channel():
			if wc, ok := msg.Payload.(types.WateringConfig); ok {
				s.cal = wc
			}
		}
	}
}

func (s *Service) publish(conn *bus.Connection) {
	now := s.Clock.Now().UnixMilli()

	soil := types.SoilReading{TS: now}
	if raw, err := s.Sensors.ReadSoilHumidity(); err != nil {
		soil.Error = string(errcode.Of(err))
		s.Logger.Warn("soil read failed", "err", err)
	} else {
		soil.Raw = raw
		soil.Percent, _ = mathx.InversePercent(raw, float32(s.cal.HumidityWet), float32(s.cal.HumidityDry))
	}
	conn.Publish(conn.NewMessage(TopicSoil, soil, true))

	batt := types.BatteryReading{TS: now}
	if v, err := s.Sensors.ReadBatteryVoltage(); err != nil {
		batt.Error = string(errcode.Of(err))
		s.Logger.Warn("battery read failed", "err", err)
	} else {
		batt.Volts = v
	}
	conn.Publish(conn.NewMessage(TopicBattery, batt, true))
}

// Run publishes telemetry until ctx is cancelled.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) error {
	s.init()
	return s.serviceLoop(ctx, conn)
}

func (s *Service) init() {
	if s.Clock == nil {
		s.Clock = clockwork.NewRealClock()
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.Logger = s.Logger.With("svc", "heartbeat")
	s.interval = DefaultInterval
	s.cal = types.DefaultConfig().Watering
}
