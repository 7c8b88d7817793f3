package hal

import (
	"context"
	"time"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/types"
)

const (
	CtlRead      = "read"
	CtlPumpRun   = "pump_run"
	CtlPumpStop  = "pump_stop"
	CtlPower     = "power"
	maxPumpRunMs = 60000
)

var (
	TopicPower = bus.T("hal", "power")
	TopicPump  = bus.T("hal", "pump")

	topicCtl = bus.T("hal", "ctl", "+")
)

// CtlTopic is the request topic for one control verb.
func CtlTopic(verb string) bus.Topic { return bus.T("hal", "ctl", verb) }

// Service exposes the board on the bus: retained gate and pump state, and
// request/reply controls under hal/ctl/<verb>.
type Service struct {
	b    *Board
	conn *bus.Connection
	ctl  *bus.Subscription

	// state changes from the pump goroutine are folded into one pending
	// publication handled by Run
	dirty chan struct{}
}

func NewService(b *Board, conn *bus.Connection) *Service {
	// subscribed here so requests made before Run starts are queued
	s := &Service{b: b, conn: conn, ctl: conn.Subscribe(topicCtl), dirty: make(chan struct{}, 1)}
	b.Gates.onChange(s.markDirty)
	b.Pump.onChange(s.markDirty)
	return s
}

func (s *Service) markDirty() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Service) Run(ctx context.Context) error {
	defer s.conn.Unsubscribe(s.ctl)

	s.publishState()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.dirty:
			s.publishState()
		case m := <-s.ctl.Channel():
			s.handle(m)
		}
	}
}

func (s *Service) publishState() {
	s.conn.Publish(s.conn.NewMessage(TopicPower, s.b.Gates.Status(), true))
	s.conn.Publish(s.conn.NewMessage(TopicPump, s.b.Pump.Status(), true))
}

func (s *Service) handle(m *bus.Message) {
	verb, _ := m.Topic.At(m.Topic.Len() - 1).(string)
	switch verb {
	case CtlRead:
		s.reply(m, s.read())

	case CtlPumpRun:
		p, ok := m.Payload.(types.PumpRunReq)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		if p.Ms == 0 || p.Ms > maxPumpRunMs {
			s.replyErr(m, errcode.InvalidParams)
			return
		}
		if err := s.b.Pump.StartTimed(p.Duty, time.Duration(p.Ms)*time.Millisecond); err != nil {
			s.replyErr(m, errcode.Of(err))
			return
		}
		s.replyOK(m)

	case CtlPumpStop:
		s.b.Pump.Stop()
		s.replyOK(m)

	case CtlPower:
		p, ok := m.Payload.(types.PowerReq)
		if !ok {
			s.replyErr(m, errcode.InvalidPayload)
			return
		}
		g, err := ParseGate(p.Gate)
		if err != nil {
			s.replyErr(m, errcode.Of(err))
			return
		}
		s.b.Gates.Set(g, p.On)
		s.replyOK(m)

	default:
		s.replyErr(m, errcode.Unsupported)
	}
}

func (s *Service) read() types.Readings {
	now := s.b.clock.Now().UnixMilli()
	var r types.Readings
	raw, err := s.b.Soil.Read()
	r.Soil = types.SoilReading{Raw: raw, TS: now}
	if err != nil {
		r.Soil.Error = string(errcode.Of(err))
	}
	v, err := s.b.Battery.Read()
	r.Battery = types.BatteryReading{Volts: v, TS: now}
	if err != nil {
		r.Battery.Error = string(errcode.Of(err))
	}
	return r
}

func (s *Service) reply(m *bus.Message, payload any) {
	if m.CanReply() {
		s.conn.Reply(m, payload, false)
	}
}

func (s *Service) replyOK(m *bus.Message) { s.reply(m, types.OKReply{OK: true}) }

func (s *Service) replyErr(m *bus.Message, code errcode.Code) {
	if code == "" || code == errcode.OK {
		code = errcode.Error
	}
	s.reply(m, types.ErrorReply{OK: false, Error: string(code)})
}
