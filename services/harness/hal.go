package harness

import (
	"context"
	"strconv"

	"plantcode-go/errcode"
	"plantcode-go/services/hal"
	"plantcode-go/types"
	"plantcode-go/x/mathx"
)

// request sends payload to hal/ctl/<verb> and waits for the reply. An
// ErrorReply comes back as an *errcode.E carrying its code.
func (s *Server) request(ctx context.Context, verb string, payload any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opt.RequestTimeout)
	defer cancel()
	m, err := s.conn.RequestWait(ctx, s.conn.NewMessage(hal.CtlTopic(verb), payload, false))
	if err != nil {
		return nil, errcode.Wrap(errcode.Timeout, "hal."+verb, err)
	}
	if e, ok := m.Payload.(types.ErrorReply); ok {
		return nil, &errcode.E{C: errcode.Code(e.Error), Op: "hal." + verb}
	}
	return m.Payload, nil
}

func (s *Server) read(ctx context.Context, args []string) error {
	what := "all"
	if len(args) > 0 {
		what = args[0]
	}
	if what != "all" && what != "humidity" && what != "battery" {
		return usage("read", "unknown sensor %s: read <all|humidity|battery>", what)
	}
	p, err := s.request(ctx, hal.CtlRead, nil)
	if err != nil {
		return err
	}
	rd, ok := p.(types.Readings)
	if !ok {
		return &errcode.E{C: errcode.InvalidPayload, Op: "read"}
	}
	if rd.Soil.Error == "" {
		cal := s.sys.Config.Get().Watering
		rd.Soil.Percent, _ = mathx.InversePercent(rd.Soil.Raw, float32(cal.HumidityWet), float32(cal.HumidityDry))
	}

	r := okReply("read_" + what)
	switch what {
	case "humidity":
		r["soil"] = rd.Soil
	case "battery":
		r["battery"] = rd.Battery
	default:
		r["soil"] = rd.Soil
		r["battery"] = rd.Battery
	}
	if (what != "battery" && rd.Soil.Error != "") || (what != "humidity" && rd.Battery.Error != "") {
		r["status"] = "error"
	}
	s.emit(r)
	return nil
}

func (s *Server) pump(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("pump", "missing action: pump <run <duty> <ms>|stop|status>")
	}
	switch args[0] {
	case "run":
		if len(args) != 3 {
			return usage("pump", "usage: pump run <duty 0-255> <ms>")
		}
		duty, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return usage("pump", "invalid duty %q", args[1])
		}
		ms, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return usage("pump", "invalid duration %q", args[2])
		}
		if _, err := s.request(ctx, hal.CtlPumpRun, types.PumpRunReq{Duty: uint8(duty), Ms: uint32(ms)}); err != nil {
			return err
		}
		r := okReply("pump_run")
		r["duty"] = duty
		r["duration_ms"] = ms
		s.emit(r)
		return nil
	case "stop":
		if _, err := s.request(ctx, hal.CtlPumpStop, nil); err != nil {
			return err
		}
		s.emit(okReply("pump_stop"))
		return nil
	case "status":
		r := okReply("pump_status")
		r["pump"] = s.sys.Board.Pump.Status()
		s.emit(r)
		return nil
	}
	return usage("pump", "unknown action %s", args[0])
}

func (s *Server) power(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r := okReply("power")
		r["power"] = s.sys.Board.Gates.Status()
		s.emit(r)
		return nil
	}
	if len(args) != 2 {
		return usage("power", "usage: power <sensor|pump|screen> <on|off>")
	}
	var on bool
	switch args[1] {
	case "on":
		on = true
	case "off":
	default:
		return usage("power", "state must be on or off, got %q", args[1])
	}
	if _, err := s.request(ctx, hal.CtlPower, types.PowerReq{Gate: args[0], On: on}); err != nil {
		return err
	}
	r := okReply("power")
	r["power"] = s.sys.Board.Gates.Status()
	s.emit(r)
	return nil
}
