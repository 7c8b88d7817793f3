package harness

import (
	"context"
	"strconv"
	"time"

	"plantcode-go/services/hal"
	"plantcode-go/types"
)

func (s *Server) input(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("input", "missing action: input <poll|status|clear>")
	}
	switch args[0] {
	case "poll":
		d, err := durationArg(args[1:], time.Millisecond, defaultPoll, maxPoll)
		if err != nil {
			return err
		}
		return s.inputPoll(ctx, d)
	case "status":
		var st types.InputStatus
		err := s.sys.Do(ctx, func() {
			st = s.sys.Input.Status()
			st.Mode = s.sys.Modes.Current().String()
		})
		if err != nil {
			return err
		}
		r := okReply("input_status")
		r["input"] = st
		s.emit(r)
		return nil
	case "clear":
		if err := s.sys.Do(ctx, s.sys.Input.ClearAll); err != nil {
			return err
		}
		r := okReply("input_clear")
		r["message"] = "all input events cleared"
		s.emit(r)
		return nil
	}
	return usage("input", "unknown action %s: input <poll|status|clear>", args[0])
}

// inputPoll takes over the main loop for d and reports every rotation step
// and gesture as it is classified.
func (s *Server) inputPoll(ctx context.Context, d time.Duration) error {
	r := Reply{"command": "input_poll", "status": "polling", "duration_ms": d.Milliseconds()}
	s.emit(r)

	events := 0
	err := s.sys.Do(ctx, func() {
		in := s.sys.Input
		in.ClearAll()
		deadline := s.clock.Now().Add(d)
		for ctx.Err() == nil && s.clock.Now().Before(deadline) {
			in.Tick()
			for {
				step, ok := in.PollRotation()
				if !ok {
					break
				}
				dir := "CW"
				if step < 0 {
					dir = "CCW"
				}
				s.emit(Reply{"event": "encoder", "delta": step, "direction": dir})
				events++
			}
			for _, g := range []struct {
				take func() bool
				name string
			}{
				{in.TakeClick, "single_click"},
				{in.TakeDoubleClick, "double_click"},
				{in.TakeLongPress, "long_press"},
			} {
				if g.take() {
					s.emit(Reply{"event": "button", "type": g.name})
					events++
				}
			}
			s.clock.Sleep(pollStep)
		}
	})
	if err != nil {
		return err
	}
	s.emit(Reply{"command": "input_poll", "status": "completed", "events_detected": events})
	return nil
}

// interactive runs the workflow machine on the main loop, outside the mode
// controller, until the machine asks to exit or the time runs out.
func (s *Server) interactive(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "poll" {
		return usage("interactive", "usage: interactive poll [s]")
	}
	d, err := durationArg(args[1:], time.Second, time.Minute, 10*time.Minute)
	if err != nil {
		return err
	}
	s.emit(Reply{"command": "interactive_poll", "status": "starting", "timeout_ms": d.Milliseconds()})

	var (
		exited bool
		last   types.WorkflowState
	)
	err = s.sys.Do(ctx, func() {
		m, in := s.sys.Interactive, s.sys.Input
		resume := s.sys.Modes.Current() == types.ModeInteractive

		s.sys.Board.Gates.Set(hal.GateScreen, true)
		m.Enter(ctx)
		last = m.State()
		s.emit(Reply{"event": "state", "state": last.String()})

		deadline := s.clock.Now().Add(d)
		for ctx.Err() == nil && s.clock.Now().Before(deadline) {
			in.Tick()
			m.Tick(ctx)
			if st := m.State(); st != last {
				last = st
				s.emit(Reply{"event": "state", "state": st.String(), "selected": m.Selected()})
			}
			if m.ShouldExit() {
				exited = true
				break
			}
			s.clock.Sleep(10 * time.Millisecond)
		}
		m.Exit(ctx)
		if resume {
			m.Enter(ctx)
		}
	})
	if err != nil {
		return err
	}
	r := Reply{"command": "interactive_poll", "status": "completed", "state": last.String()}
	if !exited {
		r["status"] = "timeout"
	}
	s.emit(r)
	return nil
}

func (s *Server) mode(ctx context.Context, _ []string) error {
	var cur types.SystemMode
	var commits int
	if err := s.sys.Do(ctx, func() {
		cur = s.sys.Modes.Current()
		commits = s.sys.Modes.Commits()
	}); err != nil {
		return err
	}
	r := okReply("mode")
	r["mode"] = cur.String()
	r["changes"] = commits
	s.emit(r)
	return nil
}

func (s *Server) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("run", "missing action: run <force|status>")
	}
	switch args[0] {
	case "force":
		if err := s.sys.RunMode.ForceWater(); err != nil {
			return err
		}
		r := okReply("run_force")
		r["run"] = s.sys.RunMode.Status()
		s.emit(r)
		return nil
	case "status":
		r := okReply("run_status")
		r["run"] = s.sys.RunMode.Status()
		s.emit(r)
		return nil
	}
	return usage("run", "unknown action %s", args[0])
}

// durationArg parses an optional first argument counted in unit. Missing
// gives def; values above limit are clamped.
func durationArg(args []string, unit, def, limit time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || n == 0 {
		return 0, usage("duration", "invalid duration %q", args[0])
	}
	d := time.Duration(n) * unit
	if d > limit {
		d = limit
	}
	return d, nil
}
