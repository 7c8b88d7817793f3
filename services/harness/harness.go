// Package harness is the line-oriented test console. Each line is one
// command; every reply is one or more JSON objects, one per line, and the
// end of a command's output is marked by EOT on its own line.
package harness

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/jonboulle/clockwork"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/services/system"
)

// EOT terminates the output of every command.
const EOT = "<<EOT>>"

const (
	defaultPoll  = 5 * time.Second
	maxPoll      = 60 * time.Second
	pollStep     = time.Millisecond
	maxLineBytes = 512
)

// Reply is one JSON line. Command replies carry "command" and "status",
// streamed events carry "event".
type Reply map[string]any

type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
	// RequestTimeout bounds bus requests to the HAL.
	RequestTimeout time.Duration
}

type handler func(ctx context.Context, args []string) error

type command struct {
	name  string
	usage string
	help  string
	run   handler
}

// Server executes harness commands against a running System.
type Server struct {
	sys   *system.System
	conn  *bus.Connection
	clock clockwork.Clock
	log   *slog.Logger
	opt   Options

	mu  sync.Mutex // serialises writers
	enc *json.Encoder
	w   io.Writer

	cmds  map[string]*command
	order []string
}

func New(sys *system.System, w io.Writer, opt Options) *Server {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 2 * time.Second
	}
	s := &Server{
		sys:   sys,
		conn:  sys.Bus.NewConnection("harness"),
		clock: opt.Clock,
		log:   opt.Logger.With("svc", "harness"),
		opt:   opt,
		enc:   json.NewEncoder(w),
		w:     w,
		cmds:  make(map[string]*command),
	}
	s.register("help", "help [command]", "Lists commands or shows one command's usage.", s.help)
	s.register("ping", "ping", "Answers pong.", s.ping)
	s.register("input", "input <poll [ms]|status|clear>", "Inspects the encoder and button pipeline.", s.input)
	s.register("interactive", "interactive poll [s]", "Runs the interactive workflow until a main-menu double click.", s.interactive)
	s.register("mode", "mode", "Reports the committed system mode.", s.mode)
	s.register("config", "config <show|get <key>|set <key> <value>|save|reset>", "Reads and edits the configuration.", s.config)
	s.register("read", "read <all|humidity|battery>", "Reads the sensors through the HAL.", s.read)
	s.register("pump", "pump <run <duty> <ms>|stop|status>", "Drives the pump through the HAL.", s.pump)
	s.register("power", "power <sensor|pump|screen> <on|off>", "Switches a supply gate.", s.power)
	s.register("chat", "chat <ask <message>|history|clear>", "Talks to the assistant.", s.chat)
	s.register("run", "run <force|status>", "Controls the automatic watering mode.", s.run)
	return s
}

func (s *Server) register(name, usage, help string, run handler) {
	s.cmds[name] = &command{name: name, usage: usage, help: help, run: run}
	s.order = append(s.order, name)
}

// Serve reads commands from r until EOF or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)
	s.log.Info("harness ready")
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.Exec(ctx, line)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return ctx.Err()
}

// Exec runs one command line and terminates its output with EOT.
func (s *Server) Exec(ctx context.Context, line string) {
	defer s.eot()

	args, err := shlex.Split(line)
	if err != nil {
		s.emit(Reply{"command": "", "status": "error", "message": "parse: " + err.Error()})
		return
	}
	if len(args) == 0 {
		return
	}
	c, ok := s.cmds[args[0]]
	if !ok {
		s.emit(Reply{"command": args[0], "status": "error", "message": "unknown command"})
		return
	}
	s.log.Debug("command", "line", line)
	if err := c.run(ctx, args[1:]); err != nil {
		s.emit(errReply(c.name, err))
	}
}

func (s *Server) emit(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		s.log.Warn("reply write failed", "err", err)
	}
}

func (s *Server) eot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, EOT+"\n")
}

func okReply(cmd string) Reply { return Reply{"command": cmd, "status": "ok"} }

func errReply(cmd string, err error) Reply {
	r := Reply{"command": cmd, "status": "error", "message": err.Error()}
	if c := errcode.Of(err); c != errcode.Error {
		r["code"] = string(c)
	}
	return r
}

func usage(c string, format string, args ...any) error {
	return &errcode.E{C: errcode.InvalidParams, Op: c, Msg: fmt.Sprintf(format, args...)}
}

func (s *Server) help(_ context.Context, args []string) error {
	if len(args) > 0 {
		c, ok := s.cmds[args[0]]
		if !ok {
			return usage("help", "command %q not found", args[0])
		}
		r := okReply("help")
		r["usage"] = c.usage
		r["help"] = c.help
		s.emit(r)
		return nil
	}
	list := make([]map[string]string, 0, len(s.order))
	for _, n := range s.order {
		list = append(list, map[string]string{"name": n, "usage": s.cmds[n].usage})
	}
	r := okReply("help")
	r["commands"] = list
	s.emit(r)
	return nil
}

func (s *Server) ping(context.Context, []string) error {
	r := okReply("ping")
	r["message"] = "pong"
	s.emit(r)
	return nil
}
