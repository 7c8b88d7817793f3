// Package monitor is the host daemon's HTTP surface: a JSON API over the
// configuration, the retained device state and the HAL controls, and a
// websocket stream of live state and telemetry.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"plantcode-go/bus"
	"plantcode-go/errcode"
	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/types"
)

// Streamed and snapshotted topic patterns.
var (
	patState     = bus.T("state", "#")
	patTelemetry = bus.T("telemetry", "#")
	patHAL       = bus.T("hal", "+")
	patNet       = bus.T("net", "#")
)

type Options struct {
	Addr   string
	Logger *slog.Logger
	// RequestTimeout bounds bus requests to the HAL.
	RequestTimeout time.Duration
}

type Server struct {
	bus  *bus.Bus
	conn *bus.Connection
	cfg  *config.Store
	log  *slog.Logger
	opt  Options
	r    *mux.Router
}

func New(b *bus.Bus, cfg *config.Store, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 2 * time.Second
	}
	s := &Server{
		bus:  b,
		conn: b.NewConnection("monitor"),
		cfg:  cfg,
		log:  opt.Logger.With("svc", "monitor"),
		opt:  opt,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.apiStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.apiConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config/{key}", s.apiConfigSet).Methods(http.MethodPut)
	r.HandleFunc("/api/readings", s.apiReadings).Methods(http.MethodGet)
	r.HandleFunc("/api/pump/run", s.apiPumpRun).Methods(http.MethodPost)
	r.HandleFunc("/api/pump/stop", s.apiPumpStop).Methods(http.MethodPost)
	r.HandleFunc("/api/power", s.apiPower).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS)
	s.r = r
	return s
}

func (s *Server) Handler() http.Handler { return s.r }

// Run serves HTTP on opt.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.opt.Addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("monitor listening", "addr", s.opt.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		s.log.Warn("monitor shutdown", "err", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// snapshot collects the retained messages matching patterns, keyed by
// topic.
func (s *Server) snapshot(patterns ...bus.Topic) map[string]any {
	out := make(map[string]any)
	for _, p := range patterns {
		sub := s.conn.Subscribe(p)
	drain:
		for {
			select {
			case m, ok := <-sub.Channel():
				if !ok {
					break drain
				}
				out[m.Topic.String()] = m.Payload
			default:
				break drain
			}
		}
		s.conn.Unsubscribe(sub)
	}
	return out
}

func (s *Server) apiStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot(patState, patTelemetry, patHAL, patNet))
}

func (s *Server) apiConfig(w http.ResponseWriter, _ *http.Request) {
	vals := make(map[string]string)
	for _, k := range config.Keys() {
		vals[k], _ = s.cfg.Lookup(k)
	}
	writeJSON(w, http.StatusOK, vals)
}

type setRequest struct {
	Value string `json:"value"`
}

// apiConfigSet changes one key and persists the result.
func (s *Server) apiConfigSet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, &errcode.E{C: errcode.InvalidPayload, Op: "monitor.config", Err: err})
		return
	}
	if err := s.cfg.Set(key, req.Value); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.cfg.Save(); err != nil {
		writeErr(w, err)
		return
	}
	v, _ := s.cfg.Lookup(key)
	s.log.Info("config changed over http", "key", key)
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": v})
}

func (s *Server) apiReadings(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, hal.CtlRead, nil)
}

func (s *Server) apiPumpRun(w http.ResponseWriter, r *http.Request) {
	var req types.PumpRunReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, &errcode.E{C: errcode.InvalidPayload, Op: "monitor.pump", Err: err})
		return
	}
	s.forward(w, r, hal.CtlPumpRun, req)
}

func (s *Server) apiPumpStop(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, hal.CtlPumpStop, nil)
}

func (s *Server) apiPower(w http.ResponseWriter, r *http.Request) {
	var req types.PowerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, &errcode.E{C: errcode.InvalidPayload, Op: "monitor.power", Err: err})
		return
	}
	s.forward(w, r, hal.CtlPower, req)
}

// forward relays one HAL request and writes its reply.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, verb string, payload any) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opt.RequestTimeout)
	defer cancel()
	m, err := s.conn.RequestWait(ctx, s.conn.NewMessage(hal.CtlTopic(verb), payload, false))
	if err != nil {
		writeErr(w, errcode.Wrap(errcode.Timeout, "hal."+verb, err))
		return
	}
	if e, ok := m.Payload.(types.ErrorReply); ok {
		writeErr(w, &errcode.E{C: errcode.Code(e.Error), Op: "hal." + verb})
		return
	}
	writeJSON(w, http.StatusOK, m.Payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := errcode.Of(err)
	writeJSON(w, httpStatus(code), types.ErrorReply{OK: false, Error: string(code)})
}

func httpStatus(c errcode.Code) int {
	switch c {
	case errcode.UnknownKey, errcode.UnknownPin:
		return http.StatusNotFound
	case errcode.InvalidParams, errcode.InvalidPayload, errcode.ConfigInvalid:
		return http.StatusBadRequest
	case errcode.Busy, errcode.PumpBusy:
		return http.StatusConflict
	case errcode.Timeout:
		return http.StatusGatewayTimeout
	case errcode.Unsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
