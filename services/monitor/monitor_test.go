//go:build !rp2040 && !rp2350 && !rpi

package monitor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"plantcode-go/bus"
	"plantcode-go/services/config"
	"plantcode-go/services/hal"
	"plantcode-go/types"
)

type rig struct {
	bus   *bus.Bus
	mem   *config.MemoryStore
	store *config.Store
	host  *hal.Host
	board *hal.Board
	srv   *httptest.Server
}

func newRig(t *testing.T) *rig {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &rig{bus: bus.NewBus(16, "+", "#"), mem: &config.MemoryStore{}, host: hal.NewHost()}
	hal.SeedNominal(r.host, hal.DefaultPins)

	r.store = config.NewStore(r.mem, config.Options{Conn: r.bus.NewConnection("config"), Logger: log})
	assert.NilError(t, r.store.Load())

	b, err := hal.Open(r.host.Platform(), hal.DefaultPins, hal.Options{SoilSettle: -1, PumpSettle: -1, RampTime: -1, Logger: log})
	assert.NilError(t, err)
	r.board = b

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		b.Shutdown()
	})

	// the first retained hal/power marks the service as subscribed
	watch := r.bus.NewConnection("watch")
	sub := watch.Subscribe(hal.TopicPower)
	go hal.NewService(b, r.bus.NewConnection("hal")).Run(ctx)
	select {
	case <-sub.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("hal service did not start")
	}
	watch.Unsubscribe(sub)

	r.srv = httptest.NewServer(New(r.bus, r.store, Options{Logger: log}).Handler())
	t.Cleanup(r.srv.Close)
	return r
}

func (r *rig) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, r.srv.URL+path, strings.NewReader(body))
	assert.NilError(t, err)
	resp, err := http.DefaultClient.Do(req)
	assert.NilError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, resp.Header.Get("Content-Type"), "application/json")

	var out map[string]any
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestConfig_GetAndPut(t *testing.T) {
	r := newRig(t)

	code, cfg := r.do(t, http.MethodGet, "/api/config", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, cfg["watering.threshold"], "2000")

	code, out := r.do(t, http.MethodPut, "/api/config/watering.threshold", `{"value":"2400"}`)
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, out["value"], "2400")
	assert.Equal(t, r.store.Get().Watering.Threshold, uint16(2400))

	saved, err := r.mem.Load()
	assert.NilError(t, err)
	assert.Assert(t, is.Contains(string(saved), "threshold: 2400"))
}

func TestConfig_PutErrors(t *testing.T) {
	r := newRig(t)

	code, out := r.do(t, http.MethodPut, "/api/config/no.such.key", `{"value":"1"}`)
	assert.Equal(t, code, http.StatusNotFound)
	assert.Equal(t, out["error"], "unknown_key")

	code, _ = r.do(t, http.MethodPut, "/api/config/watering.threshold", `{"value":"wet"}`)
	assert.Equal(t, code, http.StatusBadRequest)

	code, out = r.do(t, http.MethodPut, "/api/config/watering.threshold", `not json`)
	assert.Equal(t, code, http.StatusBadRequest)
	assert.Equal(t, out["error"], "invalid_payload")
}

func TestStatus_SnapshotsRetainedState(t *testing.T) {
	r := newRig(t)
	c := r.bus.NewConnection("test")
	c.Publish(c.NewMessage(bus.T("state", "mode"), types.ModeValue{Mode: "RUN", Previous: "OFF"}, true))
	c.Publish(c.NewMessage(bus.T("telemetry", "soil"), types.SoilReading{Raw: 1800, Percent: 50}, true))

	code, st := r.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, st["state/mode"].(map[string]any)["mode"], "RUN")
	assert.Equal(t, st["telemetry/soil"].(map[string]any)["percent"], 50.0)
	assert.Equal(t, st["hal/power"].(map[string]any)["sensor"], false)
	_, ok := st["config/watering"]
	assert.Assert(t, !ok, "config groups are not part of the status")
}

func TestHAL_ReadingsPowerPump(t *testing.T) {
	r := newRig(t)

	code, rd := r.do(t, http.MethodGet, "/api/readings", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, rd["soil"].(map[string]any)["raw"], 1800.0)

	code, out := r.do(t, http.MethodPost, "/api/power", `{"gate":"sensor","on":true}`)
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, out["ok"], true)
	assert.Assert(t, r.board.Gates.On(hal.GateSensor))

	code, out = r.do(t, http.MethodPost, "/api/power", `{"gate":"heater","on":true}`)
	assert.Equal(t, code, http.StatusBadRequest)
	assert.Equal(t, out["error"], "invalid_params")

	code, _ = r.do(t, http.MethodPost, "/api/pump/run", `{"duty":100,"ms":0}`)
	assert.Equal(t, code, http.StatusBadRequest)

	code, _ = r.do(t, http.MethodPost, "/api/pump/run", `{"duty":100,"ms":5000}`)
	assert.Equal(t, code, http.StatusOK)
	assert.Assert(t, r.board.Pump.IsRunning())

	code, out = r.do(t, http.MethodPost, "/api/pump/run", `{"duty":100,"ms":5000}`)
	assert.Equal(t, code, http.StatusConflict)
	assert.Equal(t, out["error"], "pump_busy")

	code, _ = r.do(t, http.MethodPost, "/api/pump/stop", "")
	assert.Equal(t, code, http.StatusOK)
	assert.Assert(t, !r.board.Pump.IsRunning())
}

func TestWS_StreamsRetainedThenLive(t *testing.T) {
	r := newRig(t)
	c := r.bus.NewConnection("test")
	c.Publish(c.NewMessage(bus.T("state", "mode"), types.ModeValue{Mode: "OFF"}, true))

	url := "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	defer ws.Close()

	next := func() envelope {
		t.Helper()
		assert.NilError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var e envelope
		assert.NilError(t, ws.ReadJSON(&e))
		return e
	}

	assert.Equal(t, next().Topic, "state/mode")

	// state/# is subscribed last, so both subscriptions are live by now
	c.Publish(c.NewMessage(bus.T("telemetry", "battery"), types.BatteryReading{Volts: 3.9}, false))
	e := next()
	assert.Equal(t, e.Topic, "telemetry/battery")
	assert.Equal(t, e.Data.(map[string]any)["volts"], 3.9)
}
