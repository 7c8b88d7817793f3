package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"plantcode-go/bus"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// envelope is the wire format of one streamed bus message.
type envelope struct {
	Topic string    `json:"topic"`
	TS    time.Time `json:"ts"`
	Data  any       `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams every message on state/# and telemetry/# to the client,
// starting with the retained ones. The client's own messages are discarded.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}
	log := s.log.With("remote_addr", r.RemoteAddr)
	log.Info("ws client connected")

	// one connection per client so Disconnect drops all of its subscriptions
	conn := s.bus.NewConnection("ws:" + r.RemoteAddr)
	merged := make(chan *bus.Message, 32)
	for _, p := range []bus.Topic{patTelemetry, patState} {
		sub := conn.Subscribe(p)
		go func() {
			for m := range sub.Channel() {
				select {
				case merged <- m:
				default:
					// slow client; newest is dropped
				}
			}
		}()
	}

	closed := make(chan struct{})
	go readPump(ws, closed)
	writePump(ws, merged, closed)

	conn.Disconnect()
	_ = ws.Close()
	log.Info("ws client disconnected")
}

// readPump discards incoming frames and closes done when the peer goes away.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ws *websocket.Conn, in <-chan *bus.Message, done <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case m := <-in:
			b, err := json.Marshal(envelope{Topic: m.Topic.String(), TS: time.Now().UTC(), Data: m.Payload})
			if err != nil {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
