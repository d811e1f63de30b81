// Package monitor implements an optional, additive, read-only status feed:
// an HTTP server exposing a single WebSocket endpoint that periodically
// broadcasts the laser's status as JSON. It sits entirely outside the
// command path (internal/broadcast and client are unaffected by its
// presence or absence).
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// StatusSource is satisfied by internal/broadcast.Server (and by anything
// else that can produce a current status snapshot), kept narrow so this
// package never needs to import internal/broadcast directly.
type StatusSource interface {
	Status() (laserproto.LaserStatus, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// This feed is read-only telemetry meant for same-host tooling; allow
		// all origins rather than make operators configure CORS for it.
		return true
	},
}

// Monitor is an optional HTTP+WebSocket status feed layered on top of a
// StatusSource.
type Monitor struct {
	source   StatusSource
	interval time.Duration
	hub      *hub
	srv      *http.Server
	logger   *log.Logger
	stopCh   chan struct{}
	done     chan struct{}
	addr     net.Addr
}

// New builds a Monitor bound to addr. It does not start listening until
// Start is called.
func New(addr string, source StatusSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	m := &Monitor{
		source:   source,
		interval: interval,
		hub:      newHub(),
		logger:   log.New(os.Stderr, "monitor: ", log.LstdFlags),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m
}

// Start launches the HTTP server and the background polling loop. It
// returns once the listener is up; serve errors after that point are only
// logged, since this is a background feed, not a caller-visible operation.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return err
	}
	m.addr = ln.Addr()
	go func() {
		if err := m.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Printf("serve: %v", err)
		}
	}()
	go m.pollLoop()
	return nil
}

// Stop shuts down the HTTP server and the polling loop.
func (m *Monitor) Stop(ctx context.Context) error {
	close(m.stopCh)
	<-m.done
	return m.srv.Shutdown(ctx)
}

// PeerCount reports how many monitor clients are currently connected.
func (m *Monitor) PeerCount() int { return m.hub.count() }

// Addr reports the bound listener address; valid only after Start returns.
func (m *Monitor) Addr() net.Addr { return m.addr }

func (m *Monitor) pollLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			status, err := m.source.Status()
			if err != nil {
				m.logger.Printf("status: %v", err)
				continue
			}
			m.hub.broadcast(StatusMessage{Type: "status", Data: status})
		}
	}
}

// handleWS upgrades the request, registers the connection with the hub, and
// blocks reading until the client disconnects; this endpoint never
// interprets incoming messages.
func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := m.hub.add(conn)

	initial, err := m.source.Status()
	if err == nil {
		_ = client.send(StatusMessage{Type: "status", Data: initial})
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			m.hub.remove(client)
			return
		}
	}
}

// marshalStatus is exposed for tests that want to confirm the wire shape of
// a StatusMessage without standing up a real WebSocket connection.
func marshalStatus(status laserproto.LaserStatus) ([]byte, error) {
	return json.Marshal(StatusMessage{Type: "status", Data: status})
}
