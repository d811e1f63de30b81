package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

type fakeSource struct {
	status laserproto.LaserStatus
	err    error
}

func (f *fakeSource) Status() (laserproto.LaserStatus, error) { return f.status, f.err }

func TestMonitorBroadcastsStatus(t *testing.T) {
	src := &fakeSource{status: laserproto.LaserStatus{WavelengthNM: 900, LaserPower: laserproto.PowerOn}}
	m := New("127.0.0.1:0", src, 20*time.Millisecond)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	url := fmt.Sprintf("ws://%s/ws", m.Addr().String())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg StatusMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != "status" {
		t.Errorf("Type = %q, want %q", msg.Type, "status")
	}
}

func TestMonitorPeerCount(t *testing.T) {
	src := &fakeSource{status: laserproto.LaserStatus{}}
	m := New("127.0.0.1:0", src, 50*time.Millisecond)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	url := fmt.Sprintf("ws://%s/ws", m.Addr().String())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.ReadJSON(new(StatusMessage))

	time.Sleep(30 * time.Millisecond)
	if got := m.PeerCount(); got != 1 {
		t.Errorf("PeerCount = %d, want 1", got)
	}
}

func TestMarshalStatus(t *testing.T) {
	b, err := marshalStatus(laserproto.LaserStatus{WavelengthNM: 750})
	if err != nil {
		t.Fatalf("marshalStatus: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("marshalStatus returned empty output")
	}
}
