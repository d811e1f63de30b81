package framing

import (
	"bytes"
	"testing"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

func TestLaserIDRoundTrip(t *testing.T) {
	for _, m := range []laserproto.LaserModel{laserproto.Debug, laserproto.DiscoveryNX, laserproto.Unrecognized} {
		rec, err := EncodeLaserID(m)
		if err != nil {
			t.Fatalf("EncodeLaserID(%v): %v", m, err)
		}
		got, ok, err := DecodeLaserID(rec)
		if err != nil || !ok {
			t.Fatalf("DecodeLaserID(%v) ok=%v err=%v", m, ok, err)
		}
		if got != m {
			t.Errorf("round trip %v -> %v", m, got)
		}
	}
}

func TestDecodeStatusSingleRecord(t *testing.T) {
	s := laserproto.LaserStatus{WavelengthNM: 812, StatusText: "ok"}
	rec, err := EncodeStatus(s)
	if err != nil {
		t.Fatalf("EncodeStatus: %v", err)
	}
	got, ok, err := DecodeLatestStatus(rec)
	if err != nil || !ok {
		t.Fatalf("DecodeLatestStatus ok=%v err=%v", ok, err)
	}
	if got != s {
		t.Errorf("got %+v, want %+v", got, s)
	}
}

// TestDecodeLatestStatusAmongMultiple exercises the "multiple status
// records decode to the latest" property.
func TestDecodeLatestStatusAmongMultiple(t *testing.T) {
	first := laserproto.LaserStatus{WavelengthNM: 700, StatusText: "first"}
	second := laserproto.LaserStatus{WavelengthNM: 900, StatusText: "second"}

	rec1, err := EncodeStatus(first)
	if err != nil {
		t.Fatalf("EncodeStatus(first): %v", err)
	}
	rec2, err := EncodeStatus(second)
	if err != nil {
		t.Fatalf("EncodeStatus(second): %v", err)
	}

	buf := append(append([]byte{}, rec1...), rec2...)
	got, ok, err := DecodeLatestStatus(buf)
	if err != nil || !ok {
		t.Fatalf("DecodeLatestStatus ok=%v err=%v", ok, err)
	}
	if got != second {
		t.Errorf("got %+v, want latest %+v", got, second)
	}
}

func TestDecodeLatestStatusIncomplete(t *testing.T) {
	s := laserproto.LaserStatus{WavelengthNM: 812}
	rec, err := EncodeStatus(s)
	if err != nil {
		t.Fatalf("EncodeStatus: %v", err)
	}
	partial := rec[:len(rec)-2]
	_, ok, err := DecodeLatestStatus(partial)
	if err != nil {
		t.Fatalf("unexpected error on partial buffer: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false on partial buffer")
	}
}

func TestDecodeFirstCommandAndConsumed(t *testing.T) {
	cmd := laserproto.Command{Kind: laserproto.CmdHeartbeat}
	rec, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	trailer := []byte("trailing garbage")
	buf := append(append([]byte{}, rec...), trailer...)

	got, consumed, ok, err := DecodeFirstCommand(buf)
	if err != nil || !ok {
		t.Fatalf("DecodeFirstCommand ok=%v err=%v", ok, err)
	}
	if got != cmd {
		t.Errorf("got %+v, want %+v", got, cmd)
	}
	if !bytes.Equal(buf[consumed:], trailer) {
		t.Errorf("remaining after consumed = %q, want %q", buf[consumed:], trailer)
	}
}

func TestDecodeFirstCommandNoMarker(t *testing.T) {
	_, _, ok, err := DecodeFirstCommand([]byte("no marker here"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false with no marker present")
	}
}

func TestVerbLiterals(t *testing.T) {
	if string(Verb(CommandSuccess)) != CommandSuccess+"\n" {
		t.Errorf("Verb(CommandSuccess) malformed")
	}
}
