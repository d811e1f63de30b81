package laserproto

import "testing"

func TestBistateInvolutions(t *testing.T) {
	if ShutterState(Open).Not().Not() != Open {
		t.Fatalf("ShutterState.Not().Not() did not round-trip")
	}
	if LaserPower(PowerOn).Not().Not() != PowerOn {
		t.Fatalf("LaserPower.Not().Not() did not round-trip")
	}
	if TuningStatus(Ready).Not().Not() != Ready {
		t.Fatalf("TuningStatus.Not().Not() did not round-trip")
	}
}

func TestBistateBoolIsomorphism(t *testing.T) {
	for _, b := range []bool{true, false} {
		if ShutterStateFromBool(b).Bool() != b {
			t.Fatalf("ShutterState bool isomorphism broken for %v", b)
		}
		if LaserPowerFromBool(b).Bool() != b {
			t.Fatalf("LaserPower bool isomorphism broken for %v", b)
		}
		if TuningStatusFromBool(b).Bool() != b {
			t.Fatalf("TuningStatus bool isomorphism broken for %v", b)
		}
	}
}

func TestModelFromProductID(t *testing.T) {
	cases := []struct {
		pid  uint16
		want LaserModel
	}{
		{0, Debug},
		{516, DiscoveryNX},
		{1, Unrecognized},
		{65535, Unrecognized},
	}
	for _, c := range cases {
		if got := ModelFromProductID(c.pid); got != c.want {
			t.Errorf("ModelFromProductID(%d) = %v, want %v", c.pid, got, c.want)
		}
	}
}

func TestLaserModelRoundTrip(t *testing.T) {
	for _, m := range []LaserModel{Debug, DiscoveryNX, Unrecognized} {
		b, err := EncodeLaserModel(m)
		if err != nil {
			t.Fatalf("encode %v: %v", m, err)
		}
		got, n, err := DecodeLaserModel(b)
		if err != nil {
			t.Fatalf("decode %v: %v", m, err)
		}
		if n != len(b) {
			t.Errorf("decode %v consumed %d of %d bytes", m, n, len(b))
		}
		if got != m {
			t.Errorf("round trip %v -> %v", m, got)
		}
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cases := []Command{
		{Kind: CmdEcho, EchoOn: true},
		{Kind: CmdLaserPower, Power: PowerStandby},
		{Kind: CmdShutter, Path: FixedWavelength, ShutterTo: Open},
		{Kind: CmdFaultClear},
		{Kind: CmdAlignmentMode, Path: VariableWavelength, AlignOn: true},
		{Kind: CmdWavelength, WavelengthNM: 812.5},
		{Kind: CmdHeartbeat},
		{Kind: CmdGddCurveIndex, GddIndex: 3},
		{Kind: CmdGddCurveName, Name: "curve-a"},
		{Kind: CmdGdd, GddValue: -1234.5},
		{Kind: CmdSetCurveName, Name: "renamed"},
	}
	for _, c := range cases {
		b, err := EncodeCommand(c)
		if err != nil {
			t.Fatalf("encode %+v: %v", c, err)
		}
		got, n, err := DecodeCommand(b)
		if err != nil {
			t.Fatalf("decode %+v: %v", c, err)
		}
		if n != len(b) {
			t.Errorf("decode %+v consumed %d of %d bytes", c, n, len(b))
		}
		if got != c {
			t.Errorf("round trip %+v -> %+v", c, got)
		}
	}
}

func TestLaserStatusRoundTrip(t *testing.T) {
	s := LaserStatus{
		Echo:            true,
		LaserPower:      PowerOn,
		VariableShutter: Open,
		FixedShutter:    Closed,
		Keyswitch:       true,
		Faults:          0,
		FaultText:       "",
		Tuning:          Ready,
		AlignmentVar:    false,
		AlignmentFixed:  true,
		StatusText:      "nominal",
		WavelengthNM:    800.0,
		PowerVar:        1.23,
		PowerFixed:      0.45,
		GddCurveIndex:   2,
		GddCurveName:    "default",
		Gdd:             -500.25,
	}
	b, err := EncodeLaserStatus(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := DecodeLaserStatus(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(b) {
		t.Errorf("decode consumed %d of %d bytes", n, len(b))
	}
	if got != s {
		t.Errorf("round trip %+v -> %+v", s, got)
	}
}

func TestLaserStatusEncodingIsDeterministic(t *testing.T) {
	s := LaserStatus{StatusText: "nominal", WavelengthNM: 800}
	a, err := EncodeLaserStatus(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeLaserStatus(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("encoding of identical status differed across calls")
	}
}
