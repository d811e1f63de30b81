package wire

import (
	"errors"
	"testing"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

func TestEncodeCommandTokens(t *testing.T) {
	cases := []struct {
		cmd  laserproto.Command
		want string
	}{
		{laserproto.Command{Kind: laserproto.CmdEcho, EchoOn: true}, "E=1"},
		{laserproto.Command{Kind: laserproto.CmdEcho, EchoOn: false}, "E=0"},
		{laserproto.Command{Kind: laserproto.CmdLaserPower, Power: laserproto.PowerOn}, "L=1"},
		{laserproto.Command{Kind: laserproto.CmdLaserPower, Power: laserproto.PowerStandby}, "L=0"},
		{laserproto.Command{Kind: laserproto.CmdShutter, Path: laserproto.VariableWavelength, ShutterTo: laserproto.Open}, "S=1"},
		{laserproto.Command{Kind: laserproto.CmdShutter, Path: laserproto.FixedWavelength, ShutterTo: laserproto.Closed}, "SFIXED=0"},
		{laserproto.Command{Kind: laserproto.CmdAlignmentMode, Path: laserproto.VariableWavelength, AlignOn: true}, "ALIGN=1"},
		{laserproto.Command{Kind: laserproto.CmdAlignmentMode, Path: laserproto.FixedWavelength, AlignOn: false}, "ALIGNFIXED=0"},
		{laserproto.Command{Kind: laserproto.CmdWavelength, WavelengthNM: 800}, "WV=800"},
		{laserproto.Command{Kind: laserproto.CmdFaultClear}, "FC"},
		{laserproto.Command{Kind: laserproto.CmdHeartbeat}, "HB"},
		{laserproto.Command{Kind: laserproto.CmdGddCurveIndex, GddIndex: 3}, "GDD=3"},
		{laserproto.Command{Kind: laserproto.CmdGddCurveName, Name: "alpha"}, "GDDCURVEN=alpha"},
		{laserproto.Command{Kind: laserproto.CmdGdd, GddValue: -1234.5}, "GDD=-1234.5"},
		{laserproto.Command{Kind: laserproto.CmdSetCurveName, Name: "beta"}, "SETCURVEN=beta"},
	}
	for _, c := range cases {
		got, err := EncodeCommand(c.cmd)
		if err != nil {
			t.Fatalf("EncodeCommand(%+v): %v", c.cmd, err)
		}
		if got != c.want {
			t.Errorf("EncodeCommand(%+v) = %q, want %q", c.cmd, got, c.want)
		}
	}
}

func TestEncodeQueryTokens(t *testing.T) {
	cases := []struct {
		q    laserproto.Query
		want string
	}{
		{laserproto.Query{Kind: laserproto.QueryWavelength}, "?WV"},
		{laserproto.Query{Kind: laserproto.QueryShutter, Path: laserproto.FixedWavelength}, "?SFIXED"},
		{laserproto.Query{Kind: laserproto.QueryAlignmentMode, Path: laserproto.VariableWavelength}, "?ALIGNVAR"},
		{laserproto.Query{Kind: laserproto.QueryAlignmentMode, Path: laserproto.FixedWavelength}, "?ALIGNFIXED"},
		{laserproto.Query{Kind: laserproto.QueryGdd}, "?GDD"},
		{laserproto.Query{Kind: laserproto.QueryGddCurveIndex}, "?GDDCURVE"},
		{laserproto.Query{Kind: laserproto.QueryGddCurveName}, "?GDDCURVEN"},
		{laserproto.Query{Kind: laserproto.QueryPower, Path: laserproto.VariableWavelength}, "?PVAR"},
		{laserproto.Query{Kind: laserproto.QueryPower, Path: laserproto.FixedWavelength}, "?PFIXED"},
		{laserproto.Query{Kind: laserproto.QueryKeyswitch}, "?K"},
		{laserproto.Query{Kind: laserproto.QueryFaults}, "?F"},
		{laserproto.Query{Kind: laserproto.QueryFaultText}, "?FT"},
		{laserproto.Query{Kind: laserproto.QueryTuning}, "?TS"},
		{laserproto.Query{Kind: laserproto.QueryStatus}, "?ST"},
		{laserproto.Query{Kind: laserproto.QuerySerial}, "?SN"},
		{laserproto.Query{Kind: laserproto.QueryEcho}, "?E"},
		{laserproto.Query{Kind: laserproto.QueryLaserPower}, "?L"},
	}
	for _, c := range cases {
		got, err := EncodeQuery(c.q)
		if err != nil {
			t.Fatalf("EncodeQuery(%+v): %v", c.q, err)
		}
		if got != c.want {
			t.Errorf("EncodeQuery(%+v) = %q, want %q", c.q, got, c.want)
		}
	}
}

// TestWavelengthEchoAccepted covers echo_on without prompt_on: a valid
// wavelength command's echoed response has an empty residual and is
// accepted.
func TestWavelengthEchoAccepted(t *testing.T) {
	mode := ResponseMode{EchoOn: true, PromptOn: false}
	err := ParseCommandResponse("WV=800 \r\n", "WV=800", mode)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

// TestWavelengthEchoRejected covers an out-of-range wavelength rejected by
// the instrument with a trailing "INVALID" token, which must surface as
// InvalidArgumentsError("INVALID").
func TestWavelengthEchoRejected(t *testing.T) {
	mode := ResponseMode{EchoOn: true, PromptOn: false}
	err := ParseCommandResponse("WV=0 INVALID\r\n", "WV=0", mode)
	var invalidArgs *InvalidArgumentsError
	if !errors.As(err, &invalidArgs) {
		t.Fatalf("expected InvalidArgumentsError, got %v (%T)", err, err)
	}
	if invalidArgs.Detail != "INVALID" {
		t.Errorf("Detail = %q, want %q", invalidArgs.Detail, "INVALID")
	}
}

func TestParseQueryResponseEchoAndPrompt(t *testing.T) {
	mode := ResponseMode{EchoOn: true, PromptOn: true}
	res, err := ParseQueryResponse("Chameleon>?WV 800.00\r\n", "?WV", mode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "800.00" {
		t.Errorf("residual = %q, want %q", res, "800.00")
	}
}

func TestParseQueryResponseNoEchoNoPrompt(t *testing.T) {
	mode := ResponseMode{EchoOn: false, PromptOn: false}
	res, err := ParseQueryResponse("800.00\r\n", "?WV", mode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "800.00" {
		t.Errorf("residual = %q, want %q", res, "800.00")
	}
}

func TestCommandNotExecuted(t *testing.T) {
	mode := ResponseMode{EchoOn: true, PromptOn: false}
	err := ParseCommandResponse("WV=800 COMMAND NOT EXECUTED\r\n", "WV=800", mode)
	if !errors.Is(err, ErrCommandNotExecuted) {
		t.Fatalf("expected ErrCommandNotExecuted, got %v", err)
	}
}

func TestParseBoolResult(t *testing.T) {
	if b, err := ParseBoolResult(" 1 "); err != nil || !b {
		t.Errorf("ParseBoolResult(\" 1 \") = %v, %v", b, err)
	}
	if b, err := ParseBoolResult("0"); err != nil || b {
		t.Errorf("ParseBoolResult(\"0\") = %v, %v", b, err)
	}
	if _, err := ParseBoolResult("garbage"); err == nil {
		t.Errorf("expected error for garbage bool")
	}
}

func TestParseFloatResult(t *testing.T) {
	f, err := ParseFloatResult("800.00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != 800.0 {
		t.Errorf("got %v, want 800.0", f)
	}
}
