// Package wire formats laser commands and queries into the instrument's
// ASCII token dialect, and parses the echoed/prompted responses back into
// typed values.
//
// Each exchange follows the same frame-then-parse shape: build a short
// token, send it, read one line, validate, extract.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// CRLF terminates every token sent to the instrument.
const CRLF = "\r\n"

// promptPrefix precedes every response line when the instrument is in
// "prompt" mode.
const promptPrefix = "Chameleon>"

// commandNotExecuted is a literal substring that, if present anywhere in a
// response, indicates the instrument rejected the command outright.
const commandNotExecuted = "COMMAND NOT EXECUTED"

// EncodeCommand renders a Command as its instrument-side token. The
// returned string does not include the CRLF terminator; callers append CRLF
// when writing to the serial link.
func EncodeCommand(c laserproto.Command) (string, error) {
	switch c.Kind {
	case laserproto.CmdEcho:
		if c.EchoOn {
			return "E=1", nil
		}
		return "E=0", nil
	case laserproto.CmdLaserPower:
		if c.Power == laserproto.PowerOn {
			return "L=1", nil
		}
		return "L=0", nil
	case laserproto.CmdShutter:
		v := shutterToken(c.ShutterTo)
		if c.Path == laserproto.FixedWavelength {
			return "SFIXED=" + v, nil
		}
		return "S=" + v, nil
	case laserproto.CmdFaultClear:
		return "FC", nil
	case laserproto.CmdAlignmentMode:
		v := boolToken(c.AlignOn)
		if c.Path == laserproto.FixedWavelength {
			return "ALIGNFIXED=" + v, nil
		}
		return "ALIGN=" + v, nil
	case laserproto.CmdWavelength:
		return "WV=" + formatFloat(c.WavelengthNM), nil
	case laserproto.CmdHeartbeat:
		return "HB", nil
	case laserproto.CmdGddCurveIndex:
		return fmt.Sprintf("GDD=%d", c.GddIndex), nil
	case laserproto.CmdGddCurveName:
		return "GDDCURVEN=" + c.Name, nil
	case laserproto.CmdGdd:
		return "GDD=" + formatFloat(c.GddValue), nil
	case laserproto.CmdSetCurveName:
		return "SETCURVEN=" + c.Name, nil
	default:
		return "", fmt.Errorf("wire: unknown command kind %d", c.Kind)
	}
}

// EncodeQuery renders a Query as its instrument-side token: '?' followed by
// the property name. Most match a command token (?WV, ?S); some do not
// (?ALIGNVAR, ?GDDCURVE, ?PVAR).
func EncodeQuery(q laserproto.Query) (string, error) {
	switch q.Kind {
	case laserproto.QueryEcho:
		return "?E", nil
	case laserproto.QueryLaserPower:
		return "?L", nil
	case laserproto.QueryShutter:
		if q.Path == laserproto.FixedWavelength {
			return "?SFIXED", nil
		}
		return "?S", nil
	case laserproto.QueryKeyswitch:
		return "?K", nil
	case laserproto.QueryFaults:
		return "?F", nil
	case laserproto.QueryFaultText:
		return "?FT", nil
	case laserproto.QueryTuning:
		return "?TS", nil
	case laserproto.QueryAlignmentMode:
		if q.Path == laserproto.FixedWavelength {
			return "?ALIGNFIXED", nil
		}
		return "?ALIGNVAR", nil
	case laserproto.QueryStatus:
		return "?ST", nil
	case laserproto.QueryWavelength:
		return "?WV", nil
	case laserproto.QueryPower:
		if q.Path == laserproto.FixedWavelength {
			return "?PFIXED", nil
		}
		return "?PVAR", nil
	case laserproto.QueryGddCurveIndex:
		return "?GDDCURVE", nil
	case laserproto.QueryGddCurveName:
		return "?GDDCURVEN", nil
	case laserproto.QueryGdd:
		return "?GDD", nil
	case laserproto.QuerySerial:
		return "?SN", nil
	default:
		return "", fmt.Errorf("wire: unknown query kind %d", q.Kind)
	}
}

func shutterToken(s laserproto.ShutterState) string { return boolToken(s == laserproto.Open) }

func boolToken(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// ResponseMode captures the two instrument-side formatting toggles that
// determine how a response line is parsed, discovered once at session-open
// time.
type ResponseMode struct {
	EchoOn   bool
	PromptOn bool
}

// ErrCommandNotExecuted is returned by ParseCommandResponse when the
// instrument's reply contains the literal "COMMAND NOT EXECUTED" substring.
var ErrCommandNotExecuted = fmt.Errorf("wire: command not executed")

// InvalidArgumentsError is returned when a command's echoed response leaves
// a non-empty residual after the token is stripped, meaning the instrument
// rejected the arguments.
type InvalidArgumentsError struct {
	Detail string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("wire: invalid arguments: %s", e.Detail)
}

// InvalidResponseError carries the raw, unparseable payload for diagnosis.
type InvalidResponseError struct {
	Raw string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("wire: invalid response: %q", e.Raw)
}

// residual strips everything from a response line except the payload a
// query's typed parser needs: the prompt prefix (if prompt mode), the
// "<token> " echo prefix (if echo mode), and surrounding whitespace, while
// checking for the COMMAND NOT EXECUTED sentinel along the way.
func residual(line string, token string, mode ResponseMode) (string, error) {
	line = strings.TrimRight(line, "\r\n")

	if strings.Contains(line, commandNotExecuted) {
		return "", ErrCommandNotExecuted
	}

	if mode.PromptOn {
		if idx := strings.Index(line, promptPrefix); idx != -1 {
			line = line[idx+len(promptPrefix):]
		}
	}

	if mode.EchoOn {
		prefix := token + " "
		if idx := strings.Index(line, prefix); idx != -1 {
			line = line[idx+len(prefix):]
		} else {
			// The instrument echoed something other than our token; treat the
			// whole line as residual so the caller can surface it.
			return strings.TrimSpace(line), nil
		}
	}

	return strings.TrimSpace(line), nil
}

// ParseCommandResponse validates a command's response line. A command
// expects no residual after echo/prompt stripping; a non-empty residual
// means the instrument rejected the arguments.
func ParseCommandResponse(line string, token string, mode ResponseMode) error {
	res, err := residual(line, token, mode)
	if err != nil {
		return err
	}
	if res != "" {
		return &InvalidArgumentsError{Detail: res}
	}
	return nil
}

// ParseQueryResponse validates a query's response line and returns the
// residual payload for the query's typed parser to consume.
func ParseQueryResponse(line string, token string, mode ResponseMode) (string, error) {
	return residual(line, token, mode)
}

// ParseBoolResult parses a residual payload as a boolean-valued query
// result ("1"/"0", tolerant of surrounding whitespace).
func ParseBoolResult(residual string) (bool, error) {
	v := strings.TrimSpace(residual)
	switch v {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, &InvalidResponseError{Raw: residual}
	}
}

// ParseFloatResult parses a residual payload as a float32-valued query
// result.
func ParseFloatResult(residual string) (float32, error) {
	v := strings.TrimSpace(residual)
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, &InvalidResponseError{Raw: residual}
	}
	return float32(f), nil
}

// ParseIntResult parses a residual payload as an int32-valued query result
// (used by GddCurveIndex, whose Result type is i32).
func ParseIntResult(residual string) (int32, error) {
	v := strings.TrimSpace(residual)
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, &InvalidResponseError{Raw: residual}
	}
	return int32(n), nil
}

// ParseUint8Result parses a residual payload as a uint8-valued query result
// (used by Faults).
func ParseUint8Result(residual string) (uint8, error) {
	v := strings.TrimSpace(residual)
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return 0, &InvalidResponseError{Raw: residual}
	}
	return uint8(n), nil
}
