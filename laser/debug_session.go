package laser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// ErrQueryUnsupported is returned by every DebugSession.Query call; tests
// use the convenience accessors instead. DebugSession.Status does not go
// through Query; it builds a LaserStatus directly from its fields.
var ErrQueryUnsupported = errors.New("laser: DebugSession does not support Query; use its accessor methods")

// DebugSession is a pure in-memory stand-in for a real laser, used by tests
// and host builds without hardware. It follows the same "accept the
// command, mutate fields, bound the numeric ranges locally" shape the real
// instrument enforces remotely.
type DebugSession struct {
	mu sync.Mutex

	echoOn          bool
	power           laserproto.LaserPower
	variableShutter laserproto.ShutterState
	fixedShutter    laserproto.ShutterState
	keyswitch       bool
	faults          uint8
	faultText       string
	tuning          laserproto.TuningStatus
	alignmentVar    bool
	alignmentFixed  bool
	statusText      string
	wavelengthNM    float32
	powerVar        float32
	powerFixed      float32
	gddCurveIndex   int32
	gddCurveName    string
	gdd             float32

	serialNumber string
}

var _ Session = (*DebugSession)(nil)

// NewDebugSession returns a DebugSession with plausible defaults: shutters
// closed, laser in standby, keyswitch engaged, tuned/ready, wavelength at
// the bottom of its valid range.
func NewDebugSession() *DebugSession {
	return &DebugSession{
		power:           laserproto.PowerStandby,
		variableShutter: laserproto.Closed,
		fixedShutter:    laserproto.Closed,
		keyswitch:       true,
		tuning:          laserproto.Ready,
		statusText:      "debug session nominal",
		wavelengthNM:    laserproto.WavelengthMin,
		gddCurveName:    "default",
		serialNumber:    "DEBUG-0000",
	}
}

// SendCommand implements Session. Wavelength and Gdd are bounds-checked
// locally since there is no instrument to defer validation to.
func (d *DebugSession) SendCommand(cmd laserproto.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd.Kind {
	case laserproto.CmdEcho:
		d.echoOn = cmd.EchoOn
	case laserproto.CmdLaserPower:
		d.power = cmd.Power
	case laserproto.CmdShutter:
		if cmd.Path == laserproto.FixedWavelength {
			d.fixedShutter = cmd.ShutterTo
		} else {
			d.variableShutter = cmd.ShutterTo
		}
	case laserproto.CmdFaultClear:
		d.faults = 0
		d.faultText = ""
	case laserproto.CmdAlignmentMode:
		if cmd.Path == laserproto.FixedWavelength {
			d.alignmentFixed = cmd.AlignOn
		} else {
			d.alignmentVar = cmd.AlignOn
		}
	case laserproto.CmdWavelength:
		if cmd.WavelengthNM < laserproto.WavelengthMin || cmd.WavelengthNM > laserproto.WavelengthMax {
			return &InvalidRangeError{Field: "wavelength", Value: float64(cmd.WavelengthNM), Min: laserproto.WavelengthMin, Max: laserproto.WavelengthMax}
		}
		d.wavelengthNM = cmd.WavelengthNM
	case laserproto.CmdHeartbeat:
		// no-op: acknowledges liveness only.
	case laserproto.CmdGddCurveIndex:
		d.gddCurveIndex = int32(cmd.GddIndex)
	case laserproto.CmdGddCurveName:
		d.gddCurveName = cmd.Name
	case laserproto.CmdGdd:
		if cmd.GddValue < laserproto.GddMin || cmd.GddValue > laserproto.GddMax {
			return &InvalidRangeError{Field: "gdd", Value: float64(cmd.GddValue), Min: laserproto.GddMin, Max: laserproto.GddMax}
		}
		d.gdd = cmd.GddValue
	case laserproto.CmdSetCurveName:
		d.gddCurveName = cmd.Name
	default:
		return errors.New("laser: DebugSession: unknown command kind")
	}
	return nil
}

// Query implements Session: it always fails.
func (d *DebugSession) Query(laserproto.Query) (laserproto.QueryResult, error) {
	return laserproto.QueryResult{}, ErrQueryUnsupported
}

// Status implements Session, building the aggregate directly from fields
// rather than through Query (which always fails on DebugSession).
func (d *DebugSession) Status() (laserproto.LaserStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return laserproto.LaserStatus{
		Echo:            d.echoOn,
		LaserPower:      d.power,
		VariableShutter: d.variableShutter,
		FixedShutter:    d.fixedShutter,
		Keyswitch:       d.keyswitch,
		Faults:          d.faults,
		FaultText:       d.faultText,
		Tuning:          d.tuning,
		AlignmentVar:    d.alignmentVar,
		AlignmentFixed:  d.alignmentFixed,
		StatusText:      d.statusText,
		WavelengthNM:    d.wavelengthNM,
		PowerVar:        d.powerVar,
		PowerFixed:      d.powerFixed,
		GddCurveIndex:   d.gddCurveIndex,
		GddCurveName:    d.gddCurveName,
		Gdd:             d.gdd,
	}, nil
}

// SerializedStatus implements Session.
func (d *DebugSession) SerializedStatus() ([]byte, error) {
	status, err := d.Status()
	if err != nil {
		return nil, err
	}
	return laserproto.EncodeLaserStatus(status)
}

// Model implements Session: DebugSession always reports laserproto.Debug.
func (d *DebugSession) Model() laserproto.LaserModel { return laserproto.Debug }

// SerialNumber implements Session.
func (d *DebugSession) SerialNumber() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serialNumber
}

// Close implements Session; DebugSession owns no OS resource.
func (d *DebugSession) Close() error { return nil }

// SetKeyswitch is a debug-only convenience accessor letting tests flip the
// key-switch interlock; no Command can address this directly.
func (d *DebugSession) SetKeyswitch(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyswitch = on
}

// SetFault is a debug-only convenience accessor letting tests inject a
// fault code and description; no Command can address this directly (only
// FaultClear, which this session also honors).
func (d *DebugSession) SetFault(code uint8, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = code
	d.faultText = text
}

// InvalidRangeError reports a command argument outside the instrument's
// valid range. Validation is normally reported by the instrument, not
// pre-checked client-side; DebugSession plays the instrument's role locally
// since it has no instrument behind it.
type InvalidRangeError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("laser: %s %.2f out of range [%.2f, %.2f]", e.Field, e.Value, e.Min, e.Max)
}
