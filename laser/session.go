// Package laser implements the stateful adapter over the physical serial
// link (SerialSession) and an in-memory stand-in for tests and hardware-less
// builds (DebugSession). Both satisfy the Session contract.
package laser

import (
	"errors"
	"fmt"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// Session is the exclusive-owner contract over a laser's control channel.
// Implementations are not expected to be safe for concurrent use by
// multiple goroutines without external locking; that discipline is the
// caller's responsibility (the broadcast server serializes access).
type Session interface {
	// SendCommand writes cmd and waits for the instrument's acknowledgement.
	SendCommand(cmd laserproto.Command) error

	// Query executes a single read-only query and returns its typed result.
	Query(q laserproto.Query) (laserproto.QueryResult, error)

	// Status executes every read-only query in a fixed order and returns
	// the aggregate.
	Status() (laserproto.LaserStatus, error)

	// SerializedStatus is Status encoded with the wire codec (laserproto).
	SerializedStatus() ([]byte, error)

	// Model reports which kind of laser this session is attached to.
	Model() laserproto.LaserModel

	// SerialNumber reports the instrument's serial number, discovered at
	// open time.
	SerialNumber() string

	// Close releases the underlying resource. Implementations must be safe
	// to call more than once.
	Close() error
}

var (
	ErrNoRecognizedLasers = errors.New("laser: no recognized laser found")
	ErrUnrecognizedDevice = errors.New("laser: unrecognized device")
)

// SerialError wraps an underlying I/O failure on the serial link.
type SerialError struct {
	Op  string
	Err error
}

func (e *SerialError) Error() string { return fmt.Sprintf("laser: serial %s: %v", e.Op, e.Err) }
func (e *SerialError) Unwrap() error { return e.Err }

// statusQueryOrder is the fixed sequence of queries Status executes.
var statusQueryOrder = []laserproto.Query{
	{Kind: laserproto.QueryEcho},
	{Kind: laserproto.QueryLaserPower},
	{Kind: laserproto.QueryShutter, Path: laserproto.VariableWavelength},
	{Kind: laserproto.QueryShutter, Path: laserproto.FixedWavelength},
	{Kind: laserproto.QueryKeyswitch},
	{Kind: laserproto.QueryFaults},
	{Kind: laserproto.QueryFaultText},
	{Kind: laserproto.QueryTuning},
	{Kind: laserproto.QueryAlignmentMode, Path: laserproto.VariableWavelength},
	{Kind: laserproto.QueryAlignmentMode, Path: laserproto.FixedWavelength},
	{Kind: laserproto.QueryStatus},
	{Kind: laserproto.QueryWavelength},
	{Kind: laserproto.QueryPower, Path: laserproto.VariableWavelength},
	{Kind: laserproto.QueryPower, Path: laserproto.FixedWavelength},
	{Kind: laserproto.QueryGddCurveIndex},
	{Kind: laserproto.QueryGddCurveName},
	{Kind: laserproto.QueryGdd},
}

// assembleStatus runs every query in statusQueryOrder against q and folds
// the results into a LaserStatus. SerialSession.Status uses it;
// DebugSession.Status does not, since DebugSession's Query always fails, and
// builds its status directly from its fields instead.
func assembleStatus(query func(laserproto.Query) (laserproto.QueryResult, error)) (laserproto.LaserStatus, error) {
	var s laserproto.LaserStatus
	for _, q := range statusQueryOrder {
		r, err := query(q)
		if err != nil {
			return laserproto.LaserStatus{}, fmt.Errorf("laser: status query %d (path %v): %w", q.Kind, q.Path, err)
		}
		switch q.Kind {
		case laserproto.QueryEcho:
			s.Echo = r.Bool
		case laserproto.QueryLaserPower:
			s.LaserPower = r.Power
		case laserproto.QueryShutter:
			if q.Path == laserproto.FixedWavelength {
				s.FixedShutter = r.Shutter
			} else {
				s.VariableShutter = r.Shutter
			}
		case laserproto.QueryKeyswitch:
			s.Keyswitch = r.Bool
		case laserproto.QueryFaults:
			s.Faults = r.Uint8
		case laserproto.QueryFaultText:
			s.FaultText = r.String
		case laserproto.QueryTuning:
			s.Tuning = r.Tuning
		case laserproto.QueryAlignmentMode:
			if q.Path == laserproto.FixedWavelength {
				s.AlignmentFixed = r.Bool
			} else {
				s.AlignmentVar = r.Bool
			}
		case laserproto.QueryStatus:
			s.StatusText = r.String
		case laserproto.QueryWavelength:
			s.WavelengthNM = r.Float32
		case laserproto.QueryPower:
			if q.Path == laserproto.FixedWavelength {
				s.PowerFixed = r.Float32
			} else {
				s.PowerVar = r.Float32
			}
		case laserproto.QueryGddCurveIndex:
			s.GddCurveIndex = r.Int32
		case laserproto.QueryGddCurveName:
			s.GddCurveName = r.String
		case laserproto.QueryGdd:
			s.Gdd = r.Float32
		}
	}
	return s, nil
}
