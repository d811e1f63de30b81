package laser

import (
	"bufio"
	"fmt"
	"strings"
	"sync"
	"time"

	goserial "github.com/tarm/serial"

	"github.com/CK6170/discovery-laser-go/laserproto"
	"github.com/CK6170/discovery-laser-go/wire"
)

// baudRate and readTimeout are fixed serial parameters this family of
// instruments expects: 19200 baud, 2 second read timeout. openPort sets the
// remaining 8N1 framing inline.
const (
	baudRate    = 19200
	readTimeout = 2 * time.Second
)

// SerialSession is the exclusive owner of a real serial handle: a
// *goserial.Port plus derived session state, driven through
// write-then-read-a-line request/response helpers.
type SerialSession struct {
	mu sync.Mutex

	port   *goserial.Port
	reader *bufio.Reader
	model  laserproto.LaserModel

	serialNumber string
	mode         wire.ResponseMode
}

var _ Session = (*SerialSession)(nil)

// Open resolves a serial port: if portName and/or serial are given, filter
// the OS enumeration down to ports matching them; with neither, pick the
// first enumerated port whose USB PID maps to a known model. The winning
// port is opened at 19200-8N1 with a 2s read timeout, its echo/prompt mode
// is probed, and its serial number is read back.
func Open(portName, serial string) (*SerialSession, error) {
	ports, err := AvailablePorts()
	if err != nil {
		return nil, err
	}

	candidates := make([]AvailablePort, 0, len(ports))
	for _, p := range ports {
		if portName != "" && !strings.EqualFold(p.Name, portName) {
			continue
		}
		if serial != "" && !strings.EqualFold(p.SerialNumber, serial) {
			continue
		}
		if portName == "" && serial == "" && p.Model == laserproto.Unrecognized {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, ErrNoRecognizedLasers
	}

	var lastErr error
	for _, c := range candidates {
		sess, err := openPort(c.Name)
		if err != nil {
			lastErr = err
			continue
		}
		return sess, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrUnrecognizedDevice
}

// OpenNamed opens a specific device path directly, bypassing enumeration.
// This is useful in tests and on platforms where the enumerator is
// unreliable.
func OpenNamed(name string) (*SerialSession, error) {
	return openPort(name)
}

func openPort(name string) (*SerialSession, error) {
	cfg := &goserial.Config{
		Name:        name,
		Baud:        baudRate,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: readTimeout,
	}
	port, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, &SerialError{Op: "open " + name, Err: err}
	}

	s := &SerialSession{
		port:   port,
		reader: bufio.NewReader(port),
		model:  laserproto.DiscoveryNX,
	}

	if err := s.probe(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// probe discovers echo_on/prompt_on and the instrument's serial number:
// send ?E, read one line, infer mode; send ?SN, read one line, store
// serial_number.
func (s *SerialSession) probe() error {
	echoLine, err := s.roundTrip("?E")
	if err != nil {
		return err
	}
	s.mode = wire.ResponseMode{
		EchoOn:   strings.Contains(echoLine, "E 1"),
		PromptOn: strings.Contains(echoLine, "Chameleon"),
	}

	snLine, err := s.roundTrip("?SN")
	if err != nil {
		return err
	}
	sn, err := wire.ParseQueryResponse(snLine, "?SN", s.mode)
	if err != nil {
		return &wire.InvalidResponseError{Raw: snLine}
	}
	s.serialNumber = sn
	return nil
}

// roundTrip writes token+CRLF and reads one response line. It
// does not apply response-mode parsing; callers do that once mode is known
// (during probe, mode isn't established yet for the first call).
func (s *SerialSession) roundTrip(token string) (string, error) {
	if _, err := s.port.Write([]byte(token + wire.CRLF)); err != nil {
		return "", &SerialError{Op: "write", Err: err}
	}
	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", &SerialError{Op: "read", Err: err}
	}
	return line, nil
}

// SendCommand implements Session.
func (s *SerialSession) SendCommand(cmd laserproto.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	line, err := s.roundTrip(token)
	if err != nil {
		return s.retryCommandAfterReprobe(token, err)
	}
	if perr := wire.ParseCommandResponse(line, token, s.mode); perr != nil {
		return perr
	}
	return nil
}

// retryCommandAfterReprobe implements soft recovery from a transient link
// hiccup: on a low-level I/O failure (but not a semantic command rejection)
// the session re-runs its echo/prompt probe once and retries the command
// exactly once before surfacing the original error.
func (s *SerialSession) retryCommandAfterReprobe(token string, origErr error) error {
	if _, ok := origErr.(*SerialError); !ok {
		return origErr
	}
	if err := s.probe(); err != nil {
		return origErr
	}
	line, err := s.roundTrip(token)
	if err != nil {
		return origErr
	}
	return wire.ParseCommandResponse(line, token, s.mode)
}

// Query implements Session.
func (s *SerialSession) Query(q laserproto.Query) (laserproto.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q)
}

func (s *SerialSession) queryLocked(q laserproto.Query) (laserproto.QueryResult, error) {
	token, err := wire.EncodeQuery(q)
	if err != nil {
		return laserproto.QueryResult{}, err
	}
	line, err := s.roundTrip(token)
	if err != nil {
		return laserproto.QueryResult{}, err
	}
	residual, err := wire.ParseQueryResponse(line, token, s.mode)
	if err != nil {
		return laserproto.QueryResult{}, err
	}
	return parseQueryResult(q, residual)
}

func parseQueryResult(q laserproto.Query, residual string) (laserproto.QueryResult, error) {
	r := laserproto.QueryResult{Kind: q.Kind}
	var err error
	switch q.Kind {
	case laserproto.QueryEcho, laserproto.QueryKeyswitch, laserproto.QueryAlignmentMode:
		r.Bool, err = wire.ParseBoolResult(residual)
	case laserproto.QueryLaserPower:
		var b bool
		b, err = wire.ParseBoolResult(residual)
		// The instrument reports 1 for On, the opposite of LaserPowerFromBool.
		r.Power = laserproto.LaserPowerFromBool(!b)
	case laserproto.QueryShutter:
		var b bool
		b, err = wire.ParseBoolResult(residual)
		r.Shutter = laserproto.ShutterStateFromBool(b)
	case laserproto.QueryTuning:
		var b bool
		b, err = wire.ParseBoolResult(residual)
		r.Tuning = laserproto.TuningStatusFromBool(b)
	case laserproto.QueryFaults:
		r.Uint8, err = wire.ParseUint8Result(residual)
	case laserproto.QueryFaultText, laserproto.QueryStatus, laserproto.QueryGddCurveName, laserproto.QuerySerial:
		r.String = residual
	case laserproto.QueryWavelength, laserproto.QueryPower, laserproto.QueryGdd:
		r.Float32, err = wire.ParseFloatResult(residual)
	case laserproto.QueryGddCurveIndex:
		r.Int32, err = wire.ParseIntResult(residual)
	default:
		return laserproto.QueryResult{}, fmt.Errorf("laser: unknown query kind %d", q.Kind)
	}
	if err != nil {
		return laserproto.QueryResult{}, err
	}
	return r, nil
}

// Status implements Session.
func (s *SerialSession) Status() (laserproto.LaserStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return assembleStatus(s.queryLocked)
}

// SerializedStatus implements Session.
func (s *SerialSession) SerializedStatus() ([]byte, error) {
	status, err := s.Status()
	if err != nil {
		return nil, err
	}
	return laserproto.EncodeLaserStatus(status)
}

// Model implements Session.
func (s *SerialSession) Model() laserproto.LaserModel { return s.model }

// SerialNumber implements Session.
func (s *SerialSession) SerialNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serialNumber
}

// Close implements Session.
func (s *SerialSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
