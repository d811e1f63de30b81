// Package framing implements the marker-based TCP record format: a
// handshake LASER_ID record, periodic STATUS_MARKER records, client-issued
// COMMAND_MARKER records, a handful of literal control verbs, and literal
// reply strings.
//
// The encoded payload that follows a marker may itself contain '\n' bytes,
// so decoders cannot simply split on newline. Framing instead relies on the
// CBOR payload being self-delimiting: decoders scan for the marker text,
// then hand everything after it to laserproto's decoder and trust it to
// report exactly how many bytes it consumed (or to fail outright).
package framing

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/CK6170/discovery-laser-go/laserproto"
)

// Marker and control-verb literals.
const (
	LaserIDMarker   = "Laser ID: "
	StatusMarker    = "Status: "
	CommandMarker   = "Command: "
	DemandPrimary   = "DEMAND PRIMARY CLIENT"
	ForgetPrimary   = "FORGET PRIMARY CLIENT"
	ForgetMe        = "FORGET ME"
	CommandSuccess  = "COMMAND SUCCESSFUL"
	CommandFailed   = "COMMAND FAILED"
	NotPrimaryReply = "NOT PRIMARY CLIENT"
)

// EncodeLaserID builds a complete LASER_ID record.
func EncodeLaserID(m laserproto.LaserModel) ([]byte, error) {
	payload, err := laserproto.EncodeLaserModel(m)
	if err != nil {
		return nil, fmt.Errorf("framing: encode LASER_ID: %w", err)
	}
	return appendRecord(LaserIDMarker, payload), nil
}

// EncodeStatus builds a complete STATUS_MARKER record.
func EncodeStatus(s laserproto.LaserStatus) ([]byte, error) {
	payload, err := laserproto.EncodeLaserStatus(s)
	if err != nil {
		return nil, fmt.Errorf("framing: encode STATUS_MARKER: %w", err)
	}
	return appendRecord(StatusMarker, payload), nil
}

// EncodeCommand builds a complete COMMAND_MARKER record.
func EncodeCommand(c laserproto.Command) ([]byte, error) {
	payload, err := laserproto.EncodeCommand(c)
	if err != nil {
		return nil, fmt.Errorf("framing: encode COMMAND_MARKER: %w", err)
	}
	return appendRecord(CommandMarker, payload), nil
}

func appendRecord(marker string, payload []byte) []byte {
	out := make([]byte, 0, len(marker)+len(payload)+1)
	out = append(out, marker...)
	out = append(out, payload...)
	out = append(out, '\n')
	return out
}

// Verb builds a complete control-verb or reply record (e.g. ForgetMe,
// CommandSuccess): the literal string plus a trailing '\n'.
func Verb(literal string) []byte {
	return append([]byte(literal), '\n')
}

// incomplete reports whether derr reflects a buffer that simply doesn't
// contain a full CBOR item yet, as opposed to one containing bytes that
// will never parse no matter how many more arrive.
func incomplete(derr error) bool {
	return derr == nil || errors.Is(derr, io.ErrUnexpectedEOF) || errors.Is(derr, io.EOF)
}

// DecodeLaserID locates the first LASER_ID record in buf and decodes it.
// ok is false if no complete record is present yet (the caller should read
// more and retry). A non-nil err means the payload after the marker could
// never decode, however many more bytes arrive, and the caller should
// discard it rather than keep waiting.
func DecodeLaserID(buf []byte) (model laserproto.LaserModel, ok bool, err error) {
	idx := bytes.Index(buf, []byte(LaserIDMarker))
	if idx == -1 {
		return 0, false, nil
	}
	payload := buf[idx+len(LaserIDMarker):]
	m, n, derr := laserproto.DecodeLaserModel(payload)
	if derr != nil {
		if incomplete(derr) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("framing: decode LASER_ID: %w", derr)
	}
	_ = n
	return m, true, nil
}

// DecodeLatestStatus locates the *latest* STATUS_MARKER record in buf
// (scanning from the end) and decodes it. This returns the most recently
// received status, discarding any earlier ones still sitting in the buffer.
// A non-nil err means the payload is malformed rather than merely
// incomplete.
func DecodeLatestStatus(buf []byte) (status laserproto.LaserStatus, ok bool, err error) {
	idx := bytes.LastIndex(buf, []byte(StatusMarker))
	if idx == -1 {
		return laserproto.LaserStatus{}, false, nil
	}
	payload := buf[idx+len(StatusMarker):]
	s, n, derr := laserproto.DecodeLaserStatus(payload)
	if derr != nil {
		if incomplete(derr) {
			return laserproto.LaserStatus{}, false, nil
		}
		return laserproto.LaserStatus{}, false, fmt.Errorf("framing: decode STATUS_MARKER: %w", derr)
	}
	_ = n
	return s, true, nil
}

// DecodeFirstCommand locates the *first* COMMAND_MARKER record in buf
// (scanning from the start) and decodes it, along with the number of bytes
// of buf up to the end of that record: any bytes before the marker, the
// marker, the payload, and a trailing '\n' if present (so the caller can
// drain them). ok
// is false if no complete record is present yet. A non-nil err means the
// payload after the marker is malformed and will never parse; the caller
// should drop everything buffered for this peer rather than retry it
// forever.
func DecodeFirstCommand(buf []byte) (cmd laserproto.Command, consumed int, ok bool, err error) {
	idx := bytes.Index(buf, []byte(CommandMarker))
	if idx == -1 {
		return laserproto.Command{}, 0, false, nil
	}
	payload := buf[idx+len(CommandMarker):]
	c, n, derr := laserproto.DecodeCommand(payload)
	if derr != nil {
		if incomplete(derr) {
			return laserproto.Command{}, 0, false, nil
		}
		return laserproto.Command{}, 0, false, fmt.Errorf("framing: decode COMMAND_MARKER: %w", derr)
	}
	consumed = idx + len(CommandMarker) + n
	if consumed < len(buf) && buf[consumed] == '\n' {
		consumed++
	}
	return c, consumed, true, nil
}
