// Package client implements a typed TCP peer: connect, read the handshake
// LASER_ID record, then exchange STATUS_MARKER/COMMAND_MARKER records and
// control verbs with a broadcast server.
//
// Its read-accumulate-decode loop follows a simple round-trip shape: write
// a request, read until a complete response is recognized, then hand back
// the decoded payload, growing a single buffer as more bytes arrive.
package client

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/CK6170/discovery-laser-go/framing"
	"github.com/CK6170/discovery-laser-go/laserproto"
)

var (
	// ErrUnrecognizedDevice is returned by Connect when the handshake
	// LASER_ID record names a model other than the one requested.
	ErrUnrecognizedDevice = errors.New("client: unrecognized device model")

	// ErrNotPrimaryClient is returned by Command (and the primary-client
	// verb methods) when the server replies NOT_PRIMARY_CLIENT.
	ErrNotPrimaryClient = errors.New("client: not primary client")
)

// CommandError reports that the server executed the command and it failed
// (a COMMAND_FAILED reply), as distinct from a transport-level failure.
type CommandError struct {
	Cmd laserproto.Command
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("client: command %d failed", e.Cmd.Kind)
}

// readDeadline bounds every blocking read; it is generous because replies
// are expected promptly but a wedged server should not hang a caller
// forever.
const readDeadline = 10 * time.Second

// Client is a single TCP connection to a broadcast server.
type Client struct {
	conn  net.Conn
	model laserproto.LaserModel
	buf   []byte
}

// Connect opens addr, reads the handshake LASER_ID record, and fails with
// ErrUnrecognizedDevice if the announced model isn't want.
func Connect(addr string, want laserproto.LaserModel) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	c := &Client{conn: conn}

	model, err := readUntilGeneric(c, func(buf []byte) (laserproto.LaserModel, bool, error) {
		return framing.DecodeLaserID(buf)
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if model != want {
		_ = conn.Close()
		return nil, ErrUnrecognizedDevice
	}
	c.model = model
	return c, nil
}

// Model reports the model announced at connect time.
func (c *Client) Model() laserproto.LaserModel { return c.model }

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// QueryStatus reads until a STATUS_MARKER record can be decoded, returning
// the most recently received status available at that instant (decoding
// the latest record, not the first).
func (c *Client) QueryStatus() (laserproto.LaserStatus, error) {
	return readUntilGeneric(c, func(buf []byte) (laserproto.LaserStatus, bool, error) {
		return framing.DecodeLatestStatus(buf)
	})
}

// Command writes a COMMAND_MARKER record and waits for the server's reply.
func (c *Client) Command(cmd laserproto.Command) error {
	rec, err := framing.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := c.write(rec); err != nil {
		return err
	}
	reply, err := c.awaitReply()
	if err != nil {
		return err
	}
	switch reply {
	case framing.CommandSuccess:
		return nil
	case framing.CommandFailed:
		return &CommandError{Cmd: cmd}
	case framing.NotPrimaryReply:
		return ErrNotPrimaryClient
	default:
		return fmt.Errorf("client: unexpected reply %q", reply)
	}
}

// DemandPrimaryClient attempts to bind this connection as the primary
// client.
func (c *Client) DemandPrimaryClient() error { return c.sendVerb(framing.DemandPrimary) }

// ForgetMe releases this connection's primary-client claim, if it holds one.
func (c *Client) ForgetMe() error { return c.sendVerb(framing.ForgetMe) }

// ForceForgetPrimaryClient clears the primary-client slot unconditionally,
// letting an operator rescue a stuck instrument.
func (c *Client) ForceForgetPrimaryClient() error { return c.sendVerb(framing.ForgetPrimary) }

func (c *Client) sendVerb(literal string) error {
	if err := c.write(framing.Verb(literal)); err != nil {
		return err
	}
	reply, err := c.awaitReply()
	if err != nil {
		return err
	}
	switch reply {
	case framing.CommandSuccess:
		return nil
	case framing.CommandFailed:
		return &CommandError{}
	case framing.NotPrimaryReply:
		return ErrNotPrimaryClient
	default:
		return fmt.Errorf("client: unexpected reply %q", reply)
	}
}

// awaitReply reads until the accumulator begins with one of the three
// literal reply strings.
func (c *Client) awaitReply() (string, error) {
	for {
		for _, reply := range [...]string{framing.CommandSuccess, framing.CommandFailed, framing.NotPrimaryReply} {
			if bytes.HasPrefix(c.buf, []byte(reply+"\n")) {
				c.buf = c.buf[len(reply)+1:]
				return reply, nil
			}
		}
		if err := c.readMore(); err != nil {
			return "", err
		}
	}
}

func (c *Client) write(b []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(readDeadline)); err != nil {
		return err
	}
	_, err := c.conn.Write(b)
	return err
}

func (c *Client) readMore() error {
	chunk := make([]byte, 4096)
	if err := c.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return err
	}
	n, err := c.conn.Read(chunk)
	if n > 0 {
		c.buf = append(c.buf, chunk[:n]...)
	}
	if n == 0 && err != nil {
		return fmt.Errorf("client: read: %w", err)
	}
	return nil
}

// readUntilGeneric grows c.buf via readMore, trying decode after each read,
// and returns the first successful decode. On success it clears c.buf
// entirely, dropping any bytes that followed the decoded record (readers of
// STATUS_MARKER/LASER_ID don't need byte-exact draining since later records
// of the same kind fully supersede earlier ones; clearing the buffer keeps
// subsequent calls from re-finding the same record).
func readUntilGeneric[T any](c *Client, decode func([]byte) (T, bool, error)) (T, error) {
	for {
		v, ok, err := decode(c.buf)
		if err != nil {
			var zero T
			return zero, fmt.Errorf("client: decode: %w", err)
		}
		if ok {
			c.buf = nil
			return v, nil
		}
		if err := c.readMore(); err != nil {
			var zero T
			return zero, err
		}
	}
}

