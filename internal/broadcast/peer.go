package broadcast

import (
	"net"
	"sync"
	"time"
)

// peerReadSlice is the size of each read attempt the command task makes
// against a peer's connection; reads accumulate into a growable buffer
// rather than expecting a complete record in one shot.
const peerReadSlice = 512

// peerPollTimeout is how long a single Read call is allowed to block before
// the command task moves on to the next peer: each peer gets its own
// goroutine-free turn on a short deadline instead of a dedicated reader
// goroutine or a separate poller.
const peerPollTimeout = 20 * time.Millisecond

// peer is one connected TCP client: a raw net.Conn plus an accumulating
// read buffer for COMMAND_MARKER records.
type peer struct {
	conn net.Conn
	addr string // conn.RemoteAddr().String(), the primary-client identity key

	writeMu sync.Mutex // serializes writes from the broadcast and command tasks

	buf []byte // bytes read but not yet consumed by the command dispatcher
}

func newPeer(conn net.Conn) *peer {
	return &peer{conn: conn, addr: conn.RemoteAddr().String()}
}

// write sends a complete record to the peer, serialized against concurrent
// writes from the other task.
func (p *peer) write(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write(b)
	return err
}

// pollRead appends whatever bytes are available within peerPollTimeout to
// p.buf. It never blocks longer than that deadline: a peer that sends
// nothing costs the command task one short, bounded wait, not a stall.
func (p *peer) pollRead() error {
	chunk := make([]byte, peerReadSlice)
	if err := p.conn.SetReadDeadline(time.Now().Add(peerPollTimeout)); err != nil {
		return err
	}
	n, err := p.conn.Read(chunk)
	if n > 0 {
		p.buf = append(p.buf, chunk[:n]...)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		return err
	}
	return nil
}

func (p *peer) close() {
	_ = p.conn.Close()
}
