// Package broadcast implements the broadcast server: the single authoritative
// holder of a laser.Session that periodically polls a full status snapshot,
// multiplexes it to every connected TCP peer, accepts framed commands back
// from those peers, and arbitrates a single "primary client" allowed to
// execute commands.
//
// One goroutine accepts incoming connections, another periodically
// broadcasts a status snapshot, and a third sweeps every peer for pending
// commands; the hub lock is always released before any peer I/O.
package broadcast

import (
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CK6170/discovery-laser-go/framing"
	"github.com/CK6170/discovery-laser-go/laser"
	"github.com/CK6170/discovery-laser-go/laserproto"
)

// DefaultPollingInterval is used by New when pollingInterval <= 0.
const DefaultPollingInterval = 1 * time.Second

// MinPollingInterval is the recommended floor; New does not enforce it, it
// only documents the value tests and callers should treat as a sane bound.
const MinPollingInterval = 200 * time.Millisecond

// dispatchInterval is how often the command task sweeps every peer for
// pending input. It is independent of the status polling interval.
const dispatchInterval = 25 * time.Millisecond

// Server owns one laser session, a hub of peers, a primary-client slot, and
// three cooperating background tasks (accept, broadcast, command).
type Server struct {
	listener net.Listener
	hub      *hub
	logger   *log.Logger

	pollingMu       sync.Mutex
	pollingInterval time.Duration

	sessionMu sync.Mutex
	session   laser.Session
	closed    bool

	primaryMu sync.Mutex
	primary   string // RemoteAddr().String() of the current primary client, "" if none

	poisoned atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New binds bindAddr and returns a Server ready to be started. A
// pollingInterval <= 0 is replaced with DefaultPollingInterval.
func New(session laser.Session, bindAddr string, pollingInterval time.Duration) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, &IoError{Op: "listen " + bindAddr, Err: err}
	}
	if pollingInterval <= 0 {
		pollingInterval = DefaultPollingInterval
	}
	return &Server{
		listener:        ln,
		hub:             newHub(),
		logger:          log.New(os.Stderr, "broadcast: ", log.LstdFlags),
		pollingInterval: pollingInterval,
		session:         session,
		stopCh:          make(chan struct{}),
	}, nil
}

// Addr reports the bound listener address, useful when bindAddr was given
// as "host:0" and the OS chose a port.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// SetPollingInterval changes the broadcast task's polling period. It takes
// effect on the task's next tick.
func (s *Server) SetPollingInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.pollingMu.Lock()
	s.pollingInterval = d
	s.pollingMu.Unlock()
}

func (s *Server) getPollingInterval() time.Duration {
	s.pollingMu.Lock()
	defer s.pollingMu.Unlock()
	return s.pollingInterval
}

// Start launches the accept, broadcast, and command tasks. It is idempotent:
// calling it more than once has no additional effect.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(3)
		go s.acceptTask()
		go s.broadcastTask()
		go s.commandTask()
	})
}

// Stop halts all three background tasks and waits for them to exit. It is
// idempotent and safe to call even if Start was never called.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		_ = s.listener.Close()
	})
	s.wg.Wait()
}

// IntoLaser stops the server and returns its session for reuse elsewhere.
// Calling it a second time returns ErrMultipleReferencesToLaser, since the
// session has already been handed out and this server retains no further
// claim on it.
func (s *Server) IntoLaser() (laser.Session, error) {
	s.Stop()
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.closed {
		return nil, ErrMultipleReferencesToLaser
	}
	s.closed = true
	sess := s.session
	s.session = nil
	return sess, nil
}

// withSession runs fn with the session lock held and recovers a panic inside
// fn by marking the server permanently poisoned: Go mutexes don't poison
// themselves on panic the way some other runtimes' do, so recover() plus a
// latch flag plays that role here.
func (s *Server) withSession(fn func(laser.Session) error) (err error) {
	if s.poisoned.Load() {
		return ErrMutexPoisoned
	}
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.closed {
		return ErrServerStopped
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned.Store(true)
			err = ErrMutexPoisoned
		}
	}()
	return fn(s.session)
}

// Command executes cmd directly against the session, bypassing the peer
// protocol entirely. This is the direct server-side control path available
// alongside the network path.
func (s *Server) Command(cmd laserproto.Command) error {
	err := s.withSession(func(sess laser.Session) error { return sess.SendCommand(cmd) })
	if err != nil && err != ErrMutexPoisoned && err != ErrServerStopped {
		return &CoherentError{Err: err}
	}
	return err
}

// Query executes q directly against the session.
func (s *Server) Query(q laserproto.Query) (laserproto.QueryResult, error) {
	var result laserproto.QueryResult
	err := s.withSession(func(sess laser.Session) error {
		r, qerr := sess.Query(q)
		result = r
		return qerr
	})
	if err != nil && err != ErrMutexPoisoned && err != ErrServerStopped {
		return laserproto.QueryResult{}, &CoherentError{Err: err}
	}
	return result, err
}

// Status assembles a full status snapshot directly against the session.
func (s *Server) Status() (laserproto.LaserStatus, error) {
	var status laserproto.LaserStatus
	err := s.withSession(func(sess laser.Session) error {
		st, serr := sess.Status()
		status = st
		return serr
	})
	if err != nil && err != ErrMutexPoisoned && err != ErrServerStopped {
		return laserproto.LaserStatus{}, &CoherentError{Err: err}
	}
	return status, err
}

// PeerCount reports how many clients are currently connected.
func (s *Server) PeerCount() int { return s.hub.count() }

// acceptTask accepts incoming connections, sends each one its LASER_ID
// handshake record, and registers it with the hub. It exits when Stop closes
// the listener: Accept unblocks with an error instead of the task having to
// poll a flag between non-blocking attempts.
func (s *Server) acceptTask() {
	defer s.wg.Done()
	model, err := s.sessionModel()
	if err != nil {
		model = laserproto.Unrecognized
	}
	record, err := framing.EncodeLaserID(model)
	if err != nil {
		s.logger.Printf("encode LASER_ID: %v", err)
		return
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Printf("accept: %v", err)
				return
			}
		}
		p := newPeer(conn)
		if err := p.write(record); err != nil {
			s.logger.Printf("write LASER_ID to %s: %v", p.addr, err)
			p.close()
			continue
		}
		s.hub.add(p)
	}
}

func (s *Server) sessionModel() (laserproto.LaserModel, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.closed {
		return 0, ErrServerStopped
	}
	return s.session.Model(), nil
}

// broadcastTask polls a full status snapshot on a ticker and fans it out to
// every connected peer. The session lock is held only long enough to read
// and serialize the snapshot; it is released before any peer write — the
// session lock must never be held across peer I/O.
func (s *Server) broadcastTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.getPollingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ticker.Reset(s.getPollingInterval())
			record, err := s.snapshotRecord()
			if err != nil {
				continue
			}
			for _, p := range s.hub.snapshot() {
				if err := p.write(record); err != nil {
					s.hub.remove(p)
					p.close()
				}
			}
		}
	}
}

func (s *Server) snapshotRecord() ([]byte, error) {
	var status laserproto.LaserStatus
	err := s.withSession(func(sess laser.Session) error {
		st, serr := sess.Status()
		status = st
		return serr
	})
	if err != nil {
		return nil, err
	}
	return framing.EncodeStatus(status)
}

// commandTask sweeps every connected peer for pending input and dispatches
// whatever control verbs or COMMAND_MARKER records have arrived, in the
// priority order implemented in dispatch.go.
func (s *Server) commandTask() {
	defer s.wg.Done()
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for _, p := range s.hub.snapshot() {
				if err := p.pollRead(); err != nil {
					s.hub.remove(p)
					p.close()
					continue
				}
				s.dispatch(p)
			}
		}
	}
}
