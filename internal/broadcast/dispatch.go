package broadcast

import (
	"bytes"

	"github.com/CK6170/discovery-laser-go/framing"
	"github.com/CK6170/discovery-laser-go/laser"
	"github.com/CK6170/discovery-laser-go/laserproto"
)

// dispatch drains every complete control verb or COMMAND_MARKER record
// currently sitting in p.buf, checked in a fixed priority order:
// FORGET_PRIMARY_CLIENT, then DEMAND_PRIMARY_CLIENT, then FORGET_ME, then a
// command record. It stops as soon as p.buf holds only a partial record.
func (s *Server) dispatch(p *peer) {
	for {
		if len(p.buf) == 0 {
			return
		}
		if n, ok := matchVerb(p.buf, framing.ForgetPrimary); ok {
			s.handleForgetPrimary(p)
			p.buf = p.buf[n:]
			continue
		}
		if n, ok := matchVerb(p.buf, framing.DemandPrimary); ok {
			s.handleDemandPrimary(p)
			p.buf = p.buf[n:]
			continue
		}
		if n, ok := matchVerb(p.buf, framing.ForgetMe); ok {
			s.handleForgetMe(p)
			p.buf = p.buf[n:]
			continue
		}

		cmd, consumed, ok, err := framing.DecodeFirstCommand(p.buf)
		if err != nil {
			// A malformed COMMAND_MARKER payload cannot be resynchronized to
			// a byte boundary; drop everything buffered for this peer and
			// wait for it to send a fresh record.
			s.logger.Printf("decode command from %s: %v", p.addr, err)
			p.buf = nil
			return
		}
		if !ok {
			return
		}
		s.handleCommand(p, cmd)
		p.buf = p.buf[consumed:]
	}
}

// matchVerb reports whether buf begins with literal followed by '\n', and if
// so how many bytes that record occupies.
func matchVerb(buf []byte, literal string) (int, bool) {
	full := literal + "\n"
	if bytes.HasPrefix(buf, []byte(full)) {
		return len(full), true
	}
	return 0, false
}

func (s *Server) reply(p *peer, literal string) {
	if err := p.write(framing.Verb(literal)); err != nil {
		s.hub.remove(p)
		p.close()
	}
}

// handleForgetPrimary clears the primary-client slot unconditionally: any
// peer may relinquish the slot on behalf of whoever holds it. The
// primary-client lock is acquired and released on its own; it is never held
// while the session lock in handleCommand is also held, avoiding a
// lock-ordering cycle between the two.
func (s *Server) handleForgetPrimary(p *peer) {
	s.primaryMu.Lock()
	s.primary = ""
	s.primaryMu.Unlock()
	s.reply(p, framing.CommandSuccess)
}

// handleDemandPrimary binds p as primary client if the slot is empty, else
// replies NOT_PRIMARY_CLIENT — even if p already holds the slot.
func (s *Server) handleDemandPrimary(p *peer) {
	s.primaryMu.Lock()
	if s.primary == "" {
		s.primary = p.addr
		s.primaryMu.Unlock()
		s.reply(p, framing.CommandSuccess)
		return
	}
	s.primaryMu.Unlock()
	s.reply(p, framing.NotPrimaryReply)
}

// handleForgetMe releases the primary slot only if p currently holds it.
func (s *Server) handleForgetMe(p *peer) {
	s.primaryMu.Lock()
	if s.primary == p.addr {
		s.primary = ""
		s.primaryMu.Unlock()
		s.reply(p, framing.CommandSuccess)
		return
	}
	s.primaryMu.Unlock()
	s.reply(p, framing.CommandFailed)
}

// handleCommand executes cmd against the session if p is the primary client
// or no primary is set, replying COMMAND_SUCCESSFUL/COMMAND_FAILED/
// NOT_PRIMARY_CLIENT.
func (s *Server) handleCommand(p *peer, cmd laserproto.Command) {
	s.primaryMu.Lock()
	primary := s.primary
	s.primaryMu.Unlock()

	if primary != "" && primary != p.addr {
		s.reply(p, framing.NotPrimaryReply)
		return
	}

	err := s.withSession(func(sess laser.Session) error { return sess.SendCommand(cmd) })
	if err != nil {
		s.reply(p, framing.CommandFailed)
		return
	}
	s.reply(p, framing.CommandSuccess)
}
