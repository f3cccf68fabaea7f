package session

import (
	"net"
	"sync"
)

// State is the Session lifecycle state.
type State string

const (
	Starting State = "starting"
	Active   State = "active"
	Closing  State = "closing"
	Closed   State = "closed"
)

// Session is one attacker<->container proxy pairing, keyed by container id.
// It is a pure record: all synchronization around *inserting* or
// *removing* a Session from a table belongs to the caller (the
// Connection Manager's mutex), but closing the two sockets is safe to call
// from either copier goroutine without external locking since net.Conn's
// Close is itself safe for concurrent use and idempotent in effect here.
type Session struct {
	ContainerID    string
	ClientSocket   net.Conn
	HoneypotSocket net.Conn

	state   State
	stateMu sync.Mutex
	closeMu sync.Once
}

// New returns a Session in the Starting state. It is not yet safe to hand to
// the two copier goroutines until both sockets are set and the caller has
// moved it to Active by calling Activate.
func New(containerID string, client, honeypot net.Conn) *Session {
	return &Session{
		ContainerID:    containerID,
		ClientSocket:   client,
		HoneypotSocket: honeypot,
		state:          Starting,
	}
}

// Activate transitions the Session to Active. Called once, under the
// Connection Manager's mutex, at the moment the Session is installed in
// the session table.
func (s *Session) Activate() {
	s.setState(Active)
}

// MarkClosing marks the Session as tearing down. Called by the first copier
// direction to win the end_session critical section.
func (s *Session) MarkClosing() {
	s.setState(Closing)
}

// MarkClosed marks the Session fully torn down: sockets closed, container
// stop attempted.
func (s *Session) MarkClosed() {
	s.setState(Closed)
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// State returns the Session's current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// CloseSocketsOnce shuts down both directions and closes both sockets,
// tolerating a socket that is already closed. Safe to call more than once;
// only the first call does any work.
func (s *Session) CloseSocketsOnce() {
	s.closeMu.Do(func() {
		closeConn(s.ClientSocket)
		closeConn(s.HoneypotSocket)
	})
}

func closeConn(c net.Conn) {
	if c == nil {
		return
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.CloseRead()
		_ = tc.CloseWrite()
	}
	_ = c.Close()
}
