package server

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"chat-salas/protocol"
)

// Session is the server-side state for one connected client. The name is
// assigned once at registration and never changes afterwards; the current
// room pointer is guarded by the registry lock, never touched directly.
type Session struct {
	name string // immutable after Registry.Register
	room *Room  // guarded by the registry mutex

	conn   net.Conn
	writer *bufio.Writer
	mu     sync.Mutex // serializes concurrent writers (broadcasts vs replies)
	once   sync.Once
}

func NewSession(conn net.Conn) *Session {
	return &Session{
		conn:   conn,
		writer: bufio.NewWriter(conn),
	}
}

func (s *Session) Name() string { return s.name }

func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// Send writes one encoded line to the client. On failure the session is NOT
// torn down here; the caller decides whether to disconnect, so a fan-out can
// keep delivering to the remaining recipients.
func (s *Session) Send(command, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.WriteString(protocol.Encode(command, payload) + "\n"); err != nil {
		return fmt.Errorf("writing to %s: %w", s.conn.RemoteAddr(), err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flushing to %s: %w", s.conn.RemoteAddr(), err)
	}
	return nil
}

// Close shuts the transport down. Safe to call from any goroutine and from
// repeated cleanup paths; only the first call has an effect.
func (s *Session) Close() {
	s.once.Do(func() {
		_ = s.conn.Close()
	})
}
