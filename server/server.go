// Package server implements the relay core: the accept loop, the
// per-connection handlers, and the registry that owns all shared state.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"chat-salas/moderation"
	"chat-salas/observability"
)

// defaultRoom is joined when JOIN_SALA carries no room name.
const defaultRoom = "General"

// Server accepts TCP connections and spawns one handler goroutine per
// connection. There is no admission limit and no worker pool: a known
// scalability ceiling, acceptable for the intended scale.
type Server struct {
	addr       string
	bufferSize int

	log       *slog.Logger
	registry  *Registry
	moderator *moderation.Moderator // nil disables censoring
	stats     *observability.RelayStats

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

func New(log *slog.Logger, registry *Registry, moderator *moderation.Moderator,
	stats *observability.RelayStats, addr string, bufferSize int) *Server {
	return &Server{
		addr:       addr,
		bufferSize: bufferSize,
		log:        log,
		registry:   registry,
		moderator:  moderator,
		stats:      stats,
	}
}

// Listen binds the TCP listener without starting to accept.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.log.Info("relay listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listen address, useful when configured with port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the accept loop until the context is cancelled, then closes
// every live session and waits for their handlers to finish. The accept loop
// is the only sequential point; everything after accept runs concurrently.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("server is not listening, call Listen first")
	}

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}

	// Force the remaining handlers out of their blocking reads.
	s.registry.CloseAll()
	s.wg.Wait()
	s.log.Info("relay stopped")
	return nil
}

// ListenAndServe binds and serves in one call.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
