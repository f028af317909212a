// Package server accepts firewall commands from co-located game
// services over loopback TCP and feeds them to the engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"emberfall.gg/portcullis/internal/engine"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/services"
)

const defaultMaxConns = 32

// CommandQueue is where decoded commands go. Enqueue reports false
// once the engine is shut down.
type CommandQueue interface {
	Enqueue(cmd engine.Command) bool
}

// Server is the loopback command listener.
type Server struct {
	addr     string
	maxConns int
	queue    CommandQueue
	log      *logging.Logger

	mu      sync.Mutex
	running bool
	ln      net.Listener
	conns   map[net.Conn]struct{}
	lastErr string

	wg sync.WaitGroup
}

// New creates a listener on addr. maxConns bounds concurrent
// connections; zero or negative selects the default.
func New(addr string, maxConns int, queue CommandQueue) *Server {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &Server{
		addr:     addr,
		maxConns: maxConns,
		queue:    queue,
		log:      logging.WithComponent("listener"),
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *Server) Name() string { return "listener" }

// Addr returns the bound address, useful when addr was ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Start binds the socket and launches the accept loop. A bind failure
// is fatal to startup.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = netutil.LimitListener(ln, s.maxConns)
	s.running = true

	s.log.Info("listening", "addr", s.ln.Addr().String())
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every live connection, then waits for
// the handlers to drain.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.ln
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := ln.Close()
	s.wg.Wait()
	return err
}

// Status implements services.Service.
func (s *Server) Status() services.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return services.ServiceStatus{Name: "listener", Running: s.running, Error: s.lastErr}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("accept failed", "error", err)
			s.mu.Lock()
			s.lastErr = err.Error()
			s.mu.Unlock()
			return
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("connection handler panicked", "panic", r)
				}
			}()
			s.handle(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// handle reads frames until the peer closes. The legacy producers send
// one frame per connection; newer ones batch several. A malformed
// frame drops the whole connection, a structurally invalid command
// only loses that command.
func (s *Server) handle(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()
	peer := conn.RemoteAddr().String()

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Warn("dropping connection on bad frame", "peer", peer, "error", err)
				metrics.Get().RecordDrop("bad_frame")
			}
			return
		}

		var cmd engine.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.log.Warn("dropping connection on bad payload", "peer", peer, "error", err)
			metrics.Get().RecordDrop("bad_frame")
			return
		}
		if err := cmd.Validate(); err != nil {
			s.log.Warn("rejecting command", "peer", peer, "error", err)
			metrics.Get().RecordDrop("invalid_command")
			continue
		}

		if !s.queue.Enqueue(cmd) {
			s.log.Warn("engine stopped, dropping connection", "peer", peer)
			return
		}
	}
}
