// Package api serves the loopback admin surface: daemon status, the
// Prometheus registry, recent logs, and a WebSocket event stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emberfall.gg/portcullis/internal/banlist"
	"emberfall.gg/portcullis/internal/clock"
	"emberfall.gg/portcullis/internal/firewall"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/services"
)

// PolicyInfo is what the status endpoint needs from a list policy.
type PolicyInfo interface {
	Info() firewall.Info
}

// BanlistInfo is what the status endpoint needs from the reconciler.
type BanlistInfo interface {
	Info() banlist.Info
}

// Options configures the admin server.
type Options struct {
	Addr     string
	Version  string
	Policies []PolicyInfo
	Banlist  BanlistInfo
	Statuses func() []services.ServiceStatus
}

// Server is the admin HTTP server.
type Server struct {
	opts  Options
	log   *logging.Logger
	clk   clock.Clock
	hub   *Hub
	start time.Time

	mu      sync.Mutex
	running bool
	ln      net.Listener
	srv     *http.Server
	stop    chan struct{}

	wg sync.WaitGroup
}

// New creates an admin server. It does not listen until Start.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		log:  logging.WithComponent("api"),
		clk:  clock.System,
		hub:  NewHub(),
	}
	s.start = s.clk.Now()
	return s
}

// Hub returns the event hub so the engine can be pointed at it.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Name() string { return "api" }

// Addr returns the bound address, useful when Options.Addr was ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.opts.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start binds the socket and serves in the background. A bind failure
// is fatal to startup.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.start = s.clk.Now()
	s.stop = make(chan struct{})
	s.running = true

	s.log.Info("admin api listening", "addr", ln.Addr().String())

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("admin api server failed", "error", err)
		}
	}()
	go s.uptimeLoop()
	return nil
}

func (s *Server) uptimeLoop() {
	defer s.wg.Done()
	metrics.Get().Uptime.Set(0)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			metrics.Get().Uptime.Set(s.clk.Since(s.start).Seconds())
		}
	}
}

// Stop shuts the server down and disconnects event subscribers.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.srv
	close(s.stop)
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	s.hub.closeAll()
	s.wg.Wait()
	return err
}

// Status implements services.Service.
func (s *Server) Status() services.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return services.ServiceStatus{Name: "api", Running: s.running}
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Version       string                   `json:"version"`
	Uptime        string                   `json:"uptime"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	Policies      []firewall.Info          `json:"policies"`
	Banlist       *banlist.Info            `json:"banlist,omitempty"`
	Services      []services.ServiceStatus `json:"services,omitempty"`
	Subscribers   int                      `json:"event_subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	up := s.clk.Since(s.start)
	metrics.Get().Uptime.Set(up.Seconds())

	resp := StatusResponse{
		Version:       s.opts.Version,
		Uptime:        up.Round(time.Second).String(),
		UptimeSeconds: int64(up.Seconds()),
		Policies:      make([]firewall.Info, 0, len(s.opts.Policies)),
		Subscribers:   s.hub.count(),
	}
	for _, p := range s.opts.Policies {
		resp.Policies = append(resp.Policies, p.Info())
	}
	if s.opts.Banlist != nil {
		info := s.opts.Banlist.Info()
		resp.Banlist = &info
	}
	if s.opts.Statuses != nil {
		resp.Services = s.opts.Statuses()
	}
	writeJSON(w, http.StatusOK, resp)
}

// LogsResponse is the /api/logs payload.
type LogsResponse struct {
	Entries []logging.Entry `json:"entries"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var entries []logging.Entry
	if component := r.URL.Query().Get("component"); component != "" {
		entries = logging.Recent().GetByComponent(component, limit)
	} else {
		entries = logging.Recent().GetLast(limit)
	}
	if entries == nil {
		entries = []logging.Entry{}
	}
	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
