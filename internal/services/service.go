package services

import (
	"context"

	"emberfall.gg/portcullis/internal/logging"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Service defines the standard lifecycle methods for all services.
type Service interface {
	// Name returns the unique name of the service.
	Name() string

	// Start starts the service. It must not block beyond initial setup.
	Start(ctx context.Context) error

	// Stop stops the service and waits for its goroutines to drain.
	Stop(ctx context.Context) error

	// Status returns the current status of the service.
	Status() ServiceStatus
}

// Group starts services in registration order and stops them in
// reverse, so consumers come up after and go down before what they
// depend on.
type Group struct {
	log      *logging.Logger
	services []Service
}

func NewGroup() *Group {
	return &Group{log: logging.WithComponent("services")}
}

// Add registers a service. Nil services are ignored so callers can
// pass conditionally-built ones straight through.
func (g *Group) Add(svcs ...Service) {
	for _, s := range svcs {
		if s != nil {
			g.services = append(g.services, s)
		}
	}
}

// StartAll starts every service in order. On failure the services
// already running are stopped, in reverse, before the error returns.
func (g *Group) StartAll(ctx context.Context) error {
	for i, s := range g.services {
		g.log.Info("starting service", "service", s.Name())
		if err := s.Start(ctx); err != nil {
			g.log.Error("service failed to start", "service", s.Name(), "error", err)
			g.stopFrom(ctx, i-1)
			return err
		}
	}
	return nil
}

// StopAll stops every service in reverse order.
func (g *Group) StopAll(ctx context.Context) {
	g.stopFrom(ctx, len(g.services)-1)
}

func (g *Group) stopFrom(ctx context.Context, i int) {
	for ; i >= 0; i-- {
		s := g.services[i]
		g.log.Info("stopping service", "service", s.Name())
		if err := s.Stop(ctx); err != nil {
			g.log.Error("service failed to stop", "service", s.Name(), "error", err)
		}
	}
}

// Statuses reports every registered service's status in order.
func (g *Group) Statuses() []ServiceStatus {
	out := make([]ServiceStatus, 0, len(g.services))
	for _, s := range g.services {
		out = append(out, s.Status())
	}
	return out
}
