// Package engine serializes firewall commands. All mutations funnel
// through one dispatch loop, so producers never race each other into
// the packet filter.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"emberfall.gg/portcullis/internal/clock"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/services"
	"emberfall.gg/portcullis/internal/validation"
)

const queueSize = 64

// Known command verbs.
const (
	ActionReset  = "reset"
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Command is one firewall mutation request as producers send it.
type Command struct {
	List   string `json:"list"`
	Action string `json:"action"`
	IP     string `json:"ip,omitempty"`
}

// Validate checks structure only. IP canonicalization happens in the
// dispatch loop, which is the single validation point for addresses.
func (c Command) Validate() error {
	switch c.List {
	case "whitelist", "blacklist":
	default:
		return fmt.Errorf("unknown list %q", c.List)
	}
	switch c.Action {
	case ActionReset:
	case ActionAdd, ActionRemove:
		if c.IP == "" {
			return fmt.Errorf("action %q requires an ip", c.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	return nil
}

// Event records one handled command or reconciler action. The ID
// exists for log correlation and never travels back to producers.
type Event struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	List   string    `json:"list"`
	Action string    `json:"action"`
	IP     string    `json:"ip,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// EventSink receives engine events. Publish must not block; the admin
// API hub drops slow subscribers rather than stalling dispatch.
type EventSink interface {
	Publish(ev Event)
}

// Policy is the list interface the engine drives.
type Policy interface {
	Reset() error
	Add(ip string) error
	Remove(ip string) error
}

// Engine owns the command queue and the name→policy map.
type Engine struct {
	log *logging.Logger
	clk clock.Clock

	policies map[string]Policy
	order    []string
	recon    services.Service
	sink     EventSink

	in chan Command
	wg sync.WaitGroup

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates an engine with an empty policy map.
func New() *Engine {
	return &Engine{
		log:      logging.WithComponent("engine"),
		clk:      clock.System,
		policies: make(map[string]Policy),
		in:       make(chan Command, queueSize),
	}
}

// SetClock sets the clock for testing.
func (e *Engine) SetClock(c clock.Clock) {
	e.clk = c
}

// Register binds a policy to a command list name. Registration order
// is the startup reset order.
func (e *Engine) Register(name string, p Policy) {
	e.policies[name] = p
	e.order = append(e.order, name)
}

// SetReconciler hands the engine the ban-file service to start once
// the policies are reset and to stop first on shutdown.
func (e *Engine) SetReconciler(s services.Service) {
	e.recon = s
}

// SetSink registers the event sink.
func (e *Engine) SetSink(s EventSink) {
	e.sink = s
}

func (e *Engine) Name() string { return "engine" }

// Start resets every registered policy, starts the reconciler, and
// launches the dispatch loop. A policy that fails to reset is logged
// and left for the operator; the daemon still comes up.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.mu.Unlock()

	for _, name := range e.order {
		if err := e.policies[name].Reset(); err != nil {
			e.log.Error("startup reset failed", "list", name, "error", err)
		}
	}
	if e.recon != nil {
		if err := e.recon.Start(e.ctx); err != nil {
			e.log.Error("reconciler start failed", "error", err)
		}
	}

	e.wg.Add(1)
	go e.dispatch()
	return nil
}

// Stop shuts the loop down. Installed rules stay in the packet filter;
// removal is the cleanup subcommand's job.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	if e.recon != nil {
		if err := e.recon.Stop(ctx); err != nil {
			e.log.Error("reconciler stop failed", "error", err)
		}
	}
	e.cancel()
	e.wg.Wait()
	return nil
}

// Status implements services.Service.
func (e *Engine) Status() services.ServiceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return services.ServiceStatus{Name: "engine", Running: e.running}
}

// Enqueue hands a command to the dispatch loop, blocking while the
// queue is full. It reports false once the engine is stopped.
func (e *Engine) Enqueue(cmd Command) bool {
	e.mu.Lock()
	running, ctx := e.running, e.ctx
	e.mu.Unlock()
	if !running {
		return false
	}
	select {
	case e.in <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}

// Emit publishes an event for an action taken outside the dispatch
// loop, stamped with a fresh correlation ID. The reconciler's
// convergence actions flow through here.
func (e *Engine) Emit(list, action, ip string, err error) {
	e.publish(uuid.New().String(), list, action, ip, err)
}

func (e *Engine) dispatch() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case cmd := <-e.in:
			e.handle(cmd)
		}
	}
}

// handle runs one command to completion. Failures are logged under
// the command's correlation ID and never stop the loop.
func (e *Engine) handle(cmd Command) {
	id := uuid.New().String()

	policy, ok := e.policies[cmd.List]
	if !ok {
		e.log.Warn("dropping command for unknown list", "id", id, "list", cmd.List, "action", cmd.Action)
		metrics.Get().RecordDrop("unknown_list")
		return
	}

	var (
		ip  string
		err error
	)
	switch cmd.Action {
	case ActionReset:
		err = policy.Reset()
	case ActionAdd, ActionRemove:
		ip, err = validation.CanonicalIPv4(cmd.IP)
		if err != nil {
			// The raw value came off the wire; strip anything that could
			// mangle a log line before echoing it.
			e.log.Warn("dropping command with bad address", "id", id, "list", cmd.List, "action", cmd.Action, "ip", validation.SanitizeString(cmd.IP), "error", err)
			metrics.Get().RecordDrop("invalid_ip")
			return
		}
		if cmd.Action == ActionAdd {
			err = policy.Add(ip)
		} else {
			err = policy.Remove(ip)
		}
	default:
		e.log.Warn("dropping command with unknown action", "id", id, "list", cmd.List, "action", cmd.Action)
		metrics.Get().RecordDrop("unknown_action")
		return
	}

	metrics.Get().RecordCommand(cmd.List, cmd.Action, err)
	if err != nil {
		e.log.Error("command failed", "id", id, "list", cmd.List, "action", cmd.Action, "ip", ip, "error", err)
	} else {
		e.log.Info("command handled", "id", id, "list", cmd.List, "action", cmd.Action, "ip", ip)
	}
	e.publish(id, cmd.List, cmd.Action, ip, err)
}

func (e *Engine) publish(id, list, action, ip string, err error) {
	if e.sink == nil {
		return
	}
	ev := Event{
		ID:     id,
		Time:   e.clk.Now(),
		List:   list,
		Action: action,
		IP:     ip,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.sink.Publish(ev)
}
