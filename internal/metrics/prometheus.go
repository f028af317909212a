package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all daemon metrics.
type Registry struct {
	// Backend metrics
	BackendCalls *prometheus.CounterVec

	// Policy metrics
	PolicyMembers *prometheus.GaugeVec

	// Engine metrics
	Commands        *prometheus.CounterVec
	CommandsDropped *prometheus.CounterVec

	// Banlist metrics
	ReconcileRuns     *prometheus.CounterVec
	BanlistEntries    prometheus.Gauge
	BanlistLastChange prometheus.Gauge

	// Conntrack metrics
	ConntrackKilled prometheus.Counter

	// System metrics
	Uptime           prometheus.Gauge
	EventSubscribers prometheus.Gauge
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.BackendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portcullis_backend_calls_total",
		Help: "Firewall backend invocations by operation and outcome",
	}, []string{"backend", "op", "outcome"})

	r.PolicyMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "portcullis_policy_members",
		Help: "Tracked IPs per list policy",
	}, []string{"list"})

	r.Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portcullis_commands_total",
		Help: "Commands handled by the engine",
	}, []string{"list", "action", "outcome"})

	r.CommandsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portcullis_commands_dropped_total",
		Help: "Commands dropped before dispatch",
	}, []string{"reason"})

	r.ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portcullis_reconcile_runs_total",
		Help: "Ban-file reconcile passes",
	}, []string{"outcome"})

	r.BanlistEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portcullis_banlist_entries",
		Help: "IPs currently in the ban-file cache",
	})

	r.BanlistLastChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portcullis_banlist_last_change_timestamp",
		Help: "Unix timestamp of the last observed ban-file change",
	})

	r.ConntrackKilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portcullis_conntrack_killed_total",
		Help: "Conntrack entries flushed for banned IPs",
	})

	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portcullis_uptime_seconds",
		Help: "Daemon uptime in seconds",
	})

	r.EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portcullis_event_subscribers",
		Help: "Connected admin API event stream clients",
	})

	return r
}

// RecordBackendCall records one backend invocation.
func (r *Registry) RecordBackendCall(backend, op string, err error) {
	r.BackendCalls.WithLabelValues(backend, op, outcome(err)).Inc()
}

// RecordCommand records one dispatched command.
func (r *Registry) RecordCommand(list, action string, err error) {
	r.Commands.WithLabelValues(list, action, outcome(err)).Inc()
}

// RecordDrop records a command dropped before dispatch.
func (r *Registry) RecordDrop(reason string) {
	r.CommandsDropped.WithLabelValues(reason).Inc()
}

// RecordReconcile records one reconcile pass and the resulting cache size.
func (r *Registry) RecordReconcile(entries int, changed time.Time, err error) {
	r.ReconcileRuns.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		r.BanlistEntries.Set(float64(entries))
		if !changed.IsZero() {
			r.BanlistLastChange.Set(float64(changed.Unix()))
		}
	}
}

// SetPolicyMembers records the tracked-IP count for a list policy.
func (r *Registry) SetPolicyMembers(list string, n int) {
	r.PolicyMembers.WithLabelValues(list).Set(float64(n))
}

// RecordConntrackKilled adds to the flushed-entry counter.
func (r *Registry) RecordConntrackKilled(n int) {
	if n > 0 {
		r.ConntrackKilled.Add(float64(n))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
