package banlist

import (
	"bytes"
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"emberfall.gg/portcullis/internal/clock"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/services"
)

const defaultInterval = 10 * time.Second

// Policy is the list the reconciler converges the ban file onto.
type Policy interface {
	Reset() error
	Add(ip string) error
	Remove(ip string) error
}

// ActionFunc observes each convergence action the reconciler takes.
type ActionFunc func(action, ip string, err error)

// Info is a snapshot of reconciler state for status reporting.
type Info struct {
	Path       string    `json:"path"`
	Entries    int       `json:"entries"`
	LastChange time.Time `json:"last_change"`
	Running    bool      `json:"running"`
}

// Service polls the ban file and drives the blacklist policy to match
// it. The file is re-read only when its modification time moves; a
// vanished file never clears standing bans.
type Service struct {
	path     string
	interval time.Duration
	policy   Policy
	clk      clock.Clock
	notify   ActionFunc
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	running    bool
	lastErr    string
	haveMod    bool
	lastMod    time.Time
	lastRaw    []byte
	cache      map[string]struct{}
	lastChange time.Time
}

// NewService creates a reconciler for path bound to policy. A zero
// interval falls back to the 10 second default.
func NewService(path string, interval time.Duration, policy Policy) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		path:     path,
		interval: interval,
		policy:   policy,
		clk:      clock.System,
		log:      logging.WithComponent("banlist"),
		cache:    make(map[string]struct{}),
	}
}

// SetClock sets the clock for testing.
func (s *Service) SetClock(c clock.Clock) {
	s.clk = c
}

// OnAction registers an observer for convergence actions.
func (s *Service) OnAction(fn ActionFunc) {
	s.notify = fn
}

func (s *Service) Name() string { return "banlist" }

// Start force-resets the bound policy, runs one synchronous pass, and
// begins polling.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.log.Info("starting", "path", s.path, "interval", s.interval)
	if err := s.policy.Reset(); err != nil {
		s.log.Error("policy reset failed", "error", err)
	}
	s.Poll()

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop halts polling and waits for the loop to drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// Status implements services.Service.
func (s *Service) Status() services.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return services.ServiceStatus{Name: "banlist", Running: s.running, Error: s.lastErr}
}

// Info snapshots reconciler state.
func (s *Service) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Path:       s.path,
		Entries:    len(s.cache),
		LastChange: s.lastChange,
		Running:    s.running,
	}
}

func (s *Service) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Poll checks the ban file's modification time and reconciles when it
// moved. A missing or unreadable file leaves current state untouched.
func (s *Service) Poll() {
	fi, err := os.Stat(s.path)
	if err != nil {
		s.log.Warn("ban file unavailable, keeping current bans", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mod := fi.ModTime()
	if s.haveMod && mod.Equal(s.lastMod) {
		return
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("ban file unreadable, keeping current bans", "path", s.path, "error", err)
		return
	}
	newSet, err := Parse(bytes.NewReader(raw))
	if err != nil {
		s.log.Warn("ban file parse failed, keeping current bans", "path", s.path, "error", err)
		return
	}

	s.log.Info("ban file changed", "path", s.path, "entries", len(newSet))
	s.logDiff(raw)

	recErr := s.reconcileLocked(newSet)
	s.haveMod = true
	s.lastMod = mod
	s.lastRaw = raw
	s.lastChange = s.clk.Now()
	s.lastErr = ""
	if recErr != nil {
		s.lastErr = recErr.Error()
	}
	metrics.Get().RecordReconcile(len(newSet), mod, recErr)
}

// reconcileLocked applies newSet to the policy: every cached address
// missing from the file is removed, then every new address is added,
// and the cache becomes newSet. Removals strictly precede additions.
func (s *Service) reconcileLocked(newSet map[string]struct{}) error {
	var removed, added []string
	for ip := range s.cache {
		if _, ok := newSet[ip]; !ok {
			removed = append(removed, ip)
		}
	}
	for ip := range newSet {
		if _, ok := s.cache[ip]; !ok {
			added = append(added, ip)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)

	var firstErr error
	for _, ip := range removed {
		err := s.policy.Remove(ip)
		if err != nil {
			s.log.Error("unban failed", "ip", ip, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			s.log.Info("unbanned", "ip", ip)
		}
		if s.notify != nil {
			s.notify("remove", ip, err)
		}
	}
	for _, ip := range added {
		err := s.policy.Add(ip)
		if err != nil {
			s.log.Error("ban failed", "ip", ip, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			s.log.Info("banned", "ip", ip)
		}
		if s.notify != nil {
			s.notify("add", ip, err)
		}
	}

	s.cache = newSet
	return firstErr
}

// logDiff emits a unified diff of the file change at debug level. The
// diff is only built when debug logging is enabled.
func (s *Service) logDiff(raw []byte) {
	if !s.log.Enabled(context.Background(), logging.LevelDebug) {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(s.lastRaw)),
		B:        difflib.SplitLines(string(raw)),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || text == "" {
		return
	}
	s.log.Debug("ban file diff", "diff", text)
}
