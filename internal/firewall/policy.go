package firewall

import (
	"sort"
	"sync"

	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
)

// StateKiller removes established connection state for an address so a
// fresh deny rule applies to flows that already exist.
type StateKiller interface {
	Kill(ip string) (int, error)
}

// List is one managed rule list, whitelist or blacklist, backed by a
// chain or rule group it owns exclusively.
//
// The membership cache is authoritative from process start only: it is
// emptied by Reset and repopulated through Add, never rebuilt from live
// firewall state. One mutex serializes all mutations; the command
// dispatcher and the ban-file poller share List instances.
type List struct {
	mu      sync.Mutex
	name    string
	chain   string
	backend Backend

	protocols []Protocol
	ports     []int
	target    string
	loopback  bool

	killer  StateKiller
	log     *logging.Logger
	members map[string]struct{}
}

// NewWhitelist creates an allow list managing both tcp and udp for the
// given destination ports. The chain keeps a standing ACCEPT for
// loopback so co-located control-plane traffic survives the catch-all.
func NewWhitelist(chain string, ports []int, backend Backend) *List {
	return &List{
		name:      "whitelist",
		chain:     chain,
		backend:   backend,
		protocols: []Protocol{ProtoTCP, ProtoUDP},
		ports:     ports,
		target:    TargetAccept,
		loopback:  true,
		log:       logging.WithComponent("whitelist"),
		members:   make(map[string]struct{}),
	}
}

// NewBlacklist creates a deny list for one protocol and port. proto
// ProtoNone with port 0 bans an address outright, any protocol.
func NewBlacklist(chain string, proto Protocol, port int, backend Backend) *List {
	var ports []int
	if port != 0 {
		ports = []int{port}
	}
	return &List{
		name:      "blacklist",
		chain:     chain,
		backend:   backend,
		protocols: []Protocol{proto},
		ports:     ports,
		target:    TargetDrop,
		log:       logging.WithComponent("blacklist"),
		members:   make(map[string]struct{}),
	}
}

// SetStateKiller attaches a conntrack flusher consulted after each
// successful Add.
func (l *List) SetStateKiller(k StateKiller) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.killer = k
}

// Name returns the list's command-target name.
func (l *List) Name() string { return l.name }

// Chain returns the chain or group the list owns.
func (l *List) Chain() string { return l.chain }

// Has reports whether ip is tracked.
func (l *List) Has(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.members[ip]
	return ok
}

// Info is a point-in-time snapshot of the list for status reporting.
type Info struct {
	Name      string   `json:"name"`
	Chain     string   `json:"chain"`
	Protocols []string `json:"protocols"`
	Ports     []int    `json:"ports,omitempty"`
	Members   []string `json:"members"`
}

// Info snapshots the list.
func (l *List) Info() Info {
	info := Info{
		Name:    l.name,
		Chain:   l.chain,
		Ports:   l.ports,
		Members: l.Members(),
	}
	for _, p := range l.protocols {
		if p == ProtoNone {
			info.Protocols = append(info.Protocols, "any")
			continue
		}
		info.Protocols = append(info.Protocols, string(p))
	}
	return info
}

// Members returns the tracked addresses, sorted.
func (l *List) Members() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.members))
	for ip := range l.members {
		out = append(out, ip)
	}
	sort.Strings(out)
	return out
}

// Add tracks ip and installs its rules. Adding a tracked address is a
// no-op; for an untracked one each managed protocol gets a rule,
// guarded by a presence probe so a restart or outside mutation cannot
// stack duplicates.
func (l *List) Add(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[ip]; ok {
		l.log.Debug("address already tracked", "ip", ip)
		return nil
	}
	l.log.Info("adding rule", "ip", ip, "target", l.target)
	l.members[ip] = struct{}{}
	metrics.Get().SetPolicyMembers(l.name, len(l.members))

	err := l.installLocked(l.chain, l.memberRules(ip))
	if err == nil && l.killer != nil {
		l.killLocked(ip)
	}
	return err
}

// Remove untracks ip and deletes its rules unconditionally. Removing
// an untracked address is a no-op, and a rule that is already gone is
// tolerated.
func (l *List) Remove(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.members[ip]; !ok {
		l.log.Debug("address not tracked", "ip", ip)
		return nil
	}
	l.log.Info("removing rule", "ip", ip)
	delete(l.members, ip)
	metrics.Get().SetPolicyMembers(l.name, len(l.members))

	var firstErr error
	for _, r := range l.memberRules(ip) {
		if err := l.backend.Delete(l.chain, r); err != nil {
			if isExitError(err) {
				l.log.Debug("rule already absent", "rule", r.String())
				continue
			}
			l.log.Error("delete failed", "rule", r.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Reset converges the list to its initial state from any prior one:
// tear down whatever exists, rebuild the chain with its default rules,
// and rehook the forwarding layer. The membership cache is emptied.
func (l *List) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log.Info("resetting to initial state", "chain", l.chain)
	l.removeAllLocked()
	l.members = make(map[string]struct{})
	metrics.Get().SetPolicyMembers(l.name, 0)

	if err := l.backend.NewChain(l.chain); err != nil {
		l.log.Error("chain creation failed", "chain", l.chain, "error", err)
		return err
	}
	var firstErr error
	for _, r := range l.defaultRules() {
		if err := l.backend.Append(l.chain, r); err != nil {
			l.log.Error("default rule failed", "rule", r.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := l.installLocked(l.chain, l.standingRules()); err != nil && firstErr == nil {
		firstErr = err
	}
	if in := l.backend.InputChain(); in != "" {
		if err := l.installLocked(in, l.forwardRules()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RemoveAll tears down every rule and chain the list owns. Best
// effort: on a clean system every step fails and that is fine.
func (l *List) RemoveAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.log.Info("removing all rules", "chain", l.chain)
	l.removeAllLocked()
	l.members = make(map[string]struct{})
	metrics.Get().SetPolicyMembers(l.name, 0)
	return nil
}

func (l *List) removeAllLocked() {
	if in := l.backend.InputChain(); in != "" {
		for _, r := range l.forwardRules() {
			if err := l.backend.Delete(in, r); err != nil {
				l.log.Debug("forwarding teardown", "rule", r.String(), "error", err)
			}
		}
	}
	if err := l.backend.FlushChain(l.chain); err != nil {
		l.log.Debug("flush teardown", "chain", l.chain, "error", err)
	}
	if err := l.backend.DeleteChain(l.chain); err != nil {
		l.log.Debug("chain teardown", "chain", l.chain, "error", err)
	}
}

// installLocked check-then-inserts rules into chain. A failing probe is
// treated as absence; the insert that follows surfaces a real fault.
func (l *List) installLocked(chain string, rules []Rule) error {
	var firstErr error
	for _, r := range rules {
		present, err := l.backend.Check(chain, r)
		if err != nil {
			l.log.Debug("presence probe failed", "rule", r.String(), "error", err)
		}
		if present {
			continue
		}
		if err := l.backend.Insert(chain, r); err != nil {
			l.log.Error("insert failed", "chain", chain, "rule", r.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (l *List) killLocked(ip string) {
	n, err := l.killer.Kill(ip)
	if err != nil {
		l.log.Warn("conntrack flush failed", "ip", ip, "error", err)
		return
	}
	if n > 0 {
		metrics.Get().RecordConntrackKilled(n)
		l.log.Debug("conntrack entries removed", "ip", ip, "count", n)
	}
}

// memberRules builds the per-address rules, one per managed protocol.
func (l *List) memberRules(ip string) []Rule {
	rules := make([]Rule, 0, len(l.protocols))
	for _, p := range l.protocols {
		rules = append(rules, Rule{Protocol: p, Ports: l.ports, Target: l.target, SourceIP: ip})
	}
	return rules
}

// defaultRules are appended to the fresh chain on reset. A whitelist
// chain ends in a catch-all DROP unless the platform already denies by
// default; a blacklist group on a default-deny platform instead needs
// a standing allow for the guarded port, or the deny list would shut
// the service to everyone.
func (l *List) defaultRules() []Rule {
	switch l.target {
	case TargetAccept:
		if !l.backend.DefaultDeny() {
			return []Rule{{Target: TargetDrop}}
		}
	case TargetDrop:
		if l.backend.DefaultDeny() && len(l.ports) > 0 {
			rules := make([]Rule, 0, len(l.protocols))
			for _, p := range l.protocols {
				if p == ProtoNone {
					continue
				}
				rules = append(rules, Rule{Protocol: p, Ports: l.ports, Target: TargetAccept})
			}
			return rules
		}
	}
	return nil
}

// standingRules sit above the catch-all permanently.
func (l *List) standingRules() []Rule {
	if !l.loopback {
		return nil
	}
	return l.memberRules("127.0.0.1")
}

// forwardRules hook the list's chain into the global inbound chain.
func (l *List) forwardRules() []Rule {
	rules := make([]Rule, 0, len(l.protocols))
	for _, p := range l.protocols {
		rules = append(rules, Rule{Protocol: p, Ports: l.ports, Target: l.chain})
	}
	return rules
}
