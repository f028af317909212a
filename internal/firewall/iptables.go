package firewall

import (
	"fmt"
	"strconv"
	"strings"

	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/validation"
)

// iptables operation flags.
// https://linux.die.net/man/8/iptables
const (
	iptAppend      = "-A"
	iptInsert      = "-I"
	iptDelete      = "-D"
	iptNewChain    = "-N"
	iptFlushChain  = "-F"
	iptDeleteChain = "-X"
	iptCheck       = "-C"
)

// IPTables drives netfilter through the iptables command. Each managed
// list gets its own chain; traffic reaches it through forwarding rules
// in INPUT.
type IPTables struct {
	runner CommandRunner
}

// NewIPTables creates an iptables backend using the default runner.
func NewIPTables() *IPTables {
	return &IPTables{runner: DefaultCommandRunner}
}

// SetRunner sets the command runner for testing.
func (b *IPTables) SetRunner(runner CommandRunner) {
	b.runner = runner
}

func (b *IPTables) Name() string { return "iptables" }

// DefaultDeny is false: an iptables chain without a verdict falls
// through to the system policy.
func (b *IPTables) DefaultDeny() bool { return false }

// InputChain returns the global inbound chain.
func (b *IPTables) InputChain() string { return "INPUT" }

// Check probes for the rule with -C. The probe's stderr is discarded:
// a missing rule is the expected answer, not a fault.
func (b *IPTables) Check(chain string, r Rule) (bool, error) {
	args, err := b.args(iptCheck, chain, r)
	if err != nil {
		metrics.Get().RecordBackendCall(b.Name(), "check", err)
		return false, err
	}
	_, err = b.runner.Output("iptables", args...)
	if err == nil {
		metrics.Get().RecordBackendCall(b.Name(), "check", nil)
		return true, nil
	}
	if isExitError(err) {
		metrics.Get().RecordBackendCall(b.Name(), "check", nil)
		return false, nil
	}
	metrics.Get().RecordBackendCall(b.Name(), "check", err)
	return false, fmt.Errorf("iptables %s: %w", strings.Join(args, " "), err)
}

func (b *IPTables) Insert(chain string, r Rule) error {
	return b.run("insert", iptInsert, chain, r)
}

func (b *IPTables) Append(chain string, r Rule) error {
	return b.run("append", iptAppend, chain, r)
}

func (b *IPTables) Delete(chain string, r Rule) error {
	return b.run("delete", iptDelete, chain, r)
}

func (b *IPTables) NewChain(chain string) error {
	return b.run("new-chain", iptNewChain, chain, Rule{})
}

func (b *IPTables) FlushChain(chain string) error {
	return b.run("flush-chain", iptFlushChain, chain, Rule{})
}

func (b *IPTables) DeleteChain(chain string) error {
	return b.run("delete-chain", iptDeleteChain, chain, Rule{})
}

func (b *IPTables) run(op, flag, chain string, r Rule) error {
	args, err := b.args(flag, chain, r)
	if err == nil {
		if err = b.runner.Run("iptables", args...); err != nil {
			err = fmt.Errorf("iptables %s: %w", strings.Join(args, " "), err)
		}
	}
	metrics.Get().RecordBackendCall(b.Name(), op, err)
	return err
}

// args builds the iptables argument list for one operation. The -w flag
// serializes concurrent iptables invocations on the xtables lock.
func (b *IPTables) args(flag, chain string, r Rule) ([]string, error) {
	if err := validation.ValidateRuleName(chain); err != nil {
		return nil, fmt.Errorf("chain %q: %w", chain, err)
	}
	if !r.validPorts() {
		return nil, ErrEmptyPorts
	}

	args := []string{"-w", flag, chain}
	if r.Protocol != ProtoNone {
		args = append(args, "-p", string(r.Protocol))
	}
	switch len(r.Ports) {
	case 0:
	case 1:
		args = append(args, "--dport", strconv.Itoa(r.Ports[0]))
	default:
		args = append(args, "-m", "multiport", "--dport", r.portCSV())
	}
	if r.Target != "" {
		args = append(args, "-j", r.Target)
	}
	if r.SourceIP != "" {
		args = append(args, "-s", r.SourceIP)
	}
	return args, nil
}
