package firewall

import (
	"fmt"
	"strings"

	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/validation"
)

// netshExe is invoked by absolute path so a manipulated PATH on the
// game host cannot swap the binary out.
const netshExe = `c:\windows\system32\netsh.exe`

// Netsh drives Windows Firewall through netsh advfirewall. Lists map to
// named rule groups: every rule this backend adds shares its list's
// name, and teardown is one delete-by-name. Groups match inbound
// traffic directly against the profile's default-deny, so there is no
// forwarding layer and no catch-all rule.
type Netsh struct {
	runner CommandRunner
}

// NewNetsh creates a netsh backend using the default runner.
func NewNetsh() *Netsh {
	return &Netsh{runner: DefaultCommandRunner}
}

// SetRunner sets the command runner for testing.
func (b *Netsh) SetRunner(runner CommandRunner) {
	b.runner = runner
}

func (b *Netsh) Name() string { return "netsh" }

// DefaultDeny is true: the Windows Firewall profile drops unmatched
// inbound traffic.
func (b *Netsh) DefaultDeny() bool { return true }

// InputChain is empty: groups match directly, nothing forwards into them.
func (b *Netsh) InputChain() string { return "" }

// action maps a rule target onto a netsh action keyword.
func action(target string) (string, error) {
	switch target {
	case TargetAccept:
		return "allow", nil
	case TargetDrop:
		return "block", nil
	}
	return "", fmt.Errorf("target %q has no netsh rendering", target)
}

// Check lists the group's rules and looks for one matching r.
func (b *Netsh) Check(group string, r Rule) (bool, error) {
	rules, err := b.ShowRules(group)
	metrics.Get().RecordBackendCall(b.Name(), "check", err)
	if err != nil {
		return false, err
	}
	want, err := action(r.Target)
	if err != nil {
		return false, err
	}
	for _, nr := range rules {
		if nr.Matches(r) && nr.Action == want {
			return true, nil
		}
	}
	return false, nil
}

// Insert adds the rule to the group. Ordering inside a group is not
// expressible with netsh; group semantics make it irrelevant.
func (b *Netsh) Insert(group string, r Rule) error {
	return b.add("insert", group, r)
}

func (b *Netsh) Append(group string, r Rule) error {
	return b.add("append", group, r)
}

func (b *Netsh) add(op, group string, r Rule) error {
	args, err := b.addArgs(group, r)
	if err == nil {
		if err = b.runner.Run(netshExe, args...); err != nil {
			err = fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
		}
	}
	metrics.Get().RecordBackendCall(b.Name(), op, err)
	return err
}

// Delete removes the rules in the group matching r's criteria.
func (b *Netsh) Delete(group string, r Rule) error {
	var args []string
	err := validateGroup(group)
	if err == nil && !r.validPorts() {
		err = ErrEmptyPorts
	}
	if err == nil {
		args = []string{"advfirewall", "firewall", "delete", "rule", "name=" + group, "dir=in"}
		args = append(args, matchArgs(r)...)
		if err = b.runner.Run(netshExe, args...); err != nil {
			err = fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
		}
	}
	metrics.Get().RecordBackendCall(b.Name(), "delete", err)
	return err
}

// NewChain is a no-op: a group exists as soon as its first rule does.
func (b *Netsh) NewChain(group string) error {
	return validateGroup(group)
}

// FlushChain removes every rule carrying the group's name.
func (b *Netsh) FlushChain(group string) error {
	err := b.RemoveRulesByName(group)
	metrics.Get().RecordBackendCall(b.Name(), "flush-chain", err)
	return err
}

// DeleteChain is a no-op: a group ceases to exist with its last rule.
func (b *Netsh) DeleteChain(group string) error {
	return validateGroup(group)
}

// RemoveRulesByName deletes all rules named group. Fails when none
// exist; cleanup callers tolerate that.
func (b *Netsh) RemoveRulesByName(group string) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	args := []string{"advfirewall", "firewall", "delete", "rule", "name=" + group}
	if err := b.runner.Run(netshExe, args...); err != nil {
		return fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

func (b *Netsh) addArgs(group string, r Rule) ([]string, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	if !r.validPorts() {
		return nil, ErrEmptyPorts
	}
	act, err := action(r.Target)
	if err != nil {
		return nil, err
	}
	args := []string{"advfirewall", "firewall", "add", "rule", "name=" + group}
	args = append(args, matchArgs(r)...)
	args = append(args, "dir=in", "enable=yes", "profile=any", "action="+act)
	return args, nil
}

// matchArgs renders the rule criteria shared by add and delete.
// localport is only valid alongside a tcp or udp protocol.
func matchArgs(r Rule) []string {
	var args []string
	if r.Protocol == ProtoNone {
		args = append(args, "protocol=any")
	} else {
		args = append(args, "protocol="+string(r.Protocol))
		if len(r.Ports) > 0 {
			args = append(args, "localport="+r.portCSV())
		}
	}
	ip := r.SourceIP
	if ip == "" {
		ip = "any"
	}
	return append(args, "remoteip="+ip)
}

func validateGroup(group string) error {
	if err := validation.ValidateRuleName(group); err != nil {
		return fmt.Errorf("group %q: %w", group, err)
	}
	return nil
}
