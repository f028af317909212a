package firewall

import (
	"fmt"
	"strconv"
	"strings"
)

// NetshRule is one rule block parsed from `netsh advfirewall firewall
// show rule` output.
type NetshRule struct {
	Name      string
	Enabled   bool
	Direction string
	Protocol  Protocol
	Ports     []int
	RemoteIP  string
	Action    string
	Program   string
}

// Matches reports whether the parsed rule carries r's match criteria.
func (nr NetshRule) Matches(r Rule) bool {
	if nr.Protocol != r.Protocol {
		return false
	}
	if nr.RemoteIP != r.SourceIP {
		return false
	}
	if len(nr.Ports) != len(r.Ports) {
		return false
	}
	for i := range r.Ports {
		if nr.Ports[i] != r.Ports[i] {
			return false
		}
	}
	return true
}

// ShowRules returns the rules in the named group. A group with no
// rules does not exist as far as netsh is concerned; that comes back
// as an empty slice, not an error.
func (b *Netsh) ShowRules(group string) ([]NetshRule, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	args := []string{"advfirewall", "firewall", "show", "rule", "name=" + group}
	out, err := b.runner.Output(netshExe, args...)
	if err != nil {
		if isExitError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
	}
	return parseShowRules(string(out)), nil
}

// RulesForPrograms returns every rule bound to a program path, from
// the verbose listing of all rules. Windows auto-creates such rules
// the first time an executable listens; they bypass the managed
// groups and the caller decides which ones to disable.
func (b *Netsh) RulesForPrograms() ([]NetshRule, error) {
	args := []string{"advfirewall", "firewall", "show", "rule", "name=all", "verbose"}
	out, err := b.runner.Output(netshExe, args...)
	if err != nil {
		if isExitError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
	}
	var rules []NetshRule
	for _, nr := range parseShowRules(string(out)) {
		if nr.Program != "" {
			rules = append(rules, nr)
		}
	}
	return rules, nil
}

// DisableRulesForProgram disables every inbound rule bound to the
// given program path.
func (b *Netsh) DisableRulesForProgram(program string) error {
	args := []string{"advfirewall", "firewall", "set", "rule", "name=all",
		"dir=in", "program=" + program, "new", "enable=no"}
	if err := b.runner.Run(netshExe, args...); err != nil {
		return fmt.Errorf("netsh %s: %w", strings.Join(args, " "), err)
	}
	return nil
}

// parseShowRules splits show-rule output into per-rule blocks. Each
// block is `Key: value` lines starting at "Rule Name:"; keys we do not
// care about are skipped.
func parseShowRules(out string) []NetshRule {
	var rules []NetshRule
	var cur *NetshRule

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == "Rule Name" {
			if cur != nil {
				rules = append(rules, *cur)
			}
			cur = &NetshRule{Name: value}
			continue
		}
		if cur == nil {
			continue
		}
		switch key {
		case "Enabled":
			cur.Enabled = value == "Yes"
		case "Direction":
			cur.Direction = strings.ToLower(value)
		case "Protocol":
			switch strings.ToLower(value) {
			case "tcp":
				cur.Protocol = ProtoTCP
			case "udp":
				cur.Protocol = ProtoUDP
			default:
				cur.Protocol = ProtoNone
			}
		case "LocalPort":
			cur.Ports = parsePortCSV(value)
		case "RemoteIP":
			cur.RemoteIP = parseRemoteIP(value)
		case "Action":
			cur.Action = strings.ToLower(value)
		case "Program":
			cur.Program = value
		}
	}
	if cur != nil {
		rules = append(rules, *cur)
	}
	return rules
}

func parsePortCSV(value string) []int {
	if strings.EqualFold(value, "any") {
		return nil
	}
	var ports []int
	for _, tok := range strings.Split(value, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		ports = append(ports, p)
	}
	return ports
}

// parseRemoteIP normalizes netsh's address rendering: "Any" means
// unrestricted and single hosts carry a /32 suffix.
func parseRemoteIP(value string) string {
	if strings.EqualFold(value, "any") {
		return ""
	}
	return strings.TrimSuffix(value, "/32")
}
