package firewall

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol identifies the transport protocol a rule matches.
type Protocol string

const (
	// ProtoNone matches any protocol.
	ProtoNone Protocol = ""
	ProtoTCP  Protocol = "tcp"
	ProtoUDP  Protocol = "udp"
)

// Rule targets. A target may also name another chain, in which case
// matching traffic is forwarded into that chain for further evaluation.
const (
	TargetAccept = "ACCEPT"
	TargetDrop   = "DROP"
)

// Rule describes one firewall predicate and its action.
//
// Ports carries the destination ports the rule matches. A nil slice
// means no port restriction. A non-nil empty slice is a caller error:
// it expresses "match these ports" with no ports to match, and backends
// reject it before any OS call.
type Rule struct {
	Protocol Protocol
	Ports    []int
	Target   string
	SourceIP string
}

// ErrEmptyPorts is returned for a rule whose port list is present but empty.
var ErrEmptyPorts = fmt.Errorf("rule has an empty port list")

// validPorts reports whether the rule's port encoding is usable.
func (r Rule) validPorts() bool {
	return r.Ports == nil || len(r.Ports) > 0
}

// portCSV renders the port list in iptables/netsh list syntax.
func (r Rule) portCSV() string {
	parts := make([]string, len(r.Ports))
	for i, p := range r.Ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func (r Rule) String() string {
	var b strings.Builder
	if r.Protocol != ProtoNone {
		fmt.Fprintf(&b, "%s ", r.Protocol)
	}
	if len(r.Ports) > 0 {
		fmt.Fprintf(&b, "dport %s ", r.portCSV())
	}
	if r.SourceIP != "" {
		fmt.Fprintf(&b, "src %s ", r.SourceIP)
	}
	if r.Target != "" {
		fmt.Fprintf(&b, "-> %s", r.Target)
	}
	return strings.TrimSpace(b.String())
}
