//go:build linux

package firewall

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// ConntrackKiller flushes tracked connections for banned addresses.
// A new DROP rule only filters fresh packets; flows the kernel already
// tracks keep flowing until their conntrack entries go away.
type ConntrackKiller struct{}

// NewConntrackKiller returns the netlink-backed killer.
func NewConntrackKiller() *ConntrackKiller {
	return &ConntrackKiller{}
}

// Kill deletes conntrack entries involving ip, matched as the source
// of either flow direction. Returns the number of entries removed.
func (k *ConntrackKiller) Kill(ip string) (int, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return 0, fmt.Errorf("invalid address %q", ip)
	}

	orig := &netlink.ConntrackFilter{}
	if err := orig.AddIP(netlink.ConntrackOrigSrcIP, addr); err != nil {
		return 0, fmt.Errorf("conntrack filter: %w", err)
	}
	reply := &netlink.ConntrackFilter{}
	if err := reply.AddIP(netlink.ConntrackReplySrcIP, addr); err != nil {
		return 0, fmt.Errorf("conntrack filter: %w", err)
	}

	n, err := netlink.ConntrackDeleteFilters(netlink.ConntrackTable, unix.AF_INET, orig, reply)
	if err != nil {
		return int(n), fmt.Errorf("conntrack delete for %s: %w", ip, err)
	}
	return int(n), nil
}
