//go:build !linux

package firewall

import (
	"fmt"
)

// ConntrackKiller is a stub on platforms without netlink conntrack
// support.
type ConntrackKiller struct{}

func NewConntrackKiller() *ConntrackKiller {
	return &ConntrackKiller{}
}

func (k *ConntrackKiller) Kill(ip string) (int, error) {
	return 0, fmt.Errorf("conntrack not supported on this platform")
}
