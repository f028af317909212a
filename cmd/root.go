// Package cmd implements the portcullis subcommands.
package cmd

import (
	"fmt"

	"github.com/fatih/color"

	"emberfall.gg/portcullis/internal/config"
	"emberfall.gg/portcullis/internal/firewall"
)

var (
	info     = color.New(color.FgBlue).PrintfFunc()
	success  = color.New(color.FgGreen).PrintfFunc()
	errPrint = color.New(color.FgRed).FprintfFunc()
)

// buildBackend selects the firewall backend named in the configuration.
func buildBackend(cfg *config.Config) (firewall.Backend, error) {
	switch cfg.Backend {
	case config.BackendIptables:
		return firewall.NewIPTables(), nil
	case config.BackendNetsh:
		return firewall.NewNetsh(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildPolicies constructs the whitelist and blacklist over backend.
func buildPolicies(cfg *config.Config, backend firewall.Backend) (whitelist, blacklist *firewall.List) {
	whitelist = firewall.NewWhitelist(cfg.WhitelistName(), cfg.WhitelistPorts(), backend)

	blacklist = firewall.NewBlacklist(cfg.BlacklistName(),
		firewall.Protocol(cfg.Blacklist.Protocol), cfg.Blacklist.Port, backend)
	if cfg.Blacklist.KillStates {
		blacklist.SetStateKiller(firewall.NewConntrackKiller())
	}
	return whitelist, blacklist
}

// generalAllows returns the always-open rules the netsh bootstrap
// installs alongside the managed lists. The launcher and REST ports
// are shared by every instance on a host; only the ping port moves
// with the port offset.
func generalAllows(cfg *config.Config) []firewall.Rule {
	return []firewall.Rule{
		{Protocol: firewall.ProtoTCP, Ports: []int{cfg.General.LauncherPort}, Target: firewall.TargetAccept},
		{Protocol: firewall.ProtoTCP, Ports: []int{cfg.General.RestAPIPort}, Target: firewall.TargetAccept},
		{Protocol: firewall.ProtoUDP, Ports: []int{cfg.GeneralPingPort()}, Target: firewall.TargetAccept},
	}
}
