package cmd

import (
	"os"

	"emberfall.gg/portcullis/internal/config"
	"emberfall.gg/portcullis/internal/firewall"
)

// RunCleanup removes every firewall rule, chain, and group this
// configuration owns. Best effort: a rule that is already gone is not
// an error.
func RunCleanup(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	initLogging(cfg)

	backend, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	whitelist, blacklist := buildPolicies(cfg, backend)

	for _, l := range []*firewall.List{whitelist, blacklist} {
		l.RemoveAll()
		success("removed %s\n", l.Chain())
	}

	// The general allow group only exists under the netsh backend.
	if _, ok := backend.(*firewall.Netsh); ok {
		group := cfg.GeneralName()
		if err := backend.FlushChain(group); err != nil {
			errPrint(os.Stderr, "remove %s: %v\n", group, err)
		} else {
			success("removed %s\n", group)
		}
	}

	success("cleanup complete\n")
	return nil
}
