package cmd

import (
	"fmt"
	"strings"

	"emberfall.gg/portcullis/internal/config"
)

// RunCheck validates the configuration file and prints a summary.
func RunCheck(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	success("Configuration valid\n")
	info("Backend:    %s\n", cfg.Backend)
	info("Listen:     %s\n", cfg.Listen)
	info("Whitelist:  %s (ports %s)\n", cfg.WhitelistName(), joinPorts(cfg.WhitelistPorts()))
	info("Blacklist:  %s (%s/%d)\n", cfg.BlacklistName(), cfg.Blacklist.Protocol, cfg.Blacklist.Port)
	info("Ban file:   %s every %s\n", cfg.Banlist.Path, cfg.PollInterval())
	if cfg.API.Listen != "" {
		info("Admin API:  %s\n", cfg.API.Listen)
	} else {
		info("Admin API:  disabled\n")
	}
	if cfg.PortOffset != 0 {
		info("Offset:     %d\n", cfg.PortOffset)
	}
	return nil
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ",")
}
