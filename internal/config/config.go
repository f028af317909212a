package config

import (
	"fmt"
	"runtime"
	"time"

	"emberfall.gg/portcullis/internal/validation"
)

// Backend names accepted by the "backend" setting.
const (
	BackendIptables = "iptables"
	BackendNetsh    = "netsh"
)

// DefaultPollInterval is the ban-file poll interval when none is configured.
const DefaultPollInterval = 10 * time.Second

// Config is the top-level structure for the daemon configuration.
type Config struct {
	// Command listener address. Producers connect here to enqueue
	// whitelist/blacklist commands.
	Listen string `hcl:"listen,optional" json:"listen"`

	// PortOffset shifts game-facing ports for multi-instance deployments
	// and qualifies every derived chain/group name.
	PortOffset int `hcl:"port_offset,optional" json:"port_offset"`

	// RulePrefix is the leading part of every chain/group name this
	// daemon owns.
	RulePrefix string `hcl:"rule_prefix,optional" json:"rule_prefix"`

	// Backend selects the OS firewall driver: "iptables" or "netsh".
	Backend string `hcl:"backend,optional" json:"backend"`

	Whitelist *WhitelistConfig `hcl:"whitelist,block" json:"whitelist,omitempty"`
	Blacklist *BlacklistConfig `hcl:"blacklist,block" json:"blacklist,omitempty"`
	Banlist   *BanlistConfig   `hcl:"banlist,block" json:"banlist,omitempty"`
	General   *GeneralConfig   `hcl:"general,block" json:"general,omitempty"`
	API       *APIConfig       `hcl:"api,block" json:"api,omitempty"`
	Logging   *LoggingConfig   `hcl:"logging,block" json:"logging,omitempty"`
}

// WhitelistConfig describes the default-deny list guarding the game ports.
type WhitelistConfig struct {
	// Game server ports; the port offset is applied to each.
	Ports []int `hcl:"ports,optional" json:"ports"`
}

// BlacklistConfig describes the default-allow ban list.
type BlacklistConfig struct {
	// Protocol managed by the ban list; empty means protocol-agnostic.
	Protocol string `hcl:"protocol,optional" json:"protocol"`

	// Port guarded by the ban list; 0 means no port restriction.
	// The offset is not applied: the login service does not move.
	Port int `hcl:"port,optional" json:"port"`

	// KillStates flushes conntrack entries for freshly banned IPs so
	// established flows die immediately. Linux only.
	KillStates bool `hcl:"kill_states,optional" json:"kill_states"`
}

// BanlistConfig describes the externally maintained ban file.
type BanlistConfig struct {
	Path     string `hcl:"path,optional" json:"path"`
	Interval string `hcl:"interval,optional" json:"interval"`
}

// GeneralConfig describes the standing allow group installed on the netsh
// backend at startup, plus the game executables whose auto-created rules
// get disabled.
type GeneralConfig struct {
	LauncherPort int      `hcl:"launcher_port,optional" json:"launcher_port"`
	RestAPIPort  int      `hcl:"restapi_port,optional" json:"restapi_port"`
	PingPort     int      `hcl:"ping_port,optional" json:"ping_port"`
	GamePrograms []string `hcl:"game_programs,optional" json:"game_programs,omitempty"`
}

// APIConfig describes the loopback admin API.
type APIConfig struct {
	Listen string `hcl:"listen,optional" json:"listen"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `hcl:"level,optional" json:"level"`
	JSON  bool   `hcl:"json,optional" json:"json"`
}

// Default returns a fully populated configuration with stock values.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every unset field.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:9801"
	}
	if c.RulePrefix == "" {
		c.RulePrefix = "portcullis"
	}
	if c.Backend == "" {
		if runtime.GOOS == "windows" {
			c.Backend = BackendNetsh
		} else {
			c.Backend = BackendIptables
		}
	}

	if c.Whitelist == nil {
		c.Whitelist = &WhitelistConfig{}
	}
	if len(c.Whitelist.Ports) == 0 {
		c.Whitelist.Ports = []int{7777, 7778}
	}

	if c.Blacklist == nil {
		c.Blacklist = &BlacklistConfig{Protocol: "tcp", Port: 9000}
	}

	if c.Banlist == nil {
		c.Banlist = &BanlistConfig{}
	}
	if c.Banlist.Path == "" {
		c.Banlist.Path = "/var/lib/portcullis/banlist.txt"
	}
	if c.Banlist.Interval == "" {
		c.Banlist.Interval = DefaultPollInterval.String()
	}

	if c.General == nil {
		c.General = &GeneralConfig{}
	}
	if c.General.LauncherPort == 0 {
		c.General.LauncherPort = 9001
	}
	if c.General.RestAPIPort == 0 {
		c.General.RestAPIPort = 9080
	}
	if c.General.PingPort == 0 {
		c.General.PingPort = 9002
	}
	if c.General.GamePrograms == nil {
		c.General.GamePrograms = []string{"ValeServer.exe"}
	}

	if c.API == nil {
		c.API = &APIConfig{Listen: "127.0.0.1:9810"}
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateListenAddr(c.Listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if c.PortOffset < 0 {
		return fmt.Errorf("port_offset must not be negative, got %d", c.PortOffset)
	}

	if c.Backend != BackendIptables && c.Backend != BackendNetsh {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendIptables, BackendNetsh, c.Backend)
	}

	for _, name := range []string{c.WhitelistName(), c.BlacklistName(), c.GeneralName()} {
		if err := validation.ValidateRuleName(name); err != nil {
			return fmt.Errorf("rule_prefix yields unusable name: %w", err)
		}
	}

	if c.Whitelist != nil {
		if len(c.Whitelist.Ports) == 0 {
			return fmt.Errorf("whitelist needs at least one port")
		}
		for _, p := range c.Whitelist.Ports {
			if err := validation.ValidatePortNumber(p + c.PortOffset); err != nil {
				return fmt.Errorf("whitelist: %w", err)
			}
		}
	}

	if c.Blacklist != nil {
		if c.Blacklist.Protocol != "" {
			if err := validation.ValidateProtocol(c.Blacklist.Protocol); err != nil {
				return fmt.Errorf("blacklist: %w", err)
			}
		}
		if c.Blacklist.Port != 0 {
			if err := validation.ValidatePortNumber(c.Blacklist.Port); err != nil {
				return fmt.Errorf("blacklist: %w", err)
			}
			// A port match needs a protocol on the packet-filter side.
			if c.Blacklist.Protocol == "" {
				return fmt.Errorf("blacklist port %d requires a protocol", c.Blacklist.Port)
			}
		}
	}

	if c.Banlist != nil && c.Banlist.Interval != "" {
		d, err := time.ParseDuration(c.Banlist.Interval)
		if err != nil {
			return fmt.Errorf("banlist interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("banlist interval must be positive, got %s", d)
		}
	}

	if c.General != nil {
		for _, p := range []int{c.General.LauncherPort, c.General.RestAPIPort, c.General.PingPort + c.PortOffset} {
			if err := validation.ValidatePortNumber(p); err != nil {
				return fmt.Errorf("general: %w", err)
			}
		}
	}

	if c.API != nil && c.API.Listen != "" {
		if err := validation.ValidateListenAddr(c.API.Listen); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if c.Logging != nil && c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging level must be debug, info, warn or error, got %q", c.Logging.Level)
		}
	}

	return nil
}

// qualified derives a chain/group name from the prefix, adding the port
// offset for multi-instance deployments.
func (c *Config) qualified(base string) string {
	name := c.RulePrefix + "-" + base
	if c.PortOffset != 0 {
		name = fmt.Sprintf("%s-%d", name, c.PortOffset)
	}
	return name
}

// WhitelistName returns the chain/group name owned by the whitelist policy.
func (c *Config) WhitelistName() string {
	return c.qualified("whitelist")
}

// BlacklistName returns the chain/group name owned by the blacklist policy.
func (c *Config) BlacklistName() string {
	return c.qualified("blacklist")
}

// GeneralName returns the group name for the netsh bootstrap allow rules.
func (c *Config) GeneralName() string {
	return c.qualified("general")
}

// ProcessName returns the log prefix for this instance.
func (c *Config) ProcessName() string {
	if c.PortOffset != 0 {
		return fmt.Sprintf("portcullis-%d", c.PortOffset)
	}
	return "portcullis"
}

// WhitelistPorts returns the managed game ports with the offset applied.
func (c *Config) WhitelistPorts() []int {
	if c.Whitelist == nil {
		return nil
	}
	out := make([]int, len(c.Whitelist.Ports))
	for i, p := range c.Whitelist.Ports {
		out[i] = p + c.PortOffset
	}
	return out
}

// GeneralPingPort returns the game-facing ping port with the offset applied.
func (c *Config) GeneralPingPort() int {
	if c.General == nil {
		return 0
	}
	return c.General.PingPort + c.PortOffset
}

// PollInterval returns the parsed ban-file poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Banlist == nil || c.Banlist.Interval == "" {
		return DefaultPollInterval
	}
	d, err := time.ParseDuration(c.Banlist.Interval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}
