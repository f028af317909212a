package config

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const sampleHCL = `
listen      = "127.0.0.1:9901"
port_offset = 2
rule_prefix = "fleet"
backend     = "iptables"

whitelist {
  ports = [7777, 7778, 9002]
}

blacklist {
  protocol    = "tcp"
  port        = 9000
  kill_states = true
}

banlist {
  path     = "/var/lib/portcullis/banlist.txt"
  interval = "5s"
}

general {
  launcher_port = 9001
  restapi_port  = 9080
  ping_port     = 9002
  game_programs = ["ValeServer.exe"]
}

api {
  listen = "127.0.0.1:9910"
}

logging {
  level = "debug"
  json  = true
}
`

func TestLoadSample(t *testing.T) {
	cfg, err := Load([]byte(sampleHCL), "sample.hcl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != "127.0.0.1:9901" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.PortOffset != 2 {
		t.Errorf("PortOffset = %d", cfg.PortOffset)
	}
	if cfg.Backend != BackendIptables {
		t.Errorf("Backend = %q", cfg.Backend)
	}
	if !reflect.DeepEqual(cfg.Whitelist.Ports, []int{7777, 7778, 9002}) {
		t.Errorf("Whitelist.Ports = %v", cfg.Whitelist.Ports)
	}
	if cfg.Blacklist.Port != 9000 || cfg.Blacklist.Protocol != "tcp" {
		t.Errorf("Blacklist = %+v", cfg.Blacklist)
	}
	if !cfg.Blacklist.KillStates {
		t.Error("Blacklist.KillStates should be true")
	}
	if cfg.Banlist.Path != "/var/lib/portcullis/banlist.txt" {
		t.Errorf("Banlist.Path = %q", cfg.Banlist.Path)
	}
	if len(cfg.General.GamePrograms) != 1 || cfg.General.GamePrograms[0] != "ValeServer.exe" {
		t.Errorf("GamePrograms = %v", cfg.General.GamePrograms)
	}
	if cfg.API.Listen != "127.0.0.1:9910" {
		t.Errorf("API.Listen = %q", cfg.API.Listen)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("sample config should validate: %v", err)
	}
}

func TestLoadEmptyAppliesDefaults(t *testing.T) {
	cfg, err := Load([]byte(""), "empty.hcl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != "127.0.0.1:9801" {
		t.Errorf("default Listen = %q", cfg.Listen)
	}
	if cfg.RulePrefix != "portcullis" {
		t.Errorf("default RulePrefix = %q", cfg.RulePrefix)
	}
	if cfg.Backend == "" {
		t.Error("default Backend not set")
	}
	if !reflect.DeepEqual(cfg.Whitelist.Ports, []int{7777, 7778}) {
		t.Errorf("default whitelist ports = %v", cfg.Whitelist.Ports)
	}
	if cfg.Blacklist.Protocol != "tcp" || cfg.Blacklist.Port != 9000 {
		t.Errorf("default blacklist = %+v", cfg.Blacklist)
	}
	if cfg.Banlist.Interval != "10s" {
		t.Errorf("default banlist interval = %q", cfg.Banlist.Interval)
	}
	if !reflect.DeepEqual(cfg.General.GamePrograms, []string{"ValeServer.exe"}) {
		t.Errorf("default game programs = %v", cfg.General.GamePrograms)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadBadHCL(t *testing.T) {
	if _, err := Load([]byte("listen = "), "bad.hcl"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load([]byte("listen = [1"), "bad.hcl"); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad listen", func(c *Config) { c.Listen = "no-port" }},
		{"negative offset", func(c *Config) { c.PortOffset = -1 }},
		{"bad backend", func(c *Config) { c.Backend = "nftables" }},
		{"bad prefix", func(c *Config) { c.RulePrefix = "has space" }},
		{"prefix too long", func(c *Config) { c.RulePrefix = "an-exceedingly-long-prefix-name" }},
		{"no whitelist ports", func(c *Config) { c.Whitelist.Ports = []int{} }},
		{"whitelist port range", func(c *Config) { c.Whitelist.Ports = []int{70000} }},
		{"blacklist protocol", func(c *Config) { c.Blacklist.Protocol = "icmp" }},
		{"blacklist port", func(c *Config) { c.Blacklist.Port = -3 }},
		{"banlist interval", func(c *Config) { c.Banlist.Interval = "soon" }},
		{"banlist interval negative", func(c *Config) { c.Banlist.Interval = "-5s" }},
		{"api listen", func(c *Config) { c.API.Listen = "nope" }},
		{"logging level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestQualifiedNames(t *testing.T) {
	cfg := Default()
	if got := cfg.WhitelistName(); got != "portcullis-whitelist" {
		t.Errorf("WhitelistName = %q", got)
	}
	if got := cfg.BlacklistName(); got != "portcullis-blacklist" {
		t.Errorf("BlacklistName = %q", got)
	}

	cfg.PortOffset = 3
	if got := cfg.WhitelistName(); got != "portcullis-whitelist-3" {
		t.Errorf("offset WhitelistName = %q", got)
	}
	if got := cfg.BlacklistName(); got != "portcullis-blacklist-3" {
		t.Errorf("offset BlacklistName = %q", got)
	}
	if got := cfg.GeneralName(); got != "portcullis-general-3" {
		t.Errorf("offset GeneralName = %q", got)
	}
	if got := cfg.ProcessName(); got != "portcullis-3" {
		t.Errorf("offset ProcessName = %q", got)
	}
}

func TestOffsetPorts(t *testing.T) {
	cfg := Default()
	cfg.PortOffset = 100

	if !reflect.DeepEqual(cfg.WhitelistPorts(), []int{7877, 7878}) {
		t.Errorf("WhitelistPorts = %v", cfg.WhitelistPorts())
	}
	if cfg.GeneralPingPort() != 9102 {
		t.Errorf("GeneralPingPort = %d", cfg.GeneralPingPort())
	}
	// The login port does not move with the offset.
	if cfg.Blacklist.Port != 9000 {
		t.Errorf("Blacklist.Port = %d", cfg.Blacklist.Port)
	}
}

func TestPollInterval(t *testing.T) {
	cfg := Default()
	if cfg.PollInterval() != 10*time.Second {
		t.Errorf("default PollInterval = %v", cfg.PollInterval())
	}

	cfg.Banlist.Interval = "3s"
	if cfg.PollInterval() != 3*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval())
	}

	cfg.Banlist.Interval = "bogus"
	if cfg.PollInterval() != 10*time.Second {
		t.Errorf("unparsable interval should fall back, got %v", cfg.PollInterval())
	}
}

func TestGenerateDefaultRoundTrip(t *testing.T) {
	data := GenerateDefault()
	if len(data) == 0 {
		t.Fatal("GenerateDefault produced no output")
	}

	cfg, err := Load(data, "default.hcl")
	if err != nil {
		t.Fatalf("generated default config does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated default config does not validate: %v", err)
	}

	want := Default()
	if cfg.Listen != want.Listen || cfg.RulePrefix != want.RulePrefix {
		t.Errorf("round trip changed core fields: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Whitelist.Ports, want.Whitelist.Ports) {
		t.Errorf("round trip changed whitelist ports: %v", cfg.Whitelist.Ports)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "portcullis.hcl")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written default config does not validate: %v", err)
	}
}
