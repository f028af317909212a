package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// GenerateDefault renders the stock configuration as a commented HCL file.
func GenerateDefault() []byte {
	cfg := Default()

	f := hclwrite.NewEmptyFile()
	body := f.Body()

	comment(body, "portcullis firewall configuration")
	comment(body, "command listener for whitelist/blacklist producers")
	body.SetAttributeValue("listen", cty.StringVal(cfg.Listen))
	body.SetAttributeValue("port_offset", cty.NumberIntVal(int64(cfg.PortOffset)))
	body.SetAttributeValue("rule_prefix", cty.StringVal(cfg.RulePrefix))
	comment(body, `backend: "iptables" (Linux) or "netsh" (Windows)`)
	body.SetAttributeValue("backend", cty.StringVal(cfg.Backend))
	body.AppendNewline()

	comment(body, "default-deny list guarding the game server ports")
	wl := body.AppendNewBlock("whitelist", nil).Body()
	wl.SetAttributeValue("ports", intList(cfg.Whitelist.Ports))
	body.AppendNewline()

	comment(body, "default-allow ban list guarding the login port")
	bl := body.AppendNewBlock("blacklist", nil).Body()
	bl.SetAttributeValue("protocol", cty.StringVal(cfg.Blacklist.Protocol))
	bl.SetAttributeValue("port", cty.NumberIntVal(int64(cfg.Blacklist.Port)))
	bl.SetAttributeValue("kill_states", cty.BoolVal(cfg.Blacklist.KillStates))
	body.AppendNewline()

	comment(body, "externally maintained ban file, one IP per line")
	ban := body.AppendNewBlock("banlist", nil).Body()
	ban.SetAttributeValue("path", cty.StringVal(cfg.Banlist.Path))
	ban.SetAttributeValue("interval", cty.StringVal(cfg.Banlist.Interval))
	body.AppendNewline()

	comment(body, "standing allows installed on the netsh backend at startup")
	gen := body.AppendNewBlock("general", nil).Body()
	gen.SetAttributeValue("launcher_port", cty.NumberIntVal(int64(cfg.General.LauncherPort)))
	gen.SetAttributeValue("restapi_port", cty.NumberIntVal(int64(cfg.General.RestAPIPort)))
	gen.SetAttributeValue("ping_port", cty.NumberIntVal(int64(cfg.General.PingPort)))
	gen.SetAttributeValue("game_programs", strList(cfg.General.GamePrograms))
	body.AppendNewline()

	comment(body, "loopback admin API; remove the block to disable")
	api := body.AppendNewBlock("api", nil).Body()
	api.SetAttributeValue("listen", cty.StringVal(cfg.API.Listen))
	body.AppendNewline()

	logb := body.AppendNewBlock("logging", nil).Body()
	logb.SetAttributeValue("level", cty.StringVal(cfg.Logging.Level))
	logb.SetAttributeValue("json", cty.BoolVal(cfg.Logging.JSON))

	return f.Bytes()
}

// WriteDefault writes the stock configuration to path, creating parent
// directories as needed. Used on first boot when no config file exists.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, GenerateDefault(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func comment(body *hclwrite.Body, text string) {
	body.AppendUnstructuredTokens(hclwrite.Tokens{
		{Type: hclsyntax.TokenComment, Bytes: []byte("# " + text + "\n")},
	})
}

func intList(vals []int) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.Number)
	}
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(int64(v))
	}
	return cty.ListVal(out)
}

func strList(vals []string) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.StringVal(v)
	}
	return cty.ListVal(out)
}
