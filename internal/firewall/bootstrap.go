package firewall

import (
	"strings"

	"emberfall.gg/portcullis/internal/logging"
)

// Bootstrap prepares Windows Firewall before the managed lists take
// over. Rules the OS auto-created for the game executable are disabled
// so they cannot bypass the lists, and the general allow group gets
// the ports every client needs regardless of list membership. Safe to
// run repeatedly: allows are probed before they are added.
func (b *Netsh) Bootstrap(group string, programs []string, allows []Rule) error {
	log := logging.WithComponent("bootstrap")

	rules, err := b.RulesForPrograms()
	if err != nil {
		log.Warn("program rule scan failed", "error", err)
	}
	for _, path := range matchPrograms(rules, programs) {
		log.Info("disabling auto-created rules", "program", path)
		if err := b.DisableRulesForProgram(path); err != nil {
			log.Error("disable failed", "program", path, "error", err)
		}
	}

	var firstErr error
	for _, r := range allows {
		present, err := b.Check(group, r)
		if err != nil {
			log.Debug("presence probe failed", "rule", r.String(), "error", err)
		}
		if present {
			continue
		}
		log.Info("installing general allow", "rule", r.String())
		if err := b.Append(group, r); err != nil {
			log.Error("general allow failed", "rule", r.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// matchPrograms returns the distinct program paths whose executable
// name appears in names.
func matchPrograms(rules []NetshRule, names []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, nr := range rules {
		base := baseName(nr.Program)
		for _, name := range names {
			if strings.EqualFold(base, name) {
				if _, ok := seen[nr.Program]; !ok {
					seen[nr.Program] = struct{}{}
					out = append(out, nr.Program)
				}
				break
			}
		}
	}
	return out
}

// baseName strips a Windows or POSIX directory prefix. filepath.Base
// only understands the build platform's separator and this code is
// exercised under test on both.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		return p[i+1:]
	}
	return p
}
