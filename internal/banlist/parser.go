// Package banlist keeps a blacklist policy converged onto an
// operator-maintained ban file.
package banlist

import (
	"bufio"
	"io"
	"strings"

	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/validation"
)

// Parse reads a ban file: one IP per line, optionally followed by
// whitespace and a # comment. Blank and comment-only lines contribute
// nothing, duplicates collapse, and a line whose address does not
// parse is logged and skipped rather than poisoning the rest.
func Parse(r io.Reader) (map[string]struct{}, error) {
	log := logging.WithComponent("banlist")
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	lineno := 0

	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		ip, err := validation.CanonicalIPv4(line)
		if err != nil {
			log.Warn("skipping unparsable ban entry", "line", lineno, "entry", line, "error", err)
			continue
		}
		set[ip] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
