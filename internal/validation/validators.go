package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	// Valid chain/group name: alphanumeric, dash, underscore, dot.
	// 28 characters is the iptables chain name limit; netsh groups tolerate
	// longer names but derived names stay within the tighter bound so one
	// prefix works on both backends.
	ruleNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,28}$`)

	// Dangerous characters that should never appear in names handed to
	// external tools.
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// ValidateRuleName validates a firewall chain or rule-group name.
func ValidateRuleName(name string) error {
	if name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}

	if len(name) > 28 {
		return fmt.Errorf("rule name too long (max 28 characters): %s", name)
	}

	if !ruleNameRegex.MatchString(name) {
		return fmt.Errorf("invalid rule name: %s (must be alphanumeric with -_.)", name)
	}

	for _, char := range dangerousChars {
		if strings.Contains(name, char) {
			return fmt.Errorf("rule name contains dangerous character: %s", char)
		}
	}

	return nil
}

// CanonicalIPv4 parses s and returns the canonical dotted-quad form.
// IPv4-mapped IPv6 addresses (::ffff:a.b.c.d) are unmapped and accepted;
// any other IPv6 address is rejected, as are malformed strings.
func CanonicalIPv4(s string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %q", s)
	}

	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("IPv6 address not supported: %q", s)
	}

	return v4.String(), nil
}

// ValidateProtocol validates a rule protocol name.
func ValidateProtocol(proto string) error {
	switch strings.ToLower(proto) {
	case "tcp", "udp":
		return nil
	}
	return fmt.Errorf("invalid protocol: %s (must be tcp or udp)", proto)
}

// ValidatePortNumber validates a port number.
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be 1-65535)", port)
	}
	return nil
}

// ValidateListenAddr validates a host:port listen address.
func ValidateListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	if host != "" && net.ParseIP(host) == nil {
		return fmt.Errorf("invalid listen host: %s", host)
	}

	if port == "" {
		return fmt.Errorf("listen address missing port: %s", addr)
	}

	return nil
}

// SanitizeString removes dangerous characters from a string (for display purposes).
func SanitizeString(s string) string {
	for _, char := range dangerousChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
