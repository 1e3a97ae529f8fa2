// Package validation provides input validation helpers for addresses,
// CIDR ranges, protocols and ports.
package validation

import (
	"fmt"
	"net"
	"strings"
)

// IsValidCIDR checks whether s is a valid IP address or CIDR range.
// Both IPv4 and IPv6 are accepted. A bare address without a prefix
// length is treated as valid.
func IsValidCIDR(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// IsIPv6 reports whether s looks like an IPv6 address or range.
// Classification is by the presence of a colon, which holds for every
// textual IPv6 form and no textual IPv4 form.
func IsIPv6(s string) bool {
	return strings.Contains(s, ":")
}

// ValidateProtocol checks that proto is a supported transport protocol.
func ValidateProtocol(proto string) error {
	switch strings.ToUpper(strings.TrimSpace(proto)) {
	case "TCP", "UDP":
		return nil
	default:
		return fmt.Errorf("invalid protocol %q: must be TCP or UDP", proto)
	}
}

// ValidatePortNumber checks that port is in the valid range 1-65535.
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return nil
}
