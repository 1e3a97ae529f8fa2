// Package reconcile drives the policy store toward the current
// snapshot: it names rules deterministically, compares against the
// live inventory, and applies the minimal set of creates and deletes.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nancarrowm/rangesync/internal/ranges"
)

// DefaultMaxNameLength is the rule name length limit most policy
// stores enforce.
const DefaultMaxNameLength = 100

// The compressed "::" collapses to a single dash so v6 names stay
// readable; remaining ":" and "/" each become a dash.
var sanitizer = strings.NewReplacer("::", "-", ":", "-", "/", "-")

// RuleName builds the deterministic rule name that identifies one
// (range, protocol, port) combination:
//
//	{prefix}-{IPv4|IPv6}-{TCP|UDP}-{port}-{sanitized range}
//
// The range has "/" and ":" replaced with "-" so the name is safe for
// any store. Names exceeding maxLen swap the sanitized range for the
// first 8 hex chars of its sha256, keeping the name deterministic; if
// the prefix alone pushes past the limit it is shortened until the
// structured tail and hash fit.
func RuleName(prefix string, version ranges.IPVersion, protocol string, port int, cidr string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}

	name := fmt.Sprintf("%s-%s-%s-%d-%s",
		prefix, version, strings.ToUpper(protocol), port, sanitizer.Replace(cidr))
	if len(name) <= maxLen {
		return name
	}

	sum := sha256.Sum256([]byte(cidr))
	tail := fmt.Sprintf("-%s-%s-%d-%s",
		version, strings.ToUpper(protocol), port, hex.EncodeToString(sum[:])[:8])
	if len(prefix)+len(tail) > maxLen {
		keep := maxLen - len(tail)
		if keep < 1 {
			keep = 1
		}
		prefix = prefix[:keep]
	}
	return prefix + tail
}
