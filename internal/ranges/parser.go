package ranges

import (
	"encoding/json"
	"fmt"

	"github.com/nancarrowm/rangesync/internal/validation"
)

// Publishers do not share a schema, so parsing tries a cascade of
// known shapes before falling back to a bounded recursive walk that
// collects anything CIDR-shaped.

// maxWalkDepth bounds the fallback walk so a pathological document
// cannot recurse forever.
const maxWalkDepth = 32

// prefixKeys are the JSON object keys that publishers use to carry a
// single address or range.
var prefixKeys = []string{
	"ip_prefix", "ipv6_prefix", "cidr", "range", "prefix", "address", "ip",
}

// listKeys are top-level keys that commonly hold a range list.
var listKeys = []string{
	"prefixes", "ipv6_prefixes", "ranges", "cidrs", "ips", "addresses", "data",
}

// ParseResponse extracts every valid CIDR range from a source response
// body. Invalid entries are skipped; an error is returned only when the
// body is not JSON at all.
func ParseResponse(sourceName string, body []byte) ([]string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("source %s: response is not valid JSON: %w", sourceName, err)
	}

	// Shape 1: a bare array, either of strings or of prefix objects.
	if arr, ok := doc.([]any); ok {
		if found := parseArray(arr); len(found) > 0 {
			return found, nil
		}
	}

	if obj, ok := doc.(map[string]any); ok {
		// Shape 2: named top-level range lists.
		var found []string
		for _, key := range listKeys {
			if arr, ok := obj[key].([]any); ok {
				found = append(found, parseArray(arr)...)
			}
		}
		if len(found) > 0 {
			return found, nil
		}
	}

	// Fallback: walk the whole document and keep anything that
	// validates as an address or range.
	var found []string
	walk(doc, 0, &found)
	return found, nil
}

// parseArray handles both string arrays and arrays of prefix objects.
func parseArray(arr []any) []string {
	var out []string
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			if validation.IsValidCIDR(v) {
				out = append(out, v)
			}
		case map[string]any:
			for _, key := range prefixKeys {
				if s, ok := v[key].(string); ok && validation.IsValidCIDR(s) {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// walk collects every CIDR-shaped string anywhere in the document.
func walk(node any, depth int, out *[]string) {
	if depth > maxWalkDepth {
		return
	}
	switch v := node.(type) {
	case string:
		if validation.IsValidCIDR(v) {
			*out = append(*out, v)
		}
	case []any:
		for _, item := range v {
			walk(item, depth+1, out)
		}
	case map[string]any:
		for _, item := range v {
			walk(item, depth+1, out)
		}
	}
}
