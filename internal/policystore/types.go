// Package policystore talks to the remote firewall policy API the
// engine reconciles against.
package policystore

import (
	"fmt"
	"strings"
)

// Scope is the administrative level rules are managed at.
type Scope string

const (
	ScopeSite    Scope = "site"
	ScopeGroup   Scope = "group"
	ScopeAccount Scope = "account"
	ScopeTenant  Scope = "tenant"
)

// ParseScope validates and normalizes a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeSite:
		return ScopeSite, nil
	case ScopeGroup:
		return ScopeGroup, nil
	case ScopeAccount:
		return ScopeAccount, nil
	case ScopeTenant:
		return ScopeTenant, nil
	default:
		return "", fmt.Errorf("invalid scope %q: must be site, group, account or tenant", s)
	}
}

// RequiresID reports whether this scope needs a scope ID qualifier.
func (s Scope) RequiresID() bool {
	return s != ScopeTenant
}

// RemoteHost identifies the remote side a rule matches.
type RemoteHost struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Rule is a firewall policy rule as the remote store represents it.
type Rule struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Action      string     `json:"action"`
	Direction   string     `json:"direction"`
	Protocol    string     `json:"protocol"`
	RemoteHost  RemoteHost `json:"remoteHost"`
	RemotePort  string     `json:"remotePort"`
	OSTypes     []string   `json:"osTypes,omitempty"`
}

// listResponse is one page of the rule listing endpoint.
type listResponse struct {
	Data       []Rule `json:"data"`
	Pagination struct {
		NextCursor string `json:"nextCursor"`
	} `json:"pagination"`
}

// deleteRequest is the body of a delete call, which addresses rules
// by ID filter rather than by path.
type deleteRequest struct {
	Filter struct {
		IDs []string `json:"ids"`
	} `json:"filter"`
}
