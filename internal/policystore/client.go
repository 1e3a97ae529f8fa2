package policystore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nancarrowm/rangesync/internal/httpclient"
	"github.com/nancarrowm/rangesync/internal/logging"
)

// API is the surface the reconciler needs from the policy store.
type API interface {
	ListRules(ctx context.Context) ([]Rule, error)
	CreateRule(ctx context.Context, rule Rule) (Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// Client implements API against the remote policy store REST endpoint.
type Client struct {
	http     *httpclient.Client
	endpoint string
	token    string
	scope    Scope
	scopeID  string
	logger   *logging.Logger
}

// NewClient creates a policy store client. endpoint is the API base
// URL without a trailing slash.
func NewClient(hc *httpclient.Client, endpoint, token string, scope Scope, scopeID string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		http:     hc,
		endpoint: endpoint,
		token:    token,
		scope:    scope,
		scopeID:  scopeID,
		logger:   logger.WithComponent("policystore"),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
		"Accept":        "application/json",
	}
}

func (c *Client) rulesURL(query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("scope", string(c.scope))
	if c.scope.RequiresID() {
		query.Set("scopeId", c.scopeID)
	}
	return fmt.Sprintf("%s/firewall/rules?%s", c.endpoint, query.Encode())
}

// ListRules fetches the complete rule inventory, following cursor
// pagination until exhausted.
func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	var all []Rule
	cursor := ""

	for {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		resp, err := c.http.Do(ctx, http.MethodGet, c.rulesURL(query), c.headers(), nil)
		if err != nil {
			return nil, fmt.Errorf("listing rules: %w", err)
		}

		var page listResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("decoding rule list: %w", err)
		}

		all = append(all, page.Data...)
		if page.Pagination.NextCursor == "" {
			break
		}
		cursor = page.Pagination.NextCursor
	}

	c.logger.Debug("rule inventory fetched", "count", len(all))
	return all, nil
}

// CreateRule creates a rule and returns the stored version with its
// assigned ID.
func (c *Client) CreateRule(ctx context.Context, rule Rule) (Rule, error) {
	body, err := json.Marshal(rule)
	if err != nil {
		return Rule{}, fmt.Errorf("encoding rule: %w", err)
	}

	resp, err := c.http.Do(ctx, http.MethodPost, c.rulesURL(nil), c.headers(), body)
	if err != nil {
		return Rule{}, fmt.Errorf("creating rule %s: %w", rule.Name, err)
	}

	var created Rule
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return Rule{}, fmt.Errorf("decoding created rule: %w", err)
	}
	return created, nil
}

// DeleteRule deletes a rule by ID.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	var req deleteRequest
	req.Filter.IDs = []string{id}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding delete request: %w", err)
	}

	if _, err := c.http.Do(ctx, http.MethodDelete, c.rulesURL(nil), c.headers(), body); err != nil {
		return fmt.Errorf("deleting rule %s: %w", id, err)
	}
	return nil
}
