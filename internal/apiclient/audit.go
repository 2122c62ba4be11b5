package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// AuditResultsForClaim returns every audit outcome recorded for a claim.
func (c *Client) AuditResultsForClaim(ctx context.Context, claimID string) ([]AuditResult, error) {
	var out []AuditResult
	if err := c.do(ctx, http.MethodGet, "/audit-results/claim/"+claimID, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FlaggedAuditResults returns one page of flagged audit outcomes joined
// with their claims.
func (c *Client) FlaggedAuditResults(ctx context.Context, minScore float64, page, pageSize int) (*Page[FlaggedClaim], error) {
	q := pageQuery(page, pageSize)
	q.Set("min_suspicion_score", fmt.Sprintf("%g", minScore))

	var out Page[FlaggedClaim]
	if err := c.do(ctx, http.MethodGet, "/audit-results/flagged", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditStatistics returns aggregate audit coverage numbers.
func (c *Client) AuditStatistics(ctx context.Context) (*AuditStatistics, error) {
	var out AuditStatistics
	if err := c.do(ctx, http.MethodGet, "/audit-results/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerMLAudit enqueues a full audit sweep. Processing is asynchronous;
// the response carries the task id.
func (c *Client) TriggerMLAudit(ctx context.Context) (*MLAuditResponse, error) {
	var out MLAuditResponse
	if err := c.do(ctx, http.MethodPost, "/audit-results/ml-audit/trigger", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditRules returns the active scoring rules.
func (c *Client) AuditRules(ctx context.Context) ([]AuditRule, error) {
	var out []AuditRule
	if err := c.do(ctx, http.MethodGet, "/audit-rules", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceAuditRules replaces the full rule set.
func (c *Client) ReplaceAuditRules(ctx context.Context, rules []AuditRule) error {
	body := struct {
		Rules []AuditRule `json:"rules"`
	}{Rules: rules}
	return c.do(ctx, http.MethodPut, "/audit-rules", nil, body, nil)
}
