package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ListClaims returns one page of claims.
func (c *Client) ListClaims(ctx context.Context, page, pageSize int) (*Page[Claim], error) {
	var out Page[Claim]
	if err := c.do(ctx, http.MethodGet, "/claims/", pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClaim fetches a single claim by its claim identifier.
func (c *Client) GetClaim(ctx context.Context, claimID string) (*Claim, error) {
	var out Claim
	if err := c.do(ctx, http.MethodGet, "/claims/"+claimID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClaim submits a single claim record.
func (c *Client) CreateClaim(ctx context.Context, claim ClaimCreate) (*Claim, error) {
	var out Claim
	if err := c.do(ctx, http.MethodPost, "/claims/", nil, claim, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimsByMember returns one page of a member's claims.
func (c *Client) ClaimsByMember(ctx context.Context, memberID string, page, pageSize int) (*Page[Claim], error) {
	var out Page[Claim]
	if err := c.do(ctx, http.MethodGet, "/claims/member/"+memberID, pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimsByProvider returns one page of a provider's claims.
func (c *Client) ClaimsByProvider(ctx context.Context, providerID string, page, pageSize int) (*Page[Claim], error) {
	var out Page[Claim]
	if err := c.do(ctx, http.MethodGet, "/claims/provider/"+providerID, pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FlaggedClaims returns one page of claims whose suspicion score is at or
// above minScore.
func (c *Client) FlaggedClaims(ctx context.Context, minScore float64, page, pageSize int) (*Page[FlaggedClaim], error) {
	q := pageQuery(page, pageSize)
	q.Set("min_suspicion_score", fmt.Sprintf("%g", minScore))

	var out Page[FlaggedClaim]
	if err := c.do(ctx, http.MethodGet, "/claims/flagged", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadCSV streams a claims CSV to the ingest endpoint. Processing is
// asynchronous; the response carries the task id.
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var out UploadResponse
	if err := c.upload(ctx, "/claims/upload", "file", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
