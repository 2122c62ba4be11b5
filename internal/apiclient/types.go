package apiclient

// Credentials is the login request body
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Token is the token exchange response
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the authenticated identity returned by the API
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Claim represents a single health claim record
type Claim struct {
	ID            string  `json:"id"`
	ClaimID       string  `json:"claim_id"`
	MemberID      string  `json:"member_id"`
	ProviderID    string  `json:"provider_id"`
	DateOfService string  `json:"date_of_service"`
	CPTCode       string  `json:"cpt_code"`
	ChargeAmount  float64 `json:"charge_amount"`
	CreatedAt     string  `json:"created_at"`
}

// ClaimCreate is the claim creation request body
type ClaimCreate struct {
	ClaimID       string  `json:"claim_id"`
	MemberID      string  `json:"member_id"`
	ProviderID    string  `json:"provider_id"`
	DateOfService string  `json:"date_of_service"`
	CPTCode       string  `json:"cpt_code"`
	ChargeAmount  float64 `json:"charge_amount"`
}

// AuditResult is the audit outcome for a claim
type AuditResult struct {
	ID                string   `json:"id"`
	ClaimID           string   `json:"claim_id"`
	Issues            []string `json:"issues"`
	IssueCount        int      `json:"issue_count"`
	SuspicionScore    float64  `json:"suspicion_score"`
	RecommendedAction string   `json:"recommended_action"`
	AuditTimestamp    string   `json:"audit_timestamp"`
}

// FlaggedClaim joins a claim with its audit outcome
type FlaggedClaim struct {
	ClaimID           string   `json:"claim_id"`
	MemberID          string   `json:"member_id"`
	ProviderID        string   `json:"provider_id"`
	DateOfService     string   `json:"date_of_service"`
	CPTCode           string   `json:"cpt_code"`
	ChargeAmount      float64  `json:"charge_amount"`
	Issues            []string `json:"issues"`
	SuspicionScore    float64  `json:"suspicion_score"`
	RecommendedAction string   `json:"recommended_action"`
	AuditTimestamp    string   `json:"audit_timestamp"`
}

// FlaggedCounts buckets flagged claims by risk level
type FlaggedCounts struct {
	HighRisk     int `json:"high_risk"`
	MediumRisk   int `json:"medium_risk"`
	LowRisk      int `json:"low_risk"`
	TotalFlagged int `json:"total_flagged"`
}

// AuditStatistics is the aggregate audit coverage report
type AuditStatistics struct {
	TotalClaims   int           `json:"total_claims"`
	TotalAudited  int           `json:"total_audited"`
	AuditCoverage float64       `json:"audit_coverage"`
	FlaggedCounts FlaggedCounts `json:"flagged_counts"`
}

// AuditRule is a configurable scoring rule
type AuditRule struct {
	ID        string  `json:"id,omitempty"`
	Code      string  `json:"code"`
	CPTCode   string  `json:"cpt_code,omitempty"`
	MaxCharge float64 `json:"max_charge,omitempty"`
	Weight    float64 `json:"weight"`
	Enabled   bool    `json:"enabled"`
}

// PaginationMeta describes one page of a paginated listing
type PaginationMeta struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Page is the paginated response envelope
type Page[T any] struct {
	Items      []T            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// UploadResponse acknowledges an accepted CSV upload
type UploadResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
}

// MLAuditResponse acknowledges a triggered audit sweep
type MLAuditResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}
