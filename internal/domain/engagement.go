package domain

import "time"

// EngagementKind is the counter a tracking event increments.
type EngagementKind string

const (
	EngagementScan EngagementKind = "scan"
	EngagementView EngagementKind = "view"
)

func (k EngagementKind) Valid() bool {
	return k == EngagementScan || k == EngagementView
}

const (
	TargetCode     = "code"
	TargetIdentity = "identity"
)

// ScanStat holds the per-target engagement counters. Rows are only ever
// written with atomic ADD updates, so counts never decrease.
type ScanStat struct {
	TargetID   string     `json:"target_id" dynamodbav:"target_id"`
	TargetType string     `json:"target_type" dynamodbav:"target_type"`
	IdentityID string     `json:"identity_id" dynamodbav:"identity_id"`
	TotalScans int64      `json:"total_scans" dynamodbav:"total_scans"`
	TotalViews int64      `json:"total_views" dynamodbav:"total_views"`
	LastScanAt *time.Time `json:"last_scan_at,omitempty" dynamodbav:"last_scan_at,omitempty"`
	LastViewAt *time.Time `json:"last_view_at,omitempty" dynamodbav:"last_view_at,omitempty"`
}

// Reach is the sum of scans and views.
func (s ScanStat) Reach() int64 { return s.TotalScans + s.TotalViews }

// StatTarget names the scan_stats row an engagement event is counted against.
type StatTarget struct {
	TargetID   string
	TargetType string
	IdentityID string
}

// EngagementEvent is one raw tracking hit, kept for a bounded time (TTL).
type EngagementEvent struct {
	TargetID  string         `json:"target_id" dynamodbav:"target_id"`
	EventID   string         `json:"id" dynamodbav:"event_id"`
	Kind      EngagementKind `json:"kind" dynamodbav:"kind"`
	Source    string         `json:"source" dynamodbav:"source"`
	IPHash    string         `json:"-" dynamodbav:"ip_hash,omitempty"`
	UserAgent string         `json:"-" dynamodbav:"user_agent,omitempty"`
	CreatedAt time.Time      `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64          `json:"-" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// EngagementHit is the caller-supplied context of a tracking call.
type EngagementHit struct {
	Kind      EngagementKind
	Source    string
	IPHash    string
	UserAgent string
}

// CodeStats is the owner-facing analytics view of one code.
type CodeStats struct {
	CodeID     string     `json:"code_id"`
	Label      string     `json:"label"`
	TotalScans int64      `json:"total_scans"`
	TotalViews int64      `json:"total_views"`
	LastScanAt *time.Time `json:"last_scan_at,omitempty"`
	LastViewAt *time.Time `json:"last_view_at,omitempty"`
	CreatedAt  time.Time  `json:"created"`
}
