package domain

import "time"

// Event types published after ledger and admin mutations.
const (
	EventShareAwarded        = "points.share_awarded"
	EventReferralConverted   = "referral.converted"
	EventAdminPointsAdjusted = "admin.points_adjusted"
	EventAdminStatusChanged  = "admin.status_changed"
)

// Event is the envelope sent to subscribers. Data never carries raw code
// values or passwords.
type Event struct {
	Type       string            `json:"type"`
	SubjectID  string            `json:"subject_id"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
