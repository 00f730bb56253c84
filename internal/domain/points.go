package domain

import "time"

// UserPoints is the per-user balance. total_points only moves through the
// share award, the referral award and the admin overwrite.
type UserPoints struct {
	UserID           string     `json:"user_id" dynamodbav:"user_id"`
	TotalPoints      int64      `json:"total_points" dynamodbav:"total_points"`
	TotalShares      int64      `json:"total_shares" dynamodbav:"total_shares"`
	TotalReferrals   int64      `json:"total_referrals" dynamodbav:"total_referrals"`
	LastShareAt      *time.Time `json:"last_share_at,omitempty" dynamodbav:"last_share_at,omitempty,unixtime"`
	LastShareChannel string     `json:"last_share_channel,omitempty" dynamodbav:"last_share_channel,omitempty"`
}

// Share channels accepted by the share award.
var ShareChannels = []string{"web_app", "whatsapp", "telegram", "twitter", "facebook", "copy_link", "native"}

const DefaultShareChannel = "web_app"

type ShareRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=web_app whatsapp telegram twitter facebook copy_link native"`
}

// ShareAward describes one attempt to award share points.
type ShareAward struct {
	UserID   string
	Channel  string
	Points   int64
	Now      time.Time
	Cooldown time.Duration
}

// ShareResult is returned by a successful share award.
type ShareResult struct {
	PointsAwarded int64 `json:"points_awarded"`
	PointsTotal   int64 `json:"points_total"`
	TotalShares   int64 `json:"total_shares"`
}

// ReferralConversion records that a visitor converted through a referrer's
// link. (ReferrerID, VisitorKey) is unique.
type ReferralConversion struct {
	ReferrerID         string    `json:"referrer_id" dynamodbav:"referrer_id"`
	VisitorKey         string    `json:"visitor_key" dynamodbav:"visitor_key"`
	ReferredUserID     string    `json:"referred_user_id,omitempty" dynamodbav:"referred_user_id,omitempty"`
	VisitorFingerprint string    `json:"-" dynamodbav:"visitor_fingerprint,omitempty"`
	CreatedAt          time.Time `json:"created" dynamodbav:"created_at"`
}

// Visitor identifies who followed a referral link: an authenticated user
// when known, otherwise a request fingerprint.
type Visitor struct {
	UserID      string
	Fingerprint string
}

// Key is the uniqueness half of a conversion row.
func (v Visitor) Key() string {
	if v.UserID != "" {
		return "user#" + v.UserID
	}
	return "fp#" + v.Fingerprint
}

type ReferralResult struct {
	Awarded bool   `json:"awarded"`
	Reason  string `json:"reason,omitempty"`
}

// Machine-readable reasons for a referral visit that did not award points.
const (
	ReferralAlreadyConverted = "already_converted"
	ReferralUnknownReferrer  = "unknown_referrer"
	ReferralInactiveReferrer = "referrer_inactive"
)

type ReferralLink struct {
	ReferralCode string `json:"referral_code"`
	ReferralLink string `json:"referral_link"`
}
