package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldIdentityID       = "identity_id"
	fieldTotalPoints      = "total_points"
	fieldTotalShares      = "total_shares"
	fieldTotalReferrals   = "total_referrals"
	fieldLastShareAt      = "last_share_at"
	fieldLastShareChannel = "last_share_channel"
)
