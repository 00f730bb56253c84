package domain

import "time"

// Audit actions written by privileged operations.
const (
	AuditActionAdjustPoints   = "ADJUST_POINTS"
	AuditActionSetStatus      = "SET_USER_STATUS"
	AuditActionViewOverview   = "VIEW_OVERVIEW"
	AuditActionViewUsers      = "VIEW_USERS"
	AuditActionViewIdentities = "VIEW_IDENTITIES"
)

// Audit target types.
const (
	AuditTargetUser   = "user"
	AuditTargetSystem = "system"
)

// AuditLogEntry is append-only; entries are never updated.
type AuditLogEntry struct {
	EntryID    string    `json:"id" dynamodbav:"entry_id"`
	AdminID    string    `json:"admin_id" dynamodbav:"admin_id"`
	Action     string    `json:"action" dynamodbav:"action"`
	TargetType string    `json:"target_type" dynamodbav:"target_type"`
	TargetID   string    `json:"target_id" dynamodbav:"target_id"`
	Reason     string    `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	Before     string    `json:"before" dynamodbav:"before"`
	After      string    `json:"after" dynamodbav:"after"`
	IPAddress  string    `json:"ip_address,omitempty" dynamodbav:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

type AdjustPointsRequest struct {
	NewTotal *int64 `json:"new_total" validate:"required,min=0"`
	Reason   string `json:"reason" validate:"required,max=280"`
}

type SetUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended banned"`
	Reason string `json:"reason" validate:"required,max=280"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	TotalUsers      int64 `json:"total_users"`
	TotalIdentities int64 `json:"total_identities"`
	TotalCodes      int64 `json:"total_codes"`
}

// PlatformStats is the public subset of Overview.
type PlatformStats struct {
	TotalIdentities int64 `json:"total_identities"`
	TotalCodes      int64 `json:"total_codes"`
}

// AdminUserView is a user row as listed to admins, with its balance.
type AdminUserView struct {
	User
	TotalPoints int64 `json:"total_points"`
}

// AdminIdentityView is an identity as listed to admins. Unlike the public
// projections it carries the owner and the raw code values.
type AdminIdentityView struct {
	IdentityID  string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id,omitempty"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	CodesCount  int64     `json:"codes_count"`
	CreatedAt   time.Time `json:"created"`
	Codes       []Code    `json:"codes"`
}
