package domain

import "time"

// Identity is a public profile container. OwnerUserID is empty for orphaned
// identities whose owner account was removed.
type Identity struct {
	IdentityID  string    `json:"id" dynamodbav:"identity_id"`
	OwnerUserID string    `json:"-" dynamodbav:"owner_user_id,omitempty"`
	DisplayName string    `json:"display_name" dynamodbav:"display_name"`
	Bio         string    `json:"bio" dynamodbav:"bio"`
	CodesCount  int64     `json:"codes_count" dynamodbav:"codes_count"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

// OwnedBy reports whether userID is the authenticated owner of the identity.
func (i *Identity) OwnedBy(userID string) bool {
	return userID != "" && i.OwnerUserID == userID
}

type ClaimIdentityRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
	Bio         string `json:"bio" validate:"max=280"`
}

type UpdateIdentityRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=80"`
	Bio         *string `json:"bio" validate:"omitempty,max=280"`
}

// PublicIdentity is the discovery-hub projection: never carries the owner id.
type PublicIdentity struct {
	IdentityID  string `json:"id"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	CodesCount  int64  `json:"codes_count"`
}
