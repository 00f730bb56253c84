package domain

import (
	"strings"
	"time"
)

// MaskedValue replaces a code's raw value for every viewer except the owner.
const MaskedValue = "••••••••"

// Code is a single contact/link entry belonging to an identity.
// RawValue is sensitive and must only leave the service through an owner view.
type Code struct {
	CodeID      string    `json:"id" dynamodbav:"code_id"`
	IdentityID  string    `json:"identity_id" dynamodbav:"identity_id"`
	ServiceKind string    `json:"service_kind" dynamodbav:"service_kind"`
	Label       string    `json:"label" dynamodbav:"label"`
	RawValue    string    `json:"raw_value" dynamodbav:"raw_value"`
	IsPublic    bool      `json:"is_public" dynamodbav:"is_public"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateCodeRequest struct {
	IdentityID  string `json:"identity_id" validate:"required,nexus_id"`
	ServiceKind string `json:"service_kind" validate:"required,service_kind"`
	Label       string `json:"label" validate:"max=60"`
	Value       string `json:"value" validate:"required,max=512"`
	IsPublic    *bool  `json:"is_public"`
}

type UpdateCodeRequest struct {
	Label    *string `json:"label" validate:"omitempty,max=60"`
	Value    *string `json:"value" validate:"omitempty,min=1,max=512"`
	IsPublic *bool   `json:"is_public"`
}

// CodeView is the vault projection of a code.
type CodeView struct {
	CodeID       string `json:"id"`
	ServiceKind  string `json:"service_kind"`
	ServiceName  string `json:"service_name"`
	ServiceIcon  string `json:"service_icon"`
	ServiceColor string `json:"service_color"`
	Label        string `json:"label"`
	DisplayValue string `json:"display_value"`
	IsOwner      bool   `json:"is_owner"`
}

// Vault is the read view of an identity's codes.
type Vault struct {
	IdentityID string     `json:"identity_id"`
	Codes      []CodeView `json:"codes"`
	TotalReach int64      `json:"total_reach"`
}

// ServiceKind describes a kind of contact code shown in the UI catalog.
type ServiceKind struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	Category string `json:"category"`
}

// ServiceCatalog lists every supported code kind.
var ServiceCatalog = []ServiceKind{
	{Kind: "phone", Name: "Phone", Icon: "phone", Color: "#22c55e", Category: "contact"},
	{Kind: "whatsapp", Name: "WhatsApp", Icon: "whatsapp", Color: "#25d366", Category: "contact"},
	{Kind: "telegram", Name: "Telegram", Icon: "telegram", Color: "#229ed9", Category: "contact"},
	{Kind: "email", Name: "Email", Icon: "mail", Color: "#f97316", Category: "contact"},
	{Kind: "instagram", Name: "Instagram", Icon: "instagram", Color: "#e1306c", Category: "social"},
	{Kind: "x", Name: "X", Icon: "x", Color: "#000000", Category: "social"},
	{Kind: "tiktok", Name: "TikTok", Icon: "tiktok", Color: "#010101", Category: "social"},
	{Kind: "snapchat", Name: "Snapchat", Icon: "snapchat", Color: "#fffc00", Category: "social"},
	{Kind: "linkedin", Name: "LinkedIn", Icon: "linkedin", Color: "#0a66c2", Category: "professional"},
	{Kind: "github", Name: "GitHub", Icon: "github", Color: "#181717", Category: "professional"},
	{Kind: "website", Name: "Website", Icon: "globe", Color: "#6366f1", Category: "web"},
	{Kind: "store", Name: "Store", Icon: "bag", Color: "#eab308", Category: "web"},
}

// LookupServiceKind returns the catalog entry for kind.
func LookupServiceKind(kind string) (ServiceKind, bool) {
	for _, s := range ServiceCatalog {
		if s.Kind == kind {
			return s, true
		}
	}
	return ServiceKind{}, false
}

// TrackingURL is the payload encoded into a code's printed QR image.
func TrackingURL(baseURL, codeID string) string {
	return strings.TrimRight(baseURL, "/") + "/q/" + codeID
}

// QRObjectKey is where a code's rendered QR image is stored.
func QRObjectKey(codeID string) string {
	return "qr/" + codeID + ".png"
}
