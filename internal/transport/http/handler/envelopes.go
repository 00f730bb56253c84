package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/qr-nexus/internal/domain"
	"github.com/qr-nexus/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// CooldownEnvelope is returned with 429 when a point award is still cooling down.
type CooldownEnvelope struct {
	Error            string `json:"error"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// AuthEnvelope wraps login/register/refresh responses.
type AuthEnvelope struct {
	AccessToken  string          `json:"access_token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
	User         *domain.User    `json:"user,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	User    *domain.User    `json:"user,omitempty"`
}

// HubEnvelope wraps a discovery hub page.
type HubEnvelope struct {
	Data       []domain.PublicIdentity `json:"data"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

// AuditLogsEnvelope wraps a page of audit entries.
type AuditLogsEnvelope struct {
	Data       []domain.AuditLogEntry `json:"data"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// AdminUsersEnvelope wraps a page of the admin user listing.
type AdminUsersEnvelope struct {
	Data       []domain.AdminUserView `json:"data"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// AdminIdentitiesEnvelope wraps a page of the admin identity listing.
type AdminIdentitiesEnvelope struct {
	Data       []domain.AdminIdentityView `json:"data"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decodeValid decodes the JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether the handler may go on.
func decodeValid(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// decodeOptional is decodeValid for endpoints whose body may be omitted
// entirely; an empty body leaves dst at its zero value.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
