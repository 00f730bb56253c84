package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qr-nexus/internal/application/session"
	"github.com/qr-nexus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validRegisterBody() []byte {
	b, _ := json.Marshal(domain.CreateUserRequest{
		Username: "alice",
		Password: "s3cretpass",
		Email:    "alice@example.com",
		FullName: "Alice",
	})
	return b
}

func TestUserHandler_Register_Success(t *testing.T) {
	users, sessions := new(mockUserSvc), new(mockSessionSvc)
	u := &domain.User{UserID: "u1", Username: "alice", PasswordHash: "hash"}
	users.On("Register", mock.Anything, mock.AnythingOfType("domain.CreateUserRequest")).Return(u, nil)
	sessions.On("Login", mock.Anything, session.LoginRequest{Username: "alice", Password: "s3cretpass"}).
		Return(&session.LoginResult{Bearer: "jwt", RefreshToken: "rt", Session: &domain.Session{SessionID: "s1", UserID: "u1"}}, nil)

	h := NewUserHandler(users, sessions)
	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(validRegisterBody()))
	rr := serve(http.MethodPost, "/v1/users", h.Register, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "jwt", body["access_token"])
	assert.Equal(t, "rt", body["refresh_token"])
	assert.NotContains(t, rr.Body.String(), "hash")
}

func TestUserHandler_Register_ValidationFails(t *testing.T) {
	h := NewUserHandler(new(mockUserSvc), new(mockSessionSvc))
	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader([]byte(`{"username":"a"}`)))
	rr := serve(http.MethodPost, "/v1/users", h.Register, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUserHandler_Register_BadJSON(t *testing.T) {
	h := NewUserHandler(new(mockUserSvc), new(mockSessionSvc))
	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader([]byte(`{`)))
	rr := serve(http.MethodPost, "/v1/users", h.Register, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHandler_Register_Conflict(t *testing.T) {
	users := new(mockUserSvc)
	users.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrConflict)

	h := NewUserHandler(users, new(mockSessionSvc))
	req := httptest.NewRequest(http.MethodPost, "/v1/users", bytes.NewReader(validRegisterBody()))
	rr := serve(http.MethodPost, "/v1/users", h.Register, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUserHandler_Me_RequiresToken(t *testing.T) {
	p := newTestJWTProvider(t)
	h := NewUserHandler(new(mockUserSvc), new(mockSessionSvc))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rr := serveAuthed(p, http.MethodGet, "/v1/users/me", h.Me, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserHandler_Me_UsesTokenSubject(t *testing.T) {
	p := newTestJWTProvider(t)
	users := new(mockUserSvc)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Username: "alice"}, nil)

	h := NewUserHandler(users, new(mockSessionSvc))
	req := bearerReq(t, p, http.MethodGet, "/v1/users/me", "u1", domain.RoleUser, nil)
	rr := serveAuthed(p, http.MethodGet, "/v1/users/me", h.Me, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"alice"`)
	users.AssertExpectations(t)
}

func TestUserHandler_ChangePassword_WrongCurrent(t *testing.T) {
	p := newTestJWTProvider(t)
	users := new(mockUserSvc)
	users.On("ChangePassword", mock.Anything, "u1", "old-password", "new-password").Return(domain.ErrUnauthorized)

	h := NewUserHandler(users, new(mockSessionSvc))
	body := []byte(`{"current_password":"old-password","new_password":"new-password"}`)
	req := bearerReq(t, p, http.MethodPut, "/v1/users/me/password", "u1", domain.RoleUser, body)
	rr := serveAuthed(p, http.MethodPut, "/v1/users/me/password", h.ChangePassword, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
