package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account states an admin can put a user in.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusBanned    = "banned"
)

type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	FullName     string    `json:"full_name" dynamodbav:"full_name"`
	Role         string    `json:"role" dynamodbav:"role"`
	Status       string    `json:"status" dynamodbav:"status"`
	StatusReason string    `json:"status_reason,omitempty" dynamodbav:"status_reason,omitempty"`
	IdentityID   string    `json:"identity_id,omitempty" dynamodbav:"identity_id,omitempty"` // ownership pointer, one identity per user
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// IsActive reports whether the account may log in and earn points.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,max=80"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=80"`
}
