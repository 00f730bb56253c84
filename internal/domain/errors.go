package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrCooldown         = errors.New("cooldown active")
	ErrSelfReferral     = errors.New("self referral")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrHandleTaken means a freshly generated identity handle collided with
	// an existing one; the caller should generate another and retry.
	ErrHandleTaken = errors.New("identity handle taken")
)

// CooldownError is returned when a point award is attempted inside the
// cooldown window. It is an expected outcome, not a fault.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: retry in %ds", e.RemainingSeconds())
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }

// RemainingSeconds rounds up so a client never retries a second too early.
func (e *CooldownError) RemainingSeconds() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(e.Remaining.Seconds()))
}
