package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/qr-nexus/internal/domain"
)

// httpError maps a service error onto a status code. Store failures and
// unknown errors are logged and answered with a generic message.
func httpError(w http.ResponseWriter, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		writeJSON(w, http.StatusTooManyRequests, CooldownEnvelope{
			Error:            "cooldown active",
			RemainingSeconds: cooldown.RemainingSeconds(),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrBadRequest), errors.Is(err, domain.ErrSelfReferral):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		slog.Error("store unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
