package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kalambet/gallery/internal/profile"
)

// writeDomainError maps profile errors onto the HTTP error taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *profile.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"message": ve.Message,
				"type":    "invalid_request_error",
				"param":   ve.Field,
			},
		})
	case errors.Is(err, profile.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, profile.ErrUsernameTaken):
		writeConflict(w, "username", "this username is already taken")
	case errors.Is(err, profile.ErrUsernameImmutable):
		writeConflict(w, "username", "username is already set and cannot be changed")
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func writeConflict(w http.ResponseWriter, param, msg string) {
	writeJSON(w, http.StatusConflict, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "conflict",
			"param":   param,
		},
	})
}
