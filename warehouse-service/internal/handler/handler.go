package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
)

const maxBody = 1 << 20

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, err error) {
	respondWithJSON(w, code, map[string]string{"error": err.Error()})
}

// handleServiceError maps service errors to statuses. Unexpected errors are
// logged and reported without detail.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := apperr.StatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		respondWithError(w, code, errors.New("internal server error"))
		return
	}
	respondWithError(w, code, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", apperr.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %s", apperr.ErrValidation, err.Error())
	}
	return nil
}

func identity(r *http.Request) authclient.Identity {
	id, _ := authclient.FromContext(r.Context())
	return id
}

// restrict narrows a route already behind HTTPMiddleware to roles.
func restrict(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authclient.FromContext(r.Context())
		if !ok {
			respondWithError(w, http.StatusUnauthorized, apperr.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if id.Role == role {
				next(w, r)
				return
			}
		}
		respondWithError(w, http.StatusForbidden, errors.New("access denied"))
	}
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", apperr.ErrValidation, field)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date", apperr.ErrValidation, field)
	}
	return t, nil
}

func attachment(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
