package handler

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"versus-backend/internal/domain"
	"versus-backend/internal/service"
	apperrors "versus-backend/pkg/errors"
	"versus-backend/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondError writes err as {"error": ...}. Server faults are logged and
// their cause is not exposed.
func respondError(w http.ResponseWriter, log *logger.Logger, err error) {
	appErr := toAppError(err)
	if !appErr.IsClientError() {
		log.Error("Request failed", zap.String("type", string(appErr.Type)), zap.Error(err))
	}
	respondJSON(w, appErr.StatusCode, apperrors.NewErrorResponse(appErr))
}

// toAppError maps domain and service errors to their HTTP form.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrBattleNotFound):
		return apperrors.NewNotFoundError("Battle not found")
	case errors.Is(err, domain.ErrInvalidOption):
		return apperrors.NewInvalidOptionError("Invalid option", err)
	case errors.Is(err, domain.ErrNicknameTaken):
		return apperrors.NewValidationError("Nickname already taken in this battle", nil)
	case errors.Is(err, service.ErrCommentTooLong):
		return apperrors.NewValidationError(fmt.Sprintf("Comment must be %d characters or less", domain.MaxCommentLength), nil)
	case errors.Is(err, domain.ErrBattleExists):
		return apperrors.NewConflictError("Battle already exists", err)
	default:
		return apperrors.NewInternalError("Internal server error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	return nil
}

func generateETag(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf(`"%x"`, hash)
}

// respondCached writes data with an ETag, or 304 when the client already has it.
func respondCached(w http.ResponseWriter, r *http.Request, data interface{}) {
	etag := generateETag(data)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondJSON(w, http.StatusOK, data)
}
