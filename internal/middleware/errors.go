package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "versus-backend/pkg/errors"
)

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(apperrors.NewErrorResponse(appErr))
}
