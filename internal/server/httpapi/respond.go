// Package httpapi exposes the service over HTTP: a chi router, bearer-token
// authentication, the sensitive-operation gate and JSON request/response
// handling.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/keyhaven/keyhaven/internal/common"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps a service error onto the wire taxonomy. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrEvidenceDecode):
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, common.ErrInvalidModality):
		writeErrorCode(w, http.StatusBadRequest, "INVALID_MODALITY", err.Error())
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrOTPInvalid):
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, common.ErrReverifyRequired):
		writeErrorCode(w, http.StatusForbidden, "REVERIFY_REQUIRED", "biometric re-verification required")
	case errors.Is(err, common.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, common.ErrAlreadyExists):
		writeErrorCode(w, http.StatusConflict, "VALIDATION", "resource already exists")
	case errors.Is(err, common.ErrEvidenceFetch):
		writeErrorCode(w, http.StatusBadGateway, "EVIDENCE_FETCH", "stored evidence unavailable")
	case errors.Is(err, common.ErrMatch):
		writeErrorCode(w, http.StatusInternalServerError, "MATCH", "biometric comparison failed")
	case errors.Is(err, common.ErrDecryption):
		writeErrorCode(w, http.StatusInternalServerError, "DECRYPTION", "stored secret could not be decrypted")
	default:
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func commonValidation(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

// decodeJSON reads the request body into dst, rejecting malformed payloads.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.ErrValidation
	}
	return nil
}
