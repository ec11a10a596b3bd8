package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/keyhaven/keyhaven/internal/server/models"
)

// SettingsStore is the slice of the settings service the HTTP layer needs.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*models.Settings, error)
	Update(ctx context.Context, userID string, interval time.Duration) (*models.Settings, error)
}

type SettingsHandler struct {
	settings SettingsStore
}

func NewSettingsHandler(settings SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type settingsResponse struct {
	// ReverificationIntervalSec is the interval in whole seconds.
	ReverificationIntervalSec int64 `json:"reverificationIntervalSec"`
}

// Get handles GET /settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	s, err := h.settings.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		ReverificationIntervalSec: int64(s.ReVerificationInterval / time.Second),
	})
}

type settingsUpdateRequest struct {
	ReverificationIntervalSec int64 `json:"reverificationIntervalSec"`
}

// Update handles PUT /settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req settingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.settings.Update(r.Context(), userID, time.Duration(req.ReverificationIntervalSec)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		ReverificationIntervalSec: int64(s.ReVerificationInterval / time.Second),
	})
}
