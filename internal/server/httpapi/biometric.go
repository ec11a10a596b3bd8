package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
	"github.com/keyhaven/keyhaven/internal/server/match"
	"github.com/keyhaven/keyhaven/internal/server/models"
	"github.com/keyhaven/keyhaven/internal/server/services"
)

// evidenceFormField is the multipart field carrying the uploaded evidence.
const evidenceFormField = "biometricData"

// maxEvidenceBytes bounds a single evidence upload (form memory ceiling).
const maxEvidenceBytes = 16 << 20

// BiometricVerifier is the slice of the biometric service the HTTP layer
// needs.
type BiometricVerifier interface {
	Save(ctx context.Context, userID string, modality evidence.Modality, up services.EvidenceUpload) (*models.BiometricSlot, error)
	Match(ctx context.Context, userID string, modality evidence.Modality, up services.EvidenceUpload) (match.Result, error)
	Profile(ctx context.Context, userID string) (*models.BiometricProfile, map[evidence.Modality]string, error)
}

type BiometricHandler struct {
	verifier BiometricVerifier
	logger   logging.Logger
}

func NewBiometricHandler(verifier BiometricVerifier, logger logging.Logger) *BiometricHandler {
	return &BiometricHandler{verifier: verifier, logger: logger.With("module", "biometric_handler")}
}

// Save handles POST /auth/biometrics/{type}.
func (h *BiometricHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	// The modality is validated before any of the upload is read.
	modality, err := evidence.ParseModality(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, err)
		return
	}

	up, err := readEvidenceUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	slot, err := h.verifier.Save(r.Context(), userID, modality, up)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, slot)
}

type profileSlotResponse struct {
	*models.BiometricSlot
	EvidenceURL string `json:"evidenceUrl"`
}

type profileResponse struct {
	Face           *profileSlotResponse `json:"face,omitempty"`
	Voice          *profileSlotResponse `json:"voice,omitempty"`
	Fingerprint    *profileSlotResponse `json:"fingerprint,omitempty"`
	LastVerifiedAt *time.Time           `json:"lastVerifiedAt,omitempty"`
}

// Profile handles GET /auth/biometrics.
func (h *BiometricHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	profile, urls, err := h.verifier.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := profileResponse{LastVerifiedAt: profile.LastVerifiedAt}
	if profile.Face != nil {
		resp.Face = &profileSlotResponse{BiometricSlot: profile.Face, EvidenceURL: urls[evidence.ModalityFace]}
	}
	if profile.Voice != nil {
		resp.Voice = &profileSlotResponse{BiometricSlot: profile.Voice, EvidenceURL: urls[evidence.ModalityVoice]}
	}
	if profile.Fingerprint != nil {
		resp.Fingerprint = &profileSlotResponse{BiometricSlot: profile.Fingerprint, EvidenceURL: urls[evidence.ModalityFingerprint]}
	}
	writeJSON(w, http.StatusOK, resp)
}

type matchResponse struct {
	MatchPercentage float64 `json:"matchPercentage"`
	Matched         bool    `json:"matched"`
}

type matchErrorResponse struct {
	MatchPercentage float64     `json:"matchPercentage"`
	Matched         bool        `json:"matched"`
	Error           errorDetail `json:"error"`
}

// writeMatchError renders a comparison failure with the zeroed score next to
// the error, so a failed match can never read as a pass.
func writeMatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrEvidenceFetch):
		writeJSON(w, http.StatusBadGateway, matchErrorResponse{
			Error: errorDetail{Code: "EVIDENCE_FETCH", Message: "stored evidence unavailable"},
		})
	case errors.Is(err, common.ErrMatch):
		writeJSON(w, http.StatusInternalServerError, matchErrorResponse{
			Error: errorDetail{Code: "MATCH", Message: "biometric comparison failed"},
		})
	default:
		writeError(w, err)
	}
}

// Match handles POST /auth/biometrics/{type}/match.
func (h *BiometricHandler) Match(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	modality, err := evidence.ParseModality(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, err)
		return
	}

	up, err := readEvidenceUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.verifier.Match(r.Context(), userID, modality, up)
	if err != nil {
		writeMatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchResponse{MatchPercentage: result.Percentage, Matched: result.Matched})
}

// readEvidenceUpload pulls the evidence file plus the optional declared
// duration out of the multipart form.
func readEvidenceUpload(r *http.Request) (services.EvidenceUpload, error) {
	if err := r.ParseMultipartForm(maxEvidenceBytes); err != nil {
		return services.EvidenceUpload{}, commonValidation("malformed multipart form")
	}

	file, header, err := r.FormFile(evidenceFormField)
	if err != nil {
		return services.EvidenceUpload{}, commonValidation("missing biometricData file")
	}
	defer file.Close()

	// Read one byte past the ceiling so an oversized upload is rejected
	// whole instead of being truncated into unusable evidence.
	raw, err := io.ReadAll(io.LimitReader(file, maxEvidenceBytes+1))
	if err != nil {
		return services.EvidenceUpload{}, err
	}
	if len(raw) > maxEvidenceBytes {
		return services.EvidenceUpload{}, commonValidation("evidence exceeds the upload size limit")
	}

	up := services.EvidenceUpload{
		Raw:         raw,
		ContentType: header.Header.Get("Content-Type"),
	}
	if v := r.FormValue("durationMs"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			up.DurationMs = ms
		}
	}
	return up, nil
}
