package models

import (
	"time"

	"github.com/keyhaven/keyhaven/internal/server/evidence"
)

// BiometricSlot describes the stored evidence for one modality. The raw
// evidence bytes live in the object store under StorageKey; only metadata is
// kept in the database.
type BiometricSlot struct {
	StorageKey string `json:"storageKey"`

	// ContentType is the MIME type of the stored evidence
	// (e.g. image/png, audio/webm, application/octet-stream).
	ContentType string `json:"contentType"`

	// Width/Height are set for face evidence.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// DurationMs is set for voice evidence when the client declares it.
	DurationMs int `json:"durationMs,omitempty"`

	// Size is the evidence length in bytes.
	Size int64 `json:"size"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// BiometricProfile is the single per-user row holding three independent
// modality slots. Saving a modality replaces only its slot.
//
// LastVerifiedAt is the only state the re-verification gate needs: it is
// refreshed on every successful match, regardless of modality.
type BiometricProfile struct {
	UserID         string
	Face           *BiometricSlot
	Voice          *BiometricSlot
	Fingerprint    *BiometricSlot
	LastVerifiedAt *time.Time
	UpdatedAt      time.Time
}

// Slot returns the slot for modality, nil when nothing is enrolled.
func (p *BiometricProfile) Slot(modality evidence.Modality) *BiometricSlot {
	switch modality {
	case evidence.ModalityFace:
		return p.Face
	case evidence.ModalityVoice:
		return p.Voice
	case evidence.ModalityFingerprint:
		return p.Fingerprint
	}
	return nil
}
