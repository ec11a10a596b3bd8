// Package evidence normalizes captured biometric evidence into a canonical,
// comparable representation per modality, and stores/fetches the raw bytes
// in an S3-compatible object store.
package evidence

import (
	"fmt"

	"github.com/keyhaven/keyhaven/internal/common"
)

// Modality is the closed set of biometric evidence types. Parsing happens
// once at the API boundary; everything below works with the typed value.
type Modality string

const (
	ModalityFace        Modality = "face"
	ModalityVoice       Modality = "voice"
	ModalityFingerprint Modality = "fingerprint"
)

// ParseModality validates a client-supplied modality string. Rejection
// happens before any I/O.
func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityFace, ModalityVoice, ModalityFingerprint:
		return Modality(s), nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrInvalidModality, s)
}

func (m Modality) String() string {
	return string(m)
}
