package evidence

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	// Raster decoders for face evidence.
	_ "image/jpeg"
	_ "image/png"

	"github.com/keyhaven/keyhaven/internal/common"
)

// Evidence is the canonical in-memory form of biometric evidence. Exactly
// the fields for its Modality are populated:
//
//   - face: Raster (decoded pixel data)
//   - voice: Audio bytes plus ContentType
//   - fingerprint: PublicKey (base64-decoded credential blob)
//
// Stored and freshly captured evidence pass through the same normalization,
// so the two sides of a comparison are always in the same representation.
type Evidence struct {
	Modality    Modality
	Raster      image.Image
	Audio       []byte
	ContentType string
	PublicKey   []byte
}

// Normalize converts raw uploaded (or fetched) bytes into canonical form.
// Decode failures surface as common.ErrEvidenceDecode.
func Normalize(modality Modality, raw []byte, contentType string) (*Evidence, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty %s evidence", common.ErrEvidenceDecode, modality)
	}

	switch modality {
	case ModalityFace:
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: face image: %v", common.ErrEvidenceDecode, err)
		}
		return &Evidence{Modality: modality, Raster: img, ContentType: contentType}, nil

	case ModalityVoice:
		// Audio stays an opaque buffer tagged with its MIME type.
		return &Evidence{Modality: modality, Audio: raw, ContentType: contentType}, nil

	case ModalityFingerprint:
		blob, err := decodeBase64Blob(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: fingerprint blob: %v", common.ErrEvidenceDecode, err)
		}
		return &Evidence{Modality: modality, PublicKey: blob, ContentType: contentType}, nil
	}

	return nil, fmt.Errorf("%w: %q", common.ErrInvalidModality, modality)
}

// decodeBase64Blob accepts both standard and URL-safe alphabets, with or
// without padding, since WebAuthn credential blobs show up in all four forms.
func decodeBase64Blob(raw []byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, fmt.Errorf("empty blob")
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}

	return nil, fmt.Errorf("not valid base64")
}
