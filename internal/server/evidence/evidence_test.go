package evidence

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhaven/keyhaven/internal/common"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseModality(t *testing.T) {
	for _, s := range []string{"face", "voice", "fingerprint"} {
		m, err := ParseModality(s)
		require.NoError(t, err)
		assert.Equal(t, s, m.String())
	}

	_, err := ParseModality("iris")
	assert.ErrorIs(t, err, common.ErrInvalidModality)

	_, err = ParseModality("")
	assert.ErrorIs(t, err, common.ErrInvalidModality)
}

func TestNormalize_Face(t *testing.T) {
	raw := pngBytes(t, 4, 3, color.White)

	ev, err := Normalize(ModalityFace, raw, "image/png")
	require.NoError(t, err)
	require.NotNil(t, ev.Raster)
	assert.Equal(t, 4, ev.Raster.Bounds().Dx())
	assert.Equal(t, 3, ev.Raster.Bounds().Dy())
}

func TestNormalize_FaceDecodeError(t *testing.T) {
	_, err := Normalize(ModalityFace, []byte("not an image"), "image/png")
	assert.ErrorIs(t, err, common.ErrEvidenceDecode)
}

func TestNormalize_VoiceIsOpaque(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}

	ev, err := Normalize(ModalityVoice, raw, "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, raw, ev.Audio)
	assert.Equal(t, "audio/webm", ev.ContentType)
}

func TestNormalize_Fingerprint(t *testing.T) {
	blob := []byte("public-key-bytes")

	for name, encoded := range map[string]string{
		"std":     base64.StdEncoding.EncodeToString(blob),
		"raw std": base64.RawStdEncoding.EncodeToString(blob),
		"url":     base64.URLEncoding.EncodeToString(blob),
	} {
		ev, err := Normalize(ModalityFingerprint, []byte(encoded), "application/octet-stream")
		require.NoError(t, err, name)
		assert.Equal(t, blob, ev.PublicKey, name)
	}
}

func TestNormalize_FingerprintBadBase64(t *testing.T) {
	_, err := Normalize(ModalityFingerprint, []byte("!!! not base64 !!!"), "")
	assert.ErrorIs(t, err, common.ErrEvidenceDecode)
}

func TestNormalize_Empty(t *testing.T) {
	_, err := Normalize(ModalityVoice, nil, "")
	assert.ErrorIs(t, err, common.ErrEvidenceDecode)
}

type fakeStore struct {
	objects map[string][]byte
	getErr  error
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, common.ErrEvidenceFetch
	}
	return data, nil
}

func (f *fakeStore) PresignGetURL(ctx context.Context, key string) (string, error) {
	return "https://store.example/" + key, nil
}

func TestNormalizer_FetchStoredMatchesUploadPath(t *testing.T) {
	store := &fakeStore{}
	n := NewNormalizer(store)

	raw := pngBytes(t, 2, 2, color.Black)
	require.NoError(t, store.Put(context.Background(), "k1", raw, "image/png"))

	uploaded, err := n.NormalizeUpload(ModalityFace, raw, "image/png")
	require.NoError(t, err)

	stored, err := n.FetchStored(context.Background(), ModalityFace, "k1", "image/png")
	require.NoError(t, err)

	assert.Equal(t, uploaded.Raster.Bounds(), stored.Raster.Bounds())
}

func TestNormalizer_FetchStoredError(t *testing.T) {
	n := NewNormalizer(&fakeStore{getErr: errors.New("network down")})

	_, err := n.FetchStored(context.Background(), ModalityVoice, "k1", "audio/webm")
	assert.Error(t, err)
}

func TestNewStorageKey_Unique(t *testing.T) {
	k1 := NewStorageKey("u-1", ModalityFace)
	k2 := NewStorageKey("u-1", ModalityFace)
	assert.NotEqual(t, k1, k2)
	assert.Contains(t, k1, "biometrics/u-1/face/")
}
