package match

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// channelDiffThreshold is the per-channel difference (out of 255) below
// which two values are considered the same pixel.
const channelDiffThreshold = 16

// scoreFingerprint raster-compares the two decoded blobs. When both sides
// decode as images the captured raster is resized to the stored raster's
// dimensions first; otherwise the raw bytes are compared as 1×N bitmaps with
// the captured buffer resampled to the stored length. Either way:
//
//	score = 100 * (1 - diffPixels/totalPixels)
func scoreFingerprint(stored, captured []byte) (float64, error) {
	if len(stored) == 0 || len(captured) == 0 {
		return 0, fmt.Errorf("empty fingerprint blob")
	}

	storedImg, _, errS := image.Decode(bytes.NewReader(stored))
	capturedImg, _, errC := image.Decode(bytes.NewReader(captured))
	if errS == nil && errC == nil {
		return rasterScore(storedImg, capturedImg), nil
	}

	return byteScore(stored, captured), nil
}

func rasterScore(stored, captured image.Image) float64 {
	ref := toRGBA(stored)
	b := ref.Bounds()

	// Resize captured to the stored dimensions before comparing.
	cand := image.NewRGBA(b)
	xdraw.NearestNeighbor.Scale(cand, b, captured, captured.Bounds(), xdraw.Src, nil)

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	diff := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if pixelsDiffer(ref.RGBAAt(x, y).R, cand.RGBAAt(x, y).R) ||
				pixelsDiffer(ref.RGBAAt(x, y).G, cand.RGBAAt(x, y).G) ||
				pixelsDiffer(ref.RGBAAt(x, y).B, cand.RGBAAt(x, y).B) {
				diff++
			}
		}
	}

	return 100 * (1 - float64(diff)/float64(total))
}

// byteScore treats the blobs as 1×N single-channel bitmaps; the captured
// buffer is resampled to the stored length by nearest neighbor.
func byteScore(stored, captured []byte) float64 {
	total := len(stored)

	diff := 0
	for i := 0; i < total; i++ {
		j := i * len(captured) / total
		if pixelsDiffer(stored[i], captured[j]) {
			diff++
		}
	}

	return 100 * (1 - float64(diff)/float64(total))
}

func pixelsDiffer(a, b uint8) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d > channelDiffThreshold
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
