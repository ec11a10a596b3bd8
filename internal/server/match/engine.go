// Package match computes similarity scores between stored and freshly
// captured biometric evidence and applies the decision threshold.
package match

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/keyhaven/keyhaven/internal/common"
	"github.com/keyhaven/keyhaven/internal/server/evidence"
)

// Threshold is the fixed policy score above which two evidence samples are
// declared a match. It is not a per-user setting.
const Threshold = 80.0

// Comparator computes a similarity percentage in [0,100] for face and voice
// evidence. Implementations may call a local model or a remote service; the
// engine only orchestrates. A result outside [0,100] is an implementation
// bug and is clamped.
type Comparator interface {
	Compare(ctx context.Context, stored, captured *evidence.Evidence) (float64, error)
}

// ComparatorFunc adapts a function to the Comparator interface.
type ComparatorFunc func(ctx context.Context, stored, captured *evidence.Evidence) (float64, error)

func (f ComparatorFunc) Compare(ctx context.Context, stored, captured *evidence.Evidence) (float64, error) {
	return f(ctx, stored, captured)
}

// Result is one scoring outcome.
type Result struct {
	Percentage float64
	Matched    bool
}

// Engine scores canonical evidence pairs. Fingerprints are compared locally
// (raster diff); face and voice are delegated to the Comparator under a
// bounded timeout.
type Engine struct {
	comparator     Comparator
	compareTimeout time.Duration
}

func NewEngine(comparator Comparator, compareTimeout time.Duration) *Engine {
	return &Engine{comparator: comparator, compareTimeout: compareTimeout}
}

// Score computes the similarity of two canonical evidence values of the same
// modality. Every error path yields a zero score and common.ErrMatch; a
// failure is never reported as a successful non-match.
func (e *Engine) Score(ctx context.Context, stored, captured *evidence.Evidence) (Result, error) {
	if stored == nil || captured == nil {
		return Result{}, fmt.Errorf("%w: missing evidence", common.ErrMatch)
	}
	if stored.Modality != captured.Modality {
		return Result{}, fmt.Errorf("%w: modality mismatch %s vs %s",
			common.ErrMatch, stored.Modality, captured.Modality)
	}

	var (
		score float64
		err   error
	)

	switch stored.Modality {
	case evidence.ModalityFingerprint:
		score, err = scoreFingerprint(stored.PublicKey, captured.PublicKey)
	case evidence.ModalityFace, evidence.ModalityVoice:
		score, err = e.delegate(ctx, stored, captured)
	default:
		return Result{}, fmt.Errorf("%w: %q", common.ErrInvalidModality, stored.Modality)
	}

	if err != nil {
		return Result{}, fmt.Errorf("%w: score %s: %v", common.ErrMatch, stored.Modality, err)
	}

	score = clamp(score)

	return Result{Percentage: score, Matched: score >= Threshold}, nil
}

func (e *Engine) delegate(ctx context.Context, stored, captured *evidence.Evidence) (float64, error) {
	if e.comparator == nil {
		return 0, fmt.Errorf("no comparator configured for %s", stored.Modality)
	}

	ctx, cancel := context.WithTimeout(ctx, e.compareTimeout)
	defer cancel()

	score, err := e.comparator.Compare(ctx, stored, captured)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) {
		return 0, fmt.Errorf("comparator returned NaN")
	}

	return score, nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
