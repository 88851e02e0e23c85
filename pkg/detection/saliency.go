package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// SaliencyHinter finds the most interesting square of an image with
// content-aware cropping. It runs locally and needs no model.
type SaliencyHinter struct {
	analyzer smartcrop.Analyzer
}

func NewSaliencyHinter() *SaliencyHinter {
	return &SaliencyHinter{analyzer: smartcrop.NewAnalyzer(&resizer{filter: imaging.Linear})}
}

func (h *SaliencyHinter) Hint(ctx context.Context, img image.Image) (types.Box, error) {
	if img == nil {
		return types.Box{}, fmt.Errorf("detection: nil image")
	}
	if err := ctx.Err(); err != nil {
		return types.Box{}, err
	}
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return types.Box{}, ErrNoSubject
	}

	type result struct {
		crop image.Rectangle
		err  error
	}
	done := make(chan result, 1)
	go func() {
		crop, err := h.analyzer.FindBestCrop(img, side, side)
		done <- result{crop, err}
	}()

	select {
	case <-ctx.Done():
		return types.Box{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return types.Box{}, fmt.Errorf("finding best crop: %w", r.err)
		}
		crop := r.crop.Sub(b.Min).Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
		if crop.Empty() {
			return types.Box{}, ErrNoSubject
		}
		w, hh := float64(b.Dx()), float64(b.Dy())
		return normalizeBox(types.Box{
			X: float64(crop.Min.X) / w,
			Y: float64(crop.Min.Y) / hh,
			W: float64(crop.Dx()) / w,
			H: float64(crop.Dy()) / hh,
		}), nil
	}
}

// resizer satisfies smartcrop's resizer with imaging.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}
