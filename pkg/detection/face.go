package detection

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// Face detection tuning
const (
	DefaultFaceMinQ       = 5.0
	DefaultFaceScale      = 1.1
	DefaultFaceShift      = 0.1
	DefaultFaceIoU        = 0.2
	DefaultFaceMinSizePct = 0.05
)

// FaceHinter centers the crop on the strongest face found by a pigo
// cascade classifier.
type FaceHinter struct {
	classifier *pigo.Pigo
	MinQ       float32
}

// NewFaceHinter unpacks a facefinder cascade.
func NewFaceHinter(cascade []byte) (*FaceHinter, error) {
	if len(cascade) == 0 {
		return nil, fmt.Errorf("detection: empty face cascade")
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}
	return &FaceHinter{classifier: classifier, MinQ: DefaultFaceMinQ}, nil
}

// LoadFaceHinter reads the cascade from path.
func LoadFaceHinter(path string) (*FaceHinter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	return NewFaceHinter(data)
}

func (h *FaceHinter) Hint(ctx context.Context, img image.Image) (types.Box, error) {
	if img == nil {
		return types.Box{}, fmt.Errorf("detection: nil image")
	}
	if err := ctx.Err(); err != nil {
		return types.Box{}, err
	}
	b := img.Bounds()
	cols, rows := b.Dx(), b.Dy()
	side := min(cols, rows)
	if side <= 0 {
		return types.Box{}, ErrNoSubject
	}

	done := make(chan []pigo.Detection, 1)
	go func() {
		params := pigo.CascadeParams{
			MinSize:     max(20, int(float64(side)*DefaultFaceMinSizePct)),
			MaxSize:     side,
			ShiftFactor: DefaultFaceShift,
			ScaleFactor: DefaultFaceScale,
			ImageParams: pigo.ImageParams{
				Pixels: pigo.RgbToGrayscale(img),
				Rows:   rows,
				Cols:   cols,
				Dim:    cols,
			},
		}
		dets := h.classifier.RunCascade(params, 0.0)
		done <- h.classifier.ClusterDetections(dets, DefaultFaceIoU)
	}()

	var dets []pigo.Detection
	select {
	case <-ctx.Done():
		return types.Box{}, ctx.Err()
	case dets = <-done:
	}

	best, ok := strongest(dets, h.MinQ)
	if !ok {
		return types.Box{}, ErrNoSubject
	}
	w, hh := float64(cols), float64(rows)
	half := float64(best.Scale) / 2
	return normalizeBox(types.Box{
		X: (float64(best.Col) - half) / w,
		Y: (float64(best.Row) - half) / hh,
		W: float64(best.Scale) / w,
		H: float64(best.Scale) / hh,
	}), nil
}

// strongest returns the detection with the highest quality at or above minQ.
func strongest(dets []pigo.Detection, minQ float32) (pigo.Detection, bool) {
	var (
		best  pigo.Detection
		found bool
	)
	for _, d := range dets {
		if d.Q < minQ || d.Scale <= 0 {
			continue
		}
		if !found || d.Q > best.Q {
			best, found = d, true
		}
	}
	return best, found
}
