package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/avatarcrop/pkg/client"
	"github.com/menta2k/avatarcrop/pkg/processing"
	"github.com/menta2k/avatarcrop/pkg/types"
)

// ErrNoSubject means the model did not find anything worth centering on.
var ErrNoSubject = errors.New("detection: no subject found")

// FacePrompt asks for the head of the main person or animal, the part a
// profile picture should be centered on.
const FacePrompt = `You locate the subject of a profile picture.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence",
  "tags": ["tag1", "tag2"]
}

RULES
- Coordinates are normalized to [0,1], not pixels. x,y is the top-left corner.
- Box the face or head of the main person. If there is no person, box the head of the main animal, else the most salient object.
- Do not guess identities.
- If nothing stands out, use label "none" and confidence 0.
- JSON only. No markdown, no comments.`

// Defaults for the vision hinter
const (
	DefaultMinConfidence = 0.3
	DefaultMaxDim        = 768
	DefaultQuality       = 85
)

var fallbackLabels = []string{"none", "unclear", "fallback", "error"}

// VisionHinter asks a vision-language model where the face is.
type VisionHinter struct {
	client        client.VisionClient
	processor     *processing.Processor
	Model         string
	Prompt        string
	MinConfidence float64
	MaxDim        int
}

// NewVisionHinter creates a hinter backed by c using model.
func NewVisionHinter(c client.VisionClient, model string) *VisionHinter {
	return &VisionHinter{
		client:        c,
		processor:     processing.NewProcessor(),
		Model:         model,
		Prompt:        FacePrompt,
		MinConfidence: DefaultMinConfidence,
		MaxDim:        DefaultMaxDim,
	}
}

// Hint sends a downscaled copy of img to the model and returns the subject box.
func (h *VisionHinter) Hint(ctx context.Context, img image.Image) (types.Box, error) {
	if img == nil {
		return types.Box{}, fmt.Errorf("detection: nil image")
	}
	imgB64, err := h.processor.PrepareImageForModel(img, "jpeg", h.MaxDim, DefaultQuality)
	if err != nil {
		return types.Box{}, fmt.Errorf("failed to prepare image: %w", err)
	}
	res, err := h.client.LocateSubject(ctx, h.Model, h.Prompt, imgB64)
	if err != nil {
		return types.Box{}, err
	}
	return Accept(res, h.MinConfidence)
}

// Accept returns the subject box from res, or ErrNoSubject when the result
// is a fallback or below minConfidence.
func Accept(res *types.AnalysisResult, minConfidence float64) (types.Box, error) {
	if res == nil {
		return types.Box{}, ErrNoSubject
	}
	label := strings.ToLower(strings.TrimSpace(res.Primary.Label))
	for _, l := range fallbackLabels {
		if strings.Contains(label, l) {
			return types.Box{}, ErrNoSubject
		}
	}
	if res.Primary.Confidence < minConfidence {
		return types.Box{}, ErrNoSubject
	}
	box := normalizeBox(res.Primary.Box)
	if box.W == 0 || box.H == 0 {
		return types.Box{}, ErrNoSubject
	}
	return box, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps b to the unit square.
func normalizeBox(b types.Box) types.Box {
	x, y := clamp(b.X, 0, 1), clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
