package client

import (
	"context"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// VisionClient is a vision-language model backend that can look at a
// base64-encoded image.
type VisionClient interface {
	// Describe returns the model's free-form answer.
	Describe(ctx context.Context, model, prompt, imgB64 string) (string, error)
	// LocateSubject asks for the primary subject as JSON and parses it.
	LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
