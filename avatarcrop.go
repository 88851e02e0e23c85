// Package avatarcrop turns a user-selected image into a square avatar.
//
// A selection goes through four parts:
//
//  1. Validator (pkg/validator): size, dimension and format checks
//  2. Crop engine (pkg/cropper): a square crop the user drags and resizes
//  3. Rasterizer (pkg/processing): draws the crop at natural resolution and encodes PNG
//  4. Session (pkg/session): the state machine tying them to a host UI and an uploader
//
// Basic usage:
//
//	p := avatarcrop.New()
//	file, err := p.LoadFile("me.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	s := p.NewSession(upload.NewDirUploader("./avatars", ""),
//		session.WithIdentity(session.StaticIdentity("alice")))
//	if err := s.Select(ctx, file); err != nil {
//		log.Fatal(err)
//	}
//	s.UpdateCrop(cropper.Delta{Handle: cropper.SE, DX: -40, DY: -40})
//	if err := s.Submit(ctx); err != nil {
//		log.Fatal(err)
//	}
//	s.Wait()
package avatarcrop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/avatarcrop/internal/utils"
	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/processing"
	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/types"
	"github.com/menta2k/avatarcrop/pkg/validator"
)

// Version of the avatarcrop library
const Version = "1.0.0"

// Pipeline shares one validator, crop engine and processor across sessions
type Pipeline struct {
	validator *validator.Validator
	cropper   *cropper.SquareCropper
	processor *processing.Processor
}

// New creates a Pipeline with default configuration
func New() *Pipeline {
	return &Pipeline{
		validator: validator.New(),
		cropper:   cropper.New(),
		processor: processing.NewProcessor(),
	}
}

// NewWithConfig creates a Pipeline with custom configuration
func NewWithConfig(validatorConfig validator.Config, cropConfig cropper.CropConfig, processingConfig processing.Config) *Pipeline {
	return &Pipeline{
		validator: validator.NewWithConfig(validatorConfig),
		cropper:   cropper.NewWithConfig(cropConfig),
		processor: processing.NewProcessorWithConfig(processingConfig),
	}
}

func (p *Pipeline) Validator() *validator.Validator  { return p.validator }
func (p *Pipeline) Cropper() *cropper.SquareCropper  { return p.cropper }
func (p *Pipeline) Processor() *processing.Processor { return p.processor }

// NewSession starts a session wired to the pipeline's components. Later
// options override earlier ones.
func (p *Pipeline) NewSession(uploader session.Uploader, opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithValidator(p.validator),
		session.WithCropper(p.cropper),
		session.WithProcessor(p.processor),
	}
	return session.New(uploader, append(base, opts...)...)
}

// LoadFile reads a file from disk the way a file picker would present it:
// name, declared type, size and contents.
func (p *Pipeline) LoadFile(path string) (types.SelectedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.SelectedFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewSelectedFile(filepath.Base(path), data), nil
}

// NewSelectedFile wraps in-memory data, sniffing the type from name and content.
func NewSelectedFile(name string, data []byte) types.SelectedFile {
	return types.SelectedFile{
		Name:     name,
		MIMEType: utils.DetectMIMEType(name, data),
		Size:     int64(len(data)),
		Data:     data,
	}
}

// Check runs every validation rule on file without starting a session.
func (p *Pipeline) Check(ctx context.Context, file types.SelectedFile) (types.DecodedImageMeta, error) {
	if err := p.validator.CheckSize(file); err != nil {
		return types.DecodedImageMeta{}, err
	}
	meta, err := p.validator.Probe(ctx, file)
	if err != nil {
		return types.DecodedImageMeta{}, err
	}
	return meta, p.validator.Validate(file, meta)
}
