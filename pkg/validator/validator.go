package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// Limits applied when no custom configuration is given.
const (
	MaxFileSize  = 12 * 1024 * 1024 // 12 MB
	MinDimension = 256
)

// AllowedTypes is the MIME allow-list for avatar images.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Reason identifies why a file was rejected.
type Reason int

const (
	TooLarge Reason = iota + 1
	TooSmall
	UnsupportedFormat
	Undecodable
	DecodeTimeout
)

func (r Reason) String() string {
	switch r {
	case TooLarge:
		return "too_large"
	case TooSmall:
		return "too_small"
	case UnsupportedFormat:
		return "unsupported_format"
	case Undecodable:
		return "undecodable"
	case DecodeTimeout:
		return "decode_timeout"
	default:
		return "unknown"
	}
}

// Message returns the user-facing text for a rejection reason.
func Message(r Reason) string {
	switch r {
	case TooLarge:
		return "Images must be under 12 MB."
	case TooSmall:
		return "Please use an image that is at least 256×256 pixels."
	case UnsupportedFormat:
		return "Images must be in either JPEG, PNG, GIF, or WEBP format."
	case Undecodable:
		return "We couldn't read that image. Please try another file."
	case DecodeTimeout:
		return "We couldn't read that image in time. Please try another file."
	default:
		return "This image can't be used."
	}
}

// Rejection is returned when a file fails validation.
type Rejection struct {
	Reason Reason
	Detail string
}

func (e *Rejection) Error() string {
	if e.Detail == "" {
		return "image rejected: " + e.Reason.String()
	}
	return fmt.Sprintf("image rejected: %s: %s", e.Reason, e.Detail)
}

// Message returns the user-facing text for the rejection.
func (e *Rejection) Message() string {
	return Message(e.Reason)
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}

// Config holds the validation limits
type Config struct {
	MaxBytes     int64
	MinDimension int
	AllowedTypes []string
}

// DefaultConfig returns the stock avatar limits
func DefaultConfig() Config {
	return Config{
		MaxBytes:     MaxFileSize,
		MinDimension: MinDimension,
		AllowedTypes: append([]string(nil), AllowedTypes...),
	}
}

// Validator judges whether a selected file is acceptable.
type Validator struct {
	config Config
}

// New creates a Validator with default limits
func New() *Validator {
	return &Validator{config: DefaultConfig()}
}

// NewWithConfig creates a Validator with custom limits
func NewWithConfig(config Config) *Validator {
	return &Validator{config: config}
}

// Config returns the limits in use
func (v *Validator) Config() Config {
	return v.config
}

// CheckSize rejects files above the byte ceiling. It must run before any decode.
func (v *Validator) CheckSize(file types.SelectedFile) error {
	size := file.Size
	if size == 0 {
		size = int64(len(file.Data))
	}
	if size > v.config.MaxBytes {
		return &Rejection{Reason: TooLarge, Detail: fmt.Sprintf("%d bytes (maximum: %d)", size, v.config.MaxBytes)}
	}
	return nil
}

// CheckDimensions rejects images whose natural width or height is below the minimum.
func (v *Validator) CheckDimensions(meta types.DecodedImageMeta) error {
	if meta.Width < v.config.MinDimension || meta.Height < v.config.MinDimension {
		return &Rejection{Reason: TooSmall, Detail: fmt.Sprintf("%dx%d (minimum: %d)",
			meta.Width, meta.Height, v.config.MinDimension)}
	}
	return nil
}

// CheckFormat rejects files whose declared MIME type is not allow-listed.
func (v *Validator) CheckFormat(file types.SelectedFile) error {
	if !v.IsTypeAllowed(file.MIMEType) {
		return &Rejection{Reason: UnsupportedFormat, Detail: fmt.Sprintf("declared type %q", file.MIMEType)}
	}
	return nil
}

// IsTypeAllowed reports whether the MIME type is in the allow-list.
func (v *Validator) IsTypeAllowed(mimeType string) bool {
	mt := normalizeType(mimeType)
	for _, allowed := range v.config.AllowedTypes {
		if strings.EqualFold(mt, allowed) {
			return true
		}
	}
	return false
}

// Validate runs every check in priority order: size, dimension, format.
// The first failing check wins.
func (v *Validator) Validate(file types.SelectedFile, meta types.DecodedImageMeta) error {
	if err := v.CheckSize(file); err != nil {
		return err
	}
	if err := v.CheckDimensions(meta); err != nil {
		return err
	}
	return v.CheckFormat(file)
}

// Probe reads the natural dimensions of the image without decoding pixel data.
// A probe that cannot decode reports UnsupportedFormat for off-list types
// and Undecodable otherwise.
func (v *Validator) Probe(ctx context.Context, file types.SelectedFile) (types.DecodedImageMeta, error) {
	if err := ctx.Err(); err != nil {
		return types.DecodedImageMeta{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		reason := Undecodable
		if !v.IsTypeAllowed(file.MIMEType) {
			reason = UnsupportedFormat
		}
		return types.DecodedImageMeta{}, &Rejection{Reason: reason, Detail: err.Error()}
	}
	return types.DecodedImageMeta{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

func normalizeType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
