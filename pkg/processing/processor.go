package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// OutputMIMEType is the format every rasterized crop is encoded to
const OutputMIMEType = "image/png"

// Config holds configuration for decoding, rasterizing and encoding
type Config struct {
	// MaxSurfacePixels bounds the raster surface; larger requests fail like an
	// unavailable drawing context.
	MaxSurfacePixels int64
	Filter           imaging.ResampleFilter
	PNGCompression   png.CompressionLevel
	JPEGQuality      int
	WebPQuality      float32
}

// DefaultConfig returns the stock processing configuration
func DefaultConfig() Config {
	return Config{
		MaxSurfacePixels: MaxSurfacePixels,
		Filter:           imaging.Lanczos,
		PNGCompression:   png.DefaultCompression,
		JPEGQuality:      90,
		WebPQuality:      90,
	}
}

// Processor handles image processing operations
type Processor struct {
	config Config
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{config: DefaultConfig()}
}

// NewProcessorWithConfig creates a processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	if config.MaxSurfacePixels <= 0 {
		config.MaxSurfacePixels = MaxSurfacePixels
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 90
	}
	if config.WebPQuality <= 0 {
		config.WebPQuality = 90
	}
	if config.Filter.Support == 0 && config.Filter.Kernel == nil {
		config.Filter = imaging.Lanczos
	}
	return &Processor{config: config}
}

// Decode turns raw file bytes into a previewable image. JPEGs are rotated
// according to their EXIF orientation, like a browser renders them.
func (p *Processor) Decode(data []byte, mimeType string) (image.Image, error) {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err == nil {
			return img, nil
		}
	case "image/webp":
		if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
			return img, nil
		}
	}
	return p.decodeImageFromBytes(data)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	reader := bytes.NewReader(data)
	if img, _, err := image.Decode(reader); err == nil {
		return img, nil
	}

	// Try WebP decode
	reader = bytes.NewReader(data)
	if img, err := webp.Decode(reader); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Encode encodes an image in the given MIME type
func (p *Processor) Encode(img image.Image, mimeType string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(mimeType) {
	case "image/png":
		enc := png.Encoder{CompressionLevel: p.config.PNGCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.config.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case "image/webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: p.config.WebPQuality}); err != nil {
			return nil, fmt.Errorf("encoding webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", mimeType)
	}
	return buf.Bytes(), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
