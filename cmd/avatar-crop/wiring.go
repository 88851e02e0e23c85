package main

import (
	"fmt"
	"image/png"

	"github.com/menta2k/avatarcrop"
	"github.com/menta2k/avatarcrop/internal/config"
	"github.com/menta2k/avatarcrop/pkg/client"
	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/detection"
	"github.com/menta2k/avatarcrop/pkg/llamacpp"
	"github.com/menta2k/avatarcrop/pkg/ollama"
	"github.com/menta2k/avatarcrop/pkg/processing"
	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/upload"
)

const defaultOllamaURL = "http://localhost:11434"

func buildPipeline(cfg *config.Config) *avatarcrop.Pipeline {
	pc := processing.DefaultConfig()
	pc.MaxSurfacePixels = cfg.Output.MaxSurfacePixels
	pc.PNGCompression = png.CompressionLevel(cfg.Output.PNGCompression)
	return avatarcrop.NewWithConfig(
		cfg.ValidatorSettings(),
		cropper.CropConfig{SeedPercent: cfg.Crop.SeedPercent},
		pc,
	)
}

func buildUploader(cfg *config.Config) (session.Uploader, error) {
	u := cfg.Upload
	switch u.Backend {
	case "dir":
		return upload.NewDirUploader(u.Dir, u.Prefix), nil
	case "s3":
		s3, err := upload.NewS3Uploader(upload.S3Config{
			Bucket:   u.Bucket,
			Region:   u.Region,
			Endpoint: u.Endpoint,
			Prefix:   u.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 uploader: %w", err)
		}
		return s3, nil
	case "minio":
		mc, err := upload.NewMinioUploader(upload.MinioConfig{
			Endpoint:  u.Endpoint,
			UseSSL:    u.UseSSL,
			AccessKey: u.AccessKey,
			SecretKey: u.SecretKey,
			Bucket:    u.Bucket,
			Prefix:    u.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio uploader: %w", err)
		}
		return mc, nil
	default:
		return nil, fmt.Errorf("unknown upload backend: %s (use 'dir', 's3' or 'minio')", u.Backend)
	}
}

// buildHinter returns nil when hints are disabled.
func buildHinter(cfg *config.Config) (session.Hinter, error) {
	h := cfg.Hint
	var (
		visionClient client.VisionClient
		err          error
	)
	switch h.Provider {
	case "", "none":
		return nil, nil
	case "saliency":
		return detection.NewSaliencyHinter(), nil
	case "face":
		face, err := detection.LoadFaceHinter(h.Cascade)
		if err != nil {
			return nil, err
		}
		return face, nil
	case "ollama":
		url := h.URL
		if url == "" {
			url = defaultOllamaURL
		}
		visionClient, err = ollama.NewClient(url)
	case "llamacpp":
		visionClient, err = llamacpp.NewClient(h.URL)
	default:
		return nil, fmt.Errorf("unknown hint provider: %s (use 'none', 'saliency', 'face', 'ollama' or 'llamacpp')", h.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", h.Provider, err)
	}
	return detection.NewVisionHinter(visionClient, h.Model), nil
}
