package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatarcrop/internal/config"
	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/detection"
	"github.com/menta2k/avatarcrop/pkg/types"
	"github.com/menta2k/avatarcrop/pkg/upload"
)

func TestParseCropFlags(t *testing.T) {
	o, err := parseCropFlags([]string{
		"-in", "me.jpg",
		"-user", "alice",
		"-move=10,0",
		"-resize=se:-20,-20",
		"-move=-5,3",
		"-display", "400x300",
		"-dpr", "2",
		"-upload", "s3",
		"-out", "/tmp/avatars",
		"-hint", "saliency",
		"-viewport", "600",
	})
	require.NoError(t, err)
	assert.Equal(t, "me.jpg", o.in)
	assert.Equal(t, "alice", o.user)
	assert.Equal(t, []cropper.Delta{
		{Handle: cropper.Move, DX: 10, DY: 0},
		{Handle: cropper.SE, DX: -20, DY: -20},
		{Handle: cropper.Move, DX: -5, DY: 3},
	}, o.deltas)

	cfg := config.Default()
	o.apply(cfg)
	assert.Equal(t, "s3", cfg.Upload.Backend)
	assert.Equal(t, "/tmp/avatars", cfg.Upload.Dir)
	assert.Equal(t, "saliency", cfg.Hint.Provider)
	assert.Equal(t, 600, cfg.Session.ViewportWidth)

	m, ok, err := o.displayMetrics(types.DecodedImageMeta{Width: 800, Height: 600})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.DisplayMetrics{Width: 400, Height: 300, DevicePixelRatio: 2}, m)
}

func TestParseCropFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing input", []string{"-user", "alice"}},
		{"unknown handle", []string{"-in", "a.jpg", "-resize=up:1,1"}},
		{"bad offsets", []string{"-in", "a.jpg", "-move=10"}},
		{"bad dpr", []string{"-in", "a.jpg", "-dpr", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCropFlags(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestCropDisplayMetrics(t *testing.T) {
	meta := types.DecodedImageMeta{Width: 800, Height: 600}

	_, ok, err := cropOptions{dpr: 1}.displayMetrics(meta)
	require.NoError(t, err)
	assert.False(t, ok)

	m, ok, err := cropOptions{dpr: 3}.displayMetrics(meta)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.DisplayMetrics{Width: 800, Height: 600, DevicePixelRatio: 3}, m)

	_, _, err = cropOptions{display: "400by300", dpr: 1}.displayMetrics(meta)
	assert.Error(t, err)
}

func TestBuildUploader(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.Dir = t.TempDir()
	u, err := buildUploader(cfg)
	require.NoError(t, err)
	assert.IsType(t, &upload.DirUploader{}, u)

	cfg.Upload.Backend = "s3"
	cfg.Upload.Bucket = ""
	u, err = buildUploader(cfg)
	assert.Error(t, err)
	assert.Nil(t, u)

	cfg.Upload.Backend = "minio"
	cfg.Upload.Bucket = "avatars"
	u, err = buildUploader(cfg)
	assert.Error(t, err)
	assert.Nil(t, u)

	cfg.Upload.Backend = "ftp"
	_, err = buildUploader(cfg)
	assert.Error(t, err)
}

func TestBuildHinter(t *testing.T) {
	cfg := config.Default()
	h, err := buildHinter(cfg)
	require.NoError(t, err)
	assert.Nil(t, h)

	cfg.Hint.Provider = "saliency"
	h, err = buildHinter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &detection.SaliencyHinter{}, h)

	cfg.Hint.Provider = "ollama"
	cfg.Hint.Model = "llava"
	h, err = buildHinter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &detection.VisionHinter{}, h)

	cfg.Hint.Provider = "face"
	cfg.Hint.Cascade = filepath.Join(t.TempDir(), "facefinder")
	h, err = buildHinter(cfg)
	assert.Error(t, err)
	assert.Nil(t, h)
}
