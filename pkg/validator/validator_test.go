package validator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatarcrop/pkg/types"
)

func pngFile(t *testing.T, width, height int) types.SelectedFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return types.SelectedFile{Name: "a.png", MIMEType: "image/png", Size: int64(buf.Len()), Data: buf.Bytes()}
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	got, ok := ReasonOf(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, want, got)
}

func TestCheckSize(t *testing.T) {
	v := New()

	assert.NoError(t, v.CheckSize(types.SelectedFile{Size: MaxFileSize}))
	requireReason(t, v.CheckSize(types.SelectedFile{Size: MaxFileSize + 1}), TooLarge)
	requireReason(t, v.CheckSize(types.SelectedFile{Size: 50 * 1024 * 1024}), TooLarge)
}

func TestCheckDimensions(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		w, h int
		ok   bool
	}{
		{"exact minimum", 256, 256, true},
		{"large", 2000, 2000, true},
		{"narrow", 255, 1000, false},
		{"short", 1000, 255, false},
		{"tiny", 200, 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckDimensions(types.DecodedImageMeta{Width: tt.w, Height: tt.h})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			requireReason(t, err, TooSmall)
		})
	}
}

func TestCheckFormat(t *testing.T) {
	v := New()

	for _, mt := range []string{"image/jpeg", "image/png", "image/gif", "image/webp", "IMAGE/PNG", "image/jpeg; charset=binary"} {
		assert.NoError(t, v.CheckFormat(types.SelectedFile{MIMEType: mt}), mt)
	}
	for _, mt := range []string{"image/bmp", "image/tiff", "application/pdf", ""} {
		requireReason(t, v.CheckFormat(types.SelectedFile{MIMEType: mt}), UnsupportedFormat)
	}
}

func TestValidatePriority(t *testing.T) {
	v := New()
	small := types.DecodedImageMeta{Width: 100, Height: 100}
	big := types.DecodedImageMeta{Width: 1000, Height: 1000}

	// oversized and off-list: size wins
	requireReason(t, v.Validate(types.SelectedFile{Size: MaxFileSize + 1, MIMEType: "image/bmp"}, small), TooLarge)
	// too small and off-list: dimension wins, format never reported
	requireReason(t, v.Validate(types.SelectedFile{Size: 10, MIMEType: "image/bmp"}, small), TooSmall)
	requireReason(t, v.Validate(types.SelectedFile{Size: 10, MIMEType: "image/bmp"}, big), UnsupportedFormat)
	assert.NoError(t, v.Validate(types.SelectedFile{Size: 10 * 1024 * 1024, MIMEType: "image/gif"}, types.DecodedImageMeta{Width: 2000, Height: 2000}))
}

func TestProbe(t *testing.T) {
	v := New()
	file := pngFile(t, 300, 260)

	meta, err := v.Probe(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 300, meta.Width)
	assert.Equal(t, 260, meta.Height)
	assert.Equal(t, "png", meta.Format)
}

func TestProbeGarbage(t *testing.T) {
	v := New()

	_, err := v.Probe(context.Background(), types.SelectedFile{MIMEType: "image/png", Data: []byte("not an image")})
	requireReason(t, err, Undecodable)

	_, err = v.Probe(context.Background(), types.SelectedFile{MIMEType: "application/pdf", Data: []byte("%PDF-1.4")})
	requireReason(t, err, UnsupportedFormat)
}

func TestProbeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Probe(ctx, pngFile(t, 256, 256))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Images must be under 12 MB.", Message(TooLarge))
	assert.Equal(t, "Please use an image that is at least 256×256 pixels.", Message(TooSmall))
	assert.Equal(t, "Images must be in either JPEG, PNG, GIF, or WEBP format.", Message(UnsupportedFormat))

	rej := &Rejection{Reason: TooSmall}
	assert.Equal(t, Message(TooSmall), rej.Message())
	assert.Contains(t, rej.Error(), "too_small")
}

func TestNewWithConfig(t *testing.T) {
	v := NewWithConfig(Config{MaxBytes: 10, MinDimension: 8, AllowedTypes: []string{"image/png"}})

	requireReason(t, v.CheckSize(types.SelectedFile{Size: 11}), TooLarge)
	assert.NoError(t, v.CheckDimensions(types.DecodedImageMeta{Width: 8, Height: 8}))
	requireReason(t, v.CheckFormat(types.SelectedFile{MIMEType: "image/jpeg"}), UnsupportedFormat)
}
