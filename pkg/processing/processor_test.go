package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// createTestImage creates a quadrant test image: red, green, blue, white
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < width/2 && y < height/2:
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			case y < height/2:
				img.Set(x, y, color.RGBA{0, 255, 0, 255})
			case x < width/2:
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			default:
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRasterizeNaturalDisplay(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(500, 500)
	crop := types.CropRect{X: 5, Y: 5, Width: 90, Height: 90, Unit: types.UnitPercent}

	out, err := p.Rasterize(src, crop, types.DisplayMetrics{}, "alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", out.Filename)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, 450, out.Width)
	assert.Equal(t, 450, out.Height)

	img := decodePNG(t, out.Data)
	assert.Equal(t, 450, img.Bounds().Dx())
	assert.Equal(t, 450, img.Bounds().Dy())
}

func TestRasterizeScalesFromDisplay(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(1000, 800)
	// preview rendered at half size; crop the top-left quadrant in display pixels
	display := types.DisplayMetrics{Width: 500, Height: 400, DevicePixelRatio: 1}
	crop := types.CropRect{X: 0, Y: 0, Width: 200, Height: 200, Unit: types.UnitPixel}

	out, err := p.Rasterize(src, crop, display, "bob")
	require.NoError(t, err)
	assert.Equal(t, 400, out.Width)
	assert.Equal(t, 400, out.Height)

	img := decodePNG(t, out.Data)
	r, g, b, _ := img.At(200, 200).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestRasterizeDevicePixelRatioScalesLinearly(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(600, 600)
	crop := types.CropRect{X: 100, Y: 100, Width: 300, Height: 300, Unit: types.UnitPixel}

	one, err := p.Rasterize(src, crop, types.DisplayMetrics{Width: 600, Height: 600, DevicePixelRatio: 1}, "x")
	require.NoError(t, err)
	two, err := p.Rasterize(src, crop, types.DisplayMetrics{Width: 600, Height: 600, DevicePixelRatio: 2}, "x")
	require.NoError(t, err)
	three, err := p.Rasterize(src, crop, types.DisplayMetrics{Width: 600, Height: 600, DevicePixelRatio: 3}, "x")
	require.NoError(t, err)

	assert.Equal(t, 2*one.Width, two.Width)
	assert.Equal(t, 2*one.Height, two.Height)
	assert.Equal(t, 3*one.Width, three.Width)
	assert.Equal(t, 900, decodePNG(t, three.Data).Bounds().Dx())
}

func TestRasterizeUnavailable(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(300, 300)
	crop := types.CropRect{Width: 100, Height: 100, Unit: types.UnitPixel}

	_, err := p.Rasterize(nil, crop, types.DisplayMetrics{}, "x")
	assert.ErrorIs(t, err, ErrRasterizeUnavailable)

	_, err = p.Rasterize(src, types.CropRect{Unit: types.UnitPixel}, types.DisplayMetrics{}, "x")
	assert.ErrorIs(t, err, ErrRasterizeUnavailable)

	_, err = p.Rasterize(src, types.CropRect{X: 400, Y: 400, Width: 50, Height: 50, Unit: types.UnitPixel}, types.DisplayMetrics{}, "x")
	assert.ErrorIs(t, err, ErrRasterizeUnavailable)

	small := NewProcessorWithConfig(Config{MaxSurfacePixels: 100 * 100})
	_, err = small.Rasterize(src, crop, types.DisplayMetrics{DevicePixelRatio: 2}, "x")
	assert.ErrorIs(t, err, ErrRasterizeUnavailable)

	out, err := small.Rasterize(src, crop, types.DisplayMetrics{DevicePixelRatio: 1}, "x")
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
}

func TestSurface(t *testing.T) {
	region, size := Surface(image.Rect(0, 0, 1920, 1080),
		types.CropRect{X: 474.0 / 1920 * 100, Y: 5, Width: 972.0 / 1920 * 100, Height: 90, Unit: types.UnitPercent},
		types.DisplayMetrics{Width: 960, Height: 540, DevicePixelRatio: 2})

	assert.Equal(t, image.Rect(474, 54, 1446, 1026), region)
	assert.Equal(t, image.Pt(1944, 1944), size)
}

func TestSurfaceMatchesRegionAtNaturalScale(t *testing.T) {
	src := image.Rect(0, 0, 1000, 1000)
	region, size := Surface(src,
		types.CropRect{X: 10.4, Y: 10.4, Width: 300.4, Height: 300.4, Unit: types.UnitPixel},
		types.DisplayMetrics{})
	assert.Equal(t, image.Rect(10, 10, 310, 310), region)
	assert.Equal(t, region.Size(), size)

	for i := 0; i < 100; i++ {
		off := float64(i) * 0.37
		crop := types.CropRect{X: off, Y: off / 2, Width: 250 + off, Height: 250 + off, Unit: types.UnitPixel}
		region, size := Surface(src, crop, types.DisplayMetrics{DevicePixelRatio: 1})
		assert.Equal(t, region.Size(), size, "offset %.2f", off)
	}
}

func TestDecodeFormats(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(64, 48)

	var pngBuf, jpgBuf, gifBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	require.NoError(t, jpeg.Encode(&jpgBuf, src, nil))
	require.NoError(t, gif.Encode(&gifBuf, src, nil))
	var webpBuf bytes.Buffer
	require.NoError(t, webp.Encode(&webpBuf, src, &webp.Options{Quality: 90}))

	cases := map[string][]byte{
		"image/png":  pngBuf.Bytes(),
		"image/jpeg": jpgBuf.Bytes(),
		"image/gif":  gifBuf.Bytes(),
		"image/webp": webpBuf.Bytes(),
	}
	for mt, data := range cases {
		img, err := p.Decode(data, mt)
		require.NoError(t, err, mt)
		assert.Equal(t, 64, img.Bounds().Dx(), mt)
		assert.Equal(t, 48, img.Bounds().Dy(), mt)
	}

	_, err := p.Decode([]byte("garbage"), "image/png")
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(32, 32)

	for _, mt := range []string{"image/png", "image/jpeg", "image/webp"} {
		data, err := p.Encode(src, mt)
		require.NoError(t, err, mt)
		assert.NotEmpty(t, data, mt)
	}

	_, err := p.Encode(src, "image/gif")
	assert.Error(t, err)
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(2000, 1000), "jpg", 512, 80)
	require.NoError(t, err)
	assert.NotEmpty(t, b64)
}

func BenchmarkRasterize(b *testing.B) {
	p := NewProcessor()
	src := createTestImage(1920, 1080)
	crop := types.CropRect{X: 474, Y: 54, Width: 972, Height: 972, Unit: types.UnitPixel}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Rasterize(src, crop, types.DisplayMetrics{DevicePixelRatio: 1}, "bench")
	}
}
