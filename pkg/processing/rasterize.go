package processing

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// MaxSurfacePixels is the largest raster surface that can be allocated,
// matching the common browser canvas area limit.
const MaxSurfacePixels = 268435456

// ErrRasterizeUnavailable is returned when no drawing surface can be
// obtained for the crop. Nothing is produced in that case.
var ErrRasterizeUnavailable = errors.New("rasterize: drawing surface unavailable")

// Surface returns the natural-image region selected by crop and the size of
// the raster surface it is drawn into. The crop is relative to the displayed
// preview; display falls back to the natural size when unset.
func Surface(src image.Rectangle, crop types.CropRect, display types.DisplayMetrics) (image.Rectangle, image.Point) {
	nw, nh := float64(src.Dx()), float64(src.Dy())
	dw, dh := display.Width, display.Height
	if dw <= 0 || dh <= 0 {
		dw, dh = nw, nh
	}
	scaleX := nw / dw
	scaleY := nh / dh
	dpr := display.Ratio()

	c := crop.Pixels(dw, dh)
	x0 := int(math.Round(c.X * scaleX))
	y0 := int(math.Round(c.Y * scaleY))
	w := int(math.Round(c.Width * scaleX))
	h := int(math.Round(c.Height * scaleY))
	region := image.Rect(x0, y0, x0+w, y0+h).Add(src.Min).Intersect(src)

	size := image.Pt(
		int(math.Round(c.Width*scaleX*dpr)),
		int(math.Round(c.Height*scaleY*dpr)),
	)
	return region, size
}

// Rasterize draws the crop of src into a surface at natural resolution times
// the device pixel ratio and encodes it as PNG.
func (p *Processor) Rasterize(src image.Image, crop types.CropRect, display types.DisplayMetrics, filename string) (types.EncodedImageBuffer, error) {
	if src == nil {
		return types.EncodedImageBuffer{}, fmt.Errorf("%w: no source image", ErrRasterizeUnavailable)
	}
	region, size := Surface(src.Bounds(), crop, display)
	if region.Empty() {
		return types.EncodedImageBuffer{}, fmt.Errorf("%w: empty crop region", ErrRasterizeUnavailable)
	}
	if size.X <= 0 || size.Y <= 0 || int64(size.X)*int64(size.Y) > p.config.MaxSurfacePixels {
		return types.EncodedImageBuffer{}, fmt.Errorf("%w: surface %dx%d", ErrRasterizeUnavailable, size.X, size.Y)
	}

	surface := imaging.Crop(src, region)
	if surface.Bounds().Dx() != size.X || surface.Bounds().Dy() != size.Y {
		surface = imaging.Resize(surface, size.X, size.Y, p.config.Filter)
	}

	data, err := p.Encode(surface, OutputMIMEType)
	if err != nil {
		return types.EncodedImageBuffer{}, err
	}

	return types.EncodedImageBuffer{
		Data:     data,
		Filename: filename,
		MIMEType: OutputMIMEType,
		Width:    size.X,
		Height:   size.Y,
	}, nil
}
