package types

import "math"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center point of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Unit is the coordinate system a CropRect is expressed in.
type Unit string

const (
	UnitPercent Unit = "%"
	UnitPixel   Unit = "px"
)

// CropRect is a crop region relative to a container (the displayed preview).
// Percent rects are relative to the container's width and height independently,
// so a square crop over a non-square container has different percent sides.
type CropRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   Unit    `json:"unit"`
}

// Pixels returns the rect in pixel units of a cw x ch container.
func (r CropRect) Pixels(cw, ch float64) CropRect {
	if r.Unit != UnitPercent {
		r.Unit = UnitPixel
		return r
	}
	return CropRect{
		X:      r.X * cw / 100,
		Y:      r.Y * ch / 100,
		Width:  r.Width * cw / 100,
		Height: r.Height * ch / 100,
		Unit:   UnitPixel,
	}
}

// Percent returns the rect in percent units of a cw x ch container.
func (r CropRect) Percent(cw, ch float64) CropRect {
	if r.Unit == UnitPercent {
		return r
	}
	if cw <= 0 || ch <= 0 {
		return CropRect{Unit: UnitPercent}
	}
	return CropRect{
		X:      r.X / cw * 100,
		Y:      r.Y / ch * 100,
		Width:  r.Width / cw * 100,
		Height: r.Height / ch * 100,
		Unit:   UnitPercent,
	}
}

// In converts the rect to the given unit.
func (r CropRect) In(unit Unit, cw, ch float64) CropRect {
	if unit == UnitPercent {
		return r.Percent(cw, ch)
	}
	return r.Pixels(cw, ch)
}

// IsSquare reports whether the rect is square in pixel space of a cw x ch container.
func (r CropRect) IsSquare(cw, ch float64) bool {
	p := r.Pixels(cw, ch)
	return math.Abs(p.Width-p.Height) < 1e-6*math.Max(1, p.Width)
}

// DisplayMetrics describes how the preview is rendered on screen.
type DisplayMetrics struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

// Ratio returns the device pixel ratio, treating unset values as 1.
func (m DisplayMetrics) Ratio() float64 {
	if m.DevicePixelRatio <= 0 {
		return 1
	}
	return m.DevicePixelRatio
}

// SelectedFile is the raw file picked by the user.
type SelectedFile struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// DecodedImageMeta holds the natural dimensions of a selected file.
type DecodedImageMeta struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// EncodedImageBuffer is the rasterized crop handed to the uploader.
type EncodedImageBuffer struct {
	Data     []byte
	Filename string
	MIMEType string
	Width    int
	Height   int
}
