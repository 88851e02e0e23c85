package cropper

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// Crop floors in display pixels
const (
	MinSizeWide   = 100.0 // dialog host on wide displays
	MinSizeNarrow = 256.0 // sheet host on narrow/touch displays
)

// DefaultSeedPercent is the share of the shorter side covered by the initial crop
const DefaultSeedPercent = 90.0

// Handle identifies what the user is dragging
type Handle int

const (
	Move Handle = iota
	N
	S
	E
	W
	NE
	NW
	SE
	SW
)

func (h Handle) String() string {
	return [...]string{"move", "n", "s", "e", "w", "ne", "nw", "se", "sw"}[h]
}

// ParseHandle maps a handle name back to its Handle.
func ParseHandle(s string) (Handle, bool) {
	for h := Move; h <= SW; h++ {
		if h.String() == s {
			return h, true
		}
	}
	return Move, false
}

// ParseDelta parses "handle:dx,dy", e.g. "se:-20,-20" or "move:10,0".
func ParseDelta(s string) (Delta, error) {
	name, offsets, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Delta{}, fmt.Errorf("invalid delta %q, want handle:dx,dy", s)
	}
	h, ok := ParseHandle(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return Delta{}, fmt.Errorf("unknown handle %q", name)
	}
	xs, ys, ok := strings.Cut(offsets, ",")
	if !ok {
		return Delta{}, fmt.Errorf("invalid offsets %q, want dx,dy", offsets)
	}
	dx, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Delta{}, fmt.Errorf("invalid dx %q: %w", xs, err)
	}
	dy, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Delta{}, fmt.Errorf("invalid dy %q: %w", ys, err)
	}
	return Delta{Handle: h, DX: dx, DY: dy}, nil
}

// Delta is a single drag or resize event, in container pixels
type Delta struct {
	Handle Handle
	DX     float64
	DY     float64
}

// Geometry is the container a crop lives in: the displayed preview plus the
// minimum crop size allowed by the active host.
type Geometry struct {
	ContainerWidth  float64
	ContainerHeight float64
	MinSize         float64
}

// floor returns the minimum side, capped by the container's shorter side.
func (g Geometry) floor() float64 {
	m := math.Max(g.MinSize, 1)
	return math.Min(m, math.Min(g.ContainerWidth, g.ContainerHeight))
}

// CropConfig holds configuration for the crop engine
type CropConfig struct {
	SeedPercent float64
}

// SquareCropper keeps a 1:1 crop rectangle consistent while the user edits it.
type SquareCropper struct {
	config CropConfig
}

// New creates a new SquareCropper with default configuration
func New() *SquareCropper {
	return &SquareCropper{config: CropConfig{SeedPercent: DefaultSeedPercent}}
}

// NewWithConfig creates a new SquareCropper with custom configuration
func NewWithConfig(config CropConfig) *SquareCropper {
	if config.SeedPercent <= 0 || config.SeedPercent > 100 {
		config.SeedPercent = DefaultSeedPercent
	}
	return &SquareCropper{config: config}
}

// DefaultCrop is the crop a reset session falls back to.
func DefaultCrop() types.CropRect {
	return types.CropRect{Unit: types.UnitPercent, Width: 50, Height: 50}
}

// InitialCrop returns a centered square covering SeedPercent of the shorter
// side, in percent units of the natural image.
func (c *SquareCropper) InitialCrop(naturalWidth, naturalHeight int) types.CropRect {
	if naturalWidth <= 0 || naturalHeight <= 0 {
		return DefaultCrop()
	}
	w, h := float64(naturalWidth), float64(naturalHeight)
	side := math.Min(w, h) * c.config.SeedPercent / 100

	px := types.CropRect{
		X:      (w - side) / 2,
		Y:      (h - side) / 2,
		Width:  side,
		Height: side,
		Unit:   types.UnitPixel,
	}
	return px.Percent(w, h)
}

// UpdateCrop applies a drag or resize to the current crop. The result is
// square in container pixels, stays inside the container, never drops below
// the floor and keeps the unit of current.
func (c *SquareCropper) UpdateCrop(current types.CropRect, d Delta, g Geometry) types.CropRect {
	cw, ch := g.ContainerWidth, g.ContainerHeight
	if cw <= 0 || ch <= 0 {
		return current
	}
	unit := current.Unit
	if unit == "" {
		unit = types.UnitPixel
	}
	p := current.Pixels(cw, ch)
	floor := g.floor()
	maxSide := math.Min(cw, ch)

	var out types.CropRect
	switch d.Handle {
	case Move:
		side := clamp(math.Min(p.Width, p.Height), floor, maxSide)
		out = types.CropRect{
			X:      clamp(p.X+d.DX, 0, cw-side),
			Y:      clamp(p.Y+d.DY, 0, ch-side),
			Width:  side,
			Height: side,
		}
	case NE, NW, SE, SW:
		out = resizeCorner(p, d, floor, cw, ch)
	default:
		out = resizeEdge(p, d, floor, cw, ch)
	}
	out.Unit = types.UnitPixel
	return out.In(unit, cw, ch)
}

// resizeCorner anchors the opposite corner and follows the dominant axis.
func resizeCorner(p types.CropRect, d Delta, floor, cw, ch float64) types.CropRect {
	var ax, ay, w, h, room float64
	switch d.Handle {
	case SE:
		ax, ay = p.X, p.Y
		w, h = p.Width+d.DX, p.Height+d.DY
		room = math.Min(cw-ax, ch-ay)
	case NW:
		ax, ay = p.X+p.Width, p.Y+p.Height
		w, h = p.Width-d.DX, p.Height-d.DY
		room = math.Min(ax, ay)
	case NE:
		ax, ay = p.X, p.Y+p.Height
		w, h = p.Width+d.DX, p.Height-d.DY
		room = math.Min(cw-ax, ay)
	case SW:
		ax, ay = p.X+p.Width, p.Y
		w, h = p.Width-d.DX, p.Height+d.DY
		room = math.Min(ax, ch-ay)
	}

	side := h
	if math.Abs(w-p.Width) >= math.Abs(h-p.Height) {
		side = w
	}
	side = clamp(side, math.Min(floor, room), room)

	out := types.CropRect{Width: side, Height: side}
	switch d.Handle {
	case SE:
		out.X, out.Y = ax, ay
	case NW:
		out.X, out.Y = ax-side, ay-side
	case NE:
		out.X, out.Y = ax, ay-side
	case SW:
		out.X, out.Y = ax-side, ay
	}
	return out
}

// resizeEdge anchors the opposite edge; the other axis follows and slides to
// stay centered on the previous crop where the container allows.
func resizeEdge(p types.CropRect, d Delta, floor, cw, ch float64) types.CropRect {
	cx, cy := p.X+p.Width/2, p.Y+p.Height/2
	var out types.CropRect
	switch d.Handle {
	case E:
		room := math.Min(cw-p.X, ch)
		side := clamp(p.Width+d.DX, math.Min(floor, room), room)
		out = types.CropRect{X: p.X, Y: clamp(cy-side/2, 0, ch-side), Width: side, Height: side}
	case W:
		right := p.X + p.Width
		room := math.Min(right, ch)
		side := clamp(p.Width-d.DX, math.Min(floor, room), room)
		out = types.CropRect{X: right - side, Y: clamp(cy-side/2, 0, ch-side), Width: side, Height: side}
	case S:
		room := math.Min(ch-p.Y, cw)
		side := clamp(p.Height+d.DY, math.Min(floor, room), room)
		out = types.CropRect{X: clamp(cx-side/2, 0, cw-side), Y: p.Y, Width: side, Height: side}
	case N:
		bottom := p.Y + p.Height
		room := math.Min(bottom, cw)
		side := clamp(p.Height-d.DY, math.Min(floor, room), room)
		out = types.CropRect{X: clamp(cx-side/2, 0, cw-side), Y: bottom - side, Width: side, Height: side}
	}
	return out
}

// CenterOn moves rect so that it is centered on the box center, keeping its
// size and staying inside the cw x ch container.
func (c *SquareCropper) CenterOn(rect types.CropRect, box types.Box, cw, ch float64) types.CropRect {
	if cw <= 0 || ch <= 0 {
		return rect
	}
	unit := rect.Unit
	if unit == "" {
		unit = types.UnitPixel
	}
	p := rect.Pixels(cw, ch)
	bx, by := box.Center()
	p.X = clamp(bx*cw-p.Width/2, 0, cw-p.Width)
	p.Y = clamp(by*ch-p.Height/2, 0, ch-p.Height)
	return p.In(unit, cw, ch)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
