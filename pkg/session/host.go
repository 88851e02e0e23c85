package session

import (
	"sync"

	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/types"
)

// Breakpoint is the viewport width at and above which the dialog host is used.
const Breakpoint = 768

// View is what a host renders while the session is cropping.
type View struct {
	ObjectURL string
	Crop      types.CropRect
	Meta      types.DecodedImageMeta
}

// Host is the presentation surface the crop UI lives in. Both hosts offer
// the same Cancel and Save actions to the session.
type Host interface {
	Name() string
	Show(v View)
	Hide()
	OnDismiss(fn func())
	MinCropSize() float64
}

// RenderFunc is called whenever a host changes visibility.
type RenderFunc func(visible bool, v View)

type surface struct {
	mu        sync.Mutex
	visible   bool
	view      View
	onDismiss func()
	render    RenderFunc
}

func (s *surface) show(v View) {
	s.mu.Lock()
	s.visible, s.view = true, v
	render := s.render
	s.mu.Unlock()
	if render != nil {
		render(true, v)
	}
}

func (s *surface) hide() {
	s.mu.Lock()
	s.visible = false
	render, v := s.render, s.view
	s.mu.Unlock()
	if render != nil {
		render(false, v)
	}
}

func (s *surface) setOnDismiss(fn func()) {
	s.mu.Lock()
	s.onDismiss = fn
	s.mu.Unlock()
}

// Visible reports whether the host is currently shown.
func (s *surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Dialog is the modal host used on wide displays. It can be dismissed by
// the user, which cancels the session.
type Dialog struct {
	surface
}

func NewDialog(render RenderFunc) *Dialog {
	return &Dialog{surface{render: render}}
}

func (d *Dialog) Name() string         { return "dialog" }
func (d *Dialog) Show(v View)          { d.show(v) }
func (d *Dialog) Hide()                { d.hide() }
func (d *Dialog) OnDismiss(fn func())  { d.setOnDismiss(fn) }
func (d *Dialog) MinCropSize() float64 { return cropper.MinSizeWide }

// Dismiss simulates the user closing the dialog (escape, outside click).
func (d *Dialog) Dismiss() {
	d.mu.Lock()
	fn, visible := d.onDismiss, d.visible
	d.mu.Unlock()
	if visible && fn != nil {
		fn()
	}
}

// Sheet is the bottom-sheet host used on narrow/touch displays. It cannot
// be dismissed by dragging; only Cancel or Save close it.
type Sheet struct {
	surface
}

func NewSheet(render RenderFunc) *Sheet {
	return &Sheet{surface{render: render}}
}

func (s *Sheet) Name() string         { return "sheet" }
func (s *Sheet) Show(v View)          { s.show(v) }
func (s *Sheet) Hide()                { s.hide() }
func (s *Sheet) OnDismiss(fn func())  { s.setOnDismiss(fn) }
func (s *Sheet) MinCropSize() float64 { return cropper.MinSizeNarrow }

// Dismiss is ignored: the sheet is not dismissible.
func (s *Sheet) Dismiss() {}

// HostFor picks the dialog at or above the breakpoint and the sheet below it.
func HostFor(viewportWidth, breakpoint int, dialog, sheet Host) Host {
	if viewportWidth >= breakpoint {
		return dialog
	}
	return sheet
}
