// Package session drives a single avatar selection from file pick to upload:
// validation, crop editing inside a responsive host, rasterization and the
// deferred reset that follows.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/avatarcrop/internal/utils"
	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/processing"
	"github.com/menta2k/avatarcrop/pkg/types"
	"github.com/menta2k/avatarcrop/pkg/validator"
)

// RetryMessage is shown when the crop could not be rasterized.
const RetryMessage = "Something went wrong while saving your image. Please try again."

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("session: operation not allowed in current state")
	// ErrSuperseded is returned by an in-flight operation whose result was
	// discarded because the session moved on.
	ErrSuperseded = errors.New("session: superseded by a newer selection")
)

// State is a phase of the session.
type State int

const (
	Idle State = iota
	Selecting
	Validating
	Cropping
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Validating:
		return "validating"
	case Cropping:
		return "cropping"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds session timing and layout settings.
type Config struct {
	ResetDelay    time.Duration
	DecodeTimeout time.Duration
	Breakpoint    int
	ViewportWidth int
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		ResetDelay:    time.Second,
		DecodeTimeout: 10 * time.Second,
		Breakpoint:    Breakpoint,
		ViewportWidth: 1280,
	}
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	State       State
	Crop        types.CropRect
	ObjectURL   string
	FileName    string
	Meta        types.DecodedImageMeta
	Display     types.DisplayMetrics
	Host        string
	HostVisible bool
	HasPreview  bool
}

// Option configures a Session.
type Option func(*Session)

func WithConfig(c Config) Option { return func(s *Session) { s.config = c } }

func WithValidator(v *validator.Validator) Option { return func(s *Session) { s.validator = v } }

func WithCropper(c *cropper.SquareCropper) Option { return func(s *Session) { s.cropper = c } }

func WithProcessor(p *processing.Processor) Option { return func(s *Session) { s.processor = p } }

func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }

func WithIdentity(i Identity) Option { return func(s *Session) { s.identity = i } }

func WithFileInput(f FileInput) Option { return func(s *Session) { s.fileInput = f } }

func WithHinter(h Hinter) Option { return func(s *Session) { s.hinter = h } }

func WithLogger(l Logger) Option { return func(s *Session) { s.log = l } }

func WithMetrics(m Metrics) Option { return func(s *Session) { s.metrics = m } }

func WithScheduler(sc Scheduler) Option { return func(s *Session) { s.scheduler = sc } }

func WithObjectURLs(o *ObjectURLs) Option { return func(s *Session) { s.urls = o } }

// WithHosts replaces the dialog and sheet hosts.
func WithHosts(dialog, sheet Host) Option {
	return func(s *Session) { s.dialog, s.sheet = dialog, sheet }
}

// Session is the avatar crop state machine. All methods are safe for
// concurrent use; collaborators are never called with the lock held.
type Session struct {
	config    Config
	validator *validator.Validator
	cropper   *cropper.SquareCropper
	processor *processing.Processor
	uploader  Uploader
	notifier  Notifier
	identity  Identity
	fileInput FileInput
	hinter    Hinter
	log       Logger
	metrics   Metrics
	scheduler Scheduler
	urls      *ObjectURLs
	dialog    Host
	sheet     Host

	probe  func(ctx context.Context, file types.SelectedFile) (types.DecodedImageMeta, error)
	decode func(file types.SelectedFile) (image.Image, error)

	mu          sync.Mutex
	gen         uint64
	state       State
	file        *types.SelectedFile
	objectURL   string
	meta        types.DecodedImageMeta
	preview     image.Image
	crop        types.CropRect
	display     types.DisplayMetrics
	viewport    int
	host        Host
	hostVisible bool
	timer       Timer

	uploads sync.WaitGroup
}

// New creates a session that hands finished crops to uploader.
func New(uploader Uploader, opts ...Option) *Session {
	s := &Session{
		config:    DefaultConfig(),
		validator: validator.New(),
		cropper:   cropper.New(),
		processor: processing.NewProcessor(),
		uploader:  uploader,
		log:       nopLogger{},
		metrics:   nopMetrics{},
		scheduler: TimerScheduler{},
		urls:      NewObjectURLs(),
		crop:      cropper.DefaultCrop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialog == nil {
		s.dialog = NewDialog(nil)
	}
	if s.sheet == nil {
		s.sheet = NewSheet(nil)
	}
	if s.config.Breakpoint <= 0 {
		s.config.Breakpoint = Breakpoint
	}
	s.viewport = s.config.ViewportWidth
	s.probe = s.validator.Probe
	s.decode = func(f types.SelectedFile) (image.Image, error) {
		return s.processor.Decode(f.Data, f.MIMEType)
	}

	dismiss := func() {
		if err := s.Cancel(); err != nil {
			s.log.Debug("dismiss ignored: %v", err)
		}
	}
	s.dialog.OnDismiss(dismiss)
	s.sheet.OnDismiss(dismiss)
	return s
}

// Select starts a new session for file, discarding any previous one. It
// returns once the file is either rejected or ready to crop.
func (s *Session) Select(ctx context.Context, file types.SelectedFile) error {
	s.mu.Lock()
	effects := s.discardLocked()
	s.gen++
	gen := s.gen
	s.state = Selecting
	s.file = &file
	s.metrics.SessionStarted()
	s.log.Debug("select %q (%s, %s)", file.Name, file.MIMEType, utils.FormatFileSize(file.Size))

	if err := s.validator.CheckSize(file); err != nil {
		effects = append(effects, s.rejectLocked(err)...)
		s.mu.Unlock()
		run(effects)
		return err
	}
	s.objectURL = s.urls.Create(file.Data, file.MIMEType)
	s.mu.Unlock()
	run(effects)

	tctx, cancel := context.WithTimeout(ctx, s.config.DecodeTimeout)
	defer cancel()

	// The probe gates validation. The read only feeds the preview, so its
	// failure never cancels the probe; a rejected probe stops the read.
	readCtx, stopRead := context.WithCancel(tctx)
	defer stopRead()

	var (
		meta              types.DecodedImageMeta
		preview           image.Image
		probeErr, readErr error
		rejection         error
	)
	var g errgroup.Group
	g.Go(func() error {
		meta, probeErr = withContext(tctx, func() (types.DecodedImageMeta, error) {
			return s.probe(tctx, file)
		})
		if probeErr != nil {
			stopRead()
			return nil
		}
		s.enterValidating(gen)
		rejection = s.validator.CheckDimensions(meta)
		if rejection == nil {
			rejection = s.validator.CheckFormat(file)
		}
		if rejection != nil {
			stopRead()
		}
		return nil
	})
	g.Go(func() error {
		preview, readErr = withContext(readCtx, func() (image.Image, error) {
			return s.decode(file)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.abandon(gen)
		return err
	}

	switch {
	case probeErr != nil && errors.Is(probeErr, context.DeadlineExceeded):
		rejection = s.timeoutRejection()
	case probeErr != nil:
		rejection = s.asRejection(file, probeErr)
	case rejection != nil:
	case errors.Is(readErr, context.DeadlineExceeded):
		rejection = s.timeoutRejection()
	case readErr != nil:
		rejection = s.asRejection(file, readErr)
	}

	var seed types.CropRect
	if rejection == nil {
		b := preview.Bounds()
		seed = s.cropper.InitialCrop(b.Dx(), b.Dy())
		seed = s.applyHint(ctx, preview, seed)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if rejection != nil {
		effects = s.rejectLocked(rejection)
		s.mu.Unlock()
		run(effects)
		return rejection
	}
	s.meta = meta
	s.preview = preview
	s.crop = seed
	s.host = HostFor(s.viewport, s.config.Breakpoint, s.dialog, s.sheet)
	s.hostVisible = true
	s.state = Cropping
	host, view := s.host, s.viewLocked()
	s.mu.Unlock()

	s.log.Debug("cropping %dx%d %s in %s", meta.Width, meta.Height, meta.Format, host.Name())
	host.Show(view)
	return nil
}

func (s *Session) enterValidating(gen uint64) {
	s.mu.Lock()
	if s.gen == gen && s.state == Selecting {
		s.state = Validating
	}
	s.mu.Unlock()
}

// abandon drops a selection whose caller gave up, without notifying the user.
func (s *Session) abandon(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	effects := s.resetLocked(true)
	s.mu.Unlock()
	run(effects)
}

func (s *Session) timeoutRejection() error {
	return &validator.Rejection{Reason: validator.DecodeTimeout, Detail: s.config.DecodeTimeout.String()}
}

func (s *Session) asRejection(file types.SelectedFile, err error) error {
	var r *validator.Rejection
	if errors.As(err, &r) {
		return r
	}
	reason := validator.Undecodable
	if !s.validator.IsTypeAllowed(file.MIMEType) {
		reason = validator.UnsupportedFormat
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &validator.Rejection{Reason: reason, Detail: detail}
}

func (s *Session) applyHint(ctx context.Context, img image.Image, seed types.CropRect) types.CropRect {
	if s.hinter == nil {
		return seed
	}
	box, err := s.hinter.Hint(ctx, img)
	if err != nil {
		s.log.Debug("crop hint failed: %v", err)
		return seed
	}
	b := img.Bounds()
	return s.cropper.CenterOn(seed, box, float64(b.Dx()), float64(b.Dy()))
}

// UpdateCrop applies a drag or resize event to the current crop.
func (s *Session) UpdateCrop(d cropper.Delta) (types.CropRect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Cropping {
		return s.crop, ErrInvalidState
	}
	s.crop = s.cropper.UpdateCrop(s.crop, d, s.geometryLocked())
	return s.crop, nil
}

// SetCrop replaces the crop with rect, squared and clamped to the preview.
func (s *Session) SetCrop(rect types.CropRect) (types.CropRect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Cropping {
		return s.crop, ErrInvalidState
	}
	s.crop = s.cropper.UpdateCrop(rect, cropper.Delta{Handle: cropper.Move}, s.geometryLocked())
	return s.crop, nil
}

// SetDisplay records how large the preview is rendered.
func (s *Session) SetDisplay(m types.DisplayMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Cropping {
		return ErrInvalidState
	}
	s.display = m
	return nil
}

// SetViewport records the viewport width. While cropping, crossing the
// breakpoint moves the crop UI to the other host.
func (s *Session) SetViewport(width int) {
	s.mu.Lock()
	s.viewport = width
	if s.state != Cropping || !s.hostVisible {
		s.mu.Unlock()
		return
	}
	next := HostFor(width, s.config.Breakpoint, s.dialog, s.sheet)
	prev := s.host
	if next == prev {
		s.mu.Unlock()
		return
	}
	s.host = next
	view := s.viewLocked()
	s.mu.Unlock()

	prev.Hide()
	next.Show(view)
}

// Submit rasterizes the current crop and hands it to the uploader. The
// upload runs in the background; use Wait to block on it.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Cropping {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.state = Submitting
	gen := s.gen
	src, crop, display := s.preview, s.crop, s.display
	s.mu.Unlock()

	name := s.filename()
	start := time.Now()
	buf, err := s.processor.Rasterize(src, crop, display, name)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.state = Cropping
		s.mu.Unlock()
		s.metrics.RasterizeFailed()
		s.log.Error("rasterize %s: %v", name, err)
		s.notify(RetryMessage)
		return fmt.Errorf("submit: %w", err)
	}
	s.metrics.Rasterized(time.Since(start))
	effects := s.closeLocked(gen)
	s.mu.Unlock()

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		err := s.uploader.UploadAvatar(context.WithoutCancel(ctx), buf)
		s.metrics.Uploaded(err)
		if err != nil {
			s.log.Error("upload %s: %v", buf.Filename, err)
			return
		}
		s.log.Debug("uploaded %s (%dx%d, %s)", buf.Filename, buf.Width, buf.Height, utils.FormatFileSize(int64(len(buf.Data))))
	}()
	run(effects)
	return nil
}

// Cancel closes the crop UI without saving. An in-flight selection is
// abandoned immediately.
func (s *Session) Cancel() error {
	s.mu.Lock()
	var effects []func()
	switch s.state {
	case Idle:
		s.mu.Unlock()
		return nil
	case Selecting, Validating:
		s.gen++
		effects = s.resetLocked(true)
	case Cropping:
		effects = s.closeLocked(s.gen)
	default:
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.mu.Unlock()
	run(effects)
	return nil
}

// Reset immediately returns the session to an empty Idle state. It is safe
// to call repeatedly.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.state != Idle && s.state != Cropping {
		s.gen++
	}
	effects := s.resetLocked(true)
	s.mu.Unlock()
	run(effects)
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:       s.state,
		Crop:        s.crop,
		ObjectURL:   s.objectURL,
		Meta:        s.meta,
		Display:     s.display,
		HostVisible: s.hostVisible,
		HasPreview:  s.preview != nil,
	}
	if s.file != nil {
		snap.FileName = s.file.Name
	}
	if s.host != nil {
		snap.Host = s.host.Name()
	}
	return snap
}

// Wait blocks until background uploads have finished.
func (s *Session) Wait() {
	s.uploads.Wait()
}

// closeLocked hides the host, enters Idle and schedules the deferred reset.
func (s *Session) closeLocked(gen uint64) []func() {
	var effects []func()
	if s.hostVisible && s.host != nil {
		effects = append(effects, s.host.Hide)
	}
	s.hostVisible = false
	s.state = Idle
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.scheduler.AfterFunc(s.config.ResetDelay, func() { s.deferredReset(gen) })
	return effects
}

func (s *Session) deferredReset(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	effects := s.resetLocked(true)
	s.mu.Unlock()
	run(effects)
}

// rejectLocked turns a validation failure into a notification and a reset.
func (s *Session) rejectLocked(err error) []func() {
	msg := err.Error()
	if reason, ok := validator.ReasonOf(err); ok {
		msg = validator.Message(reason)
		s.metrics.Rejected(reason.String())
	}
	s.log.Debug("rejected: %v", err)
	effects := []func(){func() { s.notify(msg) }}
	return append(effects, s.resetLocked(true)...)
}

// discardLocked drops the previous session ahead of a new selection. The
// file input is left alone since it holds the new file.
func (s *Session) discardLocked() []func() {
	return s.resetLocked(false)
}

// resetLocked releases everything the session holds. Releasing the object
// URL and clearing the input happen at most once per selection.
func (s *Session) resetLocked(clearInput bool) []func() {
	var effects []func()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.hostVisible && s.host != nil {
		effects = append(effects, s.host.Hide)
	}
	if s.objectURL != "" {
		if err := s.urls.Revoke(s.objectURL); err != nil {
			s.log.Error("revoke %s: %v", s.objectURL, err)
		}
		s.objectURL = ""
		if clearInput && s.fileInput != nil {
			effects = append(effects, s.fileInput.Clear)
		}
	} else if clearInput && s.file != nil && s.fileInput != nil {
		effects = append(effects, s.fileInput.Clear)
	}
	s.state = Idle
	s.file = nil
	s.meta = types.DecodedImageMeta{}
	s.preview = nil
	s.crop = cropper.DefaultCrop()
	s.display = types.DisplayMetrics{}
	s.host = nil
	s.hostVisible = false
	return effects
}

func (s *Session) geometryLocked() cropper.Geometry {
	w, h := s.display.Width, s.display.Height
	if (w <= 0 || h <= 0) && s.preview != nil {
		b := s.preview.Bounds()
		w, h = float64(b.Dx()), float64(b.Dy())
	}
	floor := cropper.MinSizeWide
	if s.host != nil {
		floor = s.host.MinCropSize()
	}
	return cropper.Geometry{ContainerWidth: w, ContainerHeight: h, MinSize: floor}
}

func (s *Session) viewLocked() View {
	return View{ObjectURL: s.objectURL, Crop: s.crop, Meta: s.meta}
}

// filename derives the upload name from the user's handle, falling back to
// a generated identifier.
func (s *Session) filename() string {
	var name string
	if s.identity != nil {
		name = utils.SanitizeFilename(s.identity.Username())
	}
	if name == "" {
		name = uuid.NewString()
	}
	return name
}

func (s *Session) notify(msg string) {
	if s.notifier != nil {
		s.notifier.Notify(msg)
	}
}

func run(effects []func()) {
	for _, fn := range effects {
		fn()
	}
}

// withContext runs fn and returns early with the context error if ctx ends
// first. fn keeps running in the background until it returns.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}
