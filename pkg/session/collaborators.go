package session

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/menta2k/avatarcrop/pkg/types"
)

// Accept is the advisory type filter for the native file picker. The
// validator re-checks the declared type authoritatively.
const Accept = "image/jpeg, image/png, image/gif, image/webp"

// Uploader receives the rasterized crop. Its result is only logged.
type Uploader interface {
	UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, file types.EncodedImageBuffer) error

func (f UploaderFunc) UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error {
	return f(ctx, file)
}

// Identity supplies the current user's handle. It must answer synchronously.
type Identity interface {
	Username() string
}

// StaticIdentity is an Identity with a fixed handle.
type StaticIdentity string

func (s StaticIdentity) Username() string { return strings.TrimSpace(string(s)) }

// Notifier shows user-facing messages.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// FileInput is the file picker control; clearing it lets the same file be
// selected again.
type FileInput interface {
	Clear()
}

// FileInputFunc adapts a function to FileInput.
type FileInputFunc func()

func (f FileInputFunc) Clear() { f() }

// Hinter locates the main subject of an image as a normalized box, used to
// re-center the initial crop.
type Hinter interface {
	Hint(ctx context.Context, img image.Image) (types.Box, error)
}

// Logger is the logging surface the session writes to.
type Logger interface {
	Debug(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Metrics is the instrumentation surface the session reports to.
type Metrics interface {
	SessionStarted()
	Rejected(reason string)
	Rasterized(d time.Duration)
	RasterizeFailed()
	Uploaded(err error)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}

type nopMetrics struct{}

func (nopMetrics) SessionStarted()          {}
func (nopMetrics) Rejected(string)          {}
func (nopMetrics) Rasterized(time.Duration) {}
func (nopMetrics) RasterizeFailed()         {}
func (nopMetrics) Uploaded(error)           {}
