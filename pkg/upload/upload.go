// Package upload stores rasterized avatars. Every backend satisfies the
// session's uploader contract.
package upload

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/menta2k/avatarcrop/internal/utils"
	"github.com/menta2k/avatarcrop/pkg/types"
)

// Key builds the object key for an avatar: prefix, filename and an
// extension derived from the MIME type.
func Key(prefix string, file types.EncodedImageBuffer) string {
	name := utils.SanitizeFilename(file.Filename)
	if name == "" {
		name = "avatar"
	}
	name += "." + utils.ExtensionForMIME(file.MIMEType)
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Func adapts a function to an uploader.
type Func func(ctx context.Context, file types.EncodedImageBuffer) error

func (f Func) UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error {
	return f(ctx, file)
}

// DirUploader writes avatars to a local directory.
type DirUploader struct {
	Dir    string
	Prefix string
}

func NewDirUploader(dir, prefix string) *DirUploader {
	return &DirUploader{Dir: dir, Prefix: prefix}
}

func (d *DirUploader) UploadAvatar(ctx context.Context, file types.EncodedImageBuffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(file.Data) == 0 {
		return fmt.Errorf("upload: empty image %q", file.Filename)
	}
	dst := filepath.Join(d.Dir, filepath.FromSlash(Key(d.Prefix, file)))
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(dst, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// Path returns where an avatar would be written.
func (d *DirUploader) Path(file types.EncodedImageBuffer) string {
	return filepath.Join(d.Dir, filepath.FromSlash(Key(d.Prefix, file)))
}
