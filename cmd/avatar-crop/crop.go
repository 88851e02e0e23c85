package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/menta2k/avatarcrop/internal/config"
	"github.com/menta2k/avatarcrop/internal/metrics"
	"github.com/menta2k/avatarcrop/internal/utils"
	"github.com/menta2k/avatarcrop/pkg/cropper"
	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/types"
)

// deltaList collects repeated -move and -resize flags in order.
type deltaList struct {
	deltas *[]cropper.Delta
	handle string
}

func (d deltaList) String() string { return "" }

func (d deltaList) Set(v string) error {
	if d.handle != "" {
		v = d.handle + ":" + v
	}
	delta, err := cropper.ParseDelta(v)
	if err != nil {
		return err
	}
	*d.deltas = append(*d.deltas, delta)
	return nil
}

// cropOptions holds the parsed crop flags.
type cropOptions struct {
	in, configPath, logLVL string
	user, display          string
	backend, outDir, hint  string
	viewport               int
	dpr                    float64
	deltas                 []cropper.Delta
}

func parseCropFlags(args []string) (cropOptions, error) {
	var o cropOptions
	cmd := flag.NewFlagSet(cropCmd, flag.ContinueOnError)
	cmd.StringVar(&o.in, "in", "", "input image path (jpg/png/gif/webp)")
	cmd.StringVar(&o.configPath, "config", "", "path to a JSON or YAML config file")
	cmd.StringVar(&o.logLVL, "loglvl", "", "set logging level: 'debug', 'info', 'error'")
	cmd.StringVar(&o.user, "user", "", "username the avatar is saved under")
	cmd.IntVar(&o.viewport, "viewport", 0, "viewport width in px; below 768 the sheet host is used")
	cmd.StringVar(&o.display, "display", "", "rendered preview size as WIDTHxHEIGHT (default: natural size)")
	cmd.Float64Var(&o.dpr, "dpr", 1, "device pixel ratio")
	cmd.Var(deltaList{deltas: &o.deltas, handle: "move"}, "move", "drag the crop by dx,dy display px (repeatable)")
	cmd.Var(deltaList{deltas: &o.deltas}, "resize", "drag a handle, as handle:dx,dy, e.g. se:-20,-20 (repeatable)")
	cmd.StringVar(&o.backend, "upload", "", "upload backend: dir|s3|minio (overrides config)")
	cmd.StringVar(&o.outDir, "out", "", "output directory for the dir backend (overrides config)")
	cmd.StringVar(&o.hint, "hint", "", "crop hint provider: none|saliency|face|ollama|llamacpp (overrides config)")
	if err := cmd.Parse(args); err != nil {
		return o, fmt.Errorf("error parsing arguments: %w", err)
	}
	if o.in == "" {
		return o, fmt.Errorf("usage: avatar-crop crop -in image.jpg [-user name] [-viewport 1280] [-display 400x400] [-dpr 2] [-move dx,dy] [-resize se:dx,dy] [-upload dir|s3|minio] [-out dir] [-hint none|saliency|face|ollama|llamacpp]")
	}
	if o.dpr <= 0 {
		return o, fmt.Errorf("invalid dpr %v", o.dpr)
	}
	return o, nil
}

// apply overrides cfg with the flags that were set.
func (o cropOptions) apply(cfg *config.Config) {
	if o.backend != "" {
		cfg.Upload.Backend = o.backend
	}
	if o.outDir != "" {
		cfg.Upload.Dir = o.outDir
	}
	if o.hint != "" {
		cfg.Hint.Provider = o.hint
	}
	if o.viewport > 0 {
		cfg.Session.ViewportWidth = o.viewport
	}
}

// displayMetrics returns the preview metrics to set, if any.
func (o cropOptions) displayMetrics(meta types.DecodedImageMeta) (types.DisplayMetrics, bool, error) {
	if o.display != "" {
		w, h, err := utils.ParseDimensions(o.display)
		if err != nil {
			return types.DisplayMetrics{}, false, err
		}
		return types.DisplayMetrics{Width: w, Height: h, DevicePixelRatio: o.dpr}, true, nil
	}
	if o.dpr != 1 {
		return types.DisplayMetrics{Width: float64(meta.Width), Height: float64(meta.Height), DevicePixelRatio: o.dpr}, true, nil
	}
	return types.DisplayMetrics{}, false, nil
}

func runCrop(args []string) error {
	o, err := parseCropFlags(args)
	if err != nil {
		return err
	}
	in, user := o.in, o.user
	if !utils.FileExists(in) {
		return fmt.Errorf("input file does not exist: %s", in)
	}

	cfg, err := loadConfig(o.configPath, o.logLVL)
	if err != nil {
		return err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	uploader, err := buildUploader(cfg)
	if err != nil {
		return err
	}
	hinter, err := buildHinter(cfg)
	if err != nil {
		return err
	}
	pipeline := buildPipeline(cfg)

	file, err := pipeline.LoadFile(in)
	if err != nil {
		return err
	}

	var saved *types.EncodedImageBuffer
	var uploadErr error
	record := session.UploaderFunc(func(ctx context.Context, buf types.EncodedImageBuffer) error {
		saved = &buf
		uploadErr = uploader.UploadAvatar(ctx, buf)
		return uploadErr
	})

	opts := []session.Option{
		session.WithConfig(cfg.SessionSettings()),
		session.WithIdentity(session.StaticIdentity(user)),
		session.WithNotifier(session.NotifierFunc(func(msg string) { fmt.Println(msg) })),
		session.WithFileInput(session.FileInputFunc(func() { logger.Debug("file input cleared") })),
		session.WithLogger(logger),
		session.WithMetrics(metrics.New()),
	}
	if hinter != nil {
		opts = append(opts, session.WithHinter(hinter))
	}
	s := pipeline.NewSession(record, opts...)
	defer s.Reset()

	ctx := context.Background()
	if err := s.Select(ctx, file); err != nil {
		return err
	}
	snap := s.Snapshot()
	logger.Info("loaded %s: %dx%d %s, %s, host %s", file.Name, snap.Meta.Width, snap.Meta.Height,
		snap.Meta.Format, utils.FormatFileSize(file.Size), snap.Host)

	m, ok, err := o.displayMetrics(snap.Meta)
	if err != nil {
		return err
	}
	if ok {
		if err := s.SetDisplay(m); err != nil {
			return err
		}
	}

	for _, d := range o.deltas {
		crop, err := s.UpdateCrop(d)
		if err != nil {
			return err
		}
		logger.Debug("%s %+.0f,%+.0f -> %s", d.Handle, d.DX, d.DY, formatCrop(crop))
	}

	if err := s.Submit(ctx); err != nil {
		return err
	}
	s.Wait()
	if uploadErr != nil {
		return uploadErr
	}
	if saved == nil {
		return fmt.Errorf("nothing was uploaded")
	}
	fmt.Printf("saved %s.%s (%dx%d, %s) via %s\n", saved.Filename, utils.ExtensionForMIME(saved.MIMEType),
		saved.Width, saved.Height, utils.FormatFileSize(int64(len(saved.Data))), cfg.Upload.Backend)
	return nil
}

func formatCrop(r types.CropRect) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f,%.2f %.2fx%.2f%s", r.X, r.Y, r.Width, r.Height, r.Unit))
}
