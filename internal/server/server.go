package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/menta2k/avatarcrop"
	"github.com/menta2k/avatarcrop/internal/logging"
	"github.com/menta2k/avatarcrop/internal/metrics"
	"github.com/menta2k/avatarcrop/internal/utils"
	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/types"
	"github.com/menta2k/avatarcrop/pkg/validator"
)

const maxMemory = 32 << 20

// Options configures a Server.
type Options struct {
	Port     int
	Timeout  time.Duration
	Pipeline *avatarcrop.Pipeline
	Uploader session.Uploader
	Hinter   session.Hinter
	Session  session.Config
	Logger   *logging.Logger
	Metrics  *metrics.Recorder
}

// Server accepts avatar uploads over HTTP and runs each one through a session.
type Server struct {
	opts     Options
	server   *http.Server
	inflight sync.WaitGroup
}

// Response is returned for an accepted avatar.
type Response struct {
	Filename string         `json:"filename"`
	MIMEType string         `json:"mime_type"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Bytes    int            `json:"bytes"`
	Crop     types.CropRect `json:"crop"`
	Host     string         `json:"host"`
}

// ErrorResponse is returned for rejected or failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func New(opts Options) *Server {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Pipeline == nil {
		opts.Pipeline = avatarcrop.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Server{opts: opts}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/avatar", s.avatarHandler)
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.Handle("/metrics", s.opts.Metrics.Handler())
	return mux
}

// Run starts listening in the background.
func (s *Server) Run() {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.Timeout,
		WriteTimeout: s.opts.Timeout,
	}
	go func() {
		s.opts.Logger.Info("ListenAndServe() on port: %d", s.opts.Port)
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error("ListenAndServe(): %v", err)
		}
	}()
}

// Stop shuts the listener down and waits for background uploads.
func (s *Server) Stop(ctx context.Context) {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.opts.Logger.Error("HTTP server Shutdown: %v", err)
		}
	}
	s.inflight.Wait()
	s.opts.Logger.Info("Application stopped")
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// notes collects the messages a session shows to its user.
type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (s *Server) avatarHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.processHttpError(r, w, fmt.Errorf("invalid http method: %s", r.Method), http.StatusMethodNotAllowed)
		return
	}
	limit := s.opts.Pipeline.Validator().Config().MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		s.processHttpError(r, w, fmt.Errorf("error parsing form: %w", err), http.StatusBadRequest)
		return
	}

	file, err := readSelectedFile(r)
	if err != nil {
		s.processHttpError(r, w, err, http.StatusBadRequest)
		return
	}

	handoff := make(chan types.EncodedImageBuffer, 1)
	uploader := session.UploaderFunc(func(ctx context.Context, buf types.EncodedImageBuffer) error {
		handoff <- buf
		if s.opts.Uploader == nil {
			return nil
		}
		return s.opts.Uploader.UploadAvatar(ctx, buf)
	})

	cfg := s.opts.Session
	if v := r.FormValue("viewport"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil {
			s.processHttpError(r, w, fmt.Errorf("invalid viewport %q", v), http.StatusBadRequest)
			return
		}
		cfg.ViewportWidth = width
	}

	n := &notes{}
	opts := []session.Option{
		session.WithConfig(cfg),
		session.WithNotifier(n),
		session.WithIdentity(session.StaticIdentity(r.FormValue("user"))),
		session.WithLogger(s.opts.Logger),
		session.WithMetrics(s.opts.Metrics),
	}
	if s.opts.Hinter != nil {
		opts = append(opts, session.WithHinter(s.opts.Hinter))
	}
	sess := s.opts.Pipeline.NewSession(uploader, opts...)
	defer func() {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			sess.Wait()
		}()
	}()

	ctx := r.Context()
	if err := sess.Select(ctx, file); err != nil {
		s.processRejection(r, w, err)
		return
	}
	if err := applyLayout(sess, r); err != nil {
		sess.Reset()
		s.processHttpError(r, w, err, http.StatusBadRequest)
		return
	}
	snap := sess.Snapshot()
	if err := sess.Submit(ctx); err != nil {
		sess.Reset()
		msg := strings.Join(n.msgs, " ")
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Message: msg})
		return
	}

	select {
	case buf := <-handoff:
		s.writeJSON(w, http.StatusOK, Response{
			Filename: buf.Filename,
			MIMEType: buf.MIMEType,
			Width:    buf.Width,
			Height:   buf.Height,
			Bytes:    len(buf.Data),
			Crop:     snap.Crop,
			Host:     snap.Host,
		})
	case <-ctx.Done():
		s.processHttpError(r, w, ctx.Err(), http.StatusServiceUnavailable)
	}
}

func readSelectedFile(r *http.Request) (types.SelectedFile, error) {
	f, header, err := r.FormFile("file")
	if err != nil {
		return types.SelectedFile{}, fmt.Errorf("missing file: %w", err)
	}
	defer f.Close()
	return toSelectedFile(f, header)
}

func toSelectedFile(f multipart.File, header *multipart.FileHeader) (types.SelectedFile, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return types.SelectedFile{}, fmt.Errorf("error reading file: %w", err)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = utils.DetectMIMEType(header.Filename, data)
	}
	return types.SelectedFile{
		Name:     header.Filename,
		MIMEType: mimeType,
		Size:     header.Size,
		Data:     data,
	}, nil
}

// applyLayout replays the client's display metrics and final crop.
func applyLayout(sess *session.Session, r *http.Request) error {
	if v := r.FormValue("display"); v != "" {
		width, height, err := utils.ParseDimensions(v)
		if err != nil {
			return err
		}
		dpr := 1.0
		if d := r.FormValue("dpr"); d != "" {
			if dpr, err = strconv.ParseFloat(d, 64); err != nil || dpr <= 0 {
				return fmt.Errorf("invalid dpr %q", d)
			}
		}
		if err := sess.SetDisplay(types.DisplayMetrics{Width: width, Height: height, DevicePixelRatio: dpr}); err != nil {
			return err
		}
	}
	if v := r.FormValue("crop"); v != "" {
		var rect types.CropRect
		if err := json.Unmarshal([]byte(v), &rect); err != nil {
			return fmt.Errorf("invalid crop: %w", err)
		}
		if _, err := sess.SetCrop(rect); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) processRejection(r *http.Request, w http.ResponseWriter, err error) {
	var rej *validator.Rejection
	if !errors.As(err, &rej) {
		s.processHttpError(r, w, err, http.StatusInternalServerError)
		return
	}
	s.opts.Logger.Debug("%s %s rejected: %v", r.Method, r.URL, err)
	s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   err.Error(),
		Reason:  rej.Reason.String(),
		Message: rej.Message(),
	})
}

func (s *Server) processHttpError(r *http.Request, w http.ResponseWriter, err error, status int) {
	s.opts.Logger.Error("%s %s error %v", r.Method, r.URL, err.Error())
	response := ErrorResponse{Error: err.Error()}
	if status >= 500 {
		response.Error = "Internal Server error"
	}
	s.writeJSON(w, status, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Error("encode response: %v", err)
	}
}
