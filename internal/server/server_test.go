package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatarcrop/pkg/session"
	"github.com/menta2k/avatarcrop/pkg/upload"
)

func encode(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	if format == "png" {
		require.NoError(t, png.Encode(&buf, img))
	} else {
		require.NoError(t, jpeg.Encode(&buf, img, nil))
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	srv := New(Options{
		Uploader: upload.NewDirUploader(dir, ""),
		Session:  session.DefaultConfig(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, dir
}

func post(t *testing.T, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAvatarAccepted(t *testing.T) {
	srv, ts, dir := newTestServer(t)
	body, ct := multipartBody(t, "me.jpg", encode(t, "jpeg", 500, 500), map[string]string{"user": "alice"})

	resp := post(t, ts.URL+"/avatar", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "alice", out.Filename)
	assert.Equal(t, "image/png", out.MIMEType)
	assert.Equal(t, 450, out.Width)
	assert.Equal(t, 450, out.Height)
	assert.Equal(t, "dialog", out.Host)

	srv.inflight.Wait()
	_, err := os.Stat(filepath.Join(dir, "alice.png"))
	assert.NoError(t, err)
}

func TestAvatarWithLayout(t *testing.T) {
	_, ts, _ := newTestServer(t)
	body, ct := multipartBody(t, "me.jpg", encode(t, "jpeg", 600, 600), map[string]string{
		"user":     "bob",
		"viewport": "400",
		"display":  "300x300",
		"dpr":      "2",
		"crop":     `{"x":0,"y":0,"width":150,"height":150,"unit":"px"}`,
	})

	resp := post(t, ts.URL+"/avatar", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "sheet", out.Host)
	// The sheet floor lifts the 150px crop to 256 display px: 256 * 2 * 2.
	assert.Equal(t, 1024, out.Width)
}

func TestAvatarRejected(t *testing.T) {
	_, ts, _ := newTestServer(t)
	body, ct := multipartBody(t, "tiny.png", encode(t, "png", 200, 200), nil)

	resp := post(t, ts.URL+"/avatar", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "too_small", out.Reason)
	assert.Equal(t, "Please use an image that is at least 256×256 pixels.", out.Message)
}

func TestAvatarBadRequests(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/avatar")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body, ct := multipartBody(t, "me.jpg", encode(t, "jpeg", 300, 300), map[string]string{"display": "wide"})
	resp = post(t, ts.URL+"/avatar", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/avatar", bytes.NewBufferString("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, ct := multipartBody(t, "tiny.png", encode(t, "png", 100, 100), nil)
	post(t, ts.URL+"/avatar", body, ct)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "avatar_sessions_total 1")
	assert.Contains(t, string(text), `avatar_rejections_total{reason="too_small"} 1`)
}
