// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdconvert/internal/httputil"
	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/report.pdf", true},
		{"http://localhost:8000/a.docx", true},
		{"ftp://example.com/a.pdf", false},
		{"docs/report.pdf", false},
		{"/abs/path/report.pdf", false},
		{"C:\\docs\\report.pdf", false},
		{"https://", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsURL(tt.in), tt.in)
	}
	assert.True(t, HasURL([]string{"a.pdf", "https://example.com/b.pdf"}))
	assert.False(t, HasURL([]string{"a.pdf", "dir"}))
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header http.Header
		want   string
	}{
		{"url path", "https://x.test/papers/report.pdf", http.Header{}, "report.pdf"},
		{"content disposition wins", "https://x.test/download?id=3",
			http.Header{"Content-Disposition": {`attachment; filename="slides.pptx"`}}, "slides.pptx"},
		{"extension from content type", "https://x.test/doc/42",
			http.Header{"Content-Type": {"application/pdf"}}, "42.pdf"},
		{"content type with params", "https://x.test/page",
			http.Header{"Content-Type": {"text/html; charset=utf-8"}}, "page.html"},
		{"empty path", "https://x.test/", http.Header{"Content-Type": {"image/png"}}, "download.png"},
		{"unknown type keeps bare name", "https://x.test/blob", http.Header{"Content-Type": {"application/octet-stream"}}, "blob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileName(tt.url, tt.header))
		})
	}
}

func TestStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/report.pdf":
			assert.Equal(t, "mdconvert/test", r.Header.Get("User-Agent"))
			w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(dir, types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "mdconvert/test"}, 1)
	rec := &progress.Recorder{}

	got := f.Stage(context.Background(), []string{
		"local/a.docx",
		srv.URL + "/report.pdf",
		srv.URL + "/missing.pdf",
	}, rec)

	require.Len(t, got, 2)
	assert.Equal(t, "local/a.docx", got[0])
	assert.Equal(t, filepath.Join(dir, "2", "report.pdf"), got[1])

	data, err := os.ReadFile(got[1])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.StatusError, events[0].Status)
	assert.Equal(t, "Download failed: "+srv.URL+"/missing.pdf", events[0].Message)
	assert.Contains(t, events[0].Error, "HTTP 404")

	leftovers, err := filepath.Glob(filepath.Join(dir, "*", ".fetch-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are renamed or removed")
}

func TestStage_SameNameDifferentURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := New(t.TempDir(), types.HTTPConfig{Timeout: 5 * time.Second}, 0)
	got := f.Stage(context.Background(), []string{
		srv.URL + "/a/index.html",
		srv.URL + "/b/index.html",
	}, progress.Discard)

	require.Len(t, got, 2)
	assert.NotEqual(t, got[0], got[1])
	assert.Equal(t, "index.html", filepath.Base(got[0]))
	assert.Equal(t, "index.html", filepath.Base(got[1]))
}
