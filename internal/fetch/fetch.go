// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads remote (http or https) inputs into a local staging
// directory so they can be discovered and converted like local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdiddy/mdconvert/internal/httputil"
	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

const defaultName = "download"

// contentTypeExt names the extension for downloads whose URL has none.
var contentTypeExt = map[string]string{
	"application/pdf": ".pdf",
	"text/html":       ".html",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",

	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// IsURL reports whether input names an http or https resource.
func IsURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HasURL reports whether any input is a URL.
func HasURL(inputs []string) bool {
	for _, in := range inputs {
		if IsURL(in) {
			return true
		}
	}
	return false
}

// Fetcher downloads URL inputs into Dir.
type Fetcher struct {
	Dir        string
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

// New returns a Fetcher staging into dir with the given HTTP settings.
func New(dir string, cfg types.HTTPConfig, maxRetries int) *Fetcher {
	return &Fetcher{
		Dir:        dir,
		Client:     &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: maxRetries,
	}
}

// Stage returns inputs with every URL replaced by the path of its download.
// Local paths pass through unchanged. A failed download is reported as an
// error event and the input is dropped, like a missing path.
func (f *Fetcher) Stage(ctx context.Context, inputs []string, r progress.Reporter) []string {
	out := make([]string, 0, len(inputs))
	for i, in := range inputs {
		if !IsURL(in) {
			out = append(out, in)
			continue
		}
		local, err := f.download(ctx, in, filepath.Join(f.Dir, strconv.Itoa(i+1)))
		if err != nil {
			r.Emit(types.ProgressEvent{
				Status:  types.StatusError,
				Message: fmt.Sprintf("Download failed: %s", in),
				File:    in,
				Error:   err.Error(),
			})
			continue
		}
		out = append(out, local)
	}
	return out
}

// download fetches rawURL into dir using a temporary file that is renamed
// into place once the body is fully written.
func (f *Fetcher) download(ctx context.Context, rawURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, f.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	destPath := filepath.Join(dir, fileName(rawURL, resp.Header))

	tmpFile, err := os.CreateTemp(dir, ".fetch-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}

// fileName picks the local name for a download: the Content-Disposition
// filename, else the last URL path segment, with an extension derived from
// Content-Type when the name has none.
func fileName(rawURL string, h http.Header) string {
	name := ""
	if _, params, err := mime.ParseMediaType(h.Get("Content-Disposition")); err == nil {
		name = filepath.Base(params["filename"])
	}
	if name == "" || name == "." || name == "/" {
		if u, err := url.Parse(rawURL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = defaultName
	}

	if filepath.Ext(name) == "" {
		if mt, _, err := mime.ParseMediaType(h.Get("Content-Type")); err == nil {
			name += contentTypeExt[strings.ToLower(mt)]
		}
	}
	return name
}
