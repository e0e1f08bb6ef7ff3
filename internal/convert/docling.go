// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/mdconvert/internal/httputil"
	"github.com/pdiddy/mdconvert/pkg/types"
)

const (
	doclingConvertPath = "/v1/convert/file"
	defaultDoclingURL  = "http://localhost:5001"
	defaultUserAgent   = "mdconvert/0.1"
	defaultHTTPTimeout = 10 * time.Minute

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 << 10
)

// DoclingConverter converts documents by uploading them to a docling-serve
// instance and reading back the Markdown rendition.
type DoclingConverter struct {
	client *http.Client
	cfg    types.DoclingConfig
}

// NewDoclingConverter creates a converter for the docling-serve instance at
// cfg.URL. Zero-valued settings fall back to defaults.
func NewDoclingConverter(cfg types.DoclingConfig) *DoclingConverter {
	if cfg.URL == "" {
		cfg.URL = defaultDoclingURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &DoclingConverter{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// doclingResponse is the subset of the docling-serve response we read.
type doclingResponse struct {
	Document struct {
		Filename  string `json:"filename"`
		MDContent string `json:"md_content"`
	} `json:"document"`
	Status string `json:"status"`
	Errors []struct {
		ComponentType string `json:"component_type"`
		ErrorMessage  string `json:"error_message"`
	} `json:"errors"`
}

// Convert uploads the document at path and returns its Markdown content.
// A "partial_success" status is accepted as long as Markdown came back.
func (d *DoclingConverter) Convert(ctx context.Context, path string) (string, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(d.cfg.URL, "/") + doclingConvertPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building docling request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	if d.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", d.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, d.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("converting %s with docling: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("converting %s with docling: HTTP %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out doclingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding docling response for %s: %w", path, err)
	}

	if out.Status != "success" && out.Status != "partial_success" {
		return "", fmt.Errorf("converting %s with docling: status %q: %w", path, out.Status, doclingErrors(out))
	}
	if strings.TrimSpace(out.Document.MDContent) == "" {
		return "", fmt.Errorf("docling produced empty output for %s", path)
	}
	return out.Document.MDContent, nil
}

func doclingErrors(out doclingResponse) error {
	if len(out.Errors) == 0 {
		return errors.New("no error details")
	}
	msgs := make([]string, 0, len(out.Errors))
	for _, e := range out.Errors {
		msgs = append(msgs, e.ErrorMessage)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// multipartBody encodes the file at path as the "files" field of a
// docling-serve convert request asking for Markdown output.
func multipartBody(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("to_formats", "md"); err != nil {
		return nil, "", fmt.Errorf("encoding request for %s: %w", path, err)
	}
	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("encoding request for %s: %w", path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("encoding request for %s: %w", path, err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
