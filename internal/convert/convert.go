// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements batch document-to-Markdown conversion with
// pluggable backends: file discovery, collision-safe output paths, and a
// sequential driver that isolates per-file failures.
//
//	docs/ARCHITECTURE § Conversion.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// ErrNoSupportedFiles is returned by Run when discovery finds nothing to
// convert. It is the only condition that aborts a batch.
var ErrNoSupportedFiles = errors.New("no supported files found")

// Converter transforms a document into Markdown text. Different backends
// (markitdown, docling) implement this interface.
type Converter interface {
	// Convert reads the document at path and returns the Markdown content.
	Convert(ctx context.Context, path string) (string, error)
}

// Stager turns remote inputs into local paths before discovery. Inputs it
// cannot stage are reported and dropped.
type Stager interface {
	Stage(ctx context.Context, inputs []string, r progress.Reporter) []string
}

// Driver runs conversion batches. Converter must be set; a nil Reporter
// drops all progress records.
type Driver struct {
	Converter Converter
	Reporter  progress.Reporter

	// Stager, when set, localizes remote inputs after the starting event.
	Stager Stager

	// Backend names the converter in frontmatter and history.
	Backend types.ConversionBackend

	// Frontmatter prepends YAML frontmatter to every written file.
	Frontmatter bool

	Logger *slog.Logger

	// now is overridden in tests.
	now func() time.Time
}

// fileOutcome is the result of processing one file: either an output path or
// the error that stopped it.
type fileOutcome struct {
	output string
	err    error
}

// Run converts every supported file found under inputs into outputDir, one
// at a time in discovery order. Per-file failures are reported and recorded
// but never stop the batch. When no supported file is found Run emits an
// error event and returns ErrNoSupportedFiles without a summary.
func (d *Driver) Run(ctx context.Context, inputs []string, outputDir string) (types.BatchSummary, error) {
	log := d.logger()
	r := d.Reporter
	if r == nil {
		r = progress.Discard
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Warn("creating output directory", "dir", outputDir, "error", err)
	}

	r.Emit(types.ProgressEvent{Status: types.StatusStarting, Message: "Collecting files..."})

	if d.Stager != nil {
		inputs = d.Stager.Stage(ctx, inputs, r)
	}
	files := Discover(inputs, r)
	if len(files) == 0 {
		msg := "No supported files found"
		r.Emit(types.ProgressEvent{Status: types.StatusError, Message: msg, Error: msg})
		return types.BatchSummary{}, ErrNoSupportedFiles
	}

	total := len(files)
	r.Emit(types.ProgressEvent{
		Status:  types.StatusReady,
		Message: fmt.Sprintf("Found %d file(s) to convert", total),
		Total:   total,
	})

	base := InputBase(inputs, files)
	log.Debug("batch ready", "files", total, "input_base", base, "output_dir", outputDir)

	results := make([]types.ConversionResult, 0, total)
	for i, f := range files {
		idx := i + 1
		name := filepath.Base(f.Path)
		r.Emit(types.ProgressEvent{
			Status:   types.StatusConverting,
			Message:  fmt.Sprintf("Converting: %s", name),
			File:     f.Path,
			Progress: idx,
			Total:    total,
		})

		out := d.convertOne(ctx, f, base, outputDir)
		if out.err != nil {
			log.Debug("conversion failed", "file", f.Path, "error", out.err)
			r.Emit(types.ProgressEvent{
				Status:   types.StatusError,
				Message:  out.err.Error(),
				File:     f.Path,
				Progress: idx,
				Total:    total,
				Error:    out.err.Error(),
			})
			results = append(results, types.ConversionResult{Input: f.Path, Err: out.err.Error()})
			continue
		}

		r.Emit(types.ProgressEvent{
			Status:   types.StatusConverted,
			Message:  fmt.Sprintf("Converted: %s", name),
			File:     f.Path,
			Progress: idx,
			Total:    total,
		})
		results = append(results, types.ConversionResult{Input: f.Path, Output: out.output, Success: true})
	}

	summary := Summarize(results)
	r.Complete(summary)
	log.Info("batch complete", "successful", summary.Successful, "failed", summary.Failed, "total", summary.Total)
	return summary, nil
}

// convertOne resolves, converts, and writes a single file.
func (d *Driver) convertOne(ctx context.Context, f types.DiscoveredFile, base, outputDir string) fileOutcome {
	outPath, err := ResolveOutputPath(f, base, outputDir)
	if err != nil {
		return fileOutcome{err: err}
	}

	md, err := d.Converter.Convert(ctx, f.Path)
	if err != nil {
		return fileOutcome{err: err}
	}

	if d.Frontmatter {
		md, err = addFrontmatter(f, d.Backend, d.clock(), md)
		if err != nil {
			return fileOutcome{err: err}
		}
	}

	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		return fileOutcome{err: fmt.Errorf("writing %s: %w", outPath, err)}
	}
	return fileOutcome{output: outPath}
}

func (d *Driver) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
