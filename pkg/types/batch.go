// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data structures for mdconvert: the
// progress protocol records, per-file results, batch summaries, and stage
// configuration.
//
// See docs/ARCHITECTURE.md § Progress Protocol, § Data Structures.
package types

// Status is the status field of a progress protocol record.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusReady      Status = "ready"
	StatusWarning    Status = "warning"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusError      Status = "error"

	// StatusComplete only appears on the terminal summary record.
	StatusComplete Status = "complete"
)

// ProgressEvent is one line of the progress protocol. Every field is always
// serialized; absent values are the empty string or zero so consumers never
// need optional-field handling.
type ProgressEvent struct {
	Status   Status `json:"status"`
	Message  string `json:"message"`
	File     string `json:"file"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Error    string `json:"error"`
}

// DiscoveredFile is a concrete, existing file whose extension is in the
// supported set.
type DiscoveredFile struct {
	// Path is the file path as discovered (relative or absolute, as given).
	Path string `json:"path"`

	// Ext is the lowercased extension including the leading dot.
	Ext string `json:"ext"`
}

// ConversionResult is the outcome of converting a single discovered file.
type ConversionResult struct {
	Input   string `json:"input"`
	Output  string `json:"output"`
	Success bool   `json:"success"`

	// Err holds the failure message for history; it is not part of the
	// protocol record.
	Err string `json:"-"`
}

// BatchSummary aggregates all results of a batch. Successful + Failed
// always equals Total.
type BatchSummary struct {
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Total      int                `json:"total"`
	Results    []ConversionResult `json:"results"`
}

// HasFailures reports whether any file failed conversion.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// SummaryRecord is the terminal protocol record emitted once per batch.
type SummaryRecord struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	BatchSummary
}
