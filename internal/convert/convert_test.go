// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// fakeConverter implements Converter for testing. It returns canned Markdown
// or an error, depending on configuration.
type fakeConverter struct {
	output string
	err    error
	calls  []string
}

func (f *fakeConverter) Convert(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// selectiveConverter fails for the listed base names and succeeds otherwise.
type selectiveConverter struct {
	failing map[string]error
}

func (s *selectiveConverter) Convert(_ context.Context, path string) (string, error) {
	if err, ok := s.failing[filepath.Base(path)]; ok {
		return "", err
	}
	return "# " + filepath.Base(path), nil
}

// writeFiles creates each relative path under dir with placeholder content.
func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("doc"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeFiles(t, in, "a.pdf", "b.pdf", "c.pdf")

	rec := &progress.Recorder{}
	d := &Driver{
		Converter: &selectiveConverter{failing: map[string]error{"b.pdf": errors.New("bad pdf")}},
		Reporter:  rec,
	}

	summary, err := d.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Successful != 2 || summary.Failed != 1 || summary.Total != 3 {
		t.Errorf("summary = %d/%d/%d, want 2/1/3", summary.Successful, summary.Failed, summary.Total)
	}
	if len(summary.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(summary.Results))
	}
	third := summary.Results[2]
	if !third.Success || filepath.Base(third.Input) != "c.pdf" {
		t.Errorf("third result = %+v, want successful c.pdf", third)
	}
	second := summary.Results[1]
	if second.Success || second.Output != "" || second.Err != "bad pdf" {
		t.Errorf("second result = %+v, want failure with empty output", second)
	}

	if _, ok := rec.Summary(); !ok {
		t.Error("summary record was not emitted")
	}
	var errEv *types.ProgressEvent
	for _, ev := range rec.Events() {
		if ev.Status == types.StatusError {
			ev := ev
			errEv = &ev
		}
	}
	if errEv == nil || errEv.Error != "bad pdf" || errEv.Message != "bad pdf" {
		t.Errorf("error event = %+v, want message and error %q", errEv, "bad pdf")
	}
	if errEv != nil && (errEv.File != filepath.Join(in, "b.pdf") || errEv.Progress != 2 || errEv.Total != 3) {
		t.Errorf("error event = %+v, want file b.pdf at progress 2 of 3", errEv)
	}
}

// blockingConverter succeeds but first creates a directory where the output
// for the named file will be written, so the write fails.
type blockingConverter struct {
	block string
}

func (b *blockingConverter) Convert(_ context.Context, path string) (string, error) {
	if filepath.Base(path) == "a.pdf" {
		if err := os.MkdirAll(b.block, 0o755); err != nil {
			return "", err
		}
	}
	return "# " + filepath.Base(path), nil
}

func TestRun_WriteFailureIsIsolated(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFiles(t, in, "a.pdf", "b.pdf")

	rec := &progress.Recorder{}
	d := &Driver{
		Converter: &blockingConverter{block: filepath.Join(out, "a.md")},
		Reporter:  rec,
	}

	summary, err := d.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Successful != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d ok / %d failed, want 1/1", summary.Successful, summary.Failed)
	}

	first := summary.Results[0]
	if first.Success || first.Output != "" || !strings.Contains(first.Err, "writing") {
		t.Errorf("first result = %+v, want write failure with empty output", first)
	}
	second := summary.Results[1]
	if !second.Success || second.Output != filepath.Join(out, "b.md") {
		t.Errorf("second result = %+v, want b.md written", second)
	}

	if got := rec.Count(types.StatusError); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
	if got := rec.Count(types.StatusConverted); got != 1 {
		t.Errorf("converted events = %d, want 1", got)
	}
}

func TestRun_EventCountsAndIndices(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, "a.pdf", "b.docx", "sub/c.pptx", "sub/d.xlsx")

	rec := &progress.Recorder{}
	d := &Driver{
		Converter: &selectiveConverter{failing: map[string]error{"c.pptx": errors.New("boom")}},
		Reporter:  rec,
	}

	summary, err := d.Run(context.Background(), []string{in}, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	const n = 4
	if got := rec.Count(types.StatusConverting); got != n {
		t.Errorf("converting events = %d, want %d", got, n)
	}
	terminal := rec.Count(types.StatusConverted) + rec.Count(types.StatusError)
	if terminal != summary.Successful+summary.Failed || summary.Total != n {
		t.Errorf("per-file terminal events = %d, summary = %+v", terminal, summary)
	}

	events := rec.Events()
	if events[0].Status != types.StatusStarting {
		t.Errorf("first event = %q, want starting", events[0].Status)
	}
	if events[1].Status != types.StatusReady || events[1].Total != n {
		t.Errorf("second event = %+v, want ready with total %d", events[1], n)
	}

	want := 1
	for _, ev := range events {
		if ev.Status != types.StatusConverting {
			continue
		}
		if ev.Progress != want || ev.Total != n {
			t.Errorf("converting event progress = %d/%d, want %d/%d", ev.Progress, ev.Total, want, n)
		}
		want++
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, "notes.txt", "readme.md")

	rec := &progress.Recorder{}
	conv := &fakeConverter{output: "unused"}
	d := &Driver{Converter: conv, Reporter: rec}

	_, err := d.Run(context.Background(), []string{in, filepath.Join(in, "missing.pdf")}, t.TempDir())
	if !errors.Is(err, ErrNoSupportedFiles) {
		t.Fatalf("err = %v, want ErrNoSupportedFiles", err)
	}
	if _, ok := rec.Summary(); ok {
		t.Error("summary must not be emitted for an empty batch")
	}
	if len(conv.calls) != 0 {
		t.Errorf("converter called %d times, want 0", len(conv.calls))
	}

	events := rec.Events()
	last := events[len(events)-1]
	if last.Status != types.StatusError || last.Error != "No supported files found" {
		t.Errorf("last event = %+v, want fatal error", last)
	}
}

func TestRun_AllFailuresStillSummarize(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, "a.pdf", "b.pdf")

	// The output "directory" is a regular file, so every resolution fails.
	out := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(out, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &progress.Recorder{}
	d := &Driver{Converter: &fakeConverter{output: "# ok"}, Reporter: rec}

	summary, err := d.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 2 || summary.Successful != 0 || summary.Total != 2 {
		t.Errorf("summary = %+v, want 0 succeeded, 2 failed", summary)
	}
	if _, ok := rec.Summary(); !ok {
		t.Error("summary record was not emitted")
	}
}

func TestRun_PreservesStructureAndAvoidsOverwrite(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeFiles(t, in, "x/y.pdf")

	existing := filepath.Join(out, "x", "y.md")
	writeFiles(t, out, "x/y.md")

	d := &Driver{Converter: &fakeConverter{output: "# Y"}}
	summary, err := d.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(out, "x", "y_1.md")
	if got := summary.Results[0].Output; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(data) != "# Y" {
		t.Errorf("content = %q, want %q", data, "# Y")
	}
	if data, _ := os.ReadFile(existing); string(data) != "doc" {
		t.Error("pre-existing output was overwritten")
	}
}

func TestRun_CreatesOutputDir(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, "a.html")
	out := filepath.Join(t.TempDir(), "nested", "out")

	d := &Driver{Converter: &fakeConverter{output: "# A"}}
	if _, err := d.Run(context.Background(), []string{filepath.Join(in, "a.html")}, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "a.md")); err != nil {
		t.Errorf("expected output file: %v", err)
	}
}

func TestRun_Frontmatter(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, "paper.pdf")
	out := t.TempDir()

	d := &Driver{
		Converter:   &fakeConverter{output: "# Paper Title\n\nSome content."},
		Backend:     types.BackendMarkitdown,
		Frontmatter: true,
		now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	if _, err := d.Run(context.Background(), []string{in}, out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "paper.md"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "---\n") {
		t.Error("output should start with YAML frontmatter delimiter")
	}
	for _, want := range []string{
		filepath.Join(in, "paper.pdf"),
		"backend: markitdown",
		"converted_at:",
		"2026-01-02T03:04:05Z",
		"---\n\n# Paper Title",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("output %q should contain %q", content, want)
		}
	}
}

// mapStager replaces inputs found in its map and drops unknown "remote" ones.
type mapStager struct {
	local map[string]string
}

func (m mapStager) Stage(_ context.Context, inputs []string, r progress.Reporter) []string {
	var out []string
	for _, in := range inputs {
		if !strings.HasPrefix(in, "remote:") {
			out = append(out, in)
			continue
		}
		if p, ok := m.local[in]; ok {
			out = append(out, p)
			continue
		}
		r.Emit(types.ProgressEvent{Status: types.StatusError, Message: "Download failed: " + in, File: in})
	}
	return out
}

func TestRun_StagesRemoteInputs(t *testing.T) {
	staged := t.TempDir()
	writeFiles(t, staged, "report.pdf")
	out := t.TempDir()

	rec := &progress.Recorder{}
	d := &Driver{
		Converter: &fakeConverter{output: "# Report"},
		Reporter:  rec,
		Stager:    mapStager{local: map[string]string{"remote:report": filepath.Join(staged, "report.pdf")}},
	}

	summary, err := d.Run(context.Background(), []string{"remote:report", "remote:gone"}, out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Successful != 1 || summary.Total != 1 {
		t.Errorf("summary = %d/%d, want 1/1", summary.Successful, summary.Total)
	}

	events := rec.Events()
	if events[0].Status != types.StatusStarting {
		t.Errorf("first event = %q, want starting before staging", events[0].Status)
	}
	if events[1].Status != types.StatusError || events[1].File != "remote:gone" {
		t.Errorf("second event = %+v, want download error for remote:gone", events[1])
	}
	if _, err := os.Stat(filepath.Join(out, "report.md")); err != nil {
		t.Errorf("staged file not converted: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []types.ConversionResult{
		{Input: "a", Output: "a.md", Success: true},
		{Input: "b"},
		{Input: "c", Output: "c.md", Success: true},
	}
	s := Summarize(results)
	if s.Successful != 2 || s.Failed != 1 || s.Total != 3 {
		t.Errorf("summary = %+v, want 2/1/3", s)
	}
	for i, r := range s.Results {
		if r.Input != results[i].Input {
			t.Errorf("result %d = %q, want %q", i, r.Input, results[i].Input)
		}
	}
	if s := Summarize(nil); s.Total != 0 || s.Results == nil {
		t.Errorf("empty summary = %+v, want zero counts and non-nil results", s)
	}
}
