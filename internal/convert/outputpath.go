// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/mdconvert/pkg/types"
)

const markdownExt = ".md"

// InputBase returns the directory that output paths are made relative to.
// A single directory input is its own base; otherwise the parent of the first
// discovered file is used, and files from other locations collapse to their
// base names under the output directory.
func InputBase(inputs []string, files []types.DiscoveredFile) string {
	if len(inputs) == 1 {
		if info, err := os.Stat(inputs[0]); err == nil && info.IsDir() {
			return inputs[0]
		}
	}
	if len(files) == 0 {
		return "."
	}
	return filepath.Dir(files[0].Path)
}

// ResolveOutputPath maps file to a free Markdown path under outputDir,
// preserving its directory structure relative to inputBase. The parent
// directory of the result is created. Calling it again without writing the
// result returns the same path.
func ResolveOutputPath(file types.DiscoveredFile, inputBase, outputDir string) (string, error) {
	candidate := filepath.Join(outputDir, swapExt(relativeTo(file.Path, inputBase), markdownExt))

	if err := os.MkdirAll(filepath.Dir(candidate), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory for %s: %w", file.Path, err)
	}
	return UniquePath(candidate, exists), nil
}

// UniquePath returns candidate if exists reports it free; otherwise it tries
// stem_1.ext, stem_2.ext, ... and returns the first free one.
func UniquePath(candidate string, exists func(string) bool) string {
	if !exists(candidate) {
		return candidate
	}
	dir := filepath.Dir(candidate)
	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(filepath.Base(candidate), ext)

	for n := 1; ; n++ {
		p := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
		if !exists(p) {
			return p
		}
	}
}

// relativeTo returns path relative to base, or just its base name when path
// does not live under base.
func relativeTo(path, base string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

func swapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
