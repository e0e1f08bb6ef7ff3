// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// supportedExtensions lists the recognized document extensions (lowercase,
// with leading dot).
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".html": true,
	".htm":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// Supported reports whether path has a recognized extension, ignoring case.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover resolves inputs into the ordered list of files to convert.
//
// Inputs are processed in the order given. A missing path produces an error
// event and an unsupported file a warning event; neither aborts discovery.
// Directories are walked recursively in lexical order and unsupported files
// inside them are skipped silently.
func Discover(inputs []string, r progress.Reporter) []types.DiscoveredFile {
	var files []types.DiscoveredFile
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			r.Emit(types.ProgressEvent{
				Status:  types.StatusError,
				Message: fmt.Sprintf("Path does not exist: %s", in),
				File:    in,
			})
			continue
		}

		switch {
		case info.Mode().IsRegular():
			if !Supported(in) {
				r.Emit(types.ProgressEvent{
					Status:  types.StatusWarning,
					Message: fmt.Sprintf("Unsupported file format: %s", filepath.Ext(in)),
					File:    in,
				})
				continue
			}
			files = append(files, discovered(in))
		case info.IsDir():
			files = append(files, walkDir(in, r)...)
		default:
			r.Emit(types.ProgressEvent{
				Status:  types.StatusWarning,
				Message: fmt.Sprintf("Not a regular file or directory: %s", in),
				File:    in,
			})
		}
	}
	return files
}

// walkDir collects supported regular files below dir. WalkDir visits entries
// in lexical order, which makes directory batches reproducible.
//
// WalkDir does not descend into a symlinked root, so a linked dir is walked
// through its target and the paths are reported under dir as given.
func walkDir(dir string, r progress.Reporter) []types.DiscoveredFile {
	root := dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		root = resolved
	}
	under := func(path string) string {
		if root == dir {
			return path
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return path
		}
		return filepath.Join(dir, rel)
	}

	var files []types.DiscoveredFile
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			path = under(path)
			r.Emit(types.ProgressEvent{
				Status:  types.StatusWarning,
				Message: fmt.Sprintf("Skipping unreadable path: %s", path),
				File:    path,
				Error:   err.Error(),
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}
		files = append(files, discovered(under(path)))
		return nil
	})
	return files
}

// isRegular reports whether the walked entry is a regular file. Symlinks are
// followed so a link to a document counts as that document.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func discovered(path string) types.DiscoveredFile {
	return types.DiscoveredFile{Path: path, Ext: strings.ToLower(filepath.Ext(path))}
}
