// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"rsc.io/pdf"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// frontmatter is the YAML header prepended to converted Markdown.
type frontmatter struct {
	Source      string `yaml:"source"`
	Backend     string `yaml:"backend,omitempty"`
	Pages       int    `yaml:"pages,omitempty"`
	ConvertedAt string `yaml:"converted_at"`
}

// addFrontmatter prepends YAML frontmatter to the converted Markdown content.
// PDF sources also record their page count when the file can be parsed.
func addFrontmatter(f types.DiscoveredFile, backend types.ConversionBackend, at time.Time, body string) (string, error) {
	fm := frontmatter{
		Source:      f.Path,
		Backend:     string(backend),
		ConvertedAt: at.UTC().Format(time.RFC3339),
	}
	if f.Ext == ".pdf" {
		fm.Pages = pageCount(f.Path)
	}

	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encoding frontmatter for %s: %w", f.Path, err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}

// pageCount returns the number of pages in the PDF at path, or zero when the
// file cannot be parsed.
func pageCount(path string) (n int) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	doc, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	return doc.NumPage()
}
