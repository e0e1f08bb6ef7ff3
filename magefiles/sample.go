//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	sampleIn  = "sample/in"
	sampleOut = "sample/out"
)

// sampleDocs are small HTML documents covering nested directories, a
// duplicate stem and an unsupported file.
var sampleDocs = map[string]string{
	"guide.html":              "<h1>Guide</h1><p>Start here.</p>",
	"guide.htm":               "<h1>Guide (legacy)</h1><p>Same stem, different extension.</p>",
	"reference/api.html":      "<h1>API</h1><ul><li>convert</li><li>serve</li></ul>",
	"reference/notes.txt":     "plain text is not a supported format",
	"reference/deep/faq.html": "<h2>FAQ</h2><p>Where do outputs go?</p>",
}

// Sample writes a small document tree to sample/in and converts it into
// sample/out with the freshly built binary. Set MDCONVERT_BACKEND to pick a
// backend.
func Sample() error {
	mg.Deps(Build)

	for name, body := range sampleDocs {
		path := filepath.Join(sampleIn, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	bin := filepath.Join(binDir, binName)
	return sh.RunV(bin, "convert", "-i", sampleIn, "-o", sampleOut, "--no-history")
}
