// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container finds a working docker or podman installation and runs
// conversion images with it, one document per container.
//
//	docs/ARCHITECTURE § Conversion Backends.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// maxStderr bounds how much container stderr is carried into errors.
const maxStderr = 512

// ErrNoRuntime is returned by DetectRuntime when no known runtime works.
var ErrNoRuntime = errors.New("no container runtime available")

// Runtime runs conversion images.
type Runtime interface {
	// Name is the runtime binary, "docker" or "podman".
	Name() string

	// Available reports whether the binary is on PATH and its daemon or
	// service answers.
	Available() bool

	// ImageExists returns an error naming image when it is not present
	// locally. Images are never pulled.
	ImageExists(image string) error

	// Run pipes stdin into a networkless container of image and copies its
	// stdout to stdout. On failure the tail of the container's stderr is
	// part of the error.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// spec describes one supported runtime binary.
type spec struct {
	bin        string
	imageCheck []string
}

var (
	docker = spec{bin: "docker", imageCheck: []string{"image", "inspect"}}
	podman = spec{bin: "podman", imageCheck: []string{"image", "exists"}}

	// detectOrder is the order DetectRuntime probes runtimes in.
	detectOrder = []spec{docker, podman}
)

// executor runs commands; tests replace it.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

type runtime struct {
	spec
	exec executor
}

func newRuntime(s spec, e executor) *runtime {
	return &runtime{spec: s, exec: e}
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := append(append([]string{}, r.imageCheck...), image)
	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	var stderr bytes.Buffer
	if err := r.exec.RunPiped(ctx, r.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := tail(stderr.String(), maxStderr); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", r.bin, image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", r.bin, image, err)
	}
	return nil
}

// tail returns the last n bytes of s with surrounding whitespace removed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}

// DetectRuntime returns the first working runtime, docker before podman.
func DetectRuntime() (Runtime, error) {
	return detectRuntime(osExecutor{})
}

func detectRuntime(e executor) (Runtime, error) {
	names := make([]string, 0, len(detectOrder))
	for _, s := range detectOrder {
		if rt := newRuntime(s, e); rt.Available() {
			return rt, nil
		}
		names = append(names, s.bin)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(names, ", "))
}
