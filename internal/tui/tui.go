// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// ErrInterrupted is returned when the user quits before the batch finished.
var ErrInterrupted = errors.New("interrupted before the batch finished")

// Run starts the program, blocks until the user quits, and returns the
// batch result.
func Run(ctx context.Context, fn BatchFunc, opts ...tea.ProgramOption) (types.BatchSummary, error) {
	final, err := tea.NewProgram(New(ctx, fn), opts...).Run()
	if err != nil {
		return types.BatchSummary{}, fmt.Errorf("running tui: %w", err)
	}
	m, ok := final.(Model)
	if !ok || !m.Finished() {
		return types.BatchSummary{}, ErrInterrupted
	}
	return m.Result()
}
