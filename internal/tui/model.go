// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tui renders a conversion batch interactively. The batch runs on a
// background goroutine; its progress events arrive as tea messages.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	reporting "github.com/pdiddy/mdconvert/internal/progress"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// logSize is the number of recent events kept on screen.
const logSize = 8

// BatchFunc runs one batch, reporting through r.
type BatchFunc func(ctx context.Context, r reporting.Reporter) (types.BatchSummary, error)

type eventMsg types.ProgressEvent

type batchDoneMsg struct {
	summary types.BatchSummary
	err     error
}

type keyMap struct {
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

// Model is the Bubble Tea model for one batch.
type Model struct {
	run    BatchFunc
	ctx    context.Context
	cancel context.CancelFunc
	msgs   chan tea.Msg

	keys     keyMap
	spinner  spinner.Model
	progress progress.Model

	events  []types.ProgressEvent
	current string
	done    int
	total   int

	finished bool
	summary  types.BatchSummary
	err      error
	width    int
}

// New returns a model that runs fn when started.
func New(ctx context.Context, fn BatchFunc) Model {
	ctx, cancel := context.WithCancel(ctx)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Lavender)

	return Model{
		run:      fn,
		ctx:      ctx,
		cancel:   cancel,
		msgs:     make(chan tea.Msg, 64),
		keys:     defaultKeys(),
		spinner:  sp,
		progress: progress.New(progress.WithGradient(string(Sapphire), string(Lavender))),
	}
}

// Init starts the batch goroutine and the spinner.
func (m Model) Init() tea.Cmd {
	go m.runBatch()
	return tea.Batch(m.spinner.Tick, waitForMsg(m.msgs))
}

func (m Model) runBatch() {
	summary, err := m.run(m.ctx, &chanReporter{ctx: m.ctx, msgs: m.msgs})
	select {
	case m.msgs <- batchDoneMsg{summary: summary, err: err}:
	case <-m.ctx.Done():
	}
}

func waitForMsg(msgs <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-msgs
	}
}

// Update handles key presses, batch events and the final summary.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-8, 10)

	case eventMsg:
		ev := types.ProgressEvent(msg)
		m.record(ev)
		cmds := []tea.Cmd{waitForMsg(m.msgs)}
		if m.total > 0 {
			cmds = append(cmds, m.progress.SetPercent(float64(m.done)/float64(m.total)))
		}
		return m, tea.Batch(cmds...)

	case batchDoneMsg:
		m.finished = true
		m.summary = msg.summary
		m.err = msg.err
		m.current = ""
		return m, m.progress.SetPercent(1)

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *Model) record(ev types.ProgressEvent) {
	m.events = append(m.events, ev)
	if len(m.events) > logSize {
		m.events = m.events[len(m.events)-logSize:]
	}
	if ev.Total > 0 {
		m.total = ev.Total
	}
	switch ev.Status {
	case types.StatusConverting:
		m.current = filepath.Base(ev.File)
		m.done = ev.Progress - 1
	case types.StatusConverted, types.StatusError:
		if ev.Progress > 0 {
			m.done = ev.Progress
		}
	}
}

// Finished reports whether the batch goroutine has returned.
func (m Model) Finished() bool {
	return m.finished
}

// Result returns the batch summary and error delivered when the batch finished.
func (m Model) Result() (types.BatchSummary, error) {
	return m.summary, m.err
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render("mdconvert"))
	b.WriteString("\n\n")

	switch {
	case m.finished && m.err != nil:
		b.WriteString(Bad.Render("Batch failed: " + m.err.Error()))
	case m.finished:
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(m.renderSummary())
	default:
		status := "Collecting files..."
		if m.current != "" {
			status = fmt.Sprintf("Converting %s (%d/%d)", m.current, m.done+1, m.total)
		}
		b.WriteString(m.spinner.View() + " " + status + "\n")
		b.WriteString(m.progress.View())
	}

	b.WriteString("\n\n")
	b.WriteString(Pane.Render(m.renderLog()))
	b.WriteString("\n")
	b.WriteString(Muted.Render(m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc))
	return App.Render(b.String())
}

func (m Model) renderLog() string {
	if len(m.events) == 0 {
		return Muted.Render("waiting for events")
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		lines = append(lines, styleFor(ev.Status).Render(ev.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSummary() string {
	s := m.summary
	line := fmt.Sprintf("Conversion complete: %d succeeded, %d failed", s.Successful, s.Failed)
	if s.HasFailures() {
		out := []string{Warn.Render(line)}
		for _, r := range s.Results {
			if !r.Success {
				out = append(out, Bad.Render("  x "+r.Input)+Muted.Render("  "+r.Err))
			}
		}
		return strings.Join(out, "\n")
	}
	return Ok.Render(line)
}

func styleFor(status types.Status) lipgloss.Style {
	switch status {
	case types.StatusConverted, types.StatusReady:
		return Ok
	case types.StatusWarning:
		return Warn
	case types.StatusError:
		return Bad
	default:
		return Muted
	}
}

// chanReporter forwards events into the model's message channel.
type chanReporter struct {
	ctx  context.Context
	msgs chan<- tea.Msg
}

func (r *chanReporter) Emit(ev types.ProgressEvent) {
	select {
	case r.msgs <- eventMsg(ev):
	case <-r.ctx.Done():
	}
}

// Complete is a no-op; the summary is delivered by batchDoneMsg.
func (r *chanReporter) Complete(types.BatchSummary) {}
