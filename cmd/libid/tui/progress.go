// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui renders progress for long-running profile/detect runs. On a
// real terminal it drives a bubbletea program with a bubbles/progress bar;
// piped or non-interactive output (CI, `> log.txt`) falls back to plain
// structured logging so scripted runs never see raw ANSI escapes.
package tui

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// advanceMsg reports one completed unit of work to the running program.
type advanceMsg struct {
	item string
	err  error
}

type model struct {
	label    string
	total    int
	done     int
	failed   int
	lastItem string
	bar      progress.Model
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case advanceMsg:
		m.done++
		m.lastItem = msg.item
		if msg.err != nil {
			m.failed++
		}
		if m.done >= m.total {
			return m, tea.Quit
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	header := labelStyle.Render(fmt.Sprintf("%s (%d/%d)", m.label, m.done, m.total))
	status := m.lastItem
	if m.failed > 0 {
		status = errStyle.Render(fmt.Sprintf("%s  [%d failed]", status, m.failed))
	}
	return fmt.Sprintf("%s\n%s  %s\n", header, m.bar.ViewAs(pct), status)
}

// Progress reports incremental completion of a fixed-size batch of work
// (profiling N binaries, matching N candidate libraries). Advance is safe
// to call from multiple goroutines.
type Progress struct {
	mu       sync.Mutex
	label    string
	total    int
	done     int
	failed   int
	program  *tea.Program
	tty      bool
	finished chan struct{}
}

// NewProgress starts a progress display for a batch of `total` items
// labeled by label. When stdout is not a terminal, it falls back to
// logging each Advance call via slog instead of drawing a bar.
func NewProgress(label string, total int) *Progress {
	p := &Progress{label: label, total: total}
	p.tty = isatty.IsTerminal(os.Stdout.Fd()) && total > 0
	if !p.tty {
		return p
	}

	bar := progress.New(progress.WithDefaultGradient())
	p.program = tea.NewProgram(model{label: label, total: total, bar: bar})
	p.finished = make(chan struct{})
	go func() {
		if _, err := p.program.Run(); err != nil {
			slog.Debug("tui: progress program exited with error", slog.String("error", err.Error()))
		}
		close(p.finished)
	}()
	return p
}

// Advance reports that item finished, successfully if err is nil.
func (p *Progress) Advance(item string, err error) {
	p.mu.Lock()
	p.done++
	if err != nil {
		p.failed++
	}
	p.mu.Unlock()

	if p.tty {
		p.program.Send(advanceMsg{item: item, err: err})
		return
	}

	if err != nil {
		slog.Warn(p.label, slog.String("item", item), slog.String("error", err.Error()))
	} else {
		slog.Info(p.label, slog.String("item", item))
	}
}

// Close waits for the terminal program to finish drawing, if one is
// running, and prints a one-line summary.
func (p *Progress) Close() {
	p.mu.Lock()
	done, failed, total := p.done, p.failed, p.total
	p.mu.Unlock()

	if p.tty {
		p.program.Quit()
		<-p.finished
	}
	slog.Info(fmt.Sprintf("%s complete", p.label), slog.Int("done", done), slog.Int("failed", failed), slog.Int("total", total))
}
