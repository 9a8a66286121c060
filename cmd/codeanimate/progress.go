package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ivlev/codeanimate/internal/engine"
)

const barWidth = 30

var (
	barDone = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#61afef"))

	barTodo = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3b4048"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#c678dd"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#98c379"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#d19a66"))

	errStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#e06c75"))
)

// progressPrinter redraws a single progress line for the running export.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *progressPrinter) Progress(job engine.Job, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s %s %3.0f%%  frame %d", labelStyle.Render(string(job.Kind)), bar(v), v*100, job.Frames)
}

func (p *progressPrinter) StateChanged(job engine.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch job.State {
	case engine.StateFinished:
		size := ""
		if job.Artifact != nil {
			size = humanize.Bytes(uint64(len(job.Artifact.Data)))
		}
		fmt.Fprintf(p.out, "\n%s %s (%s, %d frames)\n", okStyle.Render("done"), job.Path, size, job.Frames)
	case engine.StateCancelled:
		fmt.Fprintf(p.out, "\n%s after %d frames\n", warnStyle.Render("cancelled"), job.Frames)
	case engine.StateFailed:
		fmt.Fprintf(p.out, "\n%s %v\n", errStyle.Render("failed"), job.Err)
	}
}

func bar(v float64) string {
	v = min(max(v, 0), 1)
	done := int(v * barWidth)
	return barDone.Render(strings.Repeat("█", done)) + barTodo.Render(strings.Repeat("░", barWidth-done))
}
