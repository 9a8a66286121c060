package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ivlev/codeanimate/internal/timeline"
)

const caret = "▌"

// player echoes typed text to a terminal with a blinking caret after the
// last rune.
type player struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
	visible bool
	shown   bool
}

func newPlayer(out io.Writer) *player {
	return &player{out: out, visible: true}
}

// Type prints the runes of prefix past what is already on screen. A prefix
// shorter than the screen starts over on a fresh line.
func (p *player) Type(prefix string, pos int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hideLocked()
	if pos < p.printed {
		fmt.Fprintln(p.out)
		p.printed = 0
	}
	r := []rune(prefix)
	io.WriteString(p.out, string(r[p.printed:pos]))
	p.printed = pos
	if p.visible {
		p.showLocked()
	}
}

// Blink shows or hides the caret for the time since typing started.
func (p *player) Blink(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.visible = timeline.CaretVisible(elapsed)
	if p.visible {
		p.showLocked()
	} else {
		p.hideLocked()
	}
}

// Close removes the caret.
func (p *player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = false
	p.hideLocked()
}

// wait blinks the caret on every tick until done is closed or ctx ends.
// It reports whether typing completed.
func (p *player) wait(ctx context.Context, done <-chan struct{}, ticks <-chan time.Time, start time.Time) bool {
	for {
		select {
		case <-done:
			return true
		case <-ctx.Done():
			return false
		case now := <-ticks:
			p.Blink(now.Sub(start))
		}
	}
}

func (p *player) showLocked() {
	if !p.shown {
		io.WriteString(p.out, caret)
		p.shown = true
	}
}

func (p *player) hideLocked() {
	if p.shown {
		io.WriteString(p.out, "\b \b")
		p.shown = false
	}
}
