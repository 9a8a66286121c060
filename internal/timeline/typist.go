package timeline

import (
	"context"
	"sync"
	"time"
)

// Typist reveals a text one rune at a time on a timer. Each Start bumps a
// generation counter; ticks from an older generation are dropped, so a
// superseded run can never resume.
type Typist struct {
	// OnType receives every revealed prefix. It is called from the typing
	// goroutine and must not call back into the Typist.
	OnType func(prefix string, pos int)

	emitMu sync.Mutex

	mu        sync.Mutex
	gen       uint64
	runes     []rune
	pos       int
	speed     int
	cancel    context.CancelFunc
	suspended int
	closed    bool

	wg sync.WaitGroup
}

// NewTypist returns a Typist reporting to onType.
func NewTypist(onType func(prefix string, pos int)) *Typist {
	return &Typist{OnType: onType, speed: DefaultSpeed}
}

// Start replays text from position 0 at speed percent, cancelling any run
// in progress. The returned channel is closed when this run has typed the
// whole text or has been superseded or stopped.
func (t *Typist) Start(text string, speed int) <-chan struct{} {
	done := make(chan struct{})

	t.emitMu.Lock()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.emitMu.Unlock()
		close(done)
		return done
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.runes = []rune(text)
	t.pos = 0
	t.speed = speed
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	prefix, pos, ok := t.snapshotLocked(gen)
	t.wg.Add(1)
	t.mu.Unlock()

	if ok && t.OnType != nil {
		t.OnType(prefix, pos)
	}
	t.emitMu.Unlock()

	go t.run(ctx, gen, done)
	return done
}

func (t *Typist) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer t.wg.Done()
	defer close(done)

	for {
		t.mu.Lock()
		if t.gen != gen || t.pos >= len(t.runes) {
			t.mu.Unlock()
			return
		}
		d := Delay(t.speed)
		t.mu.Unlock()

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !t.tick(gen) {
			return
		}
	}
}

// tick advances the run of generation gen by one rune and reports whether
// the run is still current.
func (t *Typist) tick(gen uint64) bool {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return false
	}
	t.pos++
	prefix, pos, ok := t.snapshotLocked(gen)
	t.mu.Unlock()

	if ok && t.OnType != nil {
		t.OnType(prefix, pos)
	}
	return true
}

// snapshotLocked returns the current prefix and whether it should be
// emitted. Callers hold t.mu.
func (t *Typist) snapshotLocked(gen uint64) (string, int, bool) {
	if t.gen != gen || t.suspended > 0 {
		return "", 0, false
	}
	return string(t.runes[:t.pos]), t.pos, true
}

// SetSpeed changes the speed used for the following ticks.
func (t *Typist) SetSpeed(speed int) {
	t.mu.Lock()
	t.speed = speed
	t.mu.Unlock()
}

// Position returns the current reveal position.
func (t *Typist) Position() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// Running reports whether a run is typing.
func (t *Typist) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil && t.pos < len(t.runes)
}

// Suspend stops OnType notifications until the returned resume function is
// called. Typing keeps advancing; resume reports the current prefix once.
func (t *Typist) Suspend() (resume func()) {
	t.mu.Lock()
	t.suspended++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.emitMu.Lock()
			defer t.emitMu.Unlock()

			t.mu.Lock()
			t.suspended--
			prefix, pos, ok := t.snapshotLocked(t.gen)
			ok = ok && t.cancel != nil
			t.mu.Unlock()

			if ok && t.OnType != nil {
				t.OnType(prefix, pos)
			}
		})
	}
}

// Stop cancels the current run, leaving the position where it was.
func (t *Typist) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Typist) stopLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Close stops the Typist for good and waits for its goroutine to exit.
func (t *Typist) Close() {
	t.mu.Lock()
	t.closed = true
	t.stopLocked()
	t.mu.Unlock()
	t.wg.Wait()
}
