package engine

import (
	"time"

	"github.com/ivlev/codeanimate/internal/encoder"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled || s == StateFailed
}

type Kind string

const (
	KindImageSequence Kind = "image-sequence"
	KindVideo         Kind = "video"
)

// Job is a snapshot of one export run. The pipeline hands out copies;
// mutating one has no effect on the run.
type Job struct {
	ID        string
	Kind      Kind
	FPS       int
	Scale     float64
	Format    encoder.Format
	MaxFrames int

	State    State
	Progress float64
	Err      error
	// Frames counts frames appended to the encoder.
	Frames int

	Artifact *encoder.Artifact
	Path     string

	StartedAt  time.Time
	FinishedAt time.Time
}

func (j Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Reporter observes a running export. Calls come from the export
// goroutine and must not block for long.
type Reporter interface {
	Progress(job Job, p float64)
	StateChanged(job Job)
}

type NullReporter struct{}

func (NullReporter) Progress(Job, float64) {}
func (NullReporter) StateChanged(Job)      {}
