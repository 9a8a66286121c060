// Package timeline produces the reveal positions of the typing animation,
// both as a stepped sequence for export and as a live character-by-character
// typist for on-screen playback.
package timeline

import (
	"iter"
	"math"
	"time"
)

const (
	MinSpeed     = 10
	MaxSpeed     = 500
	DefaultSpeed = 100

	// BlinkInterval is the caret blink half-period.
	BlinkInterval = 500 * time.Millisecond
)

// Step returns the reveal increment covering length runes in at most
// maxFrames steps: ceil(length/maxFrames), never less than 1.
func Step(length, maxFrames int) int {
	maxFrames = max(1, maxFrames)
	if length <= 0 {
		return 1
	}
	return max(1, (length+maxFrames-1)/maxFrames)
}

// Sequence is the ordered set of reveal positions of one export.
type Sequence struct {
	Length int
	Step   int
}

// NewSequence returns the sequence for a buffer of length runes limited to
// about maxFrames frames.
func NewSequence(length, maxFrames int) Sequence {
	length = max(0, length)
	return Sequence{Length: length, Step: Step(length, maxFrames)}
}

// Len returns the number of positions Positions yields.
func (s Sequence) Len() int {
	step := max(1, s.Step)
	if s.Length <= 0 {
		return 1
	}
	n := s.Length/step + 1
	if s.Length%step != 0 {
		n++
	}
	return n
}

// Positions yields 0, S, 2S, ... up to Length, followed by Length itself
// when the last step does not land on it. Every call starts over.
func (s Sequence) Positions() iter.Seq[int] {
	return func(yield func(int) bool) {
		step := max(1, s.Step)
		length := max(0, s.Length)
		last := -1
		for pos := 0; pos <= length; pos += step {
			if !yield(pos) {
				return
			}
			last = pos
		}
		if last != length {
			yield(length)
		}
	}
}

// Delay returns the live typing period for a speed percentage:
// clamp(200 - 2*speed, 10, 200) milliseconds.
func Delay(speed int) time.Duration {
	speed = min(max(speed, MinSpeed), MaxSpeed)
	ms := min(max(200-2*speed, 10), 200)
	return time.Duration(ms) * time.Millisecond
}

// FrameDelay returns the inter-frame delay of an export at fps frames per
// second: max(10, round(1000/fps)) milliseconds.
func FrameDelay(fps int) time.Duration {
	fps = max(1, fps)
	ms := max(10, int(math.Round(1000/float64(fps))))
	return time.Duration(ms) * time.Millisecond
}

// CaretVisible reports whether the blinking caret is shown after elapsed
// time since playback started.
func CaretVisible(elapsed time.Duration) bool {
	if elapsed < 0 {
		return true
	}
	return (elapsed/BlinkInterval)%2 == 0
}
