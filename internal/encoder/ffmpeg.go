package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultHold keeps the finished text on screen at the end of a recording.
const DefaultHold = 300 * time.Millisecond

type RecorderOptions struct {
	// Binary is the ffmpeg executable; "ffmpeg" when empty.
	Binary string
	FPS    int
	Hold   time.Duration
	// Release, if set, receives every frame once it has been written.
	Release func(*image.RGBA)
}

// Recorder streams raw RGBA frames into an ffmpeg process that writes the
// native container (WebM/VP9). The process starts on the first frame,
// which fixes the video size.
type Recorder struct {
	opts RecorderOptions

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output bytes.Buffer
	tmpDir string
	path   string

	last   *image.RGBA
	frames int
	done   bool
}

func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.FPS < 1 {
		opts.FPS = 24
	}
	return &Recorder{opts: opts}
}

func (r *Recorder) Add(ctx context.Context, frame *image.RGBA) error {
	defer r.release(frame)
	if r.done {
		return ErrAborted
	}
	if r.cmd == nil {
		if err := r.start(ctx, frame.Bounds().Dx(), frame.Bounds().Dy()); err != nil {
			return err
		}
	} else if frame.Bounds().Size() != r.last.Bounds().Size() {
		return fmt.Errorf("frame size %v differs from %v", frame.Bounds().Size(), r.last.Bounds().Size())
	}

	if err := writeRawRGBA(r.stdin, frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	draw.Draw(r.last, r.last.Bounds(), frame, frame.Bounds().Min, draw.Src)
	r.frames++
	return nil
}

func (r *Recorder) start(ctx context.Context, w, h int) error {
	tmpDir, err := os.MkdirTemp("", "codeanimate_")
	if err != nil {
		return err
	}
	r.tmpDir = tmpDir
	r.path = filepath.Join(tmpDir, "recording"+FormatWebM.Ext())

	r.cmd = exec.CommandContext(ctx, r.opts.Binary, recordArgs(w, h, r.opts.FPS, r.path)...)
	r.cmd.Stdout = &r.output
	r.cmd.Stderr = &r.output

	r.stdin, err = r.cmd.StdinPipe()
	if err != nil {
		r.cmd = nil
		r.cleanup()
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := r.cmd.Start(); err != nil {
		r.cmd = nil
		r.cleanup()
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	r.last = image.NewRGBA(image.Rect(0, 0, w, h))
	return nil
}

// Finalize repeats the last frame for the hold time, closes the input and
// waits for ffmpeg to write the file.
func (r *Recorder) Finalize(ctx context.Context) (*Artifact, error) {
	if r.done {
		return nil, ErrAborted
	}
	r.done = true
	defer r.cleanup()

	if r.frames == 0 {
		return nil, fmt.Errorf("recorder: no frames")
	}

	hold := int(math.Round(r.opts.Hold.Seconds() * float64(r.opts.FPS)))
	for range hold {
		if err := ctx.Err(); err != nil {
			r.kill()
			return nil, err
		}
		if err := writeRawRGBA(r.stdin, r.last); err != nil {
			r.kill()
			return nil, fmt.Errorf("write hold frame: %w", err)
		}
	}

	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg wait error: %w, output: %s", err, strings.TrimSpace(r.output.String()))
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return &Artifact{Data: data, Format: FormatWebM}, nil
}

func (r *Recorder) Abort() error {
	if r.done {
		r.cleanup()
		return nil
	}
	r.done = true
	r.kill()
	r.cleanup()
	return nil
}

func (r *Recorder) kill() {
	if r.cmd == nil || r.cmd.Process == nil {
		return
	}
	r.stdin.Close()
	_ = r.cmd.Process.Kill()
	_ = r.cmd.Wait()
}

func (r *Recorder) cleanup() {
	if r.tmpDir != "" {
		os.RemoveAll(r.tmpDir)
		r.tmpDir = ""
	}
}

func (r *Recorder) release(frame *image.RGBA) {
	if r.opts.Release != nil {
		r.opts.Release(frame)
	}
}

func recordArgs(w, h, fps int, out string) []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-an",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuv420p",
		"-b:v", "0",
		"-crf", "32",
		"-deadline", "realtime",
		"-row-mt", "1",
		out,
	}
}

// writeRawRGBA writes img as tightly packed RGBA rows.
func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}
