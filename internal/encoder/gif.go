package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/codeanimate/internal/theme"
)

const DefaultGIFWorkers = 2

type GIFOptions struct {
	// Delay is shown between frames; GIF stores it in centiseconds.
	Delay time.Duration
	// Workers bounds concurrent palette quantization.
	Workers int
	// Palette defaults to the theme palette over the default background.
	Palette color.Palette
	// Release, if set, receives every frame once it has been quantized.
	Release func(*image.RGBA)
}

type gifFrame struct {
	img *image.Paletted
}

// GIFEncoder quantizes frames on a bounded worker pool and assembles them
// in append order.
type GIFEncoder struct {
	opts GIFOptions

	cancel context.CancelFunc
	group  *errgroup.Group
	gctx   context.Context

	mu     sync.Mutex
	frames []*gifFrame
	done   bool
}

func NewGIFEncoder(opts GIFOptions) *GIFEncoder {
	if opts.Workers < 1 {
		opts.Workers = DefaultGIFWorkers
	}
	if len(opts.Palette) == 0 {
		opts.Palette = theme.Palette(theme.Background)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	return &GIFEncoder{opts: opts, cancel: cancel, group: g, gctx: gctx}
}

// Add schedules frame for quantization. It blocks while every worker is
// busy.
func (e *GIFEncoder) Add(ctx context.Context, frame *image.RGBA) error {
	if err := ctx.Err(); err != nil {
		e.release(frame)
		return err
	}

	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		e.release(frame)
		return ErrAborted
	}
	out := &gifFrame{}
	e.frames = append(e.frames, out)
	e.mu.Unlock()

	e.group.Go(func() error {
		defer e.release(frame)
		if err := e.gctx.Err(); err != nil {
			return err
		}
		out.img = quantize(frame, e.opts.Palette)
		return nil
	})
	return nil
}

func (e *GIFEncoder) Finalize(ctx context.Context) (*Artifact, error) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return nil, ErrAborted
	}
	e.done = true
	e.mu.Unlock()
	defer e.cancel()

	if err := e.group.Wait(); err != nil {
		return nil, fmt.Errorf("quantize frames: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(e.frames) == 0 {
		return nil, fmt.Errorf("gif: no frames")
	}

	delay := centiseconds(e.opts.Delay)
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range e.frames {
		anim.Image = append(anim.Image, f.img)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("gif encode: %w", err)
	}
	return &Artifact{Data: buf.Bytes(), Format: FormatGIF}, nil
}

func (e *GIFEncoder) Abort() error {
	e.mu.Lock()
	wasDone := e.done
	e.done = true
	e.frames = nil
	e.mu.Unlock()

	e.cancel()
	if !wasDone {
		_ = e.group.Wait()
	}
	return nil
}

func (e *GIFEncoder) release(frame *image.RGBA) {
	if e.opts.Release != nil {
		e.opts.Release(frame)
	}
}

// quantize maps every pixel to its nearest palette entry without
// dithering, so flat areas stay flat across frames.
func quantize(src *image.RGBA, pal color.Palette) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), pal)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func centiseconds(d time.Duration) int {
	return max(1, int(math.Round(float64(d)/float64(10*time.Millisecond))))
}
