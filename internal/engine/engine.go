// Package engine drives exports: it walks the typing timeline, renders one
// frame per reveal position and feeds the frames to an encoder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivlev/codeanimate/internal/encoder"
	"github.com/ivlev/codeanimate/internal/renderer"
	"github.com/ivlev/codeanimate/internal/system"
	"github.com/ivlev/codeanimate/internal/theme"
	"github.com/ivlev/codeanimate/internal/timeline"
)

var ErrExportRunning = errors.New("export already running")

const (
	DefaultGIFFPS      = 12
	DefaultGIFFrames   = 600
	DefaultVideoFPS    = 24
	DefaultVideoFrames = 1200
	DefaultVideoFormat = encoder.FormatMP4

	// maxAutoWorkers caps GIF workers sized from the CPU.
	maxAutoWorkers = 4
)

// Target reports the size of the on-screen preview the export reproduces.
type Target interface {
	Size() (width, height int)
}

type FixedTarget struct {
	Width, Height int
}

func (t FixedTarget) Size() (int, int) { return t.Width, t.Height }

// Suspender pauses live highlighting while an export renders. The
// returned func resumes it. timeline.Typist implements it.
type Suspender interface {
	Suspend() (resume func())
}

// EncoderSpec describes the encoder an export needs.
type EncoderSpec struct {
	Kind       Kind
	FPS        int
	Delay      time.Duration
	Bounds     image.Rectangle
	Background color.RGBA
}

type EncoderFactory func(spec EncoderSpec) (encoder.Encoder, error)

// YieldFunc is called after every frame with the frame interval.
type YieldFunc func(ctx context.Context, d time.Duration) error

type ImageRequest struct {
	Text      string
	Language  string
	FPS       int
	Scale     float64
	MaxFrames int
}

type VideoRequest struct {
	Text      string
	Language  string
	FPS       int
	Scale     float64
	Format    encoder.Format
	MaxFrames int
}

// Pipeline runs at most one export at a time.
type Pipeline struct {
	renderer   *renderer.Renderer
	target     Target
	geometry   renderer.Geometry
	capturer   renderer.Capturer
	useCapture bool
	suspender  Suspender
	reporter   Reporter
	sink       Sink
	yield      YieldFunc
	newGIF     EncoderFactory
	newVideo   EncoderFactory
	transcoder encoder.Transcoder
	ffmpeg     string
	gifWorkers int
	log        zerolog.Logger

	cancelled atomic.Bool

	mu       sync.Mutex
	running  bool
	state    State
	progress float64
	job      Job
}

type Option func(*Pipeline)

// WithGeometry sets the template at scale 1. Width and height are always
// taken from the target.
func WithGeometry(g renderer.Geometry) Option {
	return func(p *Pipeline) { p.geometry = g }
}

// WithCapturer configures the live-capture path. Frames are captured
// only when use is true.
func WithCapturer(c renderer.Capturer, use bool) Option {
	return func(p *Pipeline) {
		p.capturer = c
		p.useCapture = use
	}
}

func WithSuspender(s Suspender) Option {
	return func(p *Pipeline) { p.suspender = s }
}

func WithReporter(r Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

func WithSink(s Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

func WithYield(y YieldFunc) Option {
	return func(p *Pipeline) { p.yield = y }
}

// WithPacing chooses between sleeping one frame interval per frame and
// yielding without delay.
func WithPacing(on bool) Option {
	return func(p *Pipeline) {
		if on {
			p.yield = sleep
		} else {
			p.yield = noDelay
		}
	}
}

func WithGIFEncoderFactory(f EncoderFactory) Option {
	return func(p *Pipeline) { p.newGIF = f }
}

func WithRecorderFactory(f EncoderFactory) Option {
	return func(p *Pipeline) { p.newVideo = f }
}

func WithTranscoder(t encoder.Transcoder) Option {
	return func(p *Pipeline) { p.transcoder = t }
}

func WithFFmpeg(binary string) Option {
	return func(p *Pipeline) { p.ffmpeg = binary }
}

// WithGIFWorkers bounds GIF quantization workers; 0 sizes the pool from
// the physical core count.
func WithGIFWorkers(n int) Option {
	return func(p *Pipeline) { p.gifWorkers = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func New(r *renderer.Renderer, target Target, opts ...Option) *Pipeline {
	w, h := target.Size()
	p := &Pipeline{
		renderer:   r,
		target:     target,
		geometry:   renderer.DefaultGeometry(w, h),
		reporter:   NullReporter{},
		sink:       FileSink{Dir: "."},
		yield:      sleep,
		ffmpeg:     "ffmpeg",
		gifWorkers: encoder.DefaultGIFWorkers,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newGIF == nil {
		p.newGIF = p.defaultGIF
	}
	if p.newVideo == nil {
		p.newVideo = p.defaultRecorder
	}
	return p
}

// ExportImageSequence exports an animated GIF. Zero fields take the GIF
// defaults.
func (p *Pipeline) ExportImageSequence(ctx context.Context, req ImageRequest) (Job, error) {
	return p.run(ctx, exportSpec{
		kind:      KindImageSequence,
		text:      req.Text,
		language:  req.Language,
		fps:       orDefault(req.FPS, DefaultGIFFPS),
		scale:     scaleOrDefault(req.Scale),
		maxFrames: orDefault(req.MaxFrames, DefaultGIFFrames),
		format:    encoder.FormatGIF,
	})
}

// ExportVideo records a video and, unless webm was requested, transcodes
// it to the requested container.
func (p *Pipeline) ExportVideo(ctx context.Context, req VideoRequest) (Job, error) {
	format := req.Format
	if format == "" {
		format = DefaultVideoFormat
	}
	format, err := encoder.ParseFormat(string(format))
	if err != nil {
		return Job{}, err
	}
	if !format.Video() {
		return Job{}, fmt.Errorf("video export to %s: %w", format, encoder.ErrUnsupportedFormat)
	}
	return p.run(ctx, exportSpec{
		kind:      KindVideo,
		text:      req.Text,
		language:  req.Language,
		fps:       orDefault(req.FPS, DefaultVideoFPS),
		scale:     scaleOrDefault(req.Scale),
		maxFrames: orDefault(req.MaxFrames, DefaultVideoFrames),
		format:    format,
	})
}

// Cancel asks the running export to stop at its next frame. It is a
// no-op when nothing runs.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.cancelled.Store(true)
	}
}

func (p *Pipeline) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastJob returns the running job, or the last one to finish.
func (p *Pipeline) LastJob() Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job
}

type exportSpec struct {
	kind      Kind
	text      string
	language  string
	fps       int
	scale     float64
	maxFrames int
	format    encoder.Format
}

func (p *Pipeline) run(ctx context.Context, spec exportSpec) (Job, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return Job{}, ErrExportRunning
	}
	p.running = true
	p.cancelled.Store(false)
	p.progress = 0
	p.state = StateRunning
	job := Job{
		ID:        uuid.NewString(),
		Kind:      spec.kind,
		FPS:       spec.fps,
		Scale:     spec.scale,
		Format:    spec.format,
		MaxFrames: spec.maxFrames,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	p.job = job
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.state = StateIdle
		p.mu.Unlock()
	}()

	log := p.log.With().Str("job", job.ID).Str("kind", string(job.Kind)).Logger()
	p.reporter.StateChanged(job)
	p.reporter.Progress(job, 0)

	if p.suspender != nil {
		resume := p.suspender.Suspend()
		defer resume()
	}

	w, h := p.target.Size()
	g := p.geometry
	g.Width, g.Height = w, h
	g = g.Scaled(spec.scale)

	runes := []rune(spec.text)
	seq := timeline.NewSequence(len(runes), spec.maxFrames)
	total := seq.Len()
	delay := timeline.FrameDelay(spec.fps)

	log.Info().
		Int("frames", total).
		Int("fps", spec.fps).
		Str("format", string(spec.format)).
		Str("size", fmt.Sprintf("%dx%d", g.Width, g.Height)).
		Msg("export started")

	factory := p.newGIF
	if spec.kind == KindVideo {
		factory = p.newVideo
	}
	enc, err := factory(EncoderSpec{
		Kind:       spec.kind,
		FPS:        spec.fps,
		Delay:      delay,
		Bounds:     g.Bounds(),
		Background: g.Background,
	})
	if err != nil {
		return p.fail(log, job, fmt.Errorf("create encoder: %w", err))
	}
	defer enc.Abort()

	capture := p.useCapture && p.capturer != nil
	if p.useCapture && p.capturer == nil {
		log.Warn().Msg("capture requested without a capturer, rendering directly")
	}

	for pos := range seq.Positions() {
		if p.stopRequested(ctx) {
			return p.cancel(log, job, enc)
		}

		frame, err := p.frame(ctx, capture, string(runes[:pos]), spec.language, g)
		if err != nil {
			if p.stopRequested(ctx) {
				return p.cancel(log, job, enc)
			}
			return p.fail(log, job, fmt.Errorf("capture frame %d: %w", job.Frames, err))
		}
		if err := enc.Add(ctx, frame); err != nil {
			if p.stopRequested(ctx) {
				return p.cancel(log, job, enc)
			}
			return p.fail(log, job, fmt.Errorf("encode frame %d: %w", job.Frames, err))
		}
		job.Frames++
		log.Debug().Int("frame", job.Frames).Int("position", pos).Msg("frame added")

		// 1 is reserved for a finalized artifact.
		if job.Frames < total {
			p.setProgress(&job, float64(job.Frames)/float64(total))
		}

		if err := p.yield(ctx, delay); err != nil {
			if p.stopRequested(ctx) {
				return p.cancel(log, job, enc)
			}
			return p.fail(log, job, fmt.Errorf("yield after frame %d: %w", job.Frames, err))
		}
	}

	if p.stopRequested(ctx) {
		return p.cancel(log, job, enc)
	}

	art, err := enc.Finalize(ctx)
	if err != nil {
		if p.stopRequested(ctx) {
			return p.cancel(log, job, enc)
		}
		return p.fail(log, job, fmt.Errorf("finalize %s: %w", job.Kind, err))
	}

	if spec.kind == KindVideo && art.Format != spec.format {
		art, err = p.transcoderFor().Transcode(ctx, art, spec.format)
		if err != nil {
			if p.stopRequested(ctx) {
				return p.cancel(log, job, enc)
			}
			return p.fail(log, job, fmt.Errorf("transcode to %s: %w", spec.format, err))
		}
	}

	if p.sink != nil {
		path, err := p.sink.Save(ctx, art)
		if err != nil {
			if p.stopRequested(ctx) {
				return p.cancel(log, job, enc)
			}
			return p.fail(log, job, fmt.Errorf("save artifact: %w", err))
		}
		job.Path = path
	}
	job.Artifact = art

	p.setProgress(&job, 1)
	job = p.finish(job, StateFinished, nil)
	log.Info().
		Int("frames", job.Frames).
		Int("bytes", len(art.Data)).
		Str("path", job.Path).
		Dur("elapsed", job.Duration()).
		Msg("export finished")
	return job, nil
}

func (p *Pipeline) stopRequested(ctx context.Context) bool {
	return p.cancelled.Load() || ctx.Err() != nil
}

func (p *Pipeline) cancel(log zerolog.Logger, job Job, enc encoder.Encoder) (Job, error) {
	if err := enc.Abort(); err != nil {
		log.Warn().Err(err).Msg("abort encoder")
	}
	p.setProgress(&job, 0)
	job = p.finish(job, StateCancelled, nil)
	log.Info().Int("frames", job.Frames).Msg("export cancelled")
	return job, nil
}

func (p *Pipeline) fail(log zerolog.Logger, job Job, err error) (Job, error) {
	p.setProgress(&job, 0)
	job = p.finish(job, StateFailed, err)
	log.Error().Err(err).Int("frames", job.Frames).Msg("export failed")
	return job, err
}

func (p *Pipeline) finish(job Job, state State, err error) Job {
	job.State = state
	job.Err = err
	job.FinishedAt = time.Now()

	p.mu.Lock()
	p.state = state
	p.job = job
	p.mu.Unlock()

	p.reporter.StateChanged(job)
	return job
}

func (p *Pipeline) setProgress(job *Job, v float64) {
	job.Progress = v

	p.mu.Lock()
	p.progress = v
	p.job.Progress = v
	p.job.Frames = job.Frames
	p.mu.Unlock()

	p.reporter.Progress(*job, v)
}

// frame returns a pooled surface showing text. The encoder releases it.
func (p *Pipeline) frame(ctx context.Context, capture bool, text, language string, g renderer.Geometry) (*image.RGBA, error) {
	dst := system.GetImage(g.Bounds())
	if capture {
		img, err := p.capturer.Capture(ctx, text)
		if err != nil {
			system.PutImage(dst)
			return nil, err
		}
		renderer.Fit(dst, img, g.Background)
		return dst, nil
	}
	p.renderer.Paint(dst, text, language, g)
	return dst, nil
}

func (p *Pipeline) defaultGIF(spec EncoderSpec) (encoder.Encoder, error) {
	workers := p.gifWorkers
	if workers == 0 {
		workers = system.DefaultWorkers(maxAutoWorkers)
	}
	return encoder.NewGIFEncoder(encoder.GIFOptions{
		Delay:   spec.Delay,
		Workers: workers,
		Palette: theme.Palette(spec.Background, renderer.TemplateColors()...),
		Release: system.PutImage,
	}), nil
}

func (p *Pipeline) defaultRecorder(spec EncoderSpec) (encoder.Encoder, error) {
	return encoder.NewRecorder(encoder.RecorderOptions{
		Binary:  p.ffmpeg,
		FPS:     spec.FPS,
		Hold:    encoder.DefaultHold,
		Release: system.PutImage,
	}), nil
}

func (p *Pipeline) transcoderFor() encoder.Transcoder {
	if p.transcoder != nil {
		return p.transcoder
	}
	return &encoder.FFmpegTranscoder{
		Binary:       p.ffmpeg,
		VideoEncoder: system.BestH264Encoder(p.ffmpeg),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func noDelay(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func scaleOrDefault(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}
