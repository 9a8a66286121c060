package main

import (
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ivlev/codeanimate/internal/config"
	"github.com/ivlev/codeanimate/internal/encoder"
	"github.com/ivlev/codeanimate/internal/engine"
	"github.com/ivlev/codeanimate/internal/lexer"
	"github.com/ivlev/codeanimate/internal/logging"
	"github.com/ivlev/codeanimate/internal/renderer"
	"github.com/ivlev/codeanimate/internal/system"
	"github.com/ivlev/codeanimate/internal/timeline"
)

var sourceExts = []string{
	".js", ".jsx", ".ts", ".tsx", ".json", ".sh", ".html", ".css",
	".yaml", ".yml", ".py", ".java", ".c", ".h", ".go", ".txt",
}

var (
	configFile string
	language   string
	outDir     string
	logLevel   string
	useCapture bool
	preset     string
	fps        int
	scale      float64
	maxFrames  int
	format     string
	speed      int
	at         int
	frameOut   string
	background string
	force      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "codeanimate",
		Short:         "render typing animations of source code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&language, "lang", "", "grammar id (default: from file name, then config)")
	pf.StringVar(&outDir, "out", "", "output directory")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&useCapture, "capture", false, "capture frames from the preview window")
	pf.StringVar(&preset, "preset", "", "frame size preset: 16:9, 9:16, 4:5")
	pf.Float64Var(&scale, "scale", 0, "export scale factor")
	pf.StringVar(&background, "background", "", "frame background as #rrggbb")

	gifCmd := &cobra.Command{
		Use:   "gif [file]",
		Short: "export an animated GIF",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGIF,
	}
	gifCmd.Flags().IntVar(&fps, "fps", 0, "frames per second (default 12)")
	gifCmd.Flags().IntVar(&maxFrames, "max-frames", 0, "frame budget (default 600)")

	videoCmd := &cobra.Command{
		Use:   "video [file]",
		Short: "export a video",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVideo,
	}
	videoCmd.Flags().StringVar(&format, "format", "", "container: mp4, mov, webm")
	videoCmd.Flags().IntVar(&fps, "fps", 0, "frames per second (default 24)")
	videoCmd.Flags().IntVar(&maxFrames, "max-frames", 0, "frame budget (default 1200)")

	playCmd := &cobra.Command{
		Use:   "play [file]",
		Short: "type the file out in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlay,
	}
	playCmd.Flags().IntVar(&speed, "speed", 0, "typing speed percent, 10-500")

	frameCmd := &cobra.Command{
		Use:   "frame [file]",
		Short: "render a single frame to PNG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFrame,
	}
	frameCmd.Flags().IntVar(&at, "at", -1, "reveal position in characters (default: whole text)")
	frameCmd.Flags().StringVar(&frameOut, "out-file", "frame.png", "PNG output path")

	languagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "list grammar ids",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(strings.Join(lexer.Languages(), "\n"))
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage the config file",
	}
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config (default codeanimate.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "codeanimate.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := writeDefaultConfig(path, force); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("wrote"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	configCmd.AddCommand(initCmd)

	rootCmd.AddCommand(gifCmd, videoCmd, playCmd, frameCmd, languagesCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	text string
	lang string
	path string
}

func setup(cmd *cobra.Command, args []string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.OutputDir = outDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("capture") {
		cfg.Capture = useCapture
	}
	if flags.Changed("scale") {
		cfg.Scale = scale
	}
	if flags.Changed("speed") {
		cfg.Speed = speed
	}
	if flags.Changed("background") {
		cfg.Background = background
	}
	if preset != "" {
		w, h, ok := presetSize(preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
		cfg.Width, cfg.Height = w, h
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(cfg.LogLevel, true)

	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path, err = system.FindLatestFile(cfg.InputDir, sourceExts...)
		if err != nil {
			return nil, fmt.Errorf("%w; pass a file or put one in %s/", err, cfg.InputDir)
		}
		log.Info().Str("file", path).Msg("using newest input")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:  cfg,
		log:  log,
		text: string(data),
		lang: pickLanguage(language, path, cfg.Language),
		path: path,
	}, nil
}

// pickLanguage prefers the flag, then the file name, then the config.
func pickLanguage(flag, path, fallback string) string {
	if flag != "" {
		return flag
	}
	if id := lexer.Detect(path); id != "" {
		return id
	}
	return fallback
}

func presetSize(name string) (int, int, bool) {
	switch name {
	case "16:9":
		return 1280, 720, true
	case "9:16":
		return 720, 1280, true
	case "4:5":
		return 1080, 1350, true
	}
	return 0, 0, false
}

func (a *app) geometry() renderer.Geometry {
	g := renderer.DefaultGeometry(a.cfg.Width, a.cfg.Height)
	g.Chrome = a.cfg.Chrome
	g.Badge = a.cfg.Badge
	g.Background = a.cfg.BackgroundColor()
	return g
}

// writeDefaultConfig saves the default settings to path. An existing file
// is kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, pass --force to overwrite", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return config.Save(path, config.DefaultConfig())
}

func (a *app) pipeline() (*engine.Pipeline, error) {
	r, err := renderer.New()
	if err != nil {
		return nil, err
	}
	g := a.geometry()

	videoEncoder := a.cfg.Video.Encoder
	if videoEncoder == "" {
		videoEncoder = system.BestH264Encoder(a.cfg.Video.FFmpeg)
		if videoEncoder != "libx264" {
			a.log.Info().Str("encoder", videoEncoder).Msg("hardware H.264 encoder detected")
		}
	}

	return engine.New(r, engine.FixedTarget{Width: g.Width, Height: g.Height},
		engine.WithGeometry(g),
		engine.WithCapturer(&renderer.PreviewCapturer{Renderer: r, Language: a.lang, Geometry: g}, a.cfg.Capture),
		engine.WithReporter(&progressPrinter{out: os.Stderr}),
		engine.WithSink(engine.FileSink{Dir: a.cfg.OutputDir}),
		engine.WithPacing(a.cfg.Pacing),
		engine.WithGIFWorkers(a.cfg.GIF.Workers),
		engine.WithFFmpeg(a.cfg.Video.FFmpeg),
		engine.WithTranscoder(&encoder.FFmpegTranscoder{
			Binary:       a.cfg.Video.FFmpeg,
			VideoEncoder: videoEncoder,
			Quality:      a.cfg.Video.Quality,
			Preset:       a.cfg.Video.Preset,
		}),
		engine.WithLogger(a.log),
	), nil
}

// cancelOnSignal turns Ctrl-C into a cooperative cancel of the running
// export. A second signal exits.
func cancelOnSignal(p *engine.Pipeline) func() {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
			p.Cancel()
		case <-done:
			return
		}
		select {
		case <-sig:
			os.Exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

func runGIF(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	stop := cancelOnSignal(p)
	defer stop()

	_, err = p.ExportImageSequence(cmd.Context(), engine.ImageRequest{
		Text:      a.text,
		Language:  a.lang,
		FPS:       orConfig(fps, a.cfg.GIF.FPS),
		Scale:     a.cfg.Scale,
		MaxFrames: orConfig(maxFrames, a.cfg.GIF.MaxFrames),
	})
	return err
}

func runVideo(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args)
	if err != nil {
		return err
	}
	f := format
	if f == "" {
		f = a.cfg.Video.Format
	}
	videoFormat, err := encoder.ParseFormat(f)
	if err != nil {
		return err
	}
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	stop := cancelOnSignal(p)
	defer stop()

	job, err := p.ExportVideo(cmd.Context(), engine.VideoRequest{
		Text:      a.text,
		Language:  a.lang,
		FPS:       orConfig(fps, a.cfg.Video.FPS),
		Scale:     a.cfg.Scale,
		Format:    videoFormat,
		MaxFrames: orConfig(maxFrames, a.cfg.Video.MaxFrames),
	})
	if err != nil {
		return err
	}
	if job.State == engine.StateFinished && job.Path != "" {
		if d, err := system.ProbeDuration(cmd.Context(), ffprobeFor(a.cfg.Video.FFmpeg), job.Path); err == nil {
			a.log.Info().Dur("duration", d).Msg("video written")
		}
	}
	return nil
}

// ffprobeFor finds ffprobe next to the configured ffmpeg binary.
func ffprobeFor(ffmpeg string) string {
	dir, base := filepath.Split(ffmpeg)
	if base == "" || !strings.HasPrefix(base, "ffmpeg") {
		return "ffprobe"
	}
	return filepath.Join(dir, strings.Replace(base, "ffmpeg", "ffprobe", 1))
}

func runPlay(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args)
	if err != nil {
		return err
	}

	pl := newPlayer(os.Stdout)
	typist := timeline.NewTypist(pl.Type)
	defer typist.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(timeline.BlinkInterval)
	defer ticker.Stop()

	start := time.Now()
	done := typist.Start(a.text, a.cfg.Speed)
	if !pl.wait(ctx, done, ticker.C, start) {
		typist.Stop()
	}
	pl.Close()
	fmt.Println()
	return nil
}

func runFrame(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args)
	if err != nil {
		return err
	}
	r, err := renderer.New()
	if err != nil {
		return err
	}

	runes := []rune(a.text)
	pos := len(runes)
	if at >= 0 {
		pos = min(at, len(runes))
	}
	g := a.geometry().Scaled(a.cfg.Scale)
	g.Caret = true
	img := r.Render(string(runes[:pos]), a.lang, g)

	out := frameOut
	if !filepath.IsAbs(out) && cmd.Flags().Changed("out") {
		out = filepath.Join(a.cfg.OutputDir, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.log.Info().Str("path", out).Int("position", pos).Msg("frame written")
	return nil
}

func orConfig(flag, cfg int) int {
	if flag > 0 {
		return flag
	}
	return cfg
}
