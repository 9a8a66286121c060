// Package config holds the export and playback settings.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/codeanimate/internal/theme"
)

const (
	DefaultWidth       = 960
	DefaultHeight      = 540
	DefaultLanguage    = "javascript"
	DefaultGIFFPS      = 12
	DefaultVideoFPS    = 24
	DefaultGIFFrames   = 600
	DefaultVideoFrames = 1200
	DefaultFormat      = "mp4"
	DefaultSpeed       = 100
	DefaultGIFWorkers  = 2
)

type Config struct {
	Language  string  `yaml:"language"`
	InputDir  string  `yaml:"input_dir"`
	OutputDir string  `yaml:"output_dir"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Scale     float64 `yaml:"scale"`
	Speed     int     `yaml:"speed"`
	// Pacing sleeps one frame interval between frames, like the live
	// preview does. Off renders as fast as possible.
	Pacing bool `yaml:"pacing"`
	// Capture takes frames from the preview window instead of painting
	// them directly.
	Capture bool   `yaml:"capture"`
	Chrome  bool   `yaml:"chrome"`
	Badge   string `yaml:"badge"`
	// Background is the frame fill as "#rrggbb" or "#rgb". Empty keeps the
	// theme background.
	Background string `yaml:"background,omitempty"`

	GIF      GIFConfig   `yaml:"gif"`
	Video    VideoConfig `yaml:"video"`
	LogLevel string      `yaml:"log_level"`
}

type GIFConfig struct {
	FPS       int `yaml:"fps"`
	MaxFrames int `yaml:"max_frames"`
	// Workers bounds palette quantization; 0 sizes it from the CPU.
	Workers int `yaml:"workers"`
}

type VideoConfig struct {
	FPS       int    `yaml:"fps"`
	MaxFrames int    `yaml:"max_frames"`
	Format    string `yaml:"format"`
	FFmpeg    string `yaml:"ffmpeg"`
	// Encoder overrides the detected H.264 encoder.
	Encoder string `yaml:"encoder"`
	Quality int    `yaml:"quality"`
	Preset  string `yaml:"preset"`
}

func DefaultConfig() *Config {
	return &Config{
		Language:  DefaultLanguage,
		InputDir:  "input",
		OutputDir: "output",
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Scale:     1,
		Speed:     DefaultSpeed,
		Pacing:    true,
		GIF: GIFConfig{
			FPS:       DefaultGIFFPS,
			MaxFrames: DefaultGIFFrames,
			Workers:   DefaultGIFWorkers,
		},
		Video: VideoConfig{
			FPS:       DefaultVideoFPS,
			MaxFrames: DefaultVideoFrames,
			Format:    DefaultFormat,
			FFmpeg:    "ffmpeg",
			Preset:    "medium",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv loads .env and .env.local when present and applies the
// CODEANIMATE_* overrides.
func (c *Config) ApplyEnv() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
	c.OutputDir = getEnv("CODEANIMATE_OUTPUT", c.OutputDir)
	c.Language = getEnv("CODEANIMATE_LANGUAGE", c.Language)
	c.Video.FFmpeg = getEnv("CODEANIMATE_FFMPEG", c.Video.FFmpeg)
	c.LogLevel = getEnv("CODEANIMATE_LOG_LEVEL", c.LogLevel)
	c.Background = getEnv("CODEANIMATE_BACKGROUND", c.Background)
	c.GIF.Workers = getEnvInt("CODEANIMATE_WORKERS", c.GIF.Workers)
}

// Validate clamps values into their working ranges.
func (c *Config) Validate() error {
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.Background != "" {
		if _, err := theme.ParseHex(c.Background); err != nil {
			return fmt.Errorf("background: %w", err)
		}
	}
	if c.Scale <= 0 {
		c.Scale = 1
	}
	c.Speed = min(max(c.Speed, 10), 500)
	c.GIF.FPS = max(c.GIF.FPS, 1)
	c.GIF.MaxFrames = max(c.GIF.MaxFrames, 1)
	c.GIF.Workers = max(c.GIF.Workers, 0)
	c.Video.FPS = max(c.Video.FPS, 1)
	c.Video.MaxFrames = max(c.Video.MaxFrames, 1)
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Video.Format == "" {
		c.Video.Format = DefaultFormat
	}
	if c.Video.FFmpeg == "" {
		c.Video.FFmpeg = "ffmpeg"
	}
	return nil
}

// BackgroundColor returns the configured frame fill, or the theme
// background when none is set or it does not parse.
func (c *Config) BackgroundColor() color.RGBA {
	if c.Background == "" {
		return theme.Background
	}
	bg, err := theme.ParseHex(c.Background)
	if err != nil {
		return theme.Background
	}
	return bg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
