package main

import (
	"bytes"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/codeanimate/internal/config"
	"github.com/ivlev/codeanimate/internal/encoder"
	"github.com/ivlev/codeanimate/internal/engine"
)

func TestPresetSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		ok   bool
	}{
		{"16:9", 1280, 720, true},
		{"9:16", 720, 1280, true},
		{"4:5", 1080, 1350, true},
		{"1:1", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := presetSize(tt.name)
		if w != tt.w || h != tt.h || ok != tt.ok {
			t.Errorf("presetSize(%q) = %d, %d, %v", tt.name, w, h, ok)
		}
	}
}

func TestPickLanguage(t *testing.T) {
	tests := []struct {
		flag, path, fallback string
		want                 string
	}{
		{"python", "main.go", "javascript", "python"},
		{"", "main.go", "javascript", "go"},
		{"", "notes.unknownext", "javascript", "javascript"},
	}
	for _, tt := range tests {
		if got := pickLanguage(tt.flag, tt.path, tt.fallback); got != tt.want {
			t.Errorf("pickLanguage(%q, %q) = %q, want %q", tt.flag, tt.path, got, tt.want)
		}
	}
}

func TestFFprobeFor(t *testing.T) {
	tests := map[string]string{
		"ffmpeg":                "ffprobe",
		"/opt/bin/ffmpeg":       "/opt/bin/ffprobe",
		"/usr/local/bin/avconv": "ffprobe",
	}
	for in, want := range tests {
		if got := ffprobeFor(in); got != want {
			t.Errorf("ffprobeFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &progressPrinter{out: &buf}

	job := engine.Job{Kind: engine.KindImageSequence, Frames: 3}
	p.Progress(job, 0.5)
	if !strings.Contains(buf.String(), " 50%") || !strings.Contains(buf.String(), "frame 3") {
		t.Errorf("progress line = %q", buf.String())
	}

	buf.Reset()
	job.State = engine.StateFinished
	job.Path = "output/codeanimate.gif"
	job.Artifact = &encoder.Artifact{Data: make([]byte, 2048), Format: encoder.FormatGIF}
	p.StateChanged(job)
	if !strings.Contains(buf.String(), "output/codeanimate.gif") || !strings.Contains(buf.String(), "2.0 kB") {
		t.Errorf("finish line = %q", buf.String())
	}

	buf.Reset()
	job.State = engine.StateFailed
	job.Err = errors.New("encode frame 4: broken pipe")
	p.StateChanged(job)
	if !strings.Contains(buf.String(), "broken pipe") {
		t.Errorf("failure line = %q", buf.String())
	}
}

func TestBar(t *testing.T) {
	for _, v := range []float64{-1, 0, 0.33, 1, 2} {
		if n := strings.Count(bar(v), "█") + strings.Count(bar(v), "░"); n != barWidth {
			t.Errorf("bar(%v) has %d cells, want %d", v, n, barWidth)
		}
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "codeanimate.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GIF.FPS != config.DefaultGIFFPS || cfg.Video.Format != config.DefaultFormat {
		t.Errorf("written config is not the default: %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("speed: 50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error for an existing file without force")
	}
	if data, _ := os.ReadFile(path); string(data) != "speed: 50\n" {
		t.Errorf("existing file was overwritten: %q", data)
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Fatalf("forced write failed: %v", err)
	}
	if cfg, err := config.Load(path); err != nil || cfg.Speed != config.DefaultSpeed {
		t.Errorf("forced write did not replace the file: %+v, %v", cfg, err)
	}
}

func TestGeometryBackground(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Background = "#fff"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	a := &app{cfg: cfg}
	if got := a.geometry().Background; got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("geometry background = %v, want white", got)
	}
}
