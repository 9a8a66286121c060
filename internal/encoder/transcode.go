package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Transcoder converts an artifact into another container.
type Transcoder interface {
	Transcode(ctx context.Context, src *Artifact, to Format) (*Artifact, error)
}

// FFmpegTranscoder re-encodes recordings to H.264 in mp4 or mov.
type FFmpegTranscoder struct {
	Binary string
	// VideoEncoder is an ffmpeg H.264 encoder name, see
	// system.BestH264Encoder.
	VideoEncoder string
	// Quality is encoder specific; zero picks a per-encoder default.
	Quality int
	Preset  string
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src *Artifact, to Format) (*Artifact, error) {
	if src.Format == to {
		return src, nil
	}
	if to != FormatMP4 && to != FormatMOV {
		return nil, fmt.Errorf("transcode to %s: %w", to, ErrUnsupportedFormat)
	}

	tmpDir, err := os.MkdirTemp("", "codeanimate_transcode_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input"+src.Format.Ext())
	out := filepath.Join(tmpDir, "output"+to.Ext())
	if err := os.WriteFile(in, src.Data, 0644); err != nil {
		return nil, err
	}

	binary := t.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, t.buildArgs(in, out, to)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg transcode error: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: data, Format: to}, nil
}

func (t *FFmpegTranscoder) buildArgs(in, out string, to Format) []string {
	enc := t.VideoEncoder
	if enc == "" {
		enc = "libx264"
	}
	args := []string{
		"-y",
		"-i", in,
		"-an",
		"-c:v", enc,
		"-pix_fmt", "yuv420p",
	}
	args = append(args, qualityArgs(enc, t.Quality, t.Preset)...)
	if to == FormatMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, out)
}

func qualityArgs(enc string, quality int, preset string) []string {
	switch enc {
	case "h264_videotoolbox":
		// Bitrate in kbit/s: 75 -> 7.5 Mbit/s.
		if quality <= 0 {
			quality = 75
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality <= 0 {
			quality = 28
		}
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		if quality <= 0 {
			quality = 23
		}
		if preset == "" {
			preset = "medium"
		}
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", preset}
	}
}
