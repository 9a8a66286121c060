// Package system wraps host facilities: ffmpeg discovery, CPU sizing, file
// lookup and the frame pool.
package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// DefaultWorkers returns the number of physical cores clamped to
// [1, limit]. It returns 1 when the core count cannot be read.
func DefaultWorkers(limit int) int {
	limit = max(1, limit)
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		return 1
	}
	return min(n, limit)
}

// FindLatestFile returns the most recently modified file in dir whose name
// ends with one of exts (case-insensitive).
func FindLatestFile(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no matching files in %s", dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// ProbeDuration returns the duration of a media file using ffprobe.
func ProbeDuration(ctx context.Context, ffprobe, path string) (time.Duration, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w, output: %s", err, strings.TrimSpace(string(out)))
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

var (
	encoderMu    sync.Mutex
	encoderCache = make(map[string]string)
)

// BestH264Encoder returns the preferred H.264 encoder available in the
// given ffmpeg binary: VideoToolbox, then NVENC, then libx264. The probe
// runs once per binary.
func BestH264Encoder(ffmpeg string) string {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	encoderMu.Lock()
	defer encoderMu.Unlock()
	if name, ok := encoderCache[ffmpeg]; ok {
		return name
	}

	name := "libx264"
	out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err == nil {
		name = pickH264Encoder(string(out))
	}
	encoderCache[ffmpeg] = name
	return name
}

// pickH264Encoder selects from the output of `ffmpeg -encoders`.
func pickH264Encoder(listing string) string {
	for _, enc := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, enc) {
			return enc
		}
	}
	return "libx264"
}
