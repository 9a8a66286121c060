// Package encoder turns an ordered stream of frames into a GIF or video
// artifact.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrAborted           = errors.New("encoder aborted")
)

// Encoder consumes frames in order. After Finalize or Abort the encoder
// is spent.
type Encoder interface {
	Add(ctx context.Context, frame *image.RGBA) error
	Finalize(ctx context.Context) (*Artifact, error)
	// Abort discards everything appended so far and releases resources.
	// It is safe to call more than once.
	Abort() error
}

type Format string

const (
	FormatGIF  Format = "gif"
	FormatWebM Format = "webm"
	FormatMP4  Format = "mp4"
	FormatMOV  Format = "mov"
)

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatGIF, FormatWebM, FormatMP4, FormatMOV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) MIME() string {
	switch f {
	case FormatGIF:
		return "image/gif"
	case FormatWebM:
		return "video/webm"
	case FormatMP4:
		return "video/mp4"
	case FormatMOV:
		return "video/quicktime"
	}
	return "application/octet-stream"
}

// Video reports whether f is produced by the video path.
func (f Format) Video() bool {
	return f == FormatWebM || f == FormatMP4 || f == FormatMOV
}

// Artifact is the encoded result of an export.
type Artifact struct {
	Data   []byte
	Format Format
}

// Filename is the suggested file name for the artifact.
func (a *Artifact) Filename() string {
	return "codeanimate" + a.Format.Ext()
}
