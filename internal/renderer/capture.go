package renderer

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Capturer rasterizes the live preview after it has been updated to show
// text. It is the slower fallback used when frames are taken from the
// on-screen view instead of being painted directly.
type Capturer interface {
	Capture(ctx context.Context, text string) (image.Image, error)
}

// PreviewCapturer renders the preview window as it appears on screen:
// screen-sized, with the window chrome.
type PreviewCapturer struct {
	Renderer *Renderer
	Language string
	Geometry Geometry
}

func (c *PreviewCapturer) Capture(ctx context.Context, text string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := c.Geometry
	g.Chrome = true
	return c.Renderer.Render(text, c.Language, g), nil
}

// Fit fills dst with bg and scales src into it, keeping the aspect ratio
// and centering the result.
func Fit(dst *image.RGBA, src image.Image, bg color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Scale(dst, KeepAspectRatio(dst.Bounds(), src.Bounds()), src, src.Bounds(), xdraw.Over, nil)
}

// KeepAspectRatio returns the largest rectangle with src's aspect ratio
// centered in dst.
func KeepAspectRatio(dst, src image.Rectangle) image.Rectangle {
	dw, dh := dst.Dx(), dst.Dy()
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 {
		return dst
	}
	w, h := dw, sh*dw/sw
	if h > dh {
		w, h = sw*dh/sh, dh
	}
	w, h = max(1, w), max(1, h)
	offset := image.Pt(dst.Min.X+(dw-w)/2, dst.Min.Y+(dh-h)/2)
	return image.Rectangle{Max: image.Pt(w, h)}.Add(offset)
}
