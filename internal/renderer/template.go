package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/vector"

	"github.com/ivlev/codeanimate/internal/theme"
)

// kappa places cubic Bézier control points for a quarter circle.
const kappa = 0.5522847498

// drawChrome paints the window title bar with its three dots and returns
// the bar height in pixels.
func drawChrome(dst *image.RGBA, g Geometry) float64 {
	bar := g.BarHeight
	if bar <= 0 {
		return 0
	}
	k := bar / 40
	h := int(math.Round(bar))
	w := dst.Bounds().Dx()
	barRect := image.Rect(0, 0, w, h).Intersect(dst.Bounds())
	if barRect.Empty() {
		return bar
	}

	draw.Draw(dst, barRect, image.NewUniform(theme.TitleBar), image.Point{}, draw.Src)
	border := max(1, int(math.Round(k)))
	draw.Draw(dst, image.Rect(0, h-border, w, h).Intersect(dst.Bounds()), image.NewUniform(theme.Border), image.Point{}, draw.Src)

	radius := 6 * k
	cy := bar / 2
	for i, c := range []color.RGBA{theme.DotRed, theme.DotYellow, theme.DotGreen} {
		cx := 16*k + radius + float64(i)*20*k
		fillCircle(dst, barRect, cx, cy, radius, c)
	}
	return bar
}

// fillCircle rasterizes an anti-aliased disc into the clip rectangle.
func fillCircle(dst *image.RGBA, clip image.Rectangle, cx, cy, r float64, c color.RGBA) {
	z := vector.NewRasterizer(clip.Dx(), clip.Dy())
	z.DrawOp = draw.Over

	x, y, rr := float32(cx-float64(clip.Min.X)), float32(cy-float64(clip.Min.Y)), float32(r)
	kr := float32(kappa) * rr
	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+kr, x+kr, y+rr, x, y+rr)
	z.CubeTo(x-kr, y+rr, x-rr, y+kr, x-rr, y)
	z.CubeTo(x-rr, y-kr, x-kr, y-rr, x, y-rr)
	z.CubeTo(x+kr, y-rr, x+rr, y-kr, x+rr, y)
	z.ClosePath()
	z.Draw(dst, clip, image.NewUniform(c), image.Point{})
}

type badgeKey struct {
	payload string
	size    int
}

// drawBadge paints a QR code of g.Badge in the bottom-right corner.
// Payloads that cannot be encoded are skipped.
func (r *Renderer) drawBadge(dst *image.RGBA, g Geometry) {
	size := int(math.Round(g.BadgeSize))
	if size <= 0 {
		return
	}
	img := r.badge(g.Badge, size)
	if img == nil {
		return
	}
	pad := int(math.Round(g.Padding))
	b := dst.Bounds()
	at := image.Pt(b.Max.X-pad-size, b.Max.Y-pad-size)
	rect := image.Rectangle{Min: at, Max: at.Add(image.Pt(size, size))}
	draw.Draw(dst, rect, img, img.Bounds().Min, draw.Src)
}

func (r *Renderer) badge(payload string, size int) image.Image {
	key := badgeKey{payload: payload, size: size}

	r.mu.Lock()
	defer r.mu.Unlock()
	if img, ok := r.badges[key]; ok {
		return img
	}

	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		r.badges[key] = nil
		return nil
	}
	q.ForegroundColor = theme.PlainColor
	q.BackgroundColor = theme.Background
	img := q.Image(size)
	r.badges[key] = img
	return img
}

// TemplateColors lists the non-token colors the window template can
// paint, for palette construction.
func TemplateColors() []color.Color {
	return []color.Color{theme.TitleBar, theme.Border, theme.DotRed, theme.DotYellow, theme.DotGreen}
}
