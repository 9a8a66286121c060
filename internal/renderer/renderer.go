// Package renderer paints syntax-highlighted code frames onto RGBA surfaces.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/codeanimate/internal/lexer"
	"github.com/ivlev/codeanimate/internal/theme"
)

const tabSpaces = "    "

// Geometry describes the frame surface and text layout. Metrics are in
// pixels of the output surface.
type Geometry struct {
	Width, Height int

	Padding    float64
	LineHeight float64
	FontSize   float64
	Background color.RGBA

	// Chrome draws the window title bar; text starts below it.
	Chrome    bool
	BarHeight float64

	// Caret draws the typing caret after the last painted glyph.
	Caret bool

	// Badge, if set, is encoded as a QR code in the bottom-right corner.
	Badge     string
	BadgeSize float64
}

// DefaultGeometry returns the layout of the code window at scale 1.
func DefaultGeometry(width, height int) Geometry {
	return Geometry{
		Width:      width,
		Height:     height,
		Padding:    24,
		LineHeight: 22,
		FontSize:   14,
		Background: theme.Background,
		BarHeight:  40,
		BadgeSize:  96,
	}
}

// Scaled multiplies the surface size and every metric by scale. Sizes are
// rounded and never drop below one pixel.
func (g Geometry) Scaled(scale float64) Geometry {
	if scale <= 0 {
		scale = 1
	}
	g.Width = max(1, int(math.Round(float64(g.Width)*scale)))
	g.Height = max(1, int(math.Round(float64(g.Height)*scale)))
	g.Padding *= scale
	g.LineHeight *= scale
	g.FontSize *= scale
	g.BarHeight *= scale
	g.BadgeSize *= scale
	return g
}

// Bounds returns the surface rectangle.
func (g Geometry) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// Renderer paints frames. Font faces are shared between calls, so a
// Renderer must not paint from several goroutines at once.
type Renderer struct {
	font *opentype.Font

	mu     sync.Mutex
	faces  map[float64]font.Face
	badges map[badgeKey]image.Image
}

// New returns a Renderer using the embedded Go Mono font.
func New() (*Renderer, error) {
	return NewWithFont(gomono.TTF)
}

// NewWithFont returns a Renderer using the given TrueType/OpenType font.
func NewWithFont(ttf []byte) (*Renderer, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		font:   f,
		faces:  make(map[float64]font.Face),
		badges: make(map[badgeKey]image.Image),
	}, nil
}

// Render allocates a surface of the geometry's size and paints text on it.
func (r *Renderer) Render(text, language string, g Geometry) *image.RGBA {
	dst := image.NewRGBA(g.Bounds())
	r.Paint(dst, text, language, g)
	return dst
}

// Paint fills dst with the background and draws text highlighted with the
// grammar for language. The whole surface is repainted, so dst may be a
// reused buffer. Paint never fails: text the lexer cannot classify is
// painted in the plain color.
func (r *Renderer) Paint(dst *image.RGBA, text, language string, g Geometry) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(g.Background), image.Point{}, draw.Src)

	top := g.Padding
	if g.Chrome {
		top += drawChrome(dst, g)
	}

	face := r.face(g.FontSize)
	ascent := face.Metrics().Ascent
	d := &font.Drawer{Dst: dst, Face: face}

	left := toFixed(g.Padding)
	lineHeight := toFixed(g.LineHeight)
	x, y := left, toFixed(top)

	for _, tok := range lexer.Tokenize(text, language) {
		src := image.NewUniform(theme.ColorFor(tok.Kind))
		lines := strings.Split(tok.Text, "\n")
		for i, seg := range lines {
			seg = strings.ReplaceAll(seg, "\r", "")
			if seg != "" {
				d.Src = src
				d.Dot = fixed.Point26_6{X: x, Y: y + ascent}
				d.DrawString(strings.ReplaceAll(seg, "\t", tabSpaces))
				x = d.Dot.X
			}
			if i < len(lines)-1 {
				x = left
				y += lineHeight
			}
		}
	}

	if g.Caret {
		drawCaret(dst, x, y, face, g)
	}
	if g.Badge != "" {
		r.drawBadge(dst, g)
	}
}

// face returns a cached font face for size, falling back to the fixed
// bitmap face if the font cannot be instantiated.
func (r *Renderer) face(size float64) font.Face {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		f = basicfont.Face7x13
	}
	r.faces[size] = f
	return f
}

func drawCaret(dst *image.RGBA, x, y fixed.Int26_6, face font.Face, g Geometry) {
	m := face.Metrics()
	w := max(1, int(math.Round(g.FontSize/8)))
	x0 := x.Round()
	y0 := y.Round()
	rect := image.Rect(x0, y0, x0+w, y0+m.Height.Ceil())
	draw.Draw(dst, rect, image.NewUniform(theme.PlainColor), image.Point{}, draw.Src)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
