package renderer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/codeanimate/internal/lexer"
	"github.com/ivlev/codeanimate/internal/theme"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func countNonBackground(img *image.RGBA, rect image.Rectangle, bg color.RGBA) int {
	n := 0
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if img.RGBAAt(x, y) != bg {
				n++
			}
		}
	}
	return n
}

func TestRenderDeterministic(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(320, 200)
	text := "function add(a, b) {\n\treturn a + b; // sum\n}\n"

	first := r.Render(text, "javascript", g)
	second := r.Render(text, "javascript", g)

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("two renders of the same input produced different pixels")
	}

	other := newRenderer(t)
	third := other.Render(text, "javascript", g)
	if !bytes.Equal(first.Pix, third.Pix) {
		t.Error("renders from separate renderers produced different pixels")
	}
}

func TestPaintReusedBuffer(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(200, 120)

	dirty := r.Render("lots of text\non several\nlines", "javascript", g)
	r.Paint(dirty, "x", "javascript", g)

	fresh := r.Render("x", "javascript", g)
	if !bytes.Equal(dirty.Pix, fresh.Pix) {
		t.Error("painting over a used buffer differs from painting a fresh one")
	}
}

func TestRenderEmptyText(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(64, 48)

	img := r.Render("", "javascript", g)
	if img.Bounds() != g.Bounds() {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), g.Bounds())
	}
	if n := countNonBackground(img, img.Bounds(), g.Background); n != 0 {
		t.Errorf("empty text painted %d non-background pixels", n)
	}
}

func TestRenderUnknownLanguageFallsBack(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(240, 80)
	text := "let s = 'unterminated"

	got := r.Render(text, "no-such-grammar", g)
	want := r.Render(text, lexer.DefaultLanguage, g)
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("unknown language did not render like the default grammar")
	}
}

func TestRenderNewlineAdvancesLine(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(200, 100)

	img := r.Render("a\nb", "javascript", g)

	line := func(i int) image.Rectangle {
		top := int(g.Padding + float64(i)*g.LineHeight)
		return image.Rect(0, top, g.Width, top+int(g.LineHeight))
	}
	if countNonBackground(img, line(0), g.Background) == 0 {
		t.Error("first line is empty")
	}
	if countNonBackground(img, line(1), g.Background) == 0 {
		t.Error("second line is empty")
	}
	if n := countNonBackground(img, line(2), g.Background); n != 0 {
		t.Errorf("third line has %d painted pixels, want 0", n)
	}

	// x resets to the padding after the newline.
	left := image.Rect(int(g.Padding), line(1).Min.Y, int(g.Padding)+10, line(1).Max.Y)
	if countNonBackground(img, left, g.Background) == 0 {
		t.Error("second line does not start at the left padding")
	}
}

func TestRenderUsesTokenColors(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(200, 90)
	g.FontSize = 32

	img := r.Render("42", "javascript", g)
	found := false
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == theme.NumberColor {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no pixel painted in the number color")
	}
}

func TestGeometryScaled(t *testing.T) {
	g := DefaultGeometry(101, 51).Scaled(2)
	if g.Width != 202 || g.Height != 102 {
		t.Errorf("scaled size = %dx%d, want 202x102", g.Width, g.Height)
	}
	if g.Padding != 48 || g.LineHeight != 44 || g.FontSize != 28 {
		t.Errorf("scaled metrics = %v/%v/%v", g.Padding, g.LineHeight, g.FontSize)
	}

	tiny := DefaultGeometry(1, 1).Scaled(0.1)
	if tiny.Width != 1 || tiny.Height != 1 {
		t.Errorf("tiny size = %dx%d, want 1x1", tiny.Width, tiny.Height)
	}
}

func TestChromeShiftsText(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(200, 120)
	g.Chrome = true

	img := r.Render("", "javascript", g)
	if got := img.RGBAAt(199, 5); got != theme.TitleBar {
		t.Errorf("title bar pixel = %v, want %v", got, theme.TitleBar)
	}
	cx := int(16 + 6)
	if got := img.RGBAAt(cx, 20); got == theme.TitleBar {
		t.Error("first window dot not painted")
	}

	plain := DefaultGeometry(200, 120)
	withText := r.Render("x", "javascript", g)
	bodyTop := int(g.BarHeight + g.Padding)
	above := image.Rect(0, int(g.BarHeight)+1, 200, bodyTop-2)
	if n := countNonBackground(withText, above, plain.Background); n != 0 {
		t.Errorf("text painted %d pixels above the shifted origin", n)
	}
}

func TestCaretAndBadge(t *testing.T) {
	r := newRenderer(t)
	g := DefaultGeometry(240, 240)

	base := r.Render("ab", "javascript", g)

	g.Caret = true
	caret := r.Render("ab", "javascript", g)
	if bytes.Equal(base.Pix, caret.Pix) {
		t.Error("caret did not change the frame")
	}

	g.Caret = false
	g.Badge = "https://example.com/snippet"
	badge := r.Render("ab", "javascript", g)
	corner := image.Rect(g.Width-int(g.Padding)-int(g.BadgeSize), g.Height-int(g.Padding)-int(g.BadgeSize), g.Width, g.Height)
	if countNonBackground(badge, corner, g.Background) == 0 {
		t.Error("badge corner is empty")
	}
}

func TestPreviewCapturerAndFit(t *testing.T) {
	r := newRenderer(t)
	c := &PreviewCapturer{Renderer: r, Language: "javascript", Geometry: DefaultGeometry(400, 300)}

	img, err := c.Capture(context.Background(), "const x = 1")
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
		t.Fatalf("capture bounds = %v", img.Bounds())
	}

	dst := image.NewRGBA(image.Rect(0, 0, 200, 200))
	Fit(dst, img, theme.Background)
	// 4:3 into a square leaves bands above and below.
	if got := dst.RGBAAt(100, 2); got != theme.Background {
		t.Errorf("letterbox pixel = %v, want background", got)
	}
	if got := dst.RGBAAt(100, 30); got == theme.Background {
		t.Error("scaled capture not drawn into the middle band")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Capture(ctx, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestKeepAspectRatio(t *testing.T) {
	tests := []struct {
		dst, src image.Rectangle
		want     image.Rectangle
	}{
		{image.Rect(0, 0, 200, 200), image.Rect(0, 0, 400, 300), image.Rect(0, 25, 200, 175)},
		{image.Rect(0, 0, 200, 200), image.Rect(0, 0, 300, 600), image.Rect(50, 0, 150, 200)},
		{image.Rect(0, 0, 100, 50), image.Rect(0, 0, 200, 100), image.Rect(0, 0, 100, 50)},
		{image.Rect(0, 0, 10, 10), image.Rectangle{}, image.Rect(0, 0, 10, 10)},
	}

	for _, tt := range tests {
		if got := KeepAspectRatio(tt.dst, tt.src); got != tt.want {
			t.Errorf("KeepAspectRatio(%v, %v) = %v, want %v", tt.dst, tt.src, got, tt.want)
		}
	}
}
