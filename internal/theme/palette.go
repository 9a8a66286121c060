package theme

import "image/color"

// coverageLevels is the number of anti-aliasing steps kept per foreground
// color. Glyph edges are blends of a token color over the background, so
// keeping the blend ramp makes quantization close to lossless.
const coverageLevels = 16

// Palette builds a GIF palette of at most 256 entries: bg first, then each
// token color and extra color blended over bg at every coverage level.
func Palette(bg color.RGBA, extra ...color.Color) color.Palette {
	seen := make(map[color.RGBA]bool)
	pal := make(color.Palette, 0, 256)
	add := func(c color.RGBA) {
		if len(pal) == 256 || seen[c] {
			return
		}
		seen[c] = true
		pal = append(pal, c)
	}
	add(bg)

	fgs := TokenColors()
	for _, c := range extra {
		r, g, b, _ := c.RGBA()
		fgs = append(fgs, rgb(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
	}
	for _, fg := range fgs {
		add(fg)
	}
	for level := coverageLevels - 1; level > 0; level-- {
		for _, fg := range fgs {
			add(Blend(bg, fg, float64(level)/coverageLevels))
		}
	}
	return pal
}

// Blend mixes fg over bg with coverage t in [0, 1].
func Blend(bg, fg color.RGBA, t float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	return color.RGBA{R: mix(bg.R, fg.R), G: mix(bg.G, fg.G), B: mix(bg.B, fg.B), A: 0xff}
}
