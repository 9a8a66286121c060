// Package theme maps lexical token kinds to display colors and derives the
// GIF palette used to quantize rendered frames.
package theme

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Token kinds understood by ColorFor.
const (
	Comment     = "comment"
	Prolog      = "prolog"
	Doctype     = "doctype"
	CDATA       = "cdata"
	Punctuation = "punctuation"
	Property    = "property"
	Tag         = "tag"
	Constant    = "constant"
	Symbol      = "symbol"
	Deleted     = "deleted"
	Boolean     = "boolean"
	Number      = "number"
	Selector    = "selector"
	AttrName    = "attr-name"
	String      = "string"
	Char        = "char"
	Builtin     = "builtin"
	Inserted    = "inserted"
	Operator    = "operator"
	Entity      = "entity"
	URL         = "url"
	Atrule      = "atrule"
	Keyword     = "keyword"
	ClassName   = "class-name"
	Function    = "function"
	Regex       = "regex"
	Important   = "important"
	Variable    = "variable"
	Plain       = "plain"
)

var (
	CommentColor     = rgb(0x5c, 0x63, 0x70)
	PunctuationColor = rgb(0xab, 0xb2, 0xbf)
	TagColor         = rgb(0xe0, 0x6c, 0x75)
	NumberColor      = rgb(0xd1, 0x9a, 0x66)
	StringColor      = rgb(0x98, 0xc3, 0x79)
	OperatorColor    = rgb(0x56, 0xb6, 0xc2)
	KeywordColor     = rgb(0xc6, 0x78, 0xdd)
	FunctionColor    = rgb(0x61, 0xaf, 0xef)
	PlainColor       = rgb(0xd7, 0xdc, 0xe2)

	// Background is the default frame fill.
	Background = rgb(0x0f, 0x12, 0x20)

	// Window template colors.
	TitleBar  = rgb(0x0e, 0x13, 0x24)
	Border    = rgb(0x22, 0x28, 0x3b)
	DotRed    = rgb(0xff, 0x5f, 0x56)
	DotYellow = rgb(0xff, 0xbd, 0x2e)
	DotGreen  = rgb(0x27, 0xc9, 0x3f)
)

// ColorFor returns the display color of a token kind. Unknown kinds get
// PlainColor.
func ColorFor(kind string) color.RGBA {
	switch kind {
	case Comment, Prolog, Doctype, CDATA:
		return CommentColor
	case Punctuation:
		return PunctuationColor
	case Property, Tag, Constant, Symbol, Deleted:
		return TagColor
	case Boolean, Number:
		return NumberColor
	case Selector, AttrName, String, Char, Builtin, Inserted:
		return StringColor
	case Operator, Entity, URL:
		return OperatorColor
	case Atrule, Keyword, ClassName:
		return KeywordColor
	case Function, Regex, Important, Variable:
		return FunctionColor
	default:
		return PlainColor
	}
}

// TokenColors lists every distinct color ColorFor can return.
func TokenColors() []color.RGBA {
	return []color.RGBA{
		CommentColor, PunctuationColor, TagColor, NumberColor,
		StringColor, OperatorColor, KeywordColor, FunctionColor, PlainColor,
	}
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return rgb(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
