package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/chroma/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/ivlev/codeanimate/internal/theme"
)

func join(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []struct {
		lang string
		text string
	}{
		{"javascript", "const a = 1;\nfunction f(x) { return x * 2 }\n"},
		{"javascript", "const s = \"unterminated"},
		{"python", "def f():\n\treturn 'x'  # note"},
		{"json", `{"a": [1, 2, {"b": null}]`},
		{"bash", "echo $HOME | grep -v ${X:-y}"},
		{"markup", "<div class=\"x\">&amp;</div"},
		{"css", "a { color: #fff"},
		{"go", "package main\n\nfunc main() {}"},
		{"no-such-language", "let x = `tpl ${y}`"},
		{"", "\n\n\n"},
		{"javascript", "héllo → wörld ✓"},
		{"javascript", "bad utf8 \xff\xfe end"},
		{"javascript", "a\r\nb\r\n"},
	}

	for _, in := range inputs {
		t.Run(in.lang, func(t *testing.T) {
			toks := Tokenize(in.text, in.lang)
			if got := join(toks); got != in.text {
				t.Errorf("tokens do not reproduce input:\n%s", cmp.Diff(in.text, got))
			}
			for i, tok := range toks {
				if tok.Text == "" {
					t.Errorf("token %d is empty", i)
				}
				if i > 0 && toks[i-1].Kind == tok.Kind {
					t.Errorf("adjacent tokens %d and %d share kind %q", i-1, i, tok.Kind)
				}
			}
		})
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if toks := Tokenize("", "javascript"); len(toks) != 0 {
		t.Errorf("expected no tokens, got %v", toks)
	}
}

func TestTokenizeKinds(t *testing.T) {
	toks := Tokenize("const x = 42; // hi", "javascript")

	kinds := make(map[string]string)
	for _, tok := range toks {
		kinds[strings.TrimSpace(tok.Text)] = tok.Kind
	}

	want := map[string]string{
		"const": theme.Keyword,
		"42":    theme.Number,
		"// hi": theme.Comment,
	}
	for text, kind := range want {
		if kinds[text] != kind {
			t.Errorf("kind of %q = %q, want %q (tokens: %v)", text, kinds[text], kind, toks)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"javascript", "javascript"},
		{"Python", "python"},
		{"markup", "markup"},
		{"clike", "clike"},
		{"", DefaultLanguage},
		{"klingon", DefaultLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, id := Resolve(tt.in)
			if l == nil {
				t.Fatal("Resolve returned nil lexer")
			}
			if id != tt.want {
				t.Errorf("Resolve(%q) id = %q, want %q", tt.in, id, tt.want)
			}
		})
	}
}

func TestUnknownLanguageMatchesDefault(t *testing.T) {
	text := "if (a) { b(\"c\") }"
	got := Tokenize(text, "klingon")
	want := Tokenize(text, DefaultLanguage)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unknown language tokens differ from default (-want +got):\n%s", diff)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		tt   chroma.TokenType
		want string
	}{
		{chroma.CommentSingle, theme.Comment},
		{chroma.CommentPreproc, theme.Prolog},
		{chroma.KeywordConstant, theme.Boolean},
		{chroma.KeywordDeclaration, theme.Keyword},
		{chroma.NameFunction, theme.Function},
		{chroma.NameClass, theme.ClassName},
		{chroma.NameBuiltin, theme.Builtin},
		{chroma.NameTag, theme.Tag},
		{chroma.NameAttribute, theme.AttrName},
		{chroma.NameVariableGlobal, theme.Variable},
		{chroma.Name, theme.Plain},
		{chroma.NameOther, theme.Plain},
		{chroma.LiteralStringDouble, theme.String},
		{chroma.LiteralStringChar, theme.Char},
		{chroma.LiteralStringRegex, theme.Regex},
		{chroma.LiteralNumberFloat, theme.Number},
		{chroma.OperatorWord, theme.Keyword},
		{chroma.Operator, theme.Operator},
		{chroma.Punctuation, theme.Punctuation},
		{chroma.GenericDeleted, theme.Deleted},
		{chroma.Text, theme.Plain},
		{chroma.Error, theme.Plain},
	}

	for _, tt := range tests {
		t.Run(tt.tt.String(), func(t *testing.T) {
			if got := Kind(tt.tt); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.tt, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := map[string]string{
		"main.go":           "go",
		"styles.css":        "css",
		"config.yaml":       "yaml",
		"README.unknownext": "",
	}
	for name, want := range tests {
		if got := Detect(name); got != want {
			t.Errorf("Detect(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestTokenizeUnknownCharacterKeepsHighlighting(t *testing.T) {
	text := "class A { #x = 1; m() { return this.#x } }"
	toks := Tokenize(text, "javascript")
	if got := join(toks); got != text {
		t.Fatalf("tokens do not reproduce input:\n%s", cmp.Diff(text, got))
	}

	kinds := make(map[string]string)
	for _, tok := range toks {
		kinds[strings.TrimSpace(tok.Text)] = tok.Kind
	}
	for _, word := range []string{"return", "this"} {
		if kinds[word] == "" || kinds[word] == theme.Plain {
			t.Errorf("%q after the private field is not highlighted (tokens: %v)", word, toks)
		}
	}
}

// scriptedLexer replays a fixed token stream.
type scriptedLexer struct {
	chroma.Lexer
	tokens []chroma.Token
	err    error
	panics bool
}

func (l *scriptedLexer) Tokenise(*chroma.TokeniseOptions, string) (chroma.Iterator, error) {
	if l.err != nil {
		return nil, l.err
	}
	i := 0
	return func() chroma.Token {
		if i == len(l.tokens) {
			if l.panics {
				panic("state stack underflow")
			}
			return chroma.EOF
		}
		tok := l.tokens[i]
		i++
		return tok
	}, nil
}

func TestTokenizeDegradesToPlain(t *testing.T) {
	const text = "let x = 1"
	prefix := []chroma.Token{
		{Type: chroma.KeywordDeclaration, Value: "let"},
		{Type: chroma.Text, Value: " "},
	}
	want := []Token{
		{Kind: theme.Keyword, Text: "let"},
		{Kind: theme.Plain, Text: " x = 1"},
	}

	tests := []struct {
		name  string
		lexer *scriptedLexer
		want  []Token
	}{
		{
			name:  "tokenise error",
			lexer: &scriptedLexer{err: errors.New("no such state")},
			want:  []Token{{Kind: theme.Plain, Text: text}},
		},
		{
			name:  "panic",
			lexer: &scriptedLexer{tokens: prefix, panics: true},
			want:  want,
		},
		{
			name: "diverging output",
			lexer: &scriptedLexer{tokens: append(prefix[:2:2],
				chroma.Token{Type: chroma.NameOther, Value: "y"},
				chroma.Token{Type: chroma.Operator, Value: " = "},
			)},
			want: want,
		},
		{
			name:  "stream ends early",
			lexer: &scriptedLexer{tokens: prefix},
			want:  want,
		},
		{
			name: "error token",
			lexer: &scriptedLexer{tokens: append(prefix[:2:2],
				chroma.Token{Type: chroma.Error, Value: "x"},
				chroma.Token{Type: chroma.Text, Value: " "},
				chroma.Token{Type: chroma.Operator, Value: "="},
				chroma.Token{Type: chroma.Text, Value: " "},
				chroma.Token{Type: chroma.LiteralNumberInteger, Value: "1"},
			)},
			want: []Token{
				{Kind: theme.Keyword, Text: "let"},
				{Kind: theme.Plain, Text: " x "},
				{Kind: theme.Operator, Text: "="},
				{Kind: theme.Plain, Text: " "},
				{Kind: theme.Number, Text: "1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenizeWith(tt.lexer, text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
