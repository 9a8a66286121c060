// Package lexer splits source text into colorizable tokens.
package lexer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/ivlev/codeanimate/internal/theme"
)

// DefaultLanguage is used whenever a language id cannot be resolved.
const DefaultLanguage = "javascript"

// Token is a run of text sharing one kind. Concatenating the Text of every
// token returned by Tokenize reproduces the input exactly.
type Token struct {
	Kind string
	Text string
}

// aliases maps the editor's grammar ids to lexer names.
var aliases = map[string]string{
	"markup": "html",
	"clike":  "c",
	"js":     "javascript",
	"ts":     "typescript",
	"sh":     "bash",
	"shell":  "bash",
	"yml":    "yaml",
	"py":     "python",
	"golang": "go",
}

// Languages lists the grammar ids the editor offers.
func Languages() []string {
	ids := []string{
		"javascript", "typescript", "jsx", "tsx", "json", "bash", "markup",
		"css", "yaml", "python", "java", "clike", "go",
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the lexer for language and the id it resolved to. It never
// fails: unknown ids resolve to DefaultLanguage.
func Resolve(language string) (chroma.Lexer, string) {
	id := strings.ToLower(strings.TrimSpace(language))
	name := id
	if a, ok := aliases[id]; ok {
		name = a
	}
	if name != "" {
		if l := lexers.Get(name); l != nil {
			return chroma.Coalesce(l), id
		}
	}
	if l := lexers.Get(DefaultLanguage); l != nil {
		return chroma.Coalesce(l), DefaultLanguage
	}
	return chroma.Coalesce(lexers.Fallback), DefaultLanguage
}

// Detect guesses the language id from a file name. It returns "" when no
// grammar claims the name.
func Detect(filename string) string {
	l := lexers.Match(filepath.Base(filename))
	if l == nil {
		return ""
	}
	return strings.ToLower(l.Config().Name)
}

// Tokenize splits text into tokens using the grammar for language. Text
// the grammar does not recognise is plain. Lexer errors, panics and output
// that diverges from the input turn the remaining suffix into a single
// plain token.
func Tokenize(text, language string) []Token {
	l, _ := Resolve(language)
	return tokenizeWith(l, text)
}

func tokenizeWith(l chroma.Lexer, text string) []Token {
	if text == "" {
		return nil
	}

	var out []Token
	consumed := 0
	// Errors are not reported: whatever was lexed is kept and the suffix is
	// painted plain below.
	_ = tokenise(l, text, func(tt chroma.TokenType, value string) bool {
		rest := text[consumed:]
		switch {
		case value == "":
			return true
		case strings.HasPrefix(rest, value):
		case strings.HasPrefix(value, rest):
			// Lexers that force a trailing newline overshoot the input.
			value = rest
		default:
			return false
		}
		out = appendToken(out, Kind(tt), value)
		consumed += len(value)
		return consumed < len(text)
	})
	if consumed < len(text) {
		out = appendToken(out, theme.Plain, text[consumed:])
	}
	return out
}

// tokenise drives the chroma iterator, converting panics into errors.
func tokenise(l chroma.Lexer, text string, emit func(chroma.TokenType, string) bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lexer panic: %v", r)
		}
	}()
	it, err := l.Tokenise(&chroma.TokeniseOptions{State: "root"}, text)
	if err != nil {
		return err
	}
	for tok := it(); tok != chroma.EOF; tok = it() {
		if !emit(tok.Type, tok.Value) {
			return nil
		}
	}
	return nil
}

func appendToken(toks []Token, kind, text string) []Token {
	if n := len(toks); n > 0 && toks[n-1].Kind == kind {
		toks[n-1].Text += text
		return toks
	}
	return append(toks, Token{Kind: kind, Text: text})
}

// Kind maps a chroma token type onto the colorizer's kind vocabulary.
func Kind(tt chroma.TokenType) string {
	switch {
	case tt == chroma.Error:
		// Characters the grammar does not know.
		return theme.Plain
	case tt.InCategory(chroma.Comment):
		if tt == chroma.CommentPreproc || tt == chroma.CommentPreprocFile {
			return theme.Prolog
		}
		return theme.Comment
	case tt == chroma.KeywordConstant:
		return theme.Boolean
	case tt.InCategory(chroma.Keyword):
		return theme.Keyword
	case tt == chroma.NameFunction, tt == chroma.NameFunctionMagic, tt == chroma.NameDecorator:
		return theme.Function
	case tt == chroma.NameClass, tt == chroma.NameNamespace:
		return theme.ClassName
	case tt == chroma.NameBuiltin, tt == chroma.NameBuiltinPseudo:
		return theme.Builtin
	case tt == chroma.NameTag:
		return theme.Tag
	case tt == chroma.NameAttribute:
		return theme.AttrName
	case tt == chroma.NameConstant:
		return theme.Constant
	case tt == chroma.NameProperty:
		return theme.Property
	case tt == chroma.NameEntity:
		return theme.Entity
	case tt == chroma.NameLabel:
		return theme.Atrule
	case tt >= chroma.NameVariable && tt <= chroma.NameVariableMagic:
		return theme.Variable
	case tt == chroma.LiteralStringChar:
		return theme.Char
	case tt == chroma.LiteralStringRegex:
		return theme.Regex
	case tt.InSubCategory(chroma.LiteralString):
		return theme.String
	case tt.InSubCategory(chroma.LiteralNumber):
		return theme.Number
	case tt == chroma.OperatorWord:
		return theme.Keyword
	case tt.InCategory(chroma.Operator):
		return theme.Operator
	case tt.InCategory(chroma.Punctuation):
		return theme.Punctuation
	case tt == chroma.GenericDeleted:
		return theme.Deleted
	case tt == chroma.GenericInserted:
		return theme.Inserted
	default:
		return theme.Plain
	}
}
