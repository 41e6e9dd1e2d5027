// Package pbtext tokenizes textual (.pbtxt) protobuf payloads and hands
// the token stream to a Message Schema for field-by-field consumption.
package pbtext

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer strips a leading UTF-8 BOM (if any) and folds the input to
// NFC, the same composition the teacher's WordPieceTokenizer applies to
// raw vocab/input text before splitting it into tokens.
var normalizer = transform.Chain(runes.Remove(runes.Predicate(isBOM)), norm.NFC)

func isBOM(r rune) bool { return r == '\uFEFF' }

// Normalize strips a leading BOM and normalizes the source to NFC
// before tokenizing, so payloads saved by editors that prepend a BOM
// parse identically to ones that don't.
func Normalize(src []byte) string {
	out, _, err := transform.String(normalizer, string(src))
	if err != nil {
		// Best effort: fall back to the raw source rather than fail a
		// parse over a cosmetic normalization issue.
		return string(src)
	}
	return out
}

// stripComments removes line comments: a '#' through the following
// '\n' inclusive, matching spec §4.7's pre-pass exactly.
func stripComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	inComment := false
	for _, r := range src {
		if r == '#' {
			inComment = true
			continue
		}
		if inComment {
			if r == '\n' {
				inComment = false
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', ':', '"', ';':
		return true
	}
	return false
}

func isBrace(r rune) bool { return r == '{' || r == '}' }

// Tokenize splits source text on whitespace, ':', '"', ';' (all
// discarded) and treats '{'/'}' as standalone tokens, exactly the
// delimiter set in spec §4.7.
func Tokenize(src string) []string {
	src = stripComments(src)
	tokens := make([]string, 0, len(src)/7+1)
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range src {
		switch {
		case isBrace(r):
			flush()
			tokens = append(tokens, string(r))
		case isDelimiter(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// TokenizePayload wraps the top-level input in braces for uniformity
// (spec §4.7: "The top-level input is wrapped in {…} for uniformity"),
// then normalizes and tokenizes it.
func TokenizePayload(src []byte) []string {
	normalized := Normalize(src)
	return Tokenize("{" + normalized + "}")
}

// Cursor walks a token slice one token at a time. It is the TokenCursor
// implementation used by both pbvalue's FieldValue.ReadText and
// pbschema's MessageSchema.ReadText.
type Cursor struct {
	tokens []string
	pos    int
}

// NewCursor creates a cursor positioned at the first token.
func NewCursor(tokens []string) *Cursor {
	return &Cursor{tokens: tokens}
}

// Current returns the token at the cursor without consuming it.
func (c *Cursor) Current() (string, bool) {
	if c.pos >= len(c.tokens) {
		return "", false
	}
	return c.tokens[c.pos], true
}

// Advance consumes the current token.
func (c *Cursor) Advance() {
	if c.pos < len(c.tokens) {
		c.pos++
	}
}

// Next returns the current token and advances past it, the common
// read-then-consume pattern field readers use.
func (c *Cursor) Next() (string, bool) {
	tok, ok := c.Current()
	if ok {
		c.Advance()
	}
	return tok, ok
}
