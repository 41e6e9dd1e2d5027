package pbtext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeSplitsOnDelimiters(t *testing.T) {
	got := Tokenize(`a: "b"; c { d }`)
	require.Equal(t, []string{"a", "b", "c", "{", "d", "}"}, got)
}

func TestTokenizeStripsLineComments(t *testing.T) {
	got := Tokenize("a: 1 # trailing comment\nb: 2")
	require.Equal(t, []string{"a", "1", "b", "2"}, got)
}

func TestTokenizeCommentRunningToEOFHasNoTrailingNewline(t *testing.T) {
	got := Tokenize("a: 1 # no newline after this")
	require.Equal(t, []string{"a", "1"}, got)
}

func TestTokenizeBracesAreStandaloneTokens(t *testing.T) {
	got := Tokenize("{{}}")
	require.Equal(t, []string{"{", "{", "}", "}"}, got)
}

func TestTokenizePayloadWrapsTopLevel(t *testing.T) {
	got := TokenizePayload([]byte("a: 1"))
	require.Equal(t, []string{"{", "a", "1", "}"}, got)
}

func TestNormalizeStripsLeadingBOM(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a: 1")...)
	require.Equal(t, "a: 1", Normalize(src))
}

func TestCursorNextConsumesInOrder(t *testing.T) {
	c := NewCursor([]string{"a", "b"})

	tok, ok := c.Current()
	require.True(t, ok)
	require.Equal(t, "a", tok)

	tok, ok = c.Next()
	require.True(t, ok)
	require.Equal(t, "a", tok)

	tok, ok = c.Next()
	require.True(t, ok)
	require.Equal(t, "b", tok)

	_, ok = c.Next()
	require.False(t, ok)
}

func TestCursorAdvancePastEndIsNoop(t *testing.T) {
	c := NewCursor([]string{"a"})
	c.Advance()
	c.Advance()
	_, ok := c.Current()
	require.False(t, ok)
}
