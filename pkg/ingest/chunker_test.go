package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	cfg := DefaultChunkerConfig()
	assert.Nil(t, Split("", cfg))
	assert.Nil(t, Split("   \n\t  ", cfg))
}

func TestSplitShortInput(t *testing.T) {
	chunks := Split("a short document", DefaultChunkerConfig())
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0])
}

func TestSplitRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("palabra clave del documento. ", 200)
	cfg := DefaultChunkerConfig()

	chunks := Split(text, cfg)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), cfg.MaxChars)
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("x", 800)
	text := para + "\n\n" + strings.Repeat("y", 400)

	chunks := Split(text, DefaultChunkerConfig())
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, para, chunks[0])
}

func TestSplitPrefersSentenceEnds(t *testing.T) {
	sentence := strings.Repeat("w", 830) + ". "
	text := sentence + strings.Repeat("z", 500)

	chunks := Split(text, DefaultChunkerConfig())
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."), "first chunk should end at the sentence")
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("uno dos tres cuatro cinco seis siete ocho nueve diez ", 100)
	cfg := DefaultChunkerConfig()

	chunks := Split(text, cfg)
	require.Greater(t, len(chunks), 1)

	// the tail of each chunk reappears at the head of the next
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i][len(chunks[i])-40:]
		assert.Contains(t, chunks[i+1][:200], strings.TrimSpace(tail))
	}
}

func TestSplitMultibyteSafe(t *testing.T) {
	text := strings.Repeat("código añejo über naïve 日本語テキスト ", 120)

	chunks := Split(text, DefaultChunkerConfig())
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestSplitNoBoundaryFallsBackToHardCut(t *testing.T) {
	text := strings.Repeat("q", 2000)
	cfg := DefaultChunkerConfig()

	chunks := Split(text, cfg)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, cfg.MaxChars, utf8.RuneCountInString(chunks[0]))
}

func TestSplitCoversAllContent(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 150)
	chunks := Split(text, DefaultChunkerConfig())

	var total int
	for _, c := range chunks {
		total += utf8.RuneCountInString(c)
	}
	// with overlap, concatenated chunks must cover at least the input
	assert.GreaterOrEqual(t, total, utf8.RuneCountInString(strings.TrimSpace(text)))
}
