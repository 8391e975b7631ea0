package ingest

import (
	"strings"
	"unicode"
)

// ChunkerConfig bounds chunk size and overlap, both counted in runes so
// multibyte text never splits inside a character.
type ChunkerConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkerConfig returns the production chunking parameters
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{MaxChars: 900, Overlap: 120}
}

// Split cuts text into overlapping chunks of at most MaxChars runes. Cut
// points prefer paragraph breaks, then sentence ends, then whitespace,
// searched within the last 15% of the window; only when none exists does a
// chunk cut mid-word. Whitespace-only input yields no chunks.
func Split(text string, cfg ChunkerConfig) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= cfg.MaxChars {
		return []string{text}
	}

	minBreak := cfg.MaxChars - cfg.MaxChars*15/100

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := findBreak(runes[start:end], minBreak)
		chunk := strings.TrimSpace(string(runes[start : start+cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - cfg.Overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// findBreak returns the cut position in window, scanning backwards from the
// end. Paragraph breaks win over sentence ends, sentence ends over plain
// whitespace; a break below floor is ignored.
func findBreak(window []rune, floor int) int {
	best := len(window)

	if i := lastIndexRunes(window, []rune("\n\n")); i >= floor {
		return i
	}

	for i := len(window) - 1; i >= floor; i-- {
		if isSentenceEnd(window, i) {
			return i + 1
		}
	}

	for i := len(window) - 1; i >= floor; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return best
}

// isSentenceEnd reports whether position i terminates a sentence: a
// terminator rune followed by whitespace or the window edge.
func isSentenceEnd(window []rune, i int) bool {
	switch window[i] {
	case '.', '!', '?', '\n':
	default:
		return false
	}
	return i+1 >= len(window) || unicode.IsSpace(window[i+1])
}

func lastIndexRunes(haystack, needle []rune) int {
	for i := len(haystack) - len(needle); i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
