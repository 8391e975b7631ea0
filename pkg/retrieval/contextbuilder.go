package retrieval

import (
	"fmt"
	"strings"

	"github.com/quillback/quill/pkg/types"
)

// DefaultContextBudget bounds the assembled context in characters
const DefaultContextBudget = 12000

// BuiltContext is the assembled prompt context plus the chunks that made it
// in, in order. Included is the citation source set for the answer.
type BuiltContext struct {
	Text     string
	Included []types.ScoredChunk
}

// BuildContext concatenates ranked chunks under a character budget. Each
// chunk is prefixed with a source marker the model can cite. A chunk that
// does not fit is skipped whole, never truncated, and later smaller chunks
// may still fit.
func BuildContext(chunks []types.ScoredChunk, budget int) BuiltContext {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var b strings.Builder
	var included []types.ScoredChunk
	used := 0

	for _, c := range chunks {
		block := fmt.Sprintf("[Source: %s, Part %d]\n%s\n\n", c.DocumentTitle, c.ChunkIndex, c.Content)
		if used+len(block) > budget {
			continue
		}
		b.WriteString(block)
		used += len(block)
		included = append(included, c)
	}

	return BuiltContext{
		Text:     strings.TrimRight(b.String(), "\n"),
		Included: included,
	}
}
