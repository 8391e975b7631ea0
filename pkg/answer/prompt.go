package answer

import (
	"embed"
	"strings"
	"text/template"
)

// PromptVersion names the active prompt template; recorded in audit
// metadata so answers can be traced to the prompt that produced them.
const PromptVersion = "v1"

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTmpl = template.Must(template.ParseFS(promptFS, "prompts/answer_"+PromptVersion+".tmpl"))

// renderPrompt fills the versioned template with retrieval context and the
// user's question.
func renderPrompt(contextText, question string) (string, error) {
	var b strings.Builder
	err := promptTmpl.Execute(&b, struct {
		Context  string
		Question string
	}{Context: contextText, Question: question})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
