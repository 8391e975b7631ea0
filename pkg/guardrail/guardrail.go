package guardrail

import (
	"regexp"
	"strings"
)

// Finding names the matched injection pattern family
type Finding string

const (
	FindingOverride       Finding = "instruction_override"
	FindingRoleSwap       Finding = "role_swap"
	FindingPromptReveal   Finding = "prompt_reveal"
	FindingDelimiterMimic Finding = "delimiter_mimicry"
)

var patterns = []struct {
	finding Finding
	re      *regexp.Regexp
}{
	{FindingOverride, regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b.{0,40}\b(previous|prior|above|earlier|all)\b.{0,40}\b(instructions?|rules?|prompts?|directions?)\b`)},
	{FindingOverride, regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`)},
	{FindingRoleSwap, regexp.MustCompile(`(?i)\byou\s+are\s+(now|no\s+longer)\b`)},
	{FindingRoleSwap, regexp.MustCompile(`(?i)\b(act|pretend|behave)\s+as\s+(if\s+you\s+are\s+)?(a|an|the)?\s*(system|developer|admin|root|jailbroken)\b`)},
	{FindingPromptReveal, regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output)\b.{0,40}\b(system\s+prompt|hidden\s+instructions?|initial\s+prompt)\b`)},
	{FindingDelimiterMimic, regexp.MustCompile(`(?i)(<\|?\s*(system|assistant|im_start|im_end)\s*\|?>|\[\s*(system|inst)\s*\]|` + "```" + `\s*system)`)},
	{FindingDelimiterMimic, regexp.MustCompile(`(?i)^\s*(system|assistant)\s*:`)},
}

// Scan checks text for prompt injection markers. It is a heuristic signal:
// callers record findings and decide per surface whether to refuse (query)
// or merely annotate (document content).
func Scan(text string) []Finding {
	var out []Finding
	seen := make(map[Finding]bool)
	for _, p := range patterns {
		if seen[p.finding] {
			continue
		}
		if p.re.MatchString(text) {
			seen[p.finding] = true
			out = append(out, p.finding)
		}
	}
	return out
}

// Flagged reports whether any injection marker is present
func Flagged(text string) bool {
	return len(Scan(text)) > 0
}

// Describe joins findings for logs and audit metadata
func Describe(findings []Finding) string {
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}
