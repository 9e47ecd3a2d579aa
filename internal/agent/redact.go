package agent

import "regexp"

// DefaultMaxToolResultChars caps a single tool result before it is
// appended to the conversation, independent of the read_file/
// get_terminal_context tools' own per-tool truncation.
const DefaultMaxToolResultChars = 64 * 1024

// secretPatterns catches common credential shapes that shell command
// output (env dumps, cat'd config files, curl -v headers) can leak
// back into the conversation sent to the LLM provider.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

const redactionText = "[REDACTED]"

// SanitizeToolResult redacts likely secrets out of a tool's raw output
// and caps its length before it is recorded as a step or sent to the
// model. Applied unconditionally to every tool result the executor
// produces (spec.md doesn't gate this behind config; leaking a
// terminal's stdout into the LLM context is a risk regardless of
// auto_execute settings).
func SanitizeToolResult(content string) string {
	for _, re := range secretPatterns {
		content = re.ReplaceAllString(content, redactionText)
	}
	if len(content) > DefaultMaxToolResultChars {
		content = content[:DefaultMaxToolResultChars] + "\n...[truncated]"
	}
	return content
}
