package terminal

import "regexp"

// ansiEscape strips ANSI/VT100 control sequences (CSI, OSC) before
// prompt detection runs, per spec.md §4.3 ("after stripping ANSI and
// control bytes").
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\].*?\x07|\x1b[()][AB012]`)

// controlBytes strips the remaining non-printable control characters
// except newline/carriage-return, which prompt regexes rely on.
var controlBytes = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// StripTerminalNoise removes ANSI escapes and stray control bytes from
// raw terminal output so prompt regexes can match cleanly.
func StripTerminalNoise(raw string) string {
	clean := ansiEscape.ReplaceAllString(raw, "")
	clean = controlBytes.ReplaceAllString(clean, "")
	return clean
}

// promptPatterns covers the common interactive-shell prompt shapes
// named in spec.md §4.3: bash/zsh ("user@host:~$ ", "$ ", "# "),
// fish ("~> "), PowerShell ("PS C:\> "), and cmd.exe ("C:\>").
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)[\w.\-]+@[\w.\-]+:[^\n]*[$#]\s*$`),
	regexp.MustCompile(`(?m)^\s*[$#%>]\s*$`),
	regexp.MustCompile(`(?m)^PS [A-Za-z]:\\.*>\s*$`),
	regexp.MustCompile(`(?m)^[A-Za-z]:\\.*>\s*$`),
	regexp.MustCompile(`(?m)^[\w.\-~/]+\s*>\s*$`),
}

// DetectPrompt reports whether the (already-stripped) buffer ends in
// what looks like an idle shell prompt.
func DetectPrompt(stripped string) bool {
	end := len(stripped)
	for end > 0 && (stripped[end-1] == '\n' || stripped[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && stripped[start-1] != '\n' {
		start--
	}
	tail := stripped[start:]
	for _, p := range promptPatterns {
		if p.MatchString(tail) {
			return true
		}
	}
	return false
}
