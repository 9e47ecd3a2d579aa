package sensor

import (
	"regexp"
	"strings"
	"time"
)

// InputKind classifies the shape of input a blocked screen appears to
// be waiting for (spec.md §4.5 "screen analyzer").
type InputKind string

const (
	InputNone          InputKind = ""
	InputPassword      InputKind = "password"
	InputYesNo         InputKind = "yes_no"
	InputNumberedList  InputKind = "numbered_list"
	InputPagerControl  InputKind = "pager"
	InputEditorMode    InputKind = "editor"
	InputFreeform      InputKind = "freeform"
)

// InputWaitingState is the screen analyzer's verdict for one sample of
// terminal output.
type InputWaitingState struct {
	Waiting    bool
	Kind       InputKind
	Prompt     string
	Confidence float64
}

var (
	passwordPattern  = regexp.MustCompile(`(?i)(password|passphrase|passwd)\s*:?\s*$`)
	yesNoPattern     = regexp.MustCompile(`(?i)\[(y/n|yes/no|y/N|Y/n)\]\s*:?\s*$`)
	numberedPattern  = regexp.MustCompile(`(?m)^\s*\d+\)\s+.+$`)
	pagerPattern     = regexp.MustCompile(`(?i)(--more--|\(END\)|lines \d+-\d+/\d+|\bMore\b.*%)\s*$`)
	editorStatusLine = regexp.MustCompile(`(?m)^-- INSERT --|^~\s*$|^"[^"]+"\s+\d+L,\s*\d+[BC]`)
	genericPrompt    = regexp.MustCompile(`(?i)(continue\?|proceed\?|overwrite.*\?|enter .+:)\s*$`)
)

// cacheTTL bounds how long an analyzer result may be reused for the
// same raw text without recomputation.
const cacheTTL = 2000 * time.Millisecond

type cacheEntry struct {
	at     time.Time
	text   string
	result InputWaitingState
}

// Analyzer caches the last screen-analysis result per session so
// repeated check_terminal_status calls within cacheTTL don't re-run the
// pattern set against unchanged output.
type Analyzer struct {
	cache map[string]cacheEntry
}

// NewAnalyzer creates an empty Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{cache: make(map[string]cacheEntry)} }

// Analyze inspects the tail of a terminal's captured output and
// determines whether it looks like the foreground process is blocked
// waiting on interactive input.
func (a *Analyzer) Analyze(sessionID, text string) InputWaitingState {
	if e, ok := a.cache[sessionID]; ok && e.text == text && time.Since(e.at) < cacheTTL {
		return e.result
	}

	result := analyzeText(text)
	a.cache[sessionID] = cacheEntry{at: time.Now(), text: text, result: result}
	return result
}

func analyzeText(text string) InputWaitingState {
	tail := lastLines(text, 5)

	switch {
	case passwordPattern.MatchString(tail):
		return InputWaitingState{Waiting: true, Kind: InputPassword, Prompt: strings.TrimSpace(tail), Confidence: 0.9}
	case yesNoPattern.MatchString(tail):
		return InputWaitingState{Waiting: true, Kind: InputYesNo, Prompt: strings.TrimSpace(tail), Confidence: 0.9}
	case pagerPattern.MatchString(tail):
		return InputWaitingState{Waiting: true, Kind: InputPagerControl, Prompt: strings.TrimSpace(tail), Confidence: 0.85}
	case editorStatusLine.MatchString(text):
		return InputWaitingState{Waiting: true, Kind: InputEditorMode, Prompt: strings.TrimSpace(tail), Confidence: 0.7}
	case numberedPattern.MatchString(text) && strings.Contains(strings.ToLower(tail), "select"):
		return InputWaitingState{Waiting: true, Kind: InputNumberedList, Prompt: strings.TrimSpace(tail), Confidence: 0.6}
	case genericPrompt.MatchString(tail):
		return InputWaitingState{Waiting: true, Kind: InputFreeform, Prompt: strings.TrimSpace(tail), Confidence: 0.5}
	default:
		return InputWaitingState{Waiting: false, Kind: InputNone}
	}
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
