package agent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultContextLength is the context window (in tokens) assumed when a
// profile doesn't configure one (spec.md §4.8.1).
const DefaultContextLength = 32000

// contextBudgetFraction is the share of the context window memory
// compression targets, leaving headroom for the next response.
const contextBudgetFraction = 0.8

// EstimateTokens approximates token count with spec.md §4.8.1's fixed
// per-character weights: CJK characters are denser per token than
// ASCII/Latin text, so they're weighted higher.
func EstimateTokens(s string) float64 {
	var total float64
	for _, r := range s {
		if isCJK(r) {
			total += 1.5
		} else {
			total += 0.25
		}
	}
	return total
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana/Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	default:
		return false
	}
}

// turnGroup is either the single system message, or a user-start group
// (user → assistant [→ tool_calls, tool responses] repeated) — the
// unit compaction never splits (spec.md invariant I3).
type turnGroup struct {
	messages []Message
	isSystem bool
}

func (g turnGroup) tokenCount() float64 {
	var total float64
	for _, m := range g.messages {
		total += EstimateTokens(m.Content)
	}
	return total
}

func (g turnGroup) hasToolCalls() bool {
	for _, m := range g.messages {
		if len(m.ToolCalls) > 0 {
			return true
		}
	}
	return false
}

// groupTurns splits a message history into turn groups: the leading
// system message (if any) stands alone; everything else is grouped
// starting at each user message through to (but excluding) the next
// user message, so an assistant-with-tool-calls message always stays
// adjacent to its tool responses.
func groupTurns(messages []Message) []turnGroup {
	var groups []turnGroup
	var current []Message

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, turnGroup{messages: current})
			current = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			flush()
			groups = append(groups, turnGroup{messages: []Message{m}, isSystem: true})
		case RoleUser:
			flush()
			current = append(current, m)
		default:
			current = append(current, m)
		}
	}
	flush()

	return groups
}

func ungroup(groups []turnGroup) []Message {
	var out []Message
	for _, g := range groups {
		out = append(out, g.messages...)
	}
	return out
}

const (
	maxToolContentChars       = 2000
	maxAssistantContentChars  = 3000
	headTailLines             = 10
	maxKeyPoints              = 10
)

var keyPointPattern = regexp.MustCompile(`(?i)\b(diagnosed|completed|error)\s*:\s*(.+)`)

// repairMessages drops any tool-role message whose tool_call_id
// doesn't match a pending call opened by the preceding assistant
// message, and clears pending state on every assistant turn. This
// keeps property P2 (every assistant tool call is answered by exactly
// one tool message, before and after compression) intact even if a
// partially-written or edited history reaches Compact with orphaned
// entries.
func repairMessages(messages []Message) []Message {
	pending := make(map[string]bool)
	repaired := make([]Message, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, call := range m.ToolCalls {
				if call.ID != "" {
					pending[call.ID] = true
				}
			}
			repaired = append(repaired, m)
		case RoleTool:
			if !pending[m.ToolCallID] {
				continue
			}
			delete(pending, m.ToolCallID)
			repaired = append(repaired, m)
		default:
			repaired = append(repaired, m)
		}
	}
	return repaired
}

// Compact implements spec.md §4.8.1's memory compression: turn-group
// preserving truncation, then key-point folding, then score-based
// group selection, targeting contextBudgetFraction of contextLength
// tokens (default DefaultContextLength).
func Compact(messages []Message, contextLength int) []Message {
	messages = repairMessages(messages)
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}
	budget := float64(contextLength) * contextBudgetFraction

	groups := groupTurns(messages)
	if totalTokens(groups) <= budget {
		return messages
	}

	groups = truncateLongMessages(groups)
	if totalTokens(groups) <= budget {
		return ungroup(groups)
	}

	keyPoints := foldKeyPoints(groups)
	groups = selectGroups(groups, budget)

	return insertSummary(groups, keyPoints)
}

func totalTokens(groups []turnGroup) float64 {
	var total float64
	for _, g := range groups {
		total += g.tokenCount()
	}
	return total
}

// truncateLongMessages compresses oversized individual messages in
// place: tool content beyond maxToolContentChars becomes a head/tail
// excerpt (or a hard truncation when it isn't line-structured);
// assistant content beyond maxAssistantContentChars is hard-truncated.
func truncateLongMessages(groups []turnGroup) []turnGroup {
	out := make([]turnGroup, len(groups))
	for gi, g := range groups {
		msgs := make([]Message, len(g.messages))
		copy(msgs, g.messages)
		for i, m := range msgs {
			switch m.Role {
			case RoleTool:
				if len(m.Content) > maxToolContentChars {
					msgs[i].Content = excerptLines(m.Content)
				}
			case RoleAssistant:
				if len(m.Content) > maxAssistantContentChars {
					msgs[i].Content = m.Content[:maxAssistantContentChars] + "\n… [truncated]"
				}
			}
		}
		out[gi] = turnGroup{messages: msgs, isSystem: g.isSystem}
	}
	return out
}

func excerptLines(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= 2*headTailLines {
		return content[:maxToolContentChars] + "\n… [truncated]"
	}
	head := lines[:headTailLines]
	tail := lines[len(lines)-headTailLines:]
	omitted := len(lines) - 2*headTailLines
	var b strings.Builder
	b.WriteString(strings.Join(head, "\n"))
	b.WriteString("\n… [omitted " + strconv.Itoa(omitted) + " lines] …\n")
	b.WriteString(strings.Join(tail, "\n"))
	return b.String()
}

// foldKeyPoints extracts durable facts from assistant/tool content
// across all non-system groups, deduplicates them, and keeps the most
// recent maxKeyPoints.
func foldKeyPoints(groups []turnGroup) []string {
	var points []string
	seen := make(map[string]bool)

	for _, g := range groups {
		if g.isSystem {
			continue
		}
		for _, m := range g.messages {
			var candidate string
			switch m.Role {
			case RoleAssistant:
				if match := keyPointPattern.FindStringSubmatch(m.Content); match != nil {
					candidate = strings.TrimSpace(match[1] + ": " + match[2])
				}
			case RoleTool:
				firstLine := firstLineOf(m.Content)
				if strings.Contains(strings.ToLower(firstLine), "error") {
					candidate = strings.TrimSpace(firstLine)
				}
			}
			if candidate == "" || seen[candidate] {
				continue
			}
			seen[candidate] = true
			points = append(points, candidate)
		}
	}

	if len(points) > maxKeyPoints {
		points = points[len(points)-maxKeyPoints:]
	}
	return points
}

func firstLineOf(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// selectGroups keeps the system group and the last 3 turn-groups
// verbatim, then scores and selects among the rest to fit budget
// (spec.md §4.8.1 step 4).
func selectGroups(groups []turnGroup, budget float64) []turnGroup {
	var system *turnGroup
	var rest []turnGroup
	for i := range groups {
		if groups[i].isSystem {
			system = &groups[i]
			continue
		}
		rest = append(rest, groups[i])
	}

	keepTail := 3
	if len(rest) <= keepTail {
		return groups
	}

	tail := rest[len(rest)-keepTail:]
	candidates := rest[:len(rest)-keepTail]

	type scored struct {
		group turnGroup
		score float64
		index int
	}
	scoredList := make([]scored, len(candidates))
	for i, g := range candidates {
		score := float64(i) * 0.3
		if len(g.messages) > 0 && g.messages[0].Role == RoleUser {
			score += 20
		}
		if g.hasToolCalls() {
			score += 15
		}
		for _, m := range g.messages {
			if keyPointPattern.MatchString(m.Content) {
				score += 5
			}
			if len(m.Content) > 2000 {
				score -= 10
			}
		}
		scoredList[i] = scored{group: g, score: score, index: i}
	}

	sort.SliceStable(scoredList, func(a, b int) bool { return scoredList[a].score > scoredList[b].score })

	var selected []turnGroup
	used := totalTokens(tail)
	if system != nil {
		used += system.tokenCount()
	}
	var chosen []scored
	for _, s := range scoredList {
		cost := s.group.tokenCount()
		if used+cost > budget {
			continue
		}
		used += cost
		chosen = append(chosen, s)
	}
	sort.SliceStable(chosen, func(a, b int) bool { return chosen[a].index < chosen[b].index })

	if system != nil {
		selected = append(selected, *system)
	}
	for _, s := range chosen {
		selected = append(selected, s.group)
	}
	selected = append(selected, tail...)

	return selected
}

// insertSummary places a synthetic user message immediately after the
// system message summarizing the folded key points (spec.md §4.8.1
// step 5).
func insertSummary(groups []turnGroup, keyPoints []string) []Message {
	if len(keyPoints) == 0 {
		return ungroup(groups)
	}

	summary := Message{
		Role:    RoleUser,
		Content: "[memory summary] prior session key points:\n- " + strings.Join(keyPoints, "\n- "),
	}

	var out []Message
	inserted := false
	for _, g := range groups {
		out = append(out, g.messages...)
		if g.isSystem && !inserted {
			out = append(out, summary)
			inserted = true
		}
	}
	if !inserted {
		out = append([]Message{summary}, out...)
	}
	return out
}
