// Package risk classifies shell commands by danger level and decides how
// the agent run loop should handle them before they reach a terminal.
//
// Classify is pure and deterministic: the same command string always
// yields the same (Level, Handling) pair (spec property P1).
package risk

import (
	"time"
)

// Level is the danger classification of a command string.
type Level string

const (
	Safe      Level = "safe"
	Moderate  Level = "moderate"
	Dangerous Level = "dangerous"
	Blocked   Level = "blocked"
)

// HandlingKind distinguishes the variants of Handling.
type HandlingKind string

const (
	HandlingAllow          HandlingKind = "allow"
	HandlingAutoFix        HandlingKind = "auto_fix"
	HandlingTimedExecution HandlingKind = "timed_execution"
	HandlingFireAndForget  HandlingKind = "fire_and_forget"
	HandlingBlock          HandlingKind = "block"
)

// Handling is the tagged union of ways the classifier may tell the
// executor to treat a command. Only the fields relevant to Kind are
// meaningful; this mirrors the variant-struct pattern the spec calls
// for in place of a dynamic-typed union (§9 Design Notes).
type Handling struct {
	Kind HandlingKind

	// Rewritten is set when Kind == HandlingAutoFix.
	Rewritten string

	// Duration and StopKey are defined for data-model completeness
	// (spec.md §3 CommandHandling.TimedExecution) but this
	// implementation never constructs a HandlingTimedExecution value;
	// see DESIGN.md's record of open question Q1.
	Duration time.Duration
	StopKey  string

	// Hint is set when Kind == HandlingFireAndForget or HandlingBlock.
	Hint string

	// Reason is set when Kind == HandlingBlock.
	Reason string
}

// Allow returns the "execute as-is" handling.
func Allow() Handling { return Handling{Kind: HandlingAllow} }

// AutoFixTo returns a handling that substitutes the rewritten command text.
func AutoFixTo(rewritten string) Handling {
	return Handling{Kind: HandlingAutoFix, Rewritten: rewritten}
}

// FireAndForgetHint returns a handling telling the agent to poll for
// output and stop the command via a control key rather than await its
// completion.
func FireAndForgetHint(hint string) Handling {
	return Handling{Kind: HandlingFireAndForget, Hint: hint}
}

// BlockWith returns a handling that refuses the command with an
// explanation and a hint toward the preferred alternative.
func BlockWith(reason, hint string) Handling {
	return Handling{Kind: HandlingBlock, Reason: reason, Hint: hint}
}
