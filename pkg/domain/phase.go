package domain

import dErrors "aegis/pkg/domain-errors"

// Phase is the point in a request lifecycle at which a guardrail applies.
type Phase string

const (
	PhaseInput      Phase = "input"
	PhaseOutput     Phase = "output"
	PhaseToolArgs   Phase = "tool_args"
	PhaseToolResult Phase = "tool_result"
)

// Phases returns all phases in canonical enforcement order. Composition and
// link concatenation iterate in this order so output is deterministic.
func Phases() []Phase {
	return []Phase{PhaseInput, PhaseOutput, PhaseToolArgs, PhaseToolResult}
}

func ParsePhase(raw string) (Phase, error) {
	switch Phase(raw) {
	case PhaseInput, PhaseOutput, PhaseToolArgs, PhaseToolResult:
		return Phase(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown phase: "+raw)
}

// CompositionStrategy describes how a phase combines its guardrail verdicts.
// Only all_of is wired today; the other variants are declared so the call
// signature is stable when the compiler grows a real strategy selector.
type CompositionStrategy string

const (
	StrategyAllOf    CompositionStrategy = "all_of"
	StrategyAnyOf    CompositionStrategy = "any_of"
	StrategyWeighted CompositionStrategy = "weighted"
)

// DefaultComposition returns the strategy map applied to every new policy:
// every phase requires all of its guards to pass.
func DefaultComposition() map[Phase]CompositionStrategy {
	m := make(map[Phase]CompositionStrategy, len(Phases()))
	for _, p := range Phases() {
		m[p] = StrategyAllOf
	}
	return m
}
