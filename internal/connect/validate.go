// Package connect decides whether an edge between two ports is
// type-compatible and explains itself when it is not.
//
// Validate is a pure function: identical inputs always produce identical
// verdicts, no state is read or written. That keeps the compatibility
// behavior enumerable by table-driven tests and lets the editor call it on
// every drag without side effects.
package connect

import (
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/model"
)

// Severity grades a verdict for UI presentation.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityNone  Severity = ""
)

// Result is the verdict for one candidate connection.
type Result struct {
	IsValid     bool
	Message     string
	Suggestions []string
	Severity    Severity
}

func invalid(message string, suggestions ...string) Result {
	return Result{Message: message, Suggestions: suggestions, Severity: SeverityError}
}

// Validate decides whether sourceType's output port may connect to
// targetType's input port.
//
// Port resolution failures fail fast with a generic error. Type
// compatibility uses the fixed matrix on model.DataType: every concrete
// type accepts itself and the wildcard, and the wildcard accepts
// everything. Incompatible pairs are first run through an ordered list of
// special-case rules that produce targeted messages; the generic "cannot
// connect X to Y" message is the fallback.
func Validate(sourceType *model.NodeType, sourcePortID string, targetType *model.NodeType, targetPortID string) Result {
	if sourceType == nil || targetType == nil {
		return invalid("Cannot validate connection: unknown node type.")
	}

	sourcePort, ok := sourceType.OutputPort(sourcePortID)
	if !ok {
		return invalid(fmt.Sprintf("Node type %q has no output port %q.", sourceType.ID, sourcePortID))
	}
	targetPort, ok := targetType.InputPort(targetPortID)
	if !ok {
		return invalid(fmt.Sprintf("Node type %q has no input port %q.", targetType.ID, targetPortID))
	}

	if sourcePort.DataType.AcceptedBy(targetPort.DataType) {
		return Result{IsValid: true}
	}

	in := ruleInput{
		sourceType: sourceType, sourcePort: sourcePort,
		targetType: targetType, targetPort: targetPort,
	}
	for _, rule := range incompatibilityRules {
		if res, handled := rule(in); handled {
			return res
		}
	}

	return invalid(
		fmt.Sprintf("Cannot connect %s output %q to %s input %q.",
			sourcePort.DataType, sourcePort.DisplayName(), targetPort.DataType, targetPort.DisplayName()),
		alternativePortSuggestions(in)...,
	)
}

type ruleInput struct {
	sourceType *model.NodeType
	sourcePort *model.Port
	targetType *model.NodeType
	targetPort *model.Port
}

// rule inspects one incompatible pair and either claims it with a targeted
// verdict or passes.
type rule func(ruleInput) (Result, bool)

// incompatibilityRules are consulted in order; the first rule that claims
// the pair wins.
var incompatibilityRules = []rule{
	voiceIntoTextRule,
	knownPairRule,
}

// voiceIntoTextRule catches voice-shaped outputs dragged onto text-only
// inputs, the most common wiring mistake in voice flows.
func voiceIntoTextRule(in ruleInput) (Result, bool) {
	if !isVoiceShaped(in.sourceType, in.sourcePort) || in.targetPort.DataType != model.TypeString {
		return Result{}, false
	}
	res := invalid(
		fmt.Sprintf("Voice data from %q cannot connect directly to the text input %q. Add a Transcription node in between to convert the audio to text.",
			in.sourceType.Name, in.targetPort.DisplayName()),
		"Insert a Transcription node between these two nodes.",
	)
	res.Suggestions = append(res.Suggestions, alternativePortSuggestions(in)...)
	return res, true
}

// conversionPairs maps known source/target node type pairs to the
// intermediate node that makes them compatible.
var conversionPairs = map[[2]string]string{
	{"voice-input", "simple-openai-chat"}:   "Transcription",
	{"voice-input", "simple-deepseek-chat"}: "Transcription",
	{"download-telegram-voice", "simple-openai-chat"}:   "Transcription",
	{"download-telegram-voice", "simple-deepseek-chat"}: "Transcription",
	{"chat-input", "transcription"}:                     "Voice Input",
}

// knownPairRule pattern-matches node type pairs that require an
// intermediate conversion node.
func knownPairRule(in ruleInput) (Result, bool) {
	intermediate, ok := conversionPairs[[2]string{in.sourceType.ID, in.targetType.ID}]
	if !ok {
		return Result{}, false
	}
	res := invalid(
		fmt.Sprintf("Cannot connect %s directly to %s.", in.sourceType.Name, in.targetType.Name),
		fmt.Sprintf("Insert a %s node between these two nodes.", intermediate),
	)
	res.Suggestions = append(res.Suggestions, alternativePortSuggestions(in)...)
	return res, true
}

// alternativePortSuggestions scans the target node type's other input ports
// for one that would accept the source port as-is.
func alternativePortSuggestions(in ruleInput) []string {
	var suggestions []string
	for _, p := range in.targetType.Inputs {
		if p.ID == in.targetPort.ID {
			continue
		}
		if in.sourcePort.DataType.AcceptedBy(p.DataType) {
			suggestions = append(suggestions,
				fmt.Sprintf("Input %q (%s) on %s would accept this connection.",
					p.DisplayName(), p.DataType, in.targetType.Name))
		}
	}
	return suggestions
}

// isVoiceShaped reports whether a port carries voice data, judged by the
// naming conventions of the built-in node types.
func isVoiceShaped(nt *model.NodeType, p *model.Port) bool {
	if strings.Contains(nt.ID, "voice") {
		return true
	}
	return strings.Contains(p.ID, "voice") || strings.Contains(p.Name, "voice")
}
