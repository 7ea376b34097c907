package service

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ProviderFamily selects which extraction strategy applies to a session.
// It is resolved once from the model id at session init, never per event.
type ProviderFamily int

const (
	FamilyOpenChat   ProviderFamily = iota // content in choices.0.delta
	FamilyReasoner                         // adds a dedicated reasoning channel
	FamilyLegacyText                       // completion-style, content in choices.0.text
)

func (f ProviderFamily) String() string {
	switch f {
	case FamilyOpenChat:
		return "openchat"
	case FamilyReasoner:
		return "reasoner"
	case FamilyLegacyText:
		return "legacy_text"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// familyRules maps model-id fragments to families. First match wins, so the
// more specific reasoning models come before the catch-all entries.
var familyRules = []struct {
	fragment string
	family   ProviderFamily
}{
	{"deepseek-r1", FamilyReasoner},
	{"deepseek-reasoner", FamilyReasoner},
	{"-thinking", FamilyReasoner},
	{"qwq", FamilyReasoner},
	{"o1", FamilyReasoner},
	{"o3", FamilyReasoner},
	{"o4-mini", FamilyReasoner},
	{"glm-z1", FamilyReasoner},
	{"davinci", FamilyLegacyText},
	{"-instruct", FamilyLegacyText},
}

// ResolveFamily picks the provider family for a model id.
// Unknown models fall back to the OpenAI-compatible chat shape.
func ResolveFamily(modelID string) ProviderFamily {
	id := strings.ToLower(modelID)
	for _, rule := range familyRules {
		if strings.Contains(id, rule.fragment) {
			return rule.family
		}
	}
	return FamilyOpenChat
}

// ToolCallDelta is one fragment of a streamed tool call.
type ToolCallDelta struct {
	Index        int
	HasIndex     bool
	ID           string
	Type         string
	Name         string
	ArgsFragment string
	// Complete marks the fully-formed array shape: the record needs no
	// further fragments.
	Complete bool
}

// ExtractedDelta is the normalized result of probing one raw event.
// HasContent/HasThinking distinguish "field present but empty" (a valid
// no-op) from "field absent".
type ExtractedDelta struct {
	Content        string
	HasContent     bool
	Thinking       string
	HasThinking    bool
	ToolCallDeltas []ToolCallDelta
	FinishReason   string
	Usage          *Usage
	CitedSources   []string
}

// ExtractionStrategy is an ordered set of field probes for one provider
// family. Each probe list is tried front to back until a field exists and
// is not the null sentinel.
type ExtractionStrategy struct {
	Family         ProviderFamily
	ContentProbes  []string
	ThinkingProbes []string
	FinishProbes   []string
	CitationProbes []string
}

var strategies = map[ProviderFamily]*ExtractionStrategy{
	FamilyOpenChat: {
		Family: FamilyOpenChat,
		ContentProbes: []string{
			"choices.0.delta.content",
			"choices.0.message.content",
			"choices.0.text",
			"choices.0.delta.content.0.text",
		},
		FinishProbes:   []string{"choices.0.finish_reason"},
		CitationProbes: []string{"citations", "choices.0.delta.citations"},
	},
	FamilyReasoner: {
		Family: FamilyReasoner,
		ContentProbes: []string{
			"choices.0.delta.content",
			"choices.0.message.content",
			"choices.0.delta.content.0.text",
		},
		ThinkingProbes: []string{
			"choices.0.delta.reasoning_content",
			"choices.0.delta.reasoning",
			"choices.0.message.reasoning_content",
			"thinking",
		},
		FinishProbes:   []string{"choices.0.finish_reason"},
		CitationProbes: []string{"citations", "choices.0.delta.citations"},
	},
	FamilyLegacyText: {
		Family: FamilyLegacyText,
		ContentProbes: []string{
			"choices.0.text",
			"choices.0.delta.content",
			"text",
		},
		FinishProbes: []string{"choices.0.finish_reason"},
	},
}

// StrategyFor returns the extraction strategy for a family.
func StrategyFor(family ProviderFamily) *ExtractionStrategy {
	if s, ok := strategies[family]; ok {
		return s
	}
	return strategies[FamilyOpenChat]
}

// probeFirst walks an ordered probe chain over the raw event.
// The second return is false only when every probe misses; an explicitly
// empty string is reported as present.
func probeFirst(event string, probes []string) (string, bool) {
	for _, path := range probes {
		res := gjson.Get(event, path)
		if !res.Exists() || res.Type == gjson.Null {
			continue
		}
		return res.String(), true
	}
	return "", false
}

// Extract probes one raw event payload and returns the normalized delta.
// A malformed payload yields an error; the caller logs and skips it, the
// session never aborts on a single noisy event.
func (s *ExtractionStrategy) Extract(event string) (ExtractedDelta, error) {
	var delta ExtractedDelta
	if !gjson.Valid(event) {
		return delta, fmt.Errorf("malformed event payload: %q", truncateForLog(event, 120))
	}

	delta.Content, delta.HasContent = probeFirst(event, s.ContentProbes)
	if len(s.ThinkingProbes) > 0 {
		delta.Thinking, delta.HasThinking = probeFirst(event, s.ThinkingProbes)
	}
	delta.FinishReason, _ = probeFirst(event, s.FinishProbes)
	delta.ToolCallDeltas = extractToolCallDeltas(event)
	delta.Usage = extractUsage(event)

	for _, path := range s.CitationProbes {
		res := gjson.Get(event, path)
		if !res.Exists() || !res.IsArray() {
			continue
		}
		res.ForEach(func(_, v gjson.Result) bool {
			if u := v.String(); u != "" {
				delta.CitedSources = append(delta.CitedSources, u)
			}
			return true
		})
		break
	}
	return delta, nil
}

// extractToolCallDeltas handles both wire shapes: indexed streaming
// fragments in choices.0.delta.tool_calls and the fully-formed array in
// choices.0.message.tool_calls.
func extractToolCallDeltas(event string) []ToolCallDelta {
	if calls := gjson.Get(event, "choices.0.delta.tool_calls"); calls.IsArray() {
		return toolCallDeltasFrom(calls, false)
	}
	if calls := gjson.Get(event, "choices.0.message.tool_calls"); calls.IsArray() {
		return toolCallDeltasFrom(calls, true)
	}
	return nil
}

func toolCallDeltasFrom(calls gjson.Result, complete bool) []ToolCallDelta {
	var deltas []ToolCallDelta
	position := 0
	calls.ForEach(func(_, call gjson.Result) bool {
		d := ToolCallDelta{
			ID:           call.Get("id").String(),
			Type:         call.Get("type").String(),
			Name:         call.Get("function.name").String(),
			ArgsFragment: call.Get("function.arguments").String(),
			Complete:     complete,
		}
		if idx := call.Get("index"); idx.Exists() {
			d.Index = int(idx.Int())
			d.HasIndex = true
		} else if complete {
			// The fully-formed shape often omits indices; order stands in.
			d.Index = position
			d.HasIndex = true
		}
		position++
		deltas = append(deltas, d)
		return true
	})
	return deltas
}

func extractUsage(event string) *Usage {
	usage := gjson.Get(event, "usage")
	if !usage.Exists() || usage.Type == gjson.Null {
		return nil
	}
	u := &Usage{
		InputTokens:   int(usage.Get("prompt_tokens").Int()),
		OutputTokens:  int(usage.Get("completion_tokens").Int()),
		CachedTokens:  int(usage.Get("prompt_tokens_details.cached_tokens").Int()),
		ThoughtTokens: int(usage.Get("completion_tokens_details.reasoning_tokens").Int()),
		TotalTokens:   int(usage.Get("total_tokens").Int()),
	}
	// The detail counts are subsets of input/output; when the wire omits
	// its total, input+output is the whole spend.
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	if u.TotalTokens == 0 {
		return nil
	}
	return u
}

func truncateForLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
