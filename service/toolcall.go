package service

// FinishReasonToolCalls is the finish signal a model sends when it wants
// tool results before producing a final answer.
const FinishReasonToolCalls = "tool_calls"

// ToolCallRecord is one accumulated tool call. Created and mutated only by
// the ToolCallAccumulator; the execution side reads it after completion.
type ToolCallRecord struct {
	Index      int
	ID         string
	Type       string
	Name       string
	Arguments  string
	IsComplete bool
}

// ToolCallAccumulator merges fragmented tool-call deltas into complete call
// records. One call's arguments routinely split across many events, so
// fragments are always concatenated in arrival order, never replaced.
type ToolCallAccumulator struct {
	calls     []*ToolCallRecord
	lastIndex int
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{lastIndex: -1}
}

// Apply merges one delta. Records are index-addressed; a gap in the index
// space is back-filled with placeholders so later fragments land in the
// right slot. Some providers omit the index on follow-up fragments, which
// then attach to the most recent record.
func (a *ToolCallAccumulator) Apply(d ToolCallDelta) {
	idx := d.Index
	if !d.HasIndex {
		if a.lastIndex < 0 {
			// Fragment before any addressed record; open slot zero.
			idx = 0
		} else {
			idx = a.lastIndex
		}
	}
	for len(a.calls) <= idx {
		a.calls = append(a.calls, &ToolCallRecord{Index: len(a.calls)})
	}
	a.lastIndex = idx

	rec := a.calls[idx]
	// id/type/name are set on first non-empty occurrence, never overwritten.
	if rec.ID == "" {
		rec.ID = d.ID
	}
	if rec.Type == "" {
		rec.Type = d.Type
	}
	if rec.Name == "" {
		rec.Name = d.Name
	}
	rec.Arguments += d.ArgsFragment
	if d.Complete {
		rec.IsComplete = true
	}
}

// Empty reports whether no delta has been applied yet.
func (a *ToolCallAccumulator) Empty() bool {
	return len(a.calls) == 0
}

// HasNamed reports whether at least one record carries a function name.
// The tool_calls finish signal only counts when this holds.
func (a *ToolCallAccumulator) HasNamed() bool {
	for _, rec := range a.calls {
		if rec.Name != "" {
			return true
		}
	}
	return false
}

// Finalize marks every named record complete and returns them in index
// order. Placeholder records that never received a name are dropped.
func (a *ToolCallAccumulator) Finalize() []*ToolCallRecord {
	var out []*ToolCallRecord
	for _, rec := range a.calls {
		if rec.Name == "" {
			continue
		}
		rec.IsComplete = true
		out = append(out, rec)
	}
	return out
}

// Reset clears accumulated state for the next continuation round.
func (a *ToolCallAccumulator) Reset() {
	a.calls = nil
	a.lastIndex = -1
}
