package service

import (
	"testing"
)

func TestToolCallAccumulator_FragmentedArguments(t *testing.T) {
	// {"query": + "rust"} split across two events must equal one event
	// carrying {"query":"rust"}.
	split := NewToolCallAccumulator()
	split.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_1", Type: "function", Name: "web_search", ArgsFragment: `{"query":`})
	split.Apply(ToolCallDelta{Index: 0, HasIndex: true, ArgsFragment: `"rust"}`})

	whole := NewToolCallAccumulator()
	whole.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_1", Type: "function", Name: "web_search", ArgsFragment: `{"query":"rust"}`})

	a, b := split.Finalize(), whole.Finalize()
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one record each, got %d and %d", len(a), len(b))
	}
	if a[0].Arguments != b[0].Arguments {
		t.Fatalf("fragmented args %q != whole args %q", a[0].Arguments, b[0].Arguments)
	}
	if a[0].Arguments != `{"query":"rust"}` {
		t.Fatalf("unexpected arguments: %q", a[0].Arguments)
	}
}

func TestToolCallAccumulator_FirstWinsIdentity(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_1", Name: "web_search"})
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_other", Name: "made_up"})

	records := acc.Finalize()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "call_1" || records[0].Name != "web_search" {
		t.Fatalf("id/name were overwritten: %+v", records[0])
	}
}

func TestToolCallAccumulator_GapBackfill(t *testing.T) {
	acc := NewToolCallAccumulator()
	// Index 2 arrives first; slots 0 and 1 are back-filled.
	acc.Apply(ToolCallDelta{Index: 2, HasIndex: true, ID: "call_c", Name: "weather", ArgsFragment: `{"location":"Oslo"}`})
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_a", Name: "calculator", ArgsFragment: `{"expression":"1+1"}`})

	records := acc.Finalize()
	if len(records) != 2 {
		t.Fatalf("expected 2 named records, got %d", len(records))
	}
	// Order follows index, not arrival.
	if records[0].Name != "calculator" || records[1].Name != "weather" {
		t.Fatalf("records out of index order: %+v, %+v", records[0], records[1])
	}
}

func TestToolCallAccumulator_MissingIndexAttachesToLast(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_1", Name: "web_search", ArgsFragment: `{"q`})
	acc.Apply(ToolCallDelta{ArgsFragment: `uery":"go"}`})

	records := acc.Finalize()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected arguments: %q", records[0].Arguments)
	}
}

func TestToolCallAccumulator_HasNamed(t *testing.T) {
	acc := NewToolCallAccumulator()
	if acc.HasNamed() {
		t.Fatal("empty accumulator can't have named records")
	}
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ArgsFragment: `{"x":1}`})
	if acc.HasNamed() {
		t.Fatal("nameless record must not count")
	}
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, Name: "web_search"})
	if !acc.HasNamed() {
		t.Fatal("named record not detected")
	}
}

func TestToolCallAccumulator_FullyFormedShape(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, ID: "call_1", Name: "calculator", ArgsFragment: `{"expression":"2*3"}`, Complete: true})

	if !acc.HasNamed() {
		t.Fatal("fully-formed record not accepted")
	}
	records := acc.Finalize()
	if len(records) != 1 || !records[0].IsComplete {
		t.Fatalf("record not complete: %+v", records)
	}
}

func TestToolCallAccumulator_Reset(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Apply(ToolCallDelta{Index: 0, HasIndex: true, Name: "web_search"})
	acc.Reset()
	if !acc.Empty() || acc.HasNamed() {
		t.Fatal("reset did not clear state")
	}
}
