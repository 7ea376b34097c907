package service

import (
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestFormatCitations(t *testing.T) {
	sources := []SearchResult{
		{Title: "Go Blog", URL: "https://go.dev/blog", Snippet: "News from the Go team"},
		{Title: "", DisplayLink: "pkg.go.dev", URL: "https://pkg.go.dev", Snippet: ""},
		{Title: "No URL", URL: ""},
	}
	got := FormatCitations(sources, 5)
	want := "[1] Go Blog / https://go.dev/blog / News from the Go team\n" +
		"[2] pkg.go.dev / https://pkg.go.dev\n"
	if got != want {
		t.Errorf("FormatCitations() = %q, want %q", got, want)
	}
}

func TestFormatCitations_Empty(t *testing.T) {
	if got := FormatCitations(nil, 5); got != "" {
		t.Errorf("expected empty string for no sources, got %q", got)
	}
	if got := FormatCitations([]SearchResult{{Title: "nolink"}}, 5); got != "" {
		t.Errorf("sources without URLs must not produce citations, got %q", got)
	}
}

func TestFormatCitations_Overflow(t *testing.T) {
	var sources []SearchResult
	for i := 0; i < 8; i++ {
		sources = append(sources, SearchResult{Title: "t", URL: "https://example.com"})
	}
	got := FormatCitations(sources, 3)
	if !strings.Contains(got, "[3]") {
		t.Errorf("expected three numbered entries, got %q", got)
	}
	if strings.Contains(got, "[4]") {
		t.Errorf("entries past the cap must be folded, got %q", got)
	}
	if !strings.Contains(got, "...and 5 more sources.") {
		t.Errorf("overflow line missing: %q", got)
	}
}

func TestComposeContinuation(t *testing.T) {
	prior := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "You are helpful."},
		{Role: openai.ChatMessageRoleUser, Content: "weather in oslo?"},
	}
	calls := []*ToolCallRecord{
		{Index: 0, ID: "call_w", Name: ToolWeather, Arguments: `{"location":"Oslo"}`, IsComplete: true},
	}
	results := []ToolResult{
		{ToolCallID: "call_w", FunctionName: ToolWeather, Content: `{"temp":4}`, Success: true},
	}
	sources := []SearchResult{{Title: "yr.no", URL: "https://yr.no", Snippet: "forecast"}}

	messages := ComposeContinuation(prior, "Let me check.", calls, results, sources, 5)
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}

	assistant := messages[2]
	if assistant.Role != openai.ChatMessageRoleAssistant {
		t.Fatalf("third message must be the assistant turn, got %s", assistant.Role)
	}
	if assistant.Content != "Let me check." {
		t.Errorf("partial answer text must be retained, got %q", assistant.Content)
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_w" {
		t.Errorf("assistant turn must echo the requested calls: %+v", assistant.ToolCalls)
	}

	toolMsg := messages[3]
	if toolMsg.Role != openai.ChatMessageRoleTool || toolMsg.ToolCallID != "call_w" {
		t.Errorf("tool message malformed: %+v", toolMsg)
	}
	if toolMsg.Content != `{"temp":4}` {
		t.Errorf("tool content lost: %q", toolMsg.Content)
	}

	system := messages[4]
	if system.Role != openai.ChatMessageRoleSystem {
		t.Fatalf("final message must be the synthesis instruction, got %s", system.Role)
	}
	if !strings.Contains(system.Content, "[1] yr.no / https://yr.no / forecast") {
		t.Errorf("citations missing from instruction: %q", system.Content)
	}
	if strings.Contains(system.Content, "call_w") {
		t.Errorf("raw tool call ids must not leak into the citation block: %q", system.Content)
	}
}

func TestComposeContinuation_FailedToolResult(t *testing.T) {
	results := []ToolResult{
		{ToolCallID: "call_x", FunctionName: ToolWebSearch, Error: "rate limited"},
	}
	calls := []*ToolCallRecord{{ID: "call_x", Name: ToolWebSearch, Arguments: "{}", IsComplete: true}}

	messages := ComposeContinuation(nil, "", calls, results, nil, 5)
	toolMsg := messages[1]
	if !strings.Contains(toolMsg.Content, `"error"`) || !strings.Contains(toolMsg.Content, "rate limited") {
		t.Errorf("failing result must surface as an error payload, got %q", toolMsg.Content)
	}
}

func TestSynthesizeFallback(t *testing.T) {
	results := []ToolResult{
		{FunctionName: ToolWebSearch, Content: "three articles found", Success: true},
		{FunctionName: ToolWeather, Error: "timeout"},
	}
	sources := []SearchResult{{Title: "src", URL: "https://example.org", Snippet: "s"}}

	got := SynthesizeFallback(results, sources, 5)
	if !strings.Contains(got, "web_search: three articles found") {
		t.Errorf("successful result missing: %q", got)
	}
	if !strings.Contains(got, "weather failed: timeout") {
		t.Errorf("failed result missing: %q", got)
	}
	if !strings.Contains(got, "[1] src / https://example.org / s") {
		t.Errorf("citations missing: %q", got)
	}
}
