package service

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const synthesisInstruction = "Use the tool results above to answer the user's question. " +
	"Write a natural-language answer and cite sources inline as [n] where they apply. " +
	"Do not mention tool call ids or repeat raw tool output."

// FormatCitations renders gathered sources as a numbered citation block:
// [n] title / url / snippet. Raw internal ids never appear here.
func FormatCitations(sources []SearchResult, maxReferences int) string {
	if len(sources) == 0 {
		return ""
	}
	if maxReferences <= 0 {
		maxReferences = len(sources)
	}
	sb := strings.Builder{}
	count := 0
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		count++
		if count > maxReferences {
			break
		}
		title := src.Title
		if title == "" {
			title = src.DisplayLink
		}
		snippet := strings.TrimSpace(src.Snippet)
		if snippet != "" {
			sb.WriteString(fmt.Sprintf("[%d] %s / %s / %s\n", count, title, src.URL, snippet))
		} else {
			sb.WriteString(fmt.Sprintf("[%d] %s / %s\n", count, title, src.URL))
		}
	}
	if total := citableCount(sources); total > maxReferences {
		sb.WriteString(fmt.Sprintf("...and %d more sources.\n", total-maxReferences))
	}
	return sb.String()
}

func citableCount(sources []SearchResult) int {
	n := 0
	for _, src := range sources {
		if src.URL != "" {
			n++
		}
	}
	return n
}

// ComposeContinuation builds the follow-up message list after a tool round
// trip: prior context, the assistant turn that requested the calls
// (retaining any partial answer text streamed before the calls fired),
// one tool-role message per result, and a citation-formatted summary with
// a synthesis instruction.
func ComposeContinuation(
	prior []openai.ChatCompletionMessage,
	partialContent string,
	calls []*ToolCallRecord,
	results []ToolResult,
	sources []SearchResult,
	maxReferences int,
) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+len(results)+2)
	messages = append(messages, prior...)

	assistant := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: partialContent,
	}
	for _, call := range calls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	messages = append(messages, assistant)

	for _, result := range results {
		content := result.Content
		if !result.Success {
			content = fmt.Sprintf(`{"error": %q}`, result.Error)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			ToolCallID: result.ToolCallID,
		})
	}

	instruction := synthesisInstruction
	if citations := FormatCitations(sources, maxReferences); citations != "" {
		instruction = "Sources:\n" + citations + "\n" + instruction
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: instruction,
	})
	return messages
}

// SynthesizeFallback builds a locally composed answer from gathered tool
// results. Used when the continuation request itself fails, so the session
// still completes instead of hanging.
func SynthesizeFallback(results []ToolResult, sources []SearchResult, maxReferences int) string {
	sb := strings.Builder{}
	sb.WriteString("I gathered the following before the connection was interrupted:\n\n")
	for _, result := range results {
		if result.Success {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", result.FunctionName, truncateForLog(result.Content, 400)))
		} else {
			sb.WriteString(fmt.Sprintf("- %s failed: %s\n", result.FunctionName, result.Error))
		}
	}
	if citations := FormatCitations(sources, maxReferences); citations != "" {
		sb.WriteString("\nSources:\n")
		sb.WriteString(citations)
	}
	return sb.String()
}
