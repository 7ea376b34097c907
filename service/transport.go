package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tidwall/sjson"
)

// ChatTransport submits one streaming request and hands back the raw byte
// stream. The engine treats it as opaque: retry, backoff and timeout policy
// belong to the implementation, never to the ingestion loop.
type ChatTransport interface {
	SubmitStreamingRequest(ctx context.Context, modelID string, messages []openai.ChatCompletionMessage) (io.ReadCloser, error)
}

// OpenChatTransport is the default ChatTransport for OpenAI-compatible
// endpoints. It builds the request with the go-openai types and posts it
// directly, so the response body stays a raw event stream for the reader.
type OpenChatTransport struct {
	APIKey   string
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	Tools    []OpenTool
	Client   *http.Client
}

func NewOpenChatTransport(apiKey, endpoint string, tools []OpenTool) *OpenChatTransport {
	return &OpenChatTransport{
		APIKey:   apiKey,
		Endpoint: strings.TrimRight(endpoint, "/"),
		Tools:    tools,
		// Long-lived streams; bounding read latency is this layer's call,
		// not the ingestion loop's.
		Client: &http.Client{Timeout: 30 * time.Minute},
	}
}

func (t *OpenChatTransport) SubmitStreamingRequest(ctx context.Context, modelID string, messages []openai.ChatCompletionMessage) (io.ReadCloser, error) {
	request := openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: messages,
		Stream:   true,
		Tools:    convertTools(t.Tools),
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", ErrTransport, err)
	}
	// Ask for a trailing usage event; providers that don't know the option
	// ignore it.
	if patched, err := sjson.SetBytes(payload, "stream_options.include_usage", true); err == nil {
		payload = patched
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: submitting request: %v", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

func convertTools(tools []OpenTool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return out
}
