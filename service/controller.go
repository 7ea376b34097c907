package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxContinuations = 5
	defaultMaxReferences    = 5
)

// SessionController drives one StreamSession through its whole lifecycle:
// read events, merge deltas, execute completed tool calls, compose the
// continuation, and loop on the follow-up response until a terminal phase.
// It is the only writer of the session.
type SessionController struct {
	session     *StreamSession
	transport   ChatTransport
	coordinator *ToolExecutionCoordinator
	searchCap   *WebSearchCapability
	strategy    *ExtractionStrategy
	hooks       SessionHooks
	onFailure   func(reason string)

	messages    []openai.ChatCompletionMessage
	accumulator *ToolCallAccumulator
	toolResults []ToolResult

	maxContinuations int
	maxReferences    int
}

// ControllerOption tweaks a controller at construction.
type ControllerOption func(*SessionController)

func WithMaxContinuations(n int) ControllerOption {
	return func(c *SessionController) { c.maxContinuations = n }
}

func WithMaxReferences(n int) ControllerOption {
	return func(c *SessionController) { c.maxReferences = n }
}

func WithFailureCallback(fn func(reason string)) ControllerOption {
	return func(c *SessionController) { c.onFailure = fn }
}

func NewSessionController(
	session *StreamSession,
	transport ChatTransport,
	coordinator *ToolExecutionCoordinator,
	searchCap *WebSearchCapability,
	messages []openai.ChatCompletionMessage,
	hooks SessionHooks,
	opts ...ControllerOption,
) *SessionController {
	c := &SessionController{
		session:          session,
		transport:        transport,
		coordinator:      coordinator,
		searchCap:        searchCap,
		strategy:         StrategyFor(ResolveFamily(session.ModelID)),
		hooks:            hooks,
		messages:         messages,
		accumulator:      NewToolCallAccumulator(),
		maxContinuations: defaultMaxContinuations,
		maxReferences:    defaultMaxReferences,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToolResults returns every result produced during the session, in
// execution order.
func (c *SessionController) ToolResults() []ToolResult {
	return c.toolResults
}

// Sources returns the search results gathered by the web-search capability.
func (c *SessionController) Sources() []SearchResult {
	if c.searchCap == nil {
		return nil
	}
	return c.searchCap.Sources()
}

// Run consumes responses until the session reaches a terminal phase.
// It returns nil on COMPLETE, ErrCancelled on cancellation, and a wrapped
// transport error on ERROR.
func (c *SessionController) Run(ctx context.Context) error {
	for round := 0; ; round++ {
		if c.session.Cancel.Cancelled() {
			c.session.setPhase(PhaseCancelled)
			return ErrCancelled
		}

		body, err := c.transport.SubmitStreamingRequest(ctx, c.session.ModelID, c.messages)
		if err != nil {
			if round == 0 {
				return c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
			}
			// A broken continuation must not hang the session: answer from
			// what the tools already produced.
			Warnf("Continuation request failed, falling back to local summary: %v", err)
			c.session.AppendContent(SynthesizeFallback(c.toolResults, c.Sources(), c.maxReferences))
			c.finish()
			return nil
		}

		contentBefore := c.session.Content()
		completed, err := c.consumeStream(body)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				c.session.setPhase(PhaseCancelled)
				return err
			}
			return c.fail(err)
		}

		if len(completed) == 0 {
			c.finish()
			return nil
		}
		if round >= c.maxContinuations {
			// Too many tool rounds, force the end.
			Warnf("Tool continuation limit reached after %d rounds", round)
			c.session.AppendContent(SynthesizeFallback(c.toolResults, c.Sources(), c.maxReferences))
			c.finish()
			return nil
		}

		c.executeAndCompose(ctx, completed, c.session.Content()[len(contentBefore):])
	}
}

// executeAndCompose runs the completed calls and rebuilds the message list
// for the next round.
func (c *SessionController) executeAndCompose(ctx context.Context, completed []*ToolCallRecord, partial string) {
	c.session.SetToolStatus(fmt.Sprintf("executing %d tool call(s)", len(completed)))
	results, ok := c.coordinator.ExecuteAll(ctx, completed)
	if !ok {
		// Another completion signal won the race; nothing to do.
		c.session.SetToolStatus("")
		return
	}
	for _, result := range results {
		// Raw tool output stays on the side; the visible answer is always
		// produced by the model's continuation.
		c.session.AppendToolOutput(result.Content)
	}
	c.toolResults = append(c.toolResults, results...)

	sources := c.Sources()
	urls := make([]string, 0, len(sources))
	for _, src := range sources {
		urls = append(urls, src.URL)
	}
	c.session.AddCitedSources(urls)
	c.session.SetToolStatus("")

	c.messages = ComposeContinuation(c.messages, partial, completed, results, sources, c.maxReferences)
	c.session.PendingToolCalls = nil
	c.accumulator.Reset()
	c.session.setPhase(PhaseContinuation)
}

// consumeStream drains one response stream, merging every extracted delta
// into the session. It returns the completed tool-call records when the
// stream finished with a tool_calls signal, or nil for a plain completion.
func (c *SessionController) consumeStream(body io.ReadCloser) ([]*ToolCallRecord, error) {
	defer body.Close()
	reader := NewEventStreamReader(body, c.session.Cancel)

	var completed []*ToolCallRecord
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			return completed, nil
		}
		if err != nil {
			return nil, err
		}

		delta, xerr := c.strategy.Extract(payload)
		if xerr != nil {
			// Occasional transport noise is expected; one bad event never
			// aborts the session.
			Warnf("Skipping malformed event: %v", xerr)
			continue
		}
		completed = c.merge(delta, completed)
	}
}

// merge applies one normalized delta to the session, driving the phase
// machine. Returns the (possibly updated) completed record set.
func (c *SessionController) merge(delta ExtractedDelta, completed []*ToolCallRecord) []*ToolCallRecord {
	if delta.HasThinking && delta.Thinking != "" {
		if !c.session.HasCompletedThinking {
			switch c.session.Phase() {
			case PhaseInit, PhaseStreaming, PhaseContinuation:
				c.session.setPhase(PhaseThinking)
			}
		}
		c.session.AppendThinking(delta.Thinking)
	}

	if delta.HasContent && delta.Content != "" {
		switch c.session.Phase() {
		case PhaseThinking:
			// First regular content after thinking; the toggle latches shut.
			c.session.HasCompletedThinking = true
			c.session.setPhase(PhaseStreaming)
		case PhaseInit, PhaseContinuation:
			c.session.setPhase(PhaseStreaming)
		}
		c.session.AppendContent(delta.Content)
	}

	if len(delta.ToolCallDeltas) > 0 {
		for _, d := range delta.ToolCallDeltas {
			c.accumulator.Apply(d)
		}
		switch c.session.Phase() {
		case PhaseInit, PhaseStreaming, PhaseThinking, PhaseContinuation:
			c.session.setPhase(PhaseToolPending)
		}
	}

	if delta.FinishReason == FinishReasonToolCalls && c.accumulator.HasNamed() {
		// A second tool_calls signal while already executing is a no-op.
		if c.session.Phase() != PhaseToolExecuting {
			c.session.setPhase(PhaseToolExecuting)
			completed = c.accumulator.Finalize()
			c.session.PendingToolCalls = completed
		}
	}

	if delta.Usage != nil {
		c.session.MergeUsage(*delta.Usage)
	}
	c.session.AddCitedSources(delta.CitedSources)
	return completed
}

func (c *SessionController) finish() {
	c.session.setPhase(PhaseComplete)
	c.hooks.complete(c.session.Key(), c.session.Content())
}

func (c *SessionController) fail(err error) error {
	c.session.setPhase(PhaseError)
	if c.onFailure != nil {
		c.onFailure(err.Error())
	}
	return err
}
