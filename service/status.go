package service

import "fmt"

// Phase is the lifecycle state of a StreamSession.
// Transitions are monotonic except the bounded STREAMING<->THINKING toggle,
// which is only allowed before the thinking channel has closed for good.
type Phase int32

const (
	PhaseInit Phase = iota
	PhaseStreaming
	PhaseThinking
	PhaseToolPending
	PhaseToolExecuting
	PhaseContinuation
	PhaseComplete
	PhaseError
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseStreaming:
		return "streaming"
	case PhaseThinking:
		return "thinking"
	case PhaseToolPending:
		return "tool_pending"
	case PhaseToolExecuting:
		return "tool_executing"
	case PhaseContinuation:
		return "continuation"
	case PhaseComplete:
		return "complete"
	case PhaseError:
		return "error"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Terminal reports whether no further mutation of the session is allowed.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseCancelled
}

// Snapshot is one incremental view of a session, delivered to a Sink.
type Snapshot struct {
	Content         string
	ThinkingContent string
	Phase           Phase
	ToolStatus      string
	CitedSources    []string
}

// FinalSnapshot is delivered exactly once when a session completes.
type FinalSnapshot struct {
	FinalContent  string
	Usage         Usage
	ToolResults   []ToolResult
	SearchResults []SearchResult
}

// Sink receives session output. Implementations must not block for long;
// the delivery task shares its cadence across all updates.
type Sink interface {
	OnUpdate(snap Snapshot)
	OnFinal(final FinalSnapshot)
	OnFailure(reason string)
}

// SessionHooks is the persistence side-channel. Any field may be nil.
type SessionHooks struct {
	OnProgress func(sessionKey, partialContent string)
	OnComplete func(sessionKey, finalContent string)
}

func (h SessionHooks) progress(key, partial string) {
	if h.OnProgress != nil {
		h.OnProgress(key, partial)
	}
}

func (h SessionHooks) complete(key, final string) {
	if h.OnComplete != nil {
		h.OnComplete(key, final)
	}
}
