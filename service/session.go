package service

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// textBuffer is an append-only string buffer with a single writer (the
// session controller) and any number of snapshot readers (the delivery
// task). The whole value is swapped atomically per append, so readers
// always observe a complete prefix and need no lock.
type textBuffer struct {
	v atomic.Value // string
}

func (b *textBuffer) Append(s string) {
	if s == "" {
		return
	}
	cur, _ := b.v.Load().(string)
	b.v.Store(cur + s)
}

func (b *textBuffer) String() string {
	cur, _ := b.v.Load().(string)
	return cur
}

func (b *textBuffer) Len() int {
	return len(b.String())
}

// StreamSession is the owned, mutable aggregate state of one logical
// interaction, possibly spanning several underlying requests due to tool
// continuations. The SessionController is its only writer; everything the
// delivery task touches is an atomic snapshot.
type StreamSession struct {
	ID             string
	ConversationID string
	ModelID        string

	phase      atomic.Int32
	main       textBuffer
	thinking   textBuffer
	toolOutput textBuffer

	toolStatus atomic.Value // string
	cited      atomic.Value // []string
	usage      atomic.Value // Usage

	Cancel *CancelToken

	// Controller-owned fields, never touched by the delivery task.
	PendingToolCalls     []*ToolCallRecord
	HasCompletedThinking bool

	CreatedAt  time.Time
	lastUpdate atomic.Int64 // unix nanos
}

func NewStreamSession(conversationID, modelID string) *StreamSession {
	s := &StreamSession{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		ModelID:        modelID,
		Cancel:         NewCancelToken(),
		CreatedAt:      time.Now(),
	}
	s.phase.Store(int32(PhaseInit))
	s.lastUpdate.Store(s.CreatedAt.UnixNano())
	return s
}

// Key returns the identifier shared by the registry and the persistence
// side-channel: the caller-supplied conversation id when present, the
// generated session id otherwise.
func (s *StreamSession) Key() string {
	if s.ConversationID != "" {
		return s.ConversationID
	}
	return s.ID
}

func (s *StreamSession) Phase() Phase {
	return Phase(s.phase.Load())
}

// setPhase is called by the controller only. Terminal phases are sticky.
func (s *StreamSession) setPhase(p Phase) {
	if s.Phase().Terminal() {
		return
	}
	s.phase.Store(int32(p))
	s.touch()
}

func (s *StreamSession) touch() {
	s.lastUpdate.Store(time.Now().UnixNano())
}

func (s *StreamSession) LastUpdate() time.Time {
	return time.Unix(0, s.lastUpdate.Load())
}

// AppendContent adds to the consumer-visible answer buffer.
func (s *StreamSession) AppendContent(text string) {
	if s.Phase().Terminal() {
		return
	}
	s.main.Append(text)
	s.touch()
}

// AppendThinking adds to the secondary reasoning channel. Never merged
// into the answer buffer.
func (s *StreamSession) AppendThinking(text string) {
	if s.Phase().Terminal() {
		return
	}
	s.thinking.Append(text)
	s.touch()
}

// AppendToolOutput records raw tool output on the side. The answer buffer
// only ever receives model-generated text.
func (s *StreamSession) AppendToolOutput(text string) {
	if s.Phase().Terminal() {
		return
	}
	s.toolOutput.Append(text)
	s.touch()
}

func (s *StreamSession) Content() string    { return s.main.String() }
func (s *StreamSession) Thinking() string   { return s.thinking.String() }
func (s *StreamSession) ToolOutput() string { return s.toolOutput.String() }

func (s *StreamSession) SetToolStatus(status string) {
	s.toolStatus.Store(status)
	s.touch()
}

func (s *StreamSession) AddCitedSources(urls []string) {
	if len(urls) == 0 {
		return
	}
	cur, _ := s.cited.Load().([]string)
	merged := make([]string, len(cur), len(cur)+len(urls))
	copy(merged, cur)
	for _, u := range urls {
		if u == "" || containsString(merged, u) {
			continue
		}
		merged = append(merged, u)
	}
	s.cited.Store(merged)
}

func (s *StreamSession) CitedSources() []string {
	cur, _ := s.cited.Load().([]string)
	return cur
}

func (s *StreamSession) MergeUsage(u Usage) {
	cur, _ := s.usage.Load().(Usage)
	cur.Merge(u)
	s.usage.Store(cur)
}

func (s *StreamSession) AddUsage(u Usage) {
	cur, _ := s.usage.Load().(Usage)
	cur.Add(u)
	s.usage.Store(cur)
}

func (s *StreamSession) Usage() Usage {
	cur, _ := s.usage.Load().(Usage)
	return cur
}

// Snapshot returns a consistent read-only view for the delivery task.
func (s *StreamSession) Snapshot() Snapshot {
	status, _ := s.toolStatus.Load().(string)
	return Snapshot{
		Content:         s.Content(),
		ThinkingContent: s.Thinking(),
		Phase:           s.Phase(),
		ToolStatus:      status,
		CitedSources:    s.CitedSources(),
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
