package service

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader returns one scripted chunk per Read call, simulating
// physical reads that split logical lines in the middle.
type chunkReader struct {
	chunks []string
	pos    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.chunks) {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[c.pos])
	if n < len(c.chunks[c.pos]) {
		c.chunks[c.pos] = c.chunks[c.pos][n:]
	} else {
		c.pos++
	}
	return n, nil
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func drainEvents(t *testing.T, r *EventStreamReader) []string {
	t.Helper()
	var events []string
	for {
		payload, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, payload)
	}
}

func TestEventStreamReader_CompleteLines(t *testing.T) {
	src := strings.NewReader("data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0] != `{"a":1}` || events[1] != `{"b":2}` {
		t.Fatalf("unexpected events: %v", events)
	}
	if !r.Done() {
		t.Fatal("expected terminal sentinel to be recognized")
	}
}

func TestEventStreamReader_SplitMidLine(t *testing.T) {
	// One logical event split across three physical reads.
	src := &chunkReader{chunks: []string{
		"data: {\"content\":",
		"\"hel",
		"lo\"}\ndata: [DONE]\n",
	}}
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d: %v", len(events), events)
	}
	if events[0] != `{"content":"hello"}` {
		t.Fatalf("partial line emitted early: %q", events[0])
	}
}

func TestEventStreamReader_CRLFAndComments(t *testing.T) {
	src := strings.NewReader(": keepalive\r\ndata: {\"x\":1}\r\nevent: ping\r\ndata: [DONE]\r\n")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 || events[0] != `{"x":1}` {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestEventStreamReader_DuplicateDone(t *testing.T) {
	src := strings.NewReader("data: {\"x\":1}\ndata: [DONE]\ndata: {\"y\":2}\ndata: [DONE]\n")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 {
		t.Fatalf("events after the sentinel must be dropped, got %v", events)
	}
	// A second Next after EOF stays EOF.
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestEventStreamReader_EOFWithoutSentinel(t *testing.T) {
	src := strings.NewReader("data: {\"x\":1}\n")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %v", events)
	}
	if r.Done() {
		t.Fatal("sentinel was never sent")
	}
}

func TestEventStreamReader_TrailingLineWithoutNewline(t *testing.T) {
	src := strings.NewReader("data: {\"x\":1}")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 || events[0] != `{"x":1}` {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestEventStreamReader_Cancellation(t *testing.T) {
	cancel := NewCancelToken()
	src := strings.NewReader("data: {\"x\":1}\ndata: {\"y\":2}\ndata: [DONE]\n")
	r := NewEventStreamReader(src, cancel)

	if _, err := r.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	cancel.Cancel()
	if _, err := r.Next(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	// Once set, no further events come out even though more are buffered.
	if _, err := r.Next(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled on repeat, got %v", err)
	}
}

func TestEventStreamReader_TransportFault(t *testing.T) {
	r := NewEventStreamReader(failingReader{}, NewCancelToken())
	_, err := r.Next()
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestEventStreamReader_AdaptiveBufferGrowth(t *testing.T) {
	// A payload larger than the initial buffer must still arrive whole.
	big := strings.Repeat("x", 4*minReadBuffer)
	src := strings.NewReader("data: {\"content\":\"" + big + "\"}\ndata: [DONE]\n")
	r := NewEventStreamReader(src, NewCancelToken())

	events := drainEvents(t, r)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !strings.Contains(events[0], big) {
		t.Fatal("large payload was truncated")
	}
	if len(r.buf) <= minReadBuffer {
		t.Fatal("read buffer never grew under sustained payload")
	}
}
