package service

import (
	"strings"
	"sync"
	"testing"
)

func TestTextBuffer_SnapshotIsAlwaysAPrefix(t *testing.T) {
	var buf textBuffer
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			buf.Append("ab")
		}
	}()

	// Concurrent readers must only ever observe complete prefixes.
	for i := 0; i < 200; i++ {
		s := buf.String()
		if len(s)%2 != 0 || strings.ReplaceAll(s, "ab", "") != "" {
			t.Fatalf("torn read: %q", s)
		}
	}
	<-done
	if buf.Len() != 1000 {
		t.Fatalf("lost appends: len = %d", buf.Len())
	}
}

func TestSession_KeyPrefersConversationID(t *testing.T) {
	named := NewStreamSession("my-session", "m")
	if named.Key() != "my-session" {
		t.Errorf("Key() = %q, want the conversation id", named.Key())
	}
	anon := NewStreamSession("", "m")
	if anon.Key() != anon.ID {
		t.Errorf("Key() = %q, want the session id %q", anon.Key(), anon.ID)
	}
}

func TestSession_PhaseTransitions(t *testing.T) {
	session := NewStreamSession("conv", "m")
	if session.Phase() != PhaseInit {
		t.Fatalf("new session phase = %s", session.Phase())
	}
	session.setPhase(PhaseStreaming)
	session.setPhase(PhaseComplete)
	if !session.Phase().Terminal() {
		t.Fatal("COMPLETE must be terminal")
	}
	// Terminal phases are sticky.
	session.setPhase(PhaseStreaming)
	if session.Phase() != PhaseComplete {
		t.Fatalf("terminal phase overwritten: %s", session.Phase())
	}
}

func TestSession_AppendsFreezeAtTerminal(t *testing.T) {
	session := NewStreamSession("conv", "m")
	session.AppendContent("kept")
	session.AppendThinking("thought")
	session.setPhase(PhaseCancelled)

	session.AppendContent(" dropped")
	session.AppendThinking(" dropped")
	session.AppendToolOutput("dropped")

	if session.Content() != "kept" {
		t.Errorf("content = %q", session.Content())
	}
	if session.Thinking() != "thought" {
		t.Errorf("thinking = %q", session.Thinking())
	}
	if session.ToolOutput() != "" {
		t.Errorf("tool output = %q", session.ToolOutput())
	}
}

func TestSession_CitedSourcesDeduplicate(t *testing.T) {
	session := NewStreamSession("conv", "m")
	session.AddCitedSources([]string{"https://a", "https://b"})
	session.AddCitedSources([]string{"https://b", "", "https://c"})

	got := session.CitedSources()
	want := []string{"https://a", "https://b", "https://c"}
	if len(got) != len(want) {
		t.Fatalf("cited = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cited = %v, want %v", got, want)
		}
	}
}

func TestSession_UsageMergeTakesRunningMax(t *testing.T) {
	session := NewStreamSession("conv", "m")
	session.MergeUsage(Usage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12})
	session.MergeUsage(Usage{InputTokens: 10, OutputTokens: 9, TotalTokens: 19})

	usage := session.Usage()
	if usage.InputTokens != 10 || usage.OutputTokens != 9 {
		t.Errorf("usage = %+v", usage)
	}
	if usage.TotalTokens != 19 {
		t.Errorf("total = %d, want the wire total 19", usage.TotalTokens)
	}
}

func TestUsage_DetailCountsDoNotInflateTotal(t *testing.T) {
	var u Usage
	u.Merge(Usage{InputTokens: 100, OutputTokens: 50, CachedTokens: 80, ThoughtTokens: 30, TotalTokens: 150})
	if u.TotalTokens != 150 {
		t.Fatalf("total = %d, want 150", u.TotalTokens)
	}

	u.Add(Usage{InputTokens: 10, OutputTokens: 5, CachedTokens: 8, TotalTokens: 15})
	if u.TotalTokens != 165 {
		t.Fatalf("cross-round total = %d, want 165", u.TotalTokens)
	}
}

func TestSession_SnapshotConsistency(t *testing.T) {
	session := NewStreamSession("conv", "m")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			session.AppendContent("x")
		}
		session.setPhase(PhaseComplete)
	}()

	for {
		snap := session.Snapshot()
		if strings.ReplaceAll(snap.Content, "x", "") != "" {
			t.Fatalf("torn snapshot: %q", snap.Content)
		}
		if snap.Phase.Terminal() {
			break
		}
	}
	wg.Wait()
	if session.Content() != strings.Repeat("x", 300) {
		t.Fatalf("content length = %d", len(session.Content()))
	}
}
