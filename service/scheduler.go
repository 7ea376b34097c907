package service

import (
	"context"
	"time"
)

// Update cadence ramps down as delivered content grows: the first tokens
// matter most for perceived latency, sustained output only needs a smooth
// visual rhythm. Byte arrival is bursty, so a bounded-interval poll beats
// event-push here.
const (
	fastInterval   = 50 * time.Millisecond
	mediumInterval = 150 * time.Millisecond
	slowInterval   = 400 * time.Millisecond

	mediumThreshold = 2 * 1024
	slowThreshold   = 16 * 1024

	// minDeltaBytes suppresses flicker: a snapshot differing by fewer
	// bytes than this is held back unless the phase moved.
	minDeltaBytes = 8
)

// UpdateScheduler is the delivery task: it polls the session on a timer
// and pushes snapshots to the Sink. It never mutates the session.
type UpdateScheduler struct {
	session *StreamSession
	sink    Sink
	hooks   SessionHooks

	lastDelivered Snapshot
	delivered     bool
}

func NewUpdateScheduler(session *StreamSession, sink Sink, hooks SessionHooks) *UpdateScheduler {
	return &UpdateScheduler{
		session: session,
		sink:    sink,
		hooks:   hooks,
	}
}

// Run polls until the session reaches a terminal phase or the context
// ends. One final snapshot is always emitted at completion regardless of
// throttling state; cancellation takes effect within one poll interval.
// finalize, when non-nil, supplies the tool and search results for the
// terminal snapshot (they live with the controller, not the session).
func (u *UpdateScheduler) Run(ctx context.Context, finalize func() ([]ToolResult, []SearchResult)) {
	for {
		snap := u.session.Snapshot()
		if snap.Phase.Terminal() {
			u.deliverFinal(snap, finalize)
			return
		}
		if !u.session.Cancel.Cancelled() {
			u.maybeDeliver(snap)
		}

		select {
		case <-ctx.Done():
			u.deliverFinal(u.session.Snapshot(), finalize)
			return
		case <-time.After(u.interval(snap)):
		}
	}
}

func (u *UpdateScheduler) interval(snap Snapshot) time.Duration {
	size := len(snap.Content) + len(snap.ThinkingContent)
	switch {
	case size < mediumThreshold:
		return fastInterval
	case size < slowThreshold:
		return mediumInterval
	default:
		return slowInterval
	}
}

// maybeDeliver pushes a snapshot unless it is identical to, or a
// sub-threshold delta from, the last delivered one.
func (u *UpdateScheduler) maybeDeliver(snap Snapshot) {
	if u.delivered {
		last := u.lastDelivered
		grown := len(snap.Content) - len(last.Content) + len(snap.ThinkingContent) - len(last.ThinkingContent)
		samePhase := snap.Phase == last.Phase && snap.ToolStatus == last.ToolStatus
		if samePhase && grown < minDeltaBytes && len(snap.CitedSources) == len(last.CitedSources) {
			return
		}
	}
	u.sink.OnUpdate(snap)
	u.hooks.progress(u.session.Key(), snap.Content)
	u.lastDelivered = snap
	u.delivered = true
}

func (u *UpdateScheduler) deliverFinal(snap Snapshot, finalize func() ([]ToolResult, []SearchResult)) {
	// The closing update ships whatever throttling held back.
	if !u.delivered || !sameSnapshot(snap, u.lastDelivered) {
		u.sink.OnUpdate(snap)
	}
	if snap.Phase == PhaseError {
		// The failure callback already fired; no final snapshot follows.
		return
	}
	out := FinalSnapshot{
		FinalContent: snap.Content,
		Usage:        u.session.Usage(),
	}
	// finalize reads controller-owned state, which only quiesces once the
	// session is terminal. A context cutoff mid-stream skips it.
	if finalize != nil && snap.Phase.Terminal() {
		out.ToolResults, out.SearchResults = finalize()
	}
	u.sink.OnFinal(out)
}

// sameSnapshot compares the fields a consumer can see; the sources slice
// participates by length only.
func sameSnapshot(a, b Snapshot) bool {
	return a.Content == b.Content &&
		a.ThinkingContent == b.ThinkingContent &&
		a.Phase == b.Phase &&
		a.ToolStatus == b.ToolStatus &&
		len(a.CitedSources) == len(b.CitedSources)
}
