package chat

import (
	"sync"
	"time"
)

// Log is the single source of truth for the rendered message sequence.
// It merges three origins of the same logical write: the local optimistic
// send, the server's ack back to the sender, and the room broadcast every
// member receives. Delivery order between ack and broadcast is not
// guaranteed, so both merge paths must be idempotent.
type Log struct {
	mu   sync.Mutex
	msgs []Message
}

func NewLog() *Log { return &Log{} }

// AppendPending records an optimistic send. Always appends: the UI shows the
// message immediately and reconciliation replaces it later.
func (l *Log) AppendPending(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
}

// ApplyBroadcast merges a room broadcast. Broadcasts for rooms other than
// activeRoom are discarded, not buffered. An accepted broadcast supersedes
// any optimistic placeholder still in the log, because it is guaranteed to
// arrive after the emit that produced it: all pending entries are dropped
// and the durable message appended. Returns whether the event was accepted.
func (l *Log) ApplyBroadcast(m Message, activeRoom string) bool {
	if activeRoom == "" || m.RoomID != activeRoom {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.contains(m.ID) {
		return true // ack got here first
	}
	kept := l.msgs[:0]
	for _, cur := range l.msgs {
		if !cur.Pending() {
			kept = append(kept, cur)
		}
	}
	l.msgs = append(kept, m)
	return true
}

// ApplyAck merges the server's confirmation of our own send, carrying the
// durable id. If the broadcast already delivered that id this is a no-op.
// Otherwise the first still-pending entry matching by text and room is
// replaced in place, preserving its position; with no match the ack is
// appended as a new entry.
//
// The (text, room, pending) match is a heuristic: two identical texts sent
// in quick succession can reconcile against the wrong placeholder. Accepted
// limitation.
func (l *Log) ApplyAck(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.contains(m.ID) {
		return
	}
	for i, cur := range l.msgs {
		if cur.Pending() && cur.RoomID == m.RoomID && cur.Text == m.Text {
			l.msgs[i] = m
			return
		}
	}
	l.msgs = append(l.msgs, m)
}

// Merge seeds the log with fetched history. History entries come first, in
// their fetched order, skipping ids already present; live entries that
// arrived while the fetch was in flight keep their positions after them.
func (l *Log) Merge(history []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make([]Message, 0, len(history)+len(l.msgs))
	seen := make(map[string]struct{}, len(history))
	for _, m := range history {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, cur := range l.msgs {
		if _, dup := seen[cur.ID]; !dup {
			merged = append(merged, cur)
		}
	}
	l.msgs = merged
}

// MarkFailed flags pending entries created at or before cutoff as failed and
// returns their ids. A placeholder with no server echo inside the timeout
// window will never reconcile; flagging it keeps it visible instead of
// silently stuck.
func (l *Log) MarkFailed(cutoff time.Time) []string {
	ms := cutoff.UnixMilli()
	l.mu.Lock()
	defer l.mu.Unlock()
	var failed []string
	for i, cur := range l.msgs {
		if cur.Pending() && !cur.Failed && cur.CreatedAt <= ms {
			l.msgs[i].Failed = true
			failed = append(failed, cur.ID)
		}
	}
	return failed
}

// Visible returns a copy of the entries scoped to roomID, in arrival order.
// Events with skewed timestamps are not re-sorted.
func (l *Log) Visible(roomID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out
}

// Clear drops everything. Called on room leave to bound memory and keep a
// later join's history fetch from merging against stale entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// contains assumes l.mu is held.
func (l *Log) contains(id string) bool {
	for _, cur := range l.msgs {
		if cur.ID == id {
			return true
		}
	}
	return false
}
