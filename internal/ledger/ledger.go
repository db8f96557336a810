package ledger

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// #region ledger

// Ledger is an in-memory, append-only event log for one conversation.
// Timestamps never go backwards: an event older than the last one is
// stamped with the last timestamp.
type Ledger struct {
	mu     sync.Mutex
	events []Event
}

// NewLedger seeds a ledger with previously persisted events.
func NewLedger(seed []Event) *Ledger {
	return &Ledger{events: append([]Event(nil), seed...)}
}

// Append adds events in submission order and returns what was stored.
func (l *Ledger) Append(events ...Event) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.T.Valid() {
			e.T = KindNote
		}
		if n := len(l.events); n > 0 && e.At.Before(l.events[n-1].At) {
			e.At = l.events[n-1].At
		}
		l.events = append(l.events, e)
		stored = append(stored, e)
	}
	return stored
}

// Events returns a copy of all events.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Len returns the number of events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// #endregion ledger

// #region digest

// DefaultDigestSize is how many trailing events Digest keeps by default.
const DefaultDigestSize = 6

// Digest compacts the last n events into one line for the generator, e.g.
// "SHIFT depth S2->R1 | NEXT R→I | HOLD stall". META events are skipped.
// Empty when there is nothing to summarize.
func Digest(events []Event, n int) string {
	if n <= 0 {
		n = DefaultDigestSize
	}
	parts := make([]string, 0, n)
	for i := len(events) - 1; i >= 0 && len(parts) < n; i-- {
		e := events[i]
		if e.T == KindMeta {
			continue
		}
		parts = append(parts, digestPart(e))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " | ")
}

func digestPart(e Event) string {
	var b strings.Builder
	b.WriteString(string(e.T))
	if k := e.Key(); k != "" {
		b.WriteString(" ")
		b.WriteString(k)
	}
	if v := digestValue(e.V); v != "" {
		b.WriteString(" ")
		b.WriteString(v)
	}
	return b.String()
}

func digestValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return truncate(x, 40)
	case fmt.Stringer:
		return truncate(x.String(), 40)
	case float64, int, bool:
		return fmt.Sprint(x)
	default:
		return ""
	}
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "…"
}

// #endregion digest

// #region builders

// Stamp returns now in UTC truncated to milliseconds, the ledger's time
// resolution on the wire.
func Stamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Millisecond)
}

// #endregion builders
