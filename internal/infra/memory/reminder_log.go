package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
)

type sentKey struct {
	kind       reminder.TemplateKind
	address    string
	relatedKey string
}

// ReminderLog is an append-only send-log. The sent index mirrors the partial unique index
// of the SQL schema.
type ReminderLog struct {
	mu      sync.Mutex
	entries []reminder.LogEntry
	sent    map[sentKey]struct{}
}

func NewReminderLog() *ReminderLog {
	return &ReminderLog{sent: make(map[sentKey]struct{})}
}

func (l *ReminderLog) HasSent(ctx context.Context, kind reminder.TemplateKind, address, relatedKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[sentKey{kind, address, relatedKey}]
	return ok, nil
}

func (l *ReminderLog) Append(ctx context.Context, e *reminder.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Status == reminder.LogStatusSent {
		key := sentKey{e.TemplateKind, e.RecipientAddress, e.RelatedKey}
		if _, ok := l.sent[key]; ok {
			return reminder.ErrAlreadySent
		}
		l.sent[key] = struct{}{}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}
	l.entries = append(l.entries, *e)
	return nil
}

func (l *ReminderLog) ReferencesEvent(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (l *ReminderLog) LatestSentOccurrence(ctx context.Context, eventID string) (mo.Option[recurrence.Date], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	latest := mo.None[recurrence.Date]()
	for _, e := range l.entries {
		if e.EventID != eventID || e.Status != reminder.LogStatusSent {
			continue
		}
		if cur, ok := latest.Get(); !ok || e.OccurrenceDate.After(cur) {
			latest = mo.Some(e.OccurrenceDate)
		}
	}
	return latest, nil
}

// Entries returns a copy of the log in append order.
func (l *ReminderLog) Entries() []reminder.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]reminder.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
