package app_test

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/participant"
	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
	"recurring_events/internal/infra/memory"
)

func d(s string) recurrence.Date { return recurrence.MustParseDate(s) }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, kind reminder.TemplateKind, address string, vars map[string]string) error {
	args := m.Called(ctx, kind, address, vars)
	return args.Error(0)
}

// countingSender records every delivery; safe for concurrent use.
type countingSender struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingSender) Send(ctx context.Context, kind reminder.TemplateKind, address string, vars map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[string(kind)+"|"+address+"|"+vars[reminder.VarDate]]++
	return nil
}

type stores struct {
	events    *memory.EventRepository
	overrides *memory.OverrideRepository
	ledger    *memory.AttendanceRepository
	directory *memory.Directory
	log       *memory.ReminderLog
}

func newStores() *stores {
	return &stores{
		events:    memory.NewEventRepository(),
		overrides: memory.NewOverrideRepository(),
		ledger:    memory.NewAttendanceRepository(),
		directory: memory.NewDirectory(),
		log:       memory.NewReminderLog(),
	}
}

func (s *stores) oneOff(t *testing.T, id string, date recurrence.Date) *event.Event {
	t.Helper()
	e := &event.Event{ID: id, Title: "Event " + id, Status: event.StatusPublished, StartDate: date}
	require.NoError(t, s.events.Create(context.Background(), e))
	return e
}

func (s *stores) recurring(t *testing.T, id string, r recurrence.Rule) *event.Event {
	t.Helper()
	e := &event.Event{ID: id, Title: "Series " + id, Status: event.StatusPublished}
	require.NoError(t, e.SetRule(r))
	require.NoError(t, s.events.Create(context.Background(), e))
	return e
}

func (s *stores) person(t *testing.T, id, address string, guest bool) {
	t.Helper()
	require.NoError(t, s.directory.Create(context.Background(), &participant.Participant{
		ID:          id,
		Address:     address,
		DisplayName: sql.NullString{String: id, Valid: true},
		IsGuest:     guest,
	}))
}

func (s *stores) rsvp(t *testing.T, eventID string, date recurrence.Date, participantID string, status attendance.Status, guests int) {
	t.Helper()
	require.NoError(t, s.ledger.Upsert(context.Background(), &attendance.Record{
		EventID:       eventID,
		Date:          date,
		ParticipantID: participantID,
		Status:        status,
		GuestCount:    guests,
	}, mo.None[int]()))
}

func mustRule(t *testing.T, freq recurrence.Frequency, interval int, anchor string, end recurrence.End, opts ...recurrence.RuleOption) recurrence.Rule {
	t.Helper()
	r, err := recurrence.NewRule(freq, interval, d(anchor), end, opts...)
	require.NoError(t, err)
	return r
}
