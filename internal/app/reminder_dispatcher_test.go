package app_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"recurring_events/internal/app"
	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
)

var runAt = time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

func newDispatcher(s *stores, sender reminder.Sender) *app.ReminderDispatcher {
	return app.NewReminderDispatcher(s.events, s.overrides, s.ledger, s.directory, s.log, sender, testLogger(),
		app.WithLocation(time.UTC), app.WithConcurrency(2))
}

func TestDispatcher_OneOffEventIsIdempotent(t *testing.T) {
	s := newStores()
	s.oneOff(t, "ev1", d("2025-03-12"))
	s.person(t, "member", "tg:1", false)
	s.person(t, "guest", "tg:2", true)
	s.rsvp(t, "ev1", d("2025-03-12"), "member", attendance.StatusAttending, 0)
	s.rsvp(t, "ev1", d("2025-03-12"), "guest", attendance.StatusAttending, 0)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:1", mock.Anything).Return(nil).Once()
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:2", mock.Anything).Return(nil).Once()
	dispatcher := newDispatcher(s, sender)

	first := dispatcher.Run(context.Background(), runAt)
	assert.Equal(t, app.Summary{Sent: 2, Events: 1}, first)

	second := dispatcher.Run(context.Background(), runAt)
	assert.Equal(t, app.Summary{Skipped: 2, Events: 1}, second)

	sender.AssertExpectations(t)
	entries := s.log.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, reminder.TemplateDayOf, e.TemplateKind)
		assert.Equal(t, reminder.LogStatusSent, e.Status)
		assert.Equal(t, "ev1", e.RelatedKey)
	}
}

func TestDispatcher_DayBeforeForRecurringOccurrence(t *testing.T) {
	s := newStores()
	s.recurring(t, "weekly", mustRule(t, recurrence.Weekly, 1, "2025-03-06", recurrence.Never()))
	s.person(t, "p1", "tg:10", false)
	s.rsvp(t, "weekly", d("2025-03-13"), "p1", attendance.StatusMaybe, 0)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, reminder.TemplateDayBefore, "tg:10", map[string]string{
		reminder.VarEventID:    "weekly",
		reminder.VarEventTitle: "Series weekly",
		reminder.VarDate:       "2025-03-13",
	}).Return(nil).Once()

	summary := newDispatcher(s, sender).Run(context.Background(), runAt)

	assert.Equal(t, 1, summary.Sent)
	sender.AssertExpectations(t)
	entries := s.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "weekly:2025-03-13", entries[0].RelatedKey)
	assert.Equal(t, d("2025-03-13"), entries[0].OccurrenceDate)
}

func TestDispatcher_CancelledOccurrenceIsSkippedUntilRestored(t *testing.T) {
	s := newStores()
	s.recurring(t, "daily", mustRule(t, recurrence.Daily, 1, "2025-03-01", recurrence.Never()))
	s.person(t, "p1", "tg:10", false)
	s.rsvp(t, "daily", d("2025-03-12"), "p1", attendance.StatusAttending, 0)

	overrides := app.NewOverrideService(s.events, s.overrides, testLogger())
	require.NoError(t, overrides.Cancel(context.Background(), "daily", d("2025-03-12")))

	sender := &mockSender{}
	dispatcher := newDispatcher(s, sender)

	summary := dispatcher.Run(context.Background(), runAt)
	assert.Zero(t, summary.Sent)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, overrides.Uncancel(context.Background(), "daily", d("2025-03-12")))
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:10", mock.Anything).Return(nil).Once()

	summary = dispatcher.Run(context.Background(), runAt)
	assert.Equal(t, 1, summary.Sent)
	sender.AssertExpectations(t)
}

func TestDispatcher_FailedDeliveryIsRetried(t *testing.T) {
	s := newStores()
	s.oneOff(t, "ev1", d("2025-03-13"))
	s.person(t, "p1", "tg:10", false)
	s.rsvp(t, "ev1", d("2025-03-13"), "p1", attendance.StatusAttending, 2)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, reminder.TemplateDayBefore, "tg:10", mock.Anything).Return(errors.New("bot blocked")).Once()
	sender.On("Send", mock.Anything, reminder.TemplateDayBefore, "tg:10", mock.Anything).Return(nil).Once()
	dispatcher := newDispatcher(s, sender)

	first := dispatcher.Run(context.Background(), runAt)
	assert.Equal(t, app.Summary{Failed: 1, Events: 1}, first)

	second := dispatcher.Run(context.Background(), runAt)
	assert.Equal(t, app.Summary{Sent: 1, Events: 1}, second)

	entries := s.log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, reminder.LogStatusFailed, entries[0].Status)
	assert.Equal(t, "bot blocked", entries[0].Error.String)
	assert.Equal(t, reminder.LogStatusSent, entries[1].Status)
	sender.AssertExpectations(t)
}

func TestDispatcher_ExpansionFailureDoesNotAbortPass(t *testing.T) {
	s := newStores()
	broken := &event.Event{
		ID:             "broken",
		Status:         event.StatusPublished,
		StartDate:      d("2025-03-01"),
		RecurrenceRule: sql.NullString{String: "FREQ=FORTNIGHTLY;DTSTART=20250301;END=NEVER", Valid: true},
	}
	require.NoError(t, s.events.Create(context.Background(), broken))
	s.oneOff(t, "ok", d("2025-03-12"))
	s.person(t, "p1", "tg:10", false)
	s.rsvp(t, "ok", d("2025-03-12"), "p1", attendance.StatusAttending, 0)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:10", mock.Anything).Return(nil).Once()

	summary := newDispatcher(s, sender).Run(context.Background(), runAt)

	assert.Equal(t, app.Summary{Sent: 1, ExpansionFailures: 1, Events: 2}, summary)
	sender.AssertExpectations(t)
}

func TestDispatcher_RecipientSelection(t *testing.T) {
	s := newStores()
	s.oneOff(t, "ev1", d("2025-03-12"))
	s.person(t, "member-maybe", "tg:1", false)
	s.person(t, "member-declined", "tg:2", false)
	s.person(t, "guest-maybe", "tg:3", true)
	s.person(t, "guest-attending", "tg:4", true)
	s.person(t, "same-address", "tg:1", false)
	s.rsvp(t, "ev1", d("2025-03-12"), "member-maybe", attendance.StatusMaybe, 0)
	s.rsvp(t, "ev1", d("2025-03-12"), "member-declined", attendance.StatusDeclined, 0)
	s.rsvp(t, "ev1", d("2025-03-12"), "guest-maybe", attendance.StatusMaybe, 0)
	s.rsvp(t, "ev1", d("2025-03-12"), "guest-attending", attendance.StatusAttending, 1)
	s.rsvp(t, "ev1", d("2025-03-12"), "same-address", attendance.StatusAttending, 0)
	s.rsvp(t, "ev1", d("2025-03-12"), "unknown", attendance.StatusAttending, 0)

	sender := &mockSender{}
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:1", mock.Anything).Return(nil).Once()
	sender.On("Send", mock.Anything, reminder.TemplateDayOf, "tg:4", mock.Anything).Return(nil).Once()

	summary := newDispatcher(s, sender).Run(context.Background(), runAt)

	assert.Equal(t, 2, summary.Sent)
	sender.AssertExpectations(t)
}

func TestDispatcher_IgnoresUnpublishedAndOutOfWindowEvents(t *testing.T) {
	s := newStores()
	draft := &event.Event{ID: "draft", Status: event.StatusDraft, StartDate: d("2025-03-12")}
	require.NoError(t, s.events.Create(context.Background(), draft))
	s.oneOff(t, "later", d("2025-03-14"))
	s.recurring(t, "ended", mustRule(t, recurrence.Daily, 1, "2025-01-01", recurrence.AfterCount(10)))
	for _, id := range []string{"draft", "later", "ended"} {
		s.person(t, "p-"+id, "tg:"+id, false)
	}
	s.rsvp(t, "draft", d("2025-03-12"), "p-draft", attendance.StatusAttending, 0)
	s.rsvp(t, "later", d("2025-03-14"), "p-later", attendance.StatusAttending, 0)

	sender := &mockSender{}
	summary := newDispatcher(s, sender).Run(context.Background(), runAt)

	assert.Equal(t, app.Summary{}, summary)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_ConcurrentPassesDeliverOnce(t *testing.T) {
	s := newStores()
	s.recurring(t, "daily", mustRule(t, recurrence.Daily, 1, "2025-03-01", recurrence.Never()))
	for _, id := range []string{"a", "b", "c"} {
		s.person(t, id, "tg:"+id, false)
		s.rsvp(t, "daily", d("2025-03-12"), id, attendance.StatusAttending, 0)
		s.rsvp(t, "daily", d("2025-03-13"), id, attendance.StatusAttending, 0)
	}

	sender := &countingSender{}
	dispatcher := newDispatcher(s, sender)

	var wg sync.WaitGroup
	summaries := make([]app.Summary, 4)
	for i := range summaries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			summaries[i] = dispatcher.Run(context.Background(), runAt)
		}()
	}
	wg.Wait()

	total := 0
	for _, sum := range summaries {
		total += sum.Sent
		assert.Equal(t, 6, sum.Sent+sum.Skipped)
	}
	assert.Equal(t, 6, total)
	require.Len(t, sender.calls, 6)
	for key, n := range sender.calls {
		assert.Equal(t, 1, n, key)
	}
}
