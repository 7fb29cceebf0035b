package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring_events/internal/app"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
)

func TestSchedule_OccurrencesFlagCancelled(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	s.recurring(t, "weekly", mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.AfterCount(3), recurrence.WithWeekdays(time.Wednesday)))
	overrides := app.NewOverrideService(s.events, s.overrides, testLogger())
	require.NoError(t, overrides.Cancel(ctx, "weekly", d("2025-03-19")))

	schedule := app.NewScheduleService(s.events, s.overrides)
	got, err := schedule.Occurrences(ctx, "weekly", d("2025-03-01"), d("2025-04-01"))
	require.NoError(t, err)
	assert.Equal(t, []app.Occurrence{
		{Date: d("2025-03-12")},
		{Date: d("2025-03-19"), Cancelled: true},
		{Date: d("2025-03-26")},
	}, got)

	// The enumerator is unaware of overrides.
	raw := recurrence.Between(mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.AfterCount(3)), d("2025-03-01"), d("2025-04-01"))
	assert.Len(t, raw, 3)

	require.NoError(t, overrides.Uncancel(ctx, "weekly", d("2025-03-19")))
	got, err = schedule.Occurrences(ctx, "weekly", d("2025-03-19"), d("2025-03-20"))
	require.NoError(t, err)
	assert.Equal(t, []app.Occurrence{{Date: d("2025-03-19")}}, got)
}

func TestSchedule_Upcoming(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	s.recurring(t, "monthly", mustRule(t, recurrence.Monthly, 1, "2024-01-30", recurrence.Never(), recurrence.WithAnchorPosition(false)))
	s.oneOff(t, "once", d("2025-05-01"))
	schedule := app.NewScheduleService(s.events, s.overrides)

	got, err := schedule.Upcoming(ctx, "monthly", d("2024-02-01"), 3)
	require.NoError(t, err)
	assert.Equal(t, []app.Occurrence{{Date: d("2024-04-30")}, {Date: d("2024-07-30")}, {Date: d("2024-10-29")}}, got)

	got, err = schedule.Upcoming(ctx, "once", d("2025-01-01"), 5)
	require.NoError(t, err)
	assert.Equal(t, []app.Occurrence{{Date: d("2025-05-01")}}, got)

	_, err = schedule.Upcoming(ctx, "missing", d("2025-01-01"), 5)
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

func TestOverride_RejectsNonOccurrence(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	s.recurring(t, "weekly", mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.Never()))
	overrides := app.NewOverrideService(s.events, s.overrides, testLogger())

	assert.ErrorIs(t, overrides.Cancel(ctx, "weekly", d("2025-03-13")), app.ErrNotAnOccurrence)
	assert.ErrorIs(t, overrides.Cancel(ctx, "missing", d("2025-03-12")), event.ErrEventNotFound)

	require.NoError(t, overrides.Cancel(ctx, "weekly", d("2025-03-19")))
	cancelled, err := overrides.IsCancelled(ctx, "weekly", d("2025-03-19"))
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = overrides.IsCancelled(ctx, "weekly", d("2025-03-26"))
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestSchedule_Series(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	s.recurring(t, "weekly", mustRule(t, recurrence.Weekly, 1, "2025-03-12", recurrence.Never()))
	s.oneOff(t, "once", d("2025-05-01"))
	overrides := app.NewOverrideService(s.events, s.overrides, testLogger())
	require.NoError(t, overrides.Cancel(ctx, "weekly", d("2025-04-02")))
	require.NoError(t, overrides.Cancel(ctx, "weekly", d("2031-01-01")))
	schedule := app.NewScheduleService(s.events, s.overrides)

	e, cancelled, err := schedule.Series(ctx, "weekly")
	require.NoError(t, err)
	assert.Equal(t, "weekly", e.ID)
	assert.Equal(t, []recurrence.Date{d("2025-04-02"), d("2031-01-01")}, cancelled)

	e, cancelled, err = schedule.Series(ctx, "once")
	require.NoError(t, err)
	assert.Equal(t, "once", e.ID)
	assert.Empty(t, cancelled)
}
