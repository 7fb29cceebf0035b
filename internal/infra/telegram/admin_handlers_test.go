package telegram

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring_events/internal/app"
)

const testAdminID = int64(1001)

type fakeRunner struct {
	calls []time.Time
}

func (f *fakeRunner) Run(_ context.Context, now time.Time) app.Summary {
	f.calls = append(f.calls, now)
	return app.Summary{Sent: 3, Skipped: 1, Events: 2}
}

func newAdmin(t *testing.T) (*AdminCommands, *fakeRunner) {
	t.Helper()
	f := newFixture(t)
	runner := &fakeRunner{}
	a := NewAdminCommands(
		app.NewAdminService(f.directory, testAdminID),
		app.NewOverrideService(f.events, f.overrides, testLogger()),
		app.NewScheduleService(f.events, f.overrides),
		runner,
		time.UTC,
	)
	a.now = func() time.Time { return time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC) }
	return a, runner
}

func TestAdminCommands_CancelUncancel(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdmin(t)

	assert.Equal(t, "Occurrence 2025-03-19 of weekly cancelled.", a.Cancel(ctx, []string{"weekly", "2025-03-19"}))
	assert.Contains(t, a.Occurrences(ctx, []string{"weekly", "2025-03-19", "1"}), "2025-03-19 Wednesday (cancelled)")

	assert.Equal(t, "Occurrence 2025-03-19 of weekly restored.", a.Uncancel(ctx, []string{"weekly", "2025-03-19"}))
	assert.NotContains(t, a.Occurrences(ctx, []string{"weekly", "2025-03-19", "1"}), "cancelled")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing args", []string{"weekly"}, "Invalid format. Use: /cancel <event id> <YYYY-MM-DD>"},
		{"bad date", []string{"weekly", "19.03.2025"}, "Error: the date must look like 2025-03-12."},
		{"not an occurrence", []string{"weekly", "2025-03-20"}, "2025-03-20 is not an occurrence of weekly."},
		{"unknown event", []string{"nope", "2025-03-19"}, "Event nope not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Cancel(ctx, tt.args))
		})
	}
}

func TestAdminCommands_Occurrences(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdmin(t)

	// Defaults to today in the configured location and five dates.
	got := a.Occurrences(ctx, []string{"weekly"})
	assert.Equal(t, "--- weekly from 2025-03-13 ---\n"+
		"2025-03-19 Wednesday\n2025-03-26 Wednesday\n2025-04-02 Wednesday\n2025-04-09 Wednesday\n2025-04-16 Wednesday\n", got)

	assert.Contains(t, a.Occurrences(ctx, []string{"weekly", "2025-03-12", "0"}), "count must be a number")
	assert.Contains(t, a.Occurrences(ctx, []string{}), "Invalid format")
}

func TestAdminCommands_RunReminders(t *testing.T) {
	a, runner := newAdmin(t)

	reply := a.RunReminders(context.Background())
	assert.Equal(t, "Reminder pass done: 3 sent, 0 failed, 1 skipped, 2 events, 0 expansion failures.", reply)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC), runner.calls[0])
}

func TestAdminCommands_ExportICS(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdmin(t)
	require.Equal(t, "Occurrence 2025-03-26 of weekly cancelled.", a.Cancel(ctx, []string{"weekly", "2025-03-26"}))

	doc, reply := a.ExportICS(ctx, []string{"weekly"})
	require.NotNil(t, doc, reply)
	assert.Equal(t, "weekly.ics", doc.FileName)

	body, err := io.ReadAll(doc.File.FileReader)
	require.NoError(t, err)
	assert.Contains(t, string(body), "EXDATE;VALUE=DATE:20250326")

	doc, reply = a.ExportICS(ctx, []string{"nope"})
	assert.Nil(t, doc)
	assert.Equal(t, "Event nope not found.", reply)
}

func TestAdminCommands_AddParticipant(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdmin(t)

	reply := a.AddParticipant(ctx, testAdminID, []string{"42", "Ann", "Lee"})
	assert.Contains(t, reply, "added with address tg:42")
	assert.Equal(t, "Error: a participant with Telegram ID 42 already exists.",
		a.AddParticipant(ctx, testAdminID, []string{"42"}))
	assert.Contains(t, a.AddParticipant(ctx, testAdminID, []string{"guest", "42"}), "added with address tg:42")

	assert.Equal(t, msgUnauthorized, a.AddParticipant(ctx, 7, []string{"43"}))
	assert.Equal(t, "Error: Telegram ID must be a number.", a.AddParticipant(ctx, testAdminID, []string{"ann"}))
	assert.Contains(t, a.AddParticipant(ctx, testAdminID, []string{"guest"}), "Invalid format")
}
