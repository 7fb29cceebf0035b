// internal/app/reminder_dispatcher.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/override"
	"recurring_events/internal/domain/participant"
	"recurring_events/internal/domain/recurrence"
	"recurring_events/internal/domain/reminder"
)

const defaultDispatchConcurrency = 4

// Summary reports one dispatcher pass. ExpansionFailures counts events or occurrences
// that could not be turned into reminder attempts (bad rule, store lookup failure).
type Summary struct {
	Sent              int
	Failed            int
	Skipped           int
	ExpansionFailures int
	Events            int
}

type tally struct {
	sent, failed, skipped, expansionFailures atomic.Int64
}

// ReminderDispatcher sends day-before and day-of reminders for the occurrences falling
// today and tomorrow. Each (template, recipient, occurrence) is delivered at most once:
// a sent entry in the reminder log is the idempotence marker, and failed attempts are
// retried on the next pass.
type ReminderDispatcher struct {
	eventRepo    event.Repository
	overrideRepo override.Repository
	ledger       attendance.Repository
	directory    participant.Directory
	logRepo      reminder.LogRepository
	sender       reminder.Sender
	logger       *logrus.Entry
	location     *time.Location
	concurrency  int
	locks        *keyedMutex
}

type DispatcherOption func(*ReminderDispatcher)

// WithConcurrency bounds how many events are processed in parallel.
func WithConcurrency(n int) DispatcherOption {
	return func(d *ReminderDispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLocation sets the zone in which "today" is computed.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(d *ReminderDispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

func NewReminderDispatcher(
	er event.Repository,
	or override.Repository,
	ledger attendance.Repository,
	directory participant.Directory,
	lr reminder.LogRepository,
	sender reminder.Sender,
	logger *logrus.Entry,
	opts ...DispatcherOption,
) *ReminderDispatcher {
	d := &ReminderDispatcher{
		eventRepo:    er,
		overrideRepo: or,
		ledger:       ledger,
		directory:    directory,
		logRepo:      lr,
		sender:       sender,
		logger:       logger.WithField("component", "reminder_dispatcher"),
		location:     time.Local,
		concurrency:  defaultDispatchConcurrency,
		locks:        newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run performs one pass as of now. It never fails: every problem is logged and counted.
func (d *ReminderDispatcher) Run(ctx context.Context, now time.Time) Summary {
	today := recurrence.DateOf(now.In(d.location))
	tomorrow := today.AddDays(1)
	logCtx := d.logger.WithFields(logrus.Fields{"today": today.String(), "tomorrow": tomorrow.String()})
	logCtx.Info("Reminder pass started")

	var t tally
	var events []*event.Event

	oneOff, err := d.eventRepo.ListPublishedOneOff(ctx, today, tomorrow)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list one-off events")
		t.expansionFailures.Add(1)
	}
	events = append(events, oneOff...)

	recurring, err := d.eventRepo.ListPublishedRecurring(ctx, today)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list recurring events")
		t.expansionFailures.Add(1)
	}
	events = append(events, recurring...)

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, e := range events {
		g.Go(func() error {
			d.dispatchEvent(ctx, e, today, tomorrow, &t)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Sent:              int(t.sent.Load()),
		Failed:            int(t.failed.Load()),
		Skipped:           int(t.skipped.Load()),
		ExpansionFailures: int(t.expansionFailures.Load()),
		Events:            len(events),
	}
	logCtx.WithFields(logrus.Fields{
		"events":             summary.Events,
		"sent":               summary.Sent,
		"failed":             summary.Failed,
		"skipped":            summary.Skipped,
		"expansion_failures": summary.ExpansionFailures,
	}).Info("Reminder pass finished")
	return summary
}

func (d *ReminderDispatcher) dispatchEvent(ctx context.Context, e *event.Event, today, tomorrow recurrence.Date, t *tally) {
	logCtx := d.logger.WithField("event_id", e.ID)

	seq, err := e.Occurrences(today, tomorrow.AddDays(1))
	if err != nil {
		logCtx.WithError(err).Error("Failed to expand event occurrences")
		t.expansionFailures.Add(1)
		return
	}

	for date := range seq {
		occCtx := logCtx.WithField("occurrence", date.String())

		cancelled, err := d.overrideRepo.IsCancelled(ctx, e.ID, date)
		if err != nil {
			occCtx.WithError(err).Error("Failed to check occurrence override")
			t.expansionFailures.Add(1)
			continue
		}
		if cancelled {
			occCtx.Debug("Occurrence cancelled, no reminders")
			continue
		}

		recipients, err := d.recipients(ctx, e.ID, date, occCtx)
		if err != nil {
			occCtx.WithError(err).Error("Failed to resolve reminder recipients")
			t.expansionFailures.Add(1)
			continue
		}

		kind := reminder.TemplateDayBefore
		if date == today {
			kind = reminder.TemplateDayOf
		}
		relatedKey := reminder.RelatedKey(e.ID, date, e.IsRecurring())
		vars := map[string]string{
			reminder.VarEventID:    e.ID,
			reminder.VarEventTitle: e.Title,
			reminder.VarDate:       date.String(),
		}
		for _, address := range recipients {
			d.attempt(ctx, e.ID, date, kind, address, relatedKey, vars, t)
		}
	}
}

// recipients returns the distinct addresses to remind for an occurrence: members who are
// attending or maybe, and guests who are attending.
func (d *ReminderDispatcher) recipients(ctx context.Context, eventID string, date recurrence.Date, logCtx *logrus.Entry) ([]string, error) {
	records, err := d.ledger.List(ctx, eventID, date)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Status != attendance.StatusDeclined {
			ids = append(ids, rec.ParticipantID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	people, err := d.directory.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(ids))
	addresses := make([]string, 0, len(ids))
	for _, rec := range records {
		if rec.Status == attendance.StatusDeclined {
			continue
		}
		p, ok := people[rec.ParticipantID]
		if !ok {
			logCtx.WithField("participant_id", rec.ParticipantID).Warn("Participant not in directory, no reminder")
			continue
		}
		if p.IsGuest && rec.Status != attendance.StatusAttending {
			continue
		}
		if p.Address == "" || seen[p.Address] {
			continue
		}
		seen[p.Address] = true
		addresses = append(addresses, p.Address)
	}
	return addresses, nil
}

func (d *ReminderDispatcher) attempt(
	ctx context.Context,
	eventID string,
	date recurrence.Date,
	kind reminder.TemplateKind,
	address, relatedKey string,
	vars map[string]string,
	t *tally,
) {
	logCtx := d.logger.WithFields(logrus.Fields{
		"event_id":    eventID,
		"occurrence":  date.String(),
		"template":    kind,
		"recipient":   address,
		"related_key": relatedKey,
	})

	unlock := d.locks.Lock(string(kind) + "|" + address + "|" + relatedKey)
	defer unlock()

	sent, err := d.logRepo.HasSent(ctx, kind, address, relatedKey)
	if err != nil {
		logCtx.WithError(err).Error("Failed to read reminder log, not sending")
		t.failed.Add(1)
		return
	}
	if sent {
		logCtx.Debug("Reminder already sent")
		t.skipped.Add(1)
		return
	}

	entry := &reminder.LogEntry{
		ID:               uuid.New(),
		TemplateKind:     kind,
		RecipientAddress: address,
		RelatedKey:       relatedKey,
		EventID:          eventID,
		OccurrenceDate:   date,
	}

	if err := d.sender.Send(ctx, kind, address, vars); err != nil {
		logCtx.WithError(err).Warn("Reminder delivery failed")
		t.failed.Add(1)
		entry.Status = reminder.LogStatusFailed
		entry.Error = sql.NullString{String: err.Error(), Valid: true}
		entry.SentAt = time.Now()
		if err := d.logRepo.Append(ctx, entry); err != nil {
			logCtx.WithError(err).Error("Failed to record failed reminder")
		}
		return
	}

	entry.Status = reminder.LogStatusSent
	entry.SentAt = time.Now()
	err = d.logRepo.Append(ctx, entry)
	switch {
	case errors.Is(err, reminder.ErrAlreadySent):
		logCtx.Warn("Reminder was recorded as sent by a concurrent pass")
		t.skipped.Add(1)
	case err != nil:
		// Delivered but unrecorded: the next pass will send it again.
		logCtx.WithError(err).Error("Failed to record sent reminder")
		t.sent.Add(1)
	default:
		logCtx.Info("Reminder sent")
		t.sent.Add(1)
	}
}
