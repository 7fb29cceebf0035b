// internal/infra/telegram/admin_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"recurring_events/internal/app"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/recurrence"
	domaintg "recurring_events/internal/domain/telegram"
	"recurring_events/internal/infra/ical"
)

const (
	msgUnauthorized     = "Error: you are not allowed to run this command."
	defaultPreviewCount = 5
	maxPreviewCount     = 50
)

// ReminderRunner runs one reminder pass.
type ReminderRunner interface {
	Run(ctx context.Context, now time.Time) app.Summary
}

// AdminCommands implements the admin command set independent of the bot transport.
type AdminCommands struct {
	admin      *app.AdminService
	overrides  *app.OverrideService
	schedule   *app.ScheduleService
	dispatcher ReminderRunner
	location   *time.Location
	now        func() time.Time
}

func NewAdminCommands(as *app.AdminService, ovs *app.OverrideService, ss *app.ScheduleService, dispatcher ReminderRunner, loc *time.Location) *AdminCommands {
	if loc == nil {
		loc = time.Local
	}
	return &AdminCommands{admin: as, overrides: ovs, schedule: ss, dispatcher: dispatcher, location: loc, now: time.Now}
}

// AddParticipant handles /add_participant [guest] <TelegramID> [name].
func (a *AdminCommands) AddParticipant(ctx context.Context, senderID int64, args []string) string {
	guest := len(args) > 0 && strings.EqualFold(args[0], "guest")
	if guest {
		args = args[1:]
	}
	if len(args) < 1 {
		return "Invalid format. Use: /add_participant [guest] <TelegramID> [name]"
	}
	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Error: Telegram ID must be a number."
	}
	name := strings.Join(args[1:], " ")

	p, err := a.admin.AddParticipant(ctx, senderID, domaintg.Address(chatID), name, guest)
	switch {
	case err == nil:
		return fmt.Sprintf("Participant %s added with address %s.", p.ID, p.Address)
	case errors.Is(err, app.ErrAdminNotAuthorized):
		return msgUnauthorized
	case errors.Is(err, app.ErrParticipantAlreadyExists):
		return fmt.Sprintf("Error: a participant with Telegram ID %d already exists.", chatID)
	default:
		return fmt.Sprintf("An error occurred while adding the participant: %s", err)
	}
}

// Cancel handles /cancel <event> <YYYY-MM-DD>.
func (a *AdminCommands) Cancel(ctx context.Context, args []string) string {
	return a.setCancelled(ctx, args, true)
}

// Uncancel handles /uncancel <event> <YYYY-MM-DD>.
func (a *AdminCommands) Uncancel(ctx context.Context, args []string) string {
	return a.setCancelled(ctx, args, false)
}

func (a *AdminCommands) setCancelled(ctx context.Context, args []string, cancel bool) string {
	command := "/uncancel"
	if cancel {
		command = "/cancel"
	}
	if len(args) != 2 {
		return fmt.Sprintf("Invalid format. Use: %s <event id> <YYYY-MM-DD>", command)
	}
	date, err := recurrence.ParseDate(args[1])
	if err != nil {
		return "Error: the date must look like 2025-03-12."
	}

	if cancel {
		err = a.overrides.Cancel(ctx, args[0], date)
	} else {
		err = a.overrides.Uncancel(ctx, args[0], date)
	}
	if err != nil {
		return describeError(err, args[0], date)
	}
	if cancel {
		return fmt.Sprintf("Occurrence %s of %s cancelled.", date, args[0])
	}
	return fmt.Sprintf("Occurrence %s of %s restored.", date, args[0])
}

// Occurrences handles /occurrences <event> [from] [n].
func (a *AdminCommands) Occurrences(ctx context.Context, args []string) string {
	if len(args) < 1 || len(args) > 3 {
		return "Invalid format. Use: /occurrences <event id> [YYYY-MM-DD] [count]"
	}
	from := recurrence.DateOf(a.now().In(a.location))
	n := defaultPreviewCount
	if len(args) >= 2 {
		d, err := recurrence.ParseDate(args[1])
		if err != nil {
			return "Error: the date must look like 2025-03-12."
		}
		from = d
	}
	if len(args) == 3 {
		v, err := strconv.Atoi(args[2])
		if err != nil || v < 1 || v > maxPreviewCount {
			return fmt.Sprintf("Error: count must be a number between 1 and %d.", maxPreviewCount)
		}
		n = v
	}

	occurrences, err := a.schedule.Upcoming(ctx, args[0], from, n)
	if err != nil {
		return describeError(err, args[0], from)
	}
	if len(occurrences) == 0 {
		return fmt.Sprintf("No occurrences of %s on or after %s.", args[0], from)
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("--- %s from %s ---\n", args[0], from))
	for _, o := range occurrences {
		response.WriteString(fmt.Sprintf("%s %s", o.Date, o.Date.Weekday()))
		if o.Cancelled {
			response.WriteString(" (cancelled)")
		}
		response.WriteString("\n")
	}
	return response.String()
}

// RunReminders handles /run_reminders.
func (a *AdminCommands) RunReminders(ctx context.Context) string {
	s := a.dispatcher.Run(ctx, a.now())
	return fmt.Sprintf("Reminder pass done: %d sent, %d failed, %d skipped, %d events, %d expansion failures.",
		s.Sent, s.Failed, s.Skipped, s.Events, s.ExpansionFailures)
}

// ExportICS handles /ics <event>. On failure the document is nil and the string is the
// reply.
func (a *AdminCommands) ExportICS(ctx context.Context, args []string) (*telebot.Document, string) {
	if len(args) != 1 {
		return nil, "Invalid format. Use: /ics <event id>"
	}
	e, cancelled, err := a.schedule.Series(ctx, args[0])
	if err != nil {
		return nil, describeError(err, args[0], recurrence.Date{})
	}
	body, err := ical.ExportSeries(e, cancelled)
	if err != nil {
		return nil, fmt.Sprintf("Error: could not export %s: %s", args[0], err)
	}
	return &telebot.Document{
		File:     telebot.FromReader(strings.NewReader(body)),
		FileName: args[0] + ".ics",
		MIME:     "text/calendar",
	}, ""
}

func describeError(err error, eventID string, date recurrence.Date) string {
	switch {
	case errors.Is(err, event.ErrEventNotFound):
		return fmt.Sprintf("Event %s not found.", eventID)
	case errors.Is(err, app.ErrNotAnOccurrence):
		return fmt.Sprintf("%s is not an occurrence of %s.", date, eventID)
	case errors.Is(err, recurrence.ErrMalformedRule):
		return fmt.Sprintf("Event %s has an unreadable recurrence rule.", eventID)
	default:
		return fmt.Sprintf("An error occurred: %s", err)
	}
}

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, the admin commands, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, admin *AdminCommands, adminTelegramID int64, baseLogger *logrus.Entry) {
	guard := func(command string, next func(c telebot.Context, logCtx *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			logCtx.Info("Command received")

			if c.Sender().ID != adminTelegramID {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			return next(c, logCtx.WithField("args", c.Args()))
		}
	}

	b.Handle("/add_participant", guard("/add_participant", func(c telebot.Context, logCtx *logrus.Entry) error {
		reply := admin.AddParticipant(ctx, c.Sender().ID, c.Args())
		logCtx.WithField("reply", reply).Info("Add participant processed")
		return c.Send(reply)
	}))

	b.Handle("/cancel", guard("/cancel", func(c telebot.Context, logCtx *logrus.Entry) error {
		reply := admin.Cancel(ctx, c.Args())
		logCtx.WithField("reply", reply).Info("Cancel processed")
		return c.Send(reply)
	}))

	b.Handle("/uncancel", guard("/uncancel", func(c telebot.Context, logCtx *logrus.Entry) error {
		reply := admin.Uncancel(ctx, c.Args())
		logCtx.WithField("reply", reply).Info("Uncancel processed")
		return c.Send(reply)
	}))

	b.Handle("/occurrences", guard("/occurrences", func(c telebot.Context, _ *logrus.Entry) error {
		return c.Send(admin.Occurrences(ctx, c.Args()))
	}))

	b.Handle("/run_reminders", guard("/run_reminders", func(c telebot.Context, logCtx *logrus.Entry) error {
		reply := admin.RunReminders(ctx)
		logCtx.Info(reply)
		return c.Send(reply)
	}))

	b.Handle("/ics", guard("/ics", func(c telebot.Context, logCtx *logrus.Entry) error {
		doc, reply := admin.ExportICS(ctx, c.Args())
		if doc == nil {
			logCtx.WithField("reply", reply).Warn("ICS export failed")
			return c.Send(reply)
		}
		return c.Send(doc)
	}))
}
