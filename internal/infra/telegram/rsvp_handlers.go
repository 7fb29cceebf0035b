// internal/infra/telegram/rsvp_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"recurring_events/internal/app"
	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/event"
	"recurring_events/internal/domain/participant"
	"recurring_events/internal/domain/recurrence"
	domaintg "recurring_events/internal/domain/telegram"
)

const rsvpPrefix = "rsvp"

var statusCodes = map[attendance.Status]string{
	attendance.StatusAttending: "a",
	attendance.StatusMaybe:     "m",
	attendance.StatusDeclined:  "d",
}

// encodeRSVP packs an answer into callback data: rsvp|<code>|<event id>|<YYYY-MM-DD>.
// Telegram caps callback data at 64 bytes, so the status is a one-letter code.
func encodeRSVP(status attendance.Status, eventID, date string) string {
	return strings.Join([]string{rsvpPrefix, statusCodes[status], eventID, date}, "|")
}

func decodeRSVP(data string) (attendance.Status, string, recurrence.Date, error) {
	parts := strings.Split(data, "|")
	if len(parts) != 4 || parts[0] != rsvpPrefix {
		return "", "", recurrence.Date{}, fmt.Errorf("invalid callback data format: %s", data)
	}
	var status attendance.Status
	for s, code := range statusCodes {
		if code == parts[1] {
			status = s
		}
	}
	if status == "" {
		return "", "", recurrence.Date{}, fmt.Errorf("invalid status code in callback: %s", data)
	}
	date, err := recurrence.ParseDate(parts[3])
	if err != nil {
		return "", "", recurrence.Date{}, err
	}
	return status, parts[2], date, nil
}

// RSVPHandler turns reminder button presses into attendance answers.
type RSVPHandler struct {
	attendance *app.AttendanceService
	directory  participant.Directory
	logger     *logrus.Entry
	now        func() time.Time
}

func NewRSVPHandler(as *app.AttendanceService, directory participant.Directory, logger *logrus.Entry) *RSVPHandler {
	return &RSVPHandler{
		attendance: as,
		directory:  directory,
		logger:     logger.WithField("handler_group", "rsvp"),
		now:        time.Now,
	}
}

// Answer records the answer carried by data for the Telegram user senderID and returns
// the text shown to the user.
func (h *RSVPHandler) Answer(ctx context.Context, senderID int64, data string) string {
	logCtx := h.logger.WithFields(logrus.Fields{"sender_id": senderID, "data": data})

	status, eventID, date, err := decodeRSVP(data)
	if err != nil {
		logCtx.WithError(err).Warn("Malformed RSVP callback")
		return "Could not read this answer."
	}
	logCtx = logCtx.WithFields(logrus.Fields{"event_id": eventID, "occurrence": date.String()})

	p, err := h.directory.GetByAddress(ctx, domaintg.Address(senderID))
	if err != nil {
		if errors.Is(err, participant.ErrParticipantNotFound) {
			logCtx.Info("RSVP from unregistered user")
			return "You are not registered for this event."
		}
		logCtx.WithError(err).Error("Failed to resolve participant")
		return "Something went wrong. Please try again later."
	}

	_, err = h.attendance.Upsert(ctx, h.now(), app.RSVP{
		EventID:       eventID,
		Date:          date,
		ParticipantID: p.ID,
		Status:        status,
	})
	switch {
	case err == nil:
		logCtx.WithField("status", status).Info("RSVP recorded")
		return fmt.Sprintf("Got it: %s on %s.", status, date)
	case errors.Is(err, app.ErrCapacityExceeded):
		return "Sorry, this occurrence is full."
	case errors.Is(err, app.ErrDeadlinePassed):
		return "The RSVP deadline has passed."
	case errors.Is(err, app.ErrOccurrenceCancelled):
		return "This occurrence is cancelled."
	case errors.Is(err, event.ErrEventNotFound):
		return "This event no longer exists."
	case errors.Is(err, app.ErrNotAnOccurrence):
		return "The event does not take place on that date."
	default:
		logCtx.WithError(err).Error("Failed to record RSVP")
		return "Something went wrong. Please try again later."
	}
}

func RegisterRSVPHandlers(ctx context.Context, b *telebot.Bot, h *RSVPHandler) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		if !strings.HasPrefix(data, rsvpPrefix+"|") {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: h.Answer(ctx, c.Sender().ID, data)})
	})
}
