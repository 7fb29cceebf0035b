// internal/infra/telegram/sender.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"recurring_events/internal/domain/attendance"
	"recurring_events/internal/domain/reminder"
	domaintg "recurring_events/internal/domain/telegram"
)

// Sender delivers reminders to "tg:<chat id>" addresses. Other addresses go to next, or
// fail with reminder.ErrUnsupportedAddress when next is nil.
type Sender struct {
	client domaintg.Client
	next   reminder.Sender
	logger *logrus.Entry
}

func NewSender(client domaintg.Client, next reminder.Sender, logger *logrus.Entry) *Sender {
	return &Sender{
		client: client,
		next:   next,
		logger: logger.WithField("component", "telegram_sender"),
	}
}

func (s *Sender) Send(ctx context.Context, kind reminder.TemplateKind, address string, vars map[string]string) error {
	chatID, ok, err := domaintg.ParseAddress(address)
	if err != nil {
		return err
	}
	if !ok {
		if s.next == nil {
			return fmt.Errorf("%w: %s", reminder.ErrUnsupportedAddress, address)
		}
		return s.next.Send(ctx, kind, address, vars)
	}

	text, err := RenderReminder(kind, vars)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"template":   kind,
		"recipient":  address,
		"event_id":   vars[reminder.VarEventID],
		"occurrence": vars[reminder.VarDate],
	}).Debug("Sending reminder via Telegram")

	return s.client.SendMessage(chatID, text, &telebot.SendOptions{
		ReplyMarkup: rsvpMarkup(vars[reminder.VarEventID], vars[reminder.VarDate]),
	})
}

// RenderReminder builds the message body for a template kind.
func RenderReminder(kind reminder.TemplateKind, vars map[string]string) (string, error) {
	title := vars[reminder.VarEventTitle]
	if title == "" {
		title = vars[reminder.VarEventID]
	}
	date := vars[reminder.VarDate]

	switch kind {
	case reminder.TemplateDayBefore:
		return fmt.Sprintf("Reminder: %s is tomorrow (%s). Will you come?", title, date), nil
	case reminder.TemplateDayOf:
		return fmt.Sprintf("Reminder: %s is today (%s).", title, date), nil
	default:
		return "", fmt.Errorf("unknown reminder template %q", kind)
	}
}

func rsvpMarkup(eventID, date string) *telebot.ReplyMarkup {
	replyMarkup := &telebot.ReplyMarkup{ResizeKeyboard: true} // Inline keyboard
	btnYes := replyMarkup.Data("Going", "", encodeRSVP(attendance.StatusAttending, eventID, date))
	btnMaybe := replyMarkup.Data("Maybe", "", encodeRSVP(attendance.StatusMaybe, eventID, date))
	btnNo := replyMarkup.Data("Not going", "", encodeRSVP(attendance.StatusDeclined, eventID, date))
	replyMarkup.Inline(replyMarkup.Row(btnYes, btnMaybe, btnNo))
	return replyMarkup
}

// ErrNotDelivered is returned by LogSender: the reminder was only written to the log, so
// the attempt is recorded as failed and retried once a real transport is configured.
var ErrNotDelivered = errors.New("reminder logged, not delivered")

// LogSender writes reminders to the log instead of delivering them. Used for local runs
// without a Telegram token.
type LogSender struct {
	logger *logrus.Entry
}

func NewLogSender(logger *logrus.Entry) *LogSender {
	return &LogSender{logger: logger.WithField("component", "log_sender")}
}

func (s *LogSender) Send(_ context.Context, kind reminder.TemplateKind, address string, vars map[string]string) error {
	text, err := RenderReminder(kind, vars)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"template":  kind,
		"recipient": address,
	}).Info(text)
	return ErrNotDelivered
}
