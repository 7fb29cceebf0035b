// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"recurring_events/internal/domain/participant"
	domaintg "recurring_events/internal/domain/telegram"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminTelegramID int64,
	directory participant.Directory,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, %s! Use /help for the list of admin commands.", c.Sender().FirstName))
		}

		address := domaintg.Address(senderID)
		p, err := directory.GetByAddress(ctx, address)
		if err == nil {
			logCtx.WithField("participant_id", p.ID).Info("User identified as participant")
			return c.Send("Hello! I will remind you about your events the day before and on the day itself.")
		} else if !errors.Is(err, participant.ErrParticipantNotFound) {
			logCtx.WithError(err).Error("Error looking up participant for /start command")
			return c.Send("Something went wrong while checking your registration. Please try again later.")
		}

		logCtx.Info("User is unknown")
		return c.Send(fmt.Sprintf("Hello! You are not registered yet. Ask the organizer to add your address %s.", address))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == adminTelegramID {
			return c.Send(AdminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send("Reminders arrive the day before and on the day of each event. Use the buttons under a reminder to answer Going, Maybe or Not going.")
	})
}

// AdminHelp lists the admin commands.
func AdminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/add_participant [guest] <TelegramID> [name]`\n - Register a participant for reminders.\n\n")
	helpText.WriteString("`/cancel <event id> <YYYY-MM-DD>`\n - Cancel one occurrence.\n\n")
	helpText.WriteString("`/uncancel <event id> <YYYY-MM-DD>`\n - Restore a cancelled occurrence.\n\n")
	helpText.WriteString("`/occurrences <event id> [YYYY-MM-DD] [count]`\n - Preview upcoming occurrences.\n\n")
	helpText.WriteString("`/run_reminders`\n - Run the reminder pass now.\n\n")
	helpText.WriteString("`/ics <event id>`\n - Export the event series as an iCalendar file.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
