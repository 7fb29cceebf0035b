// internal/infra/telegram/client.go
package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter is the transport behind Sender and the admin replies. Participant
// addresses carry a chat id, which may be a private chat or a group.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage posts text to chatID. A nil options value sends plain text without buttons.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text, options)
	return err
}
