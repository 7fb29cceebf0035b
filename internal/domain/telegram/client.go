package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

// AddressScheme prefixes participant addresses that are Telegram chats.
const AddressScheme = "tg:"

// Client sends messages to Telegram chats. Implemented over telebot in infra.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}

// Address renders a chat id as a participant address.
func Address(chatID int64) string {
	return AddressScheme + strconv.FormatInt(chatID, 10)
}

// ParseAddress extracts the chat id from a "tg:<chat id>" address. ok is false for any
// other scheme.
func ParseAddress(address string) (chatID int64, ok bool, err error) {
	rest, found := strings.CutPrefix(address, AddressScheme)
	if !found {
		return 0, false, nil
	}
	chatID, err = strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("invalid telegram address %q: %w", address, err)
	}
	return chatID, true, nil
}
