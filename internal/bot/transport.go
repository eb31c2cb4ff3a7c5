// Package bot routes chat messages to the session gate, the instruction
// pipeline and the git gateway.
package bot

import (
	"context"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's limit on message text, in characters.
const MaxMessageLength = 4096

// Message is an inbound chat message reduced to what the router needs.
type Message struct {
	ChatID     int64
	SenderID   int64
	SenderName string
	Username   string
	Text       string
}

// Transport sends and edits chat messages.
type Transport interface {
	Send(chatID int64, text string) (int, error)
	Edit(chatID int64, messageID int, text string) error
}

// UpdateSource delivers inbound messages. The channel is closed when the
// source has stopped.
type UpdateSource interface {
	Updates(ctx context.Context) <-chan Message
	Stop()
}

// clip cuts text to the transport limit.
func clip(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		return text
	}
	const marker = "\n... (truncated)"
	runes := []rune(text)
	return string(runes[:MaxMessageLength-utf8.RuneCountInString(marker)]) + marker
}
