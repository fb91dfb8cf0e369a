package domain

import (
	"strings"
	"unicode/utf8"
)

// Message roles accepted on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxMessageLen caps a single message's content before it is sent downstream.
const MaxMessageLen = 10000

// Message is the provider-agnostic chat message shape shared by the handler,
// the prompt assembler and the LLM integration.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Normalize trims surrounding whitespace and caps the content length.
func (m Message) Normalize() Message {
	return Message{Role: m.Role, Content: TruncateRunes(strings.TrimSpace(m.Content), MaxMessageLen)}
}

// TruncateRunes cuts s to at most max bytes, backing up so a multi-byte
// rune is never split.
func TruncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// LastUserMessage returns the most recent user-role message with non-empty
// content, scanning from the end of the conversation.
func LastUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		if strings.TrimSpace(messages[i].Content) == "" {
			continue
		}
		return messages[i], true
	}
	return Message{}, false
}
