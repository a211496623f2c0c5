package models

import (
	"encoding/json"
	"time"
)

// Conversation roles accepted from visitors.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message. Content is kept as raw JSON so visitor
// turns reach the provider unchanged, whether text, content parts or null. A
// nil Content omits the field.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}

// TextContent encodes s as a JSON string for Message.Content.
func TextContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// CompletionRequest is the payload sent to the completion provider.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

// ChatResponse is the success body returned to the site.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClientWindow is the fixed-window counter kept per client identity.
type ClientWindow struct {
	Count         int
	WindowResetAt time.Time
}

// Expired reports whether the window no longer applies at now.
func (w *ClientWindow) Expired(now time.Time) bool {
	return now.After(w.WindowResetAt)
}
