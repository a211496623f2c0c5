package middleware

import (
	"encoding/json"

	"github.com/persona-chat-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// SecurityMiddleware turns untrusted request bodies into conversation turns
// that are safe to forward upstream.
type SecurityMiddleware struct {
	logger *logrus.Logger
}

// NewSecurityMiddleware creates security middleware
func NewSecurityMiddleware(logger *logrus.Logger) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger: logger,
	}
}

// SanitizeConversation extracts the "messages" array from body. Malformed
// JSON or a missing array yields an empty conversation rather than an error.
// Only user and assistant turns survive, reduced to role and content.
func (s *SecurityMiddleware) SanitizeConversation(body []byte) []models.Message {
	turns := []models.Message{}

	if !gjson.ValidBytes(body) {
		s.logger.WithField("bytes", len(body)).Debug("Request body is not valid JSON, using empty conversation")
		return turns
	}

	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() {
		return turns
	}

	dropped := 0
	messages.ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role")
		if !msg.IsObject() || role.Type != gjson.String || !allowedRole(role.Str) {
			dropped++
			return true
		}

		turn := models.Message{Role: role.Str}
		if content := msg.Get("content"); content.Exists() {
			turn.Content = json.RawMessage(content.Raw)
		}
		turns = append(turns, turn)
		return true
	})

	if dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"kept":    len(turns),
			"dropped": dropped,
		}).Debug("Dropped conversation turns with disallowed roles")
	}

	return turns
}

func allowedRole(role string) bool {
	return role == models.RoleUser || role == models.RoleAssistant
}
