package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/persona-chat-go/internal/config"
	"golang.org/x/text/language"
)

// Message IDs
const (
	MsgMethodNotAllowed  = "method_not_allowed"
	MsgRateLimitExceeded = "rate_limit_exceeded"
	MsgMissingAPIKey     = "missing_api_key"
	MsgUpstreamError     = "upstream_error"
	MsgUnexpectedError   = "unexpected_error"
)

// English messages are built in and form the public error contract.
var defaultMessages = map[string]*i18n.Message{
	MsgMethodNotAllowed:  {ID: MsgMethodNotAllowed, Other: "Method not allowed"},
	MsgRateLimitExceeded: {ID: MsgRateLimitExceeded, Other: "Rate limit exceeded. Try again soon."},
	MsgMissingAPIKey:     {ID: MsgMissingAPIKey, Other: "Missing {{.Name}}"},
	MsgUpstreamError:     {ID: MsgUpstreamError, Other: "Upstream API error"},
	MsgUnexpectedError:   {ID: MsgUnexpectedError, Other: "Unexpected server error"},
}

// Localizer manages internationalization
type Localizer struct {
	enabled         bool
	bundle          *i18n.Bundle
	defaultLanguage string
}

// NewLocalizer creates a new localizer. When disabled every lookup returns
// the built-in English text.
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, msg := range defaultMessages {
		if err := bundle.AddMessages(language.English, msg); err != nil {
			return nil, fmt.Errorf("failed to register default message %s: %w", msg.ID, err)
		}
	}

	if cfg.Enabled {
		for _, lang := range cfg.Languages {
			path := filepath.Join(cfg.Directory, fmt.Sprintf("%s.json", lang))
			if _, err := bundle.LoadMessageFile(path); err != nil {
				return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
			}
		}
	}

	defaultLanguage := cfg.DefaultLanguage
	if defaultLanguage == "" {
		defaultLanguage = language.English.String()
	}

	return &Localizer{
		enabled:         cfg.Enabled,
		bundle:          bundle,
		defaultLanguage: defaultLanguage,
	}, nil
}

// Get returns the message for messageID in the best match for
// acceptLanguage, falling back to English.
func (l *Localizer) Get(acceptLanguage, messageID string, data map[string]interface{}) string {
	langs := []string{language.English.String()}
	if l.enabled {
		langs = []string{acceptLanguage, l.defaultLanguage}
	}

	localizer := i18n.NewLocalizer(l.bundle, langs...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil && msg == "" {
		return messageID // Fallback to message ID
	}

	return msg
}
