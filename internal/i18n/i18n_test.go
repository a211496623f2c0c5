package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/persona-chat-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocale(t *testing.T, dir, lang, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lang+".json"), []byte(content), 0o600))
}

func TestLocalizer_DisabledAlwaysEnglish(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{Enabled: false, Languages: []string{"de"}, Directory: "does-not-exist"})
	require.NoError(t, err)

	assert.Equal(t, "Method not allowed", l.Get("de", MsgMethodNotAllowed, nil))
	assert.Equal(t, "Rate limit exceeded. Try again soon.", l.Get("de", MsgRateLimitExceeded, nil))
	assert.Equal(t, "Missing OPENAI_API_KEY", l.Get("", MsgMissingAPIKey, map[string]interface{}{"Name": "OPENAI_API_KEY"}))
	assert.Equal(t, "Upstream API error", l.Get("", MsgUpstreamError, nil))
	assert.Equal(t, "Unexpected server error", l.Get("", MsgUnexpectedError, nil))
}

func TestLocalizer_EnabledUsesAcceptLanguage(t *testing.T) {
	dir := t.TempDir()
	writeLocale(t, dir, "de", `{"method_not_allowed": "Methode nicht erlaubt", "missing_api_key": "{{.Name}} fehlt"}`)

	l, err := NewLocalizer(&config.I18nConfig{Enabled: true, DefaultLanguage: "en", Languages: []string{"de"}, Directory: dir})
	require.NoError(t, err)

	assert.Equal(t, "Methode nicht erlaubt", l.Get("de-DE,de;q=0.9,en;q=0.8", MsgMethodNotAllowed, nil))
	assert.Equal(t, "KEY fehlt", l.Get("de", MsgMissingAPIKey, map[string]interface{}{"Name": "KEY"}))

	// Untranslated messages and unknown languages fall back to English.
	assert.Equal(t, "Upstream API error", l.Get("de", MsgUpstreamError, nil))
	assert.Equal(t, "Method not allowed", l.Get("ja", MsgMethodNotAllowed, nil))
	assert.Equal(t, "Method not allowed", l.Get("", MsgMethodNotAllowed, nil))
}

func TestLocalizer_UnknownMessageFallsBackToID(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{})
	require.NoError(t, err)

	assert.Equal(t, "no_such_message", l.Get("", "no_such_message", nil))
}

func TestLocalizer_MissingLanguageFile(t *testing.T) {
	_, err := NewLocalizer(&config.I18nConfig{Enabled: true, Languages: []string{"de"}, Directory: t.TempDir()})
	assert.Error(t, err)
}

func TestLocalizer_ShippedLocaleFiles(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{
		Enabled:   true,
		Languages: []string{"de", "fr", "tr"},
		Directory: filepath.Join("..", "..", "configs", "i18n"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Méthode non autorisée", l.Get("fr", MsgMethodNotAllowed, nil))
	assert.Equal(t, "OPENAI_API_KEY eksik", l.Get("tr", MsgMissingAPIKey, map[string]interface{}{"Name": "OPENAI_API_KEY"}))
}
