package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/persona-chat-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
	assert.Equal(t, os.Stdout, log.Out)
}

func TestNewLogger_TextFormatterByDefault(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "info"})
	require.NoError(t, err)

	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_FileOutputCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	_, err := NewLogger(&config.LoggingConfig{
		Level:  "info",
		Output: "file",
		File:   config.FileConfig{Path: filepath.Join(dir, "server.log"), MaxSize: 1},
	})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWithRequest(t *testing.T) {
	log, hook := test.NewNullLogger()

	WithRequest(log, "req-1", "10.0.0.1").Info("hello")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "10.0.0.1", entry.Data["client_id"])
}
