package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "studio.log")
	require.NoError(t, InitLogger(&LogConfig{Level: "debug", Format: "json", Output: "file", FilePath: path}))
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())

	WithField("id", "img-1").Info("Image deleted from gallery")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"msg":"Image deleted from gallery"`)
	assert.Contains(t, line, `"id":"img-1"`)
	assert.True(t, strings.Contains(line, "logger_test.go:"), "caller is reported as file:line")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	require.NoError(t, InitLogger(&LogConfig{Level: "loud", Format: "text", Output: "stderr"}))
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
}
