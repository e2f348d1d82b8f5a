package logging

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerOff(t *testing.T) {
	logger := NewLogger(&Config{Level: "off"})
	assert.Equal(t, io.Discard, logger.Out)
}

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger(&Config{Level: "debug"}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger(&Config{Level: "bogus"}).GetLevel())
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger := NewLogger(&Config{Level: "info", LogsDir: dir})
	logger.Info("rob lib logs")

	data, err := os.ReadFile(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "rob lib logs")
}
