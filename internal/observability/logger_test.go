package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaia-dev/lotobot/internal/config"
)

type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func TestInitializeConsoleOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "debug", Format: "console"}, buf, false)

	GetLogger().Named("checkout").Info("total validated")
	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "lotobot.checkout.")
	assert.Contains(t, out, "total validated")
	assert.NotContains(t, out, "\x1b[", "colors must be off for non-terminal writers")
}

func TestInitializeColorizedLevels(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, buf, true)

	GetLogger().Warn("slow page")
	assert.Contains(t, buf.String(), colorYellow+"WARN"+colorReset)
}

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "console"}, buf, false)

	GetLogger().Info("hidden")
	GetLogger().Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInitializeFileCoreIsJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "run.log")
	Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: logFile}, &syncBuffer{}, false)

	GetLogger().Info("persisted")
	GetLogger().Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "persisted", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, first, false)
	Initialize(config.LoggerConfig{Level: "info", Format: "console"}, second, false)

	GetLogger().Info("routed")
	assert.Contains(t, first.String(), "routed")
	assert.Empty(t, second.String())
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.NotNil(t, GetLogger())
}
