// internal/observability/logger_test.go
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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pagecraft/internal/config"
)

// -- Test Helper Functions --

// initBuffered initializes the global logger against an in-memory writer.
func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("pageobject").Info("Browser started.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "Browser started.")
		assert.Contains(t, output, colorGreen+"INFO"+colorReset)
		assert.Contains(t, output, "TestService.pageobject.")
	})

	t.Run("should leave uncolored levels plain", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console"})
		GetLogger().Warn("Duplicate registration.")
		Sync()

		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON")
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pagecraft.log")
		initBuffered(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`, "file output is always JSON")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))
		assert.Same(t, first, GetLogger())

		GetLogger().Info("test")
		Sync()
		assert.True(t, strings.Contains(buf.String(), "First"))
		assert.False(t, strings.Contains(buf.String(), "Second"))
	})
}

func TestSetLevel(t *testing.T) {
	buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "json"})

	GetLogger().Debug("hidden")
	require.NoError(t, SetLevel("debug"))
	GetLogger().Debug("shown")
	Sync()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Error(t, SetLevel("loud"))
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a shared fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		logger := GetLogger()
		require.NotNil(t, logger)
		assert.Same(t, logger, GetLogger())
		assert.False(t, logger.Core().Enabled(zap.InfoLevel), "fallback only reports warnings and above")
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}
