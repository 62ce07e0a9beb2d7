package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name: "json format with debug level",
			config: &Config{
				Level:      "debug",
				Format:     "json",
				Output:     "stdout",
				TimeFormat: time.RFC3339,
			},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("Claiming next job", slog.String("worker_id", "w-1"))

				var logEntry map[string]interface{}
				err := json.Unmarshal(output.Bytes(), &logEntry)
				require.NoError(t, err)

				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "Claiming next job", logEntry["msg"])
				assert.Equal(t, "w-1", logEntry["worker_id"])
				assert.Contains(t, logEntry, "time")
			},
		},
		{
			name: "json format suppresses below configured level",
			config: &Config{
				Level:      "warn",
				Format:     "json",
				Output:     "stdout",
				TimeFormat: time.RFC3339,
			},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("Job completed")
				logger.Warn("Retry budget exhausted", slog.String("job_id", "j-1"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				// Info must not be logged at warn level
				assert.Len(t, lines, 1)

				var logEntry map[string]interface{}
				err := json.Unmarshal([]byte(lines[0]), &logEntry)
				require.NoError(t, err)

				assert.Equal(t, "WARN", logEntry["level"])
				assert.Equal(t, "Retry budget exhausted", logEntry["msg"])
				assert.Equal(t, "j-1", logEntry["job_id"])
			},
		},
		{
			name: "console format",
			config: &Config{
				Level:      "info",
				Format:     "console",
				Output:     "stdout",
				TimeFormat: time.RFC3339,
			},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("Dispatch loop started")

				// tint renders the level as "INF"
				logOutput := output.String()
				assert.Contains(t, logOutput, "INF")
				assert.Contains(t, logOutput, "Dispatch loop started")
			},
		},
		{
			name: "with source location enabled",
			config: &Config{
				Level:        "info",
				Format:       "json",
				Output:       "stdout",
				EnableSource: true,
				TimeFormat:   time.RFC3339,
			},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				var logEntry map[string]interface{}
				err := json.Unmarshal(output.Bytes(), &logEntry)
				require.NoError(t, err)

				assert.Contains(t, logEntry, "source")
				source := logEntry["source"].(map[string]interface{})
				assert.Contains(t, source, "function")
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}

			cfg := *tt.config
			cfg.writer = output

			logger, err := New(&cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)

			tt.checkFunc(t, logger, output)
		})
	}
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{
			name:     "debug level",
			level:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info level",
			level:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn level",
			level:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "error level",
			level:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "invalid level defaults to info",
			level:    "invalid",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty string defaults to info",
			level:    "",
			expected: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_WithGroup(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	groupLogger := logger.WithGroup("job")
	require.NotNil(t, groupLogger)

	groupLogger.Info("Job requeued", slog.String("job_id", "j-42"))

	var logEntry map[string]interface{}
	err = json.Unmarshal(output.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Contains(t, logEntry, "job")
	group := logEntry["job"].(map[string]interface{})
	assert.Equal(t, "j-42", group["job_id"])
}

func TestLogger_With(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	workerLogger := logger.With(
		slog.String("service", "worker"),
		slog.Int("concurrency", 4),
	)
	require.NotNil(t, workerLogger)

	workerLogger.Info("Worker started")

	var logEntry map[string]interface{}
	err = json.Unmarshal(output.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "worker", logEntry["service"])
	assert.Equal(t, float64(4), logEntry["concurrency"]) // JSON numbers are float64
	assert.Equal(t, "Worker started", logEntry["msg"])
}

func TestLogger_WithAttrs(t *testing.T) {
	output := &bytes.Buffer{}

	logger, err := New(&Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)

	attrLogger := logger.WithAttrs(
		slog.String("request_id", "req-12345"),
		slog.String("requester_id", "user-67890"),
	)
	require.NotNil(t, attrLogger)

	attrLogger.Info("Job enqueued")

	var logEntry map[string]interface{}
	err = json.Unmarshal(output.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "req-12345", logEntry["request_id"])
	assert.Equal(t, "user-67890", logEntry["requester_id"])
	assert.Equal(t, "Job enqueued", logEntry["msg"])
}
