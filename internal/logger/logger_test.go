package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "production", "info", "casedesk-backend")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("impersonation session started", zap.String("session_id", "s1"))
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "impersonation session started", entry["msg"])
	assert.Equal(t, "casedesk-backend", entry["service"])
	assert.Equal(t, "production", entry["environment"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Contains(t, entry, "time")
}

func TestNew_DevelopmentIsConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "development", "debug", "svc")
	require.NoError(t, err)

	log.Debug("visible")
	require.NoError(t, log.Sync())
	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	_, err = New("production", "verbose", "svc")
	assert.Error(t, err)
}
