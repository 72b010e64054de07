package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: DebugLevel, Format: "json", Component: "test"})

	logger.Info("login",
		"accessToken", "abc.def.ghi",
		"refresh_token", "r-123",
		"password", "hunter2",
		"email", "a@b.cz")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["accessToken"])
	assert.Equal(t, "[REDACTED]", entry["refresh_token"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "a@b.cz", entry["email"])
	assert.Equal(t, "test", entry["component"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: WarnLevel})

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: InfoLevel}).WithComponent("realtime")
	logger.Info("connected")
	assert.True(t, strings.Contains(buf.String(), "component=realtime"))
}
