package logger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextOutput(t *testing.T) {
	out := &strings.Builder{}
	InitWithWriter(out, "INFO", "text")

	Info("server ready", "port", 2049)

	line := out.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "server ready")
	assert.Contains(t, line, "port=2049")
}

func TestLevelFiltering(t *testing.T) {
	out := &strings.Builder{}
	InitWithWriter(out, "WARN", "text")

	Debug("too quiet")
	Info("still too quiet")
	Warn("loud enough")

	assert.NotContains(t, out.String(), "too quiet")
	assert.Contains(t, out.String(), "loud enough")
}

func TestSetLevelAtRuntime(t *testing.T) {
	out := &strings.Builder{}
	InitWithWriter(out, "INFO", "text")

	Debug("hidden")
	SetLevel("DEBUG")
	Debug("visible")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "visible")
}

func TestInvalidLevelIgnored(t *testing.T) {
	out := &strings.Builder{}
	InitWithWriter(out, "WARN", "text")
	SetLevel("SHOUTING")

	Info("filtered")
	assert.NotContains(t, out.String(), "filtered")
}

func TestJSONOutput(t *testing.T) {
	out := &strings.Builder{}
	InitWithWriter(out, "INFO", "json")

	Info("structured", "key", "value")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.String()), &rec))
	assert.Equal(t, "structured", rec["msg"])
	assert.Equal(t, "value", rec["key"])
}
