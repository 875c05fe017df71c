package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		level    string
		expected zerolog.Level
	}{
		{level: "debug", expected: zerolog.DebugLevel},
		{level: " WARN ", expected: zerolog.WarnLevel},
		{level: "error", expected: zerolog.ErrorLevel},
		{level: "off", expected: zerolog.Disabled},
		{level: "", expected: zerolog.InfoLevel},
		{level: "verbose", expected: zerolog.InfoLevel},
	} {
		t.Run(tc.level, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestBuild(t *testing.T) {
	var buf bytes.Buffer
	logger := Build(Config{Level: "warn", Component: "dem"}, &buf)

	logger.Info().Msg("dropped")
	assert.Equal(t, 0, buf.Len())

	logger.Warn().Str("filename", "a.tif").Msg("missing")
	var entry map[string]any
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "missing", entry["msg"])
	assert.Equal(t, "dem", entry["component"])
	assert.Equal(t, "a.tif", entry["filename"])
	_, ok := entry["timestamp"]
	assert.True(t, ok)
}

func TestBuildConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := Build(Config{Console: true}, &buf)
	logger.Info().Msg("open")
	assert.Contains(t, buf.String(), "open")
}
