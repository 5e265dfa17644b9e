package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake_WritesJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	data, err := New().FromWriter(&buf).Level("debug").Make()
	require.NoError(t, err)
	defer data.Close()

	data.Logger.Debug().Str("key", "autoAnswerEnabled").Msg("preference updated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "preference updated", line["message"])
	assert.Equal(t, "autoAnswerEnabled", line["key"])
	assert.Contains(t, line, "time")
}

func TestMake_LevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	data, err := New().FromWriter(&buf).Level("warn").Make()
	require.NoError(t, err)

	data.Logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	data.Logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestMake_FromPathCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "courier.log")
	data, err := New().FromPath(path).Make()
	require.NoError(t, err)

	data.Logger.Info().Msg("scheduler started")
	require.NoError(t, data.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "scheduler started")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"WARNING": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}
