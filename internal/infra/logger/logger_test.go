package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected zerolog.Level
	}{
		{in: "debug", expected: zerolog.DebugLevel},
		{in: "INFO", expected: zerolog.InfoLevel},
		{in: "", expected: zerolog.WarnLevel},
		{in: "warning", expected: zerolog.WarnLevel},
		{in: "error", expected: zerolog.ErrorLevel},
		{in: "loud", expected: zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.in))
		})
	}
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false, zerolog.InfoLevel)

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["message"])
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunebox.log")
	prev := zlog.Logger
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	closeLog, err := Init(Config{Output: "file", Level: "info", File: path})
	require.NoError(t, err)
	zlog.Info().Msg("to file")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)

	_, err = Init(Config{Output: "file"})
	assert.Error(t, err)
}
