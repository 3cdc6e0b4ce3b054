package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_SplitsByLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Stdout: &stdout, Stderr: &stderr})

	l.Debug().Msg("debug message")
	l.Info().Msg("info message")
	l.Error().Msg("error message")

	assert.Contains(t, stdout.String(), "debug message")
	assert.Contains(t, stdout.String(), "info message")
	assert.NotContains(t, stdout.String(), "error message")
	assert.Contains(t, stderr.String(), "error message")
	assert.NotContains(t, stderr.String(), "info message")
}

func TestNew_RespectsLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(Options{Level: "warn", Format: "json", Stdout: &stdout, Stderr: &stderr})

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "shown")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var stdout bytes.Buffer
	l := New(Options{Stdout: &stdout})

	l.Info().Str("slug", "abcd1234").Msg("stored")

	out := stdout.String()
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "slug=")
	assert.NotContains(t, out, `"message"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestSpecificLevelWriter_DropsOtherLevels(t *testing.T) {
	var buf bytes.Buffer
	w := SpecificLevelWriter{Writer: &buf, Levels: []zerolog.Level{zerolog.ErrorLevel}}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("ignored"))
	assert.NoError(t, err)
	assert.Equal(t, len("ignored"), n)
	assert.Empty(t, buf.String())

	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte("kept"))
	assert.NoError(t, err)
	assert.Equal(t, "kept", buf.String())
}
