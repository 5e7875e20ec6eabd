package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"Trace": LevelTrace,
		"debug": slog.LevelDebug,
		"Info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("nonsense")
	assert.Error(t, err)
}

func TestTextHandlerRendersCustomSeverities(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, LevelTrace, FormatText)
	l := slog.New(h)

	l.Log(context.Background(), LevelTrace, "hello")
	assert.Contains(t, buf.String(), "severity=TRACE")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestJSONHandlerRendersCustomSeverities(t *testing.T) {
	var buf bytes.Buffer
	h := newHandler(&buf, LevelTrace, FormatJSON)
	l := slog.New(h)

	l.Log(context.Background(), slog.LevelWarn, "careful")
	assert.Contains(t, buf.String(), `"severity":"WARNING"`)
	assert.Contains(t, buf.String(), `"msg":"careful"`)
}

func TestFanoutHandlerDispatchesToBothSinks(t *testing.T) {
	var console, file bytes.Buffer
	f := &fanoutHandler{handlers: []slog.Handler{
		newHandler(&console, slog.LevelInfo, FormatText),
		newHandler(&file, LevelTrace, FormatText),
	}}
	l := slog.New(f)

	l.Log(context.Background(), LevelTrace, "trace only in file")
	assert.Empty(t, console.String())
	assert.Contains(t, file.String(), "trace only in file")

	l.Log(context.Background(), slog.LevelInfo, "both sinks")
	assert.Contains(t, console.String(), "both sinks")
	assert.Contains(t, file.String(), "both sinks")
}
