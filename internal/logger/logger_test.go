package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsText(t *testing.T) {
	var buf bytes.Buffer
	l := NewTesting(&buf)

	l.Debug("debug message", "k", 1)
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	require.Contains(t, out, "DEBUG")
	require.Contains(t, out, "debug message")
	require.Contains(t, out, "k=1")
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "WARN")
	require.Contains(t, out, "ERROR")
}

func TestLoggerSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewTesting(&buf)
	l.SetLevel("WARN")

	l.Debug("should not appear")
	l.Info("also should not appear")
	l.Warn("should appear")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear")
}

func TestContextArgsPrependedToLogLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewTesting(&buf)

	ctx := WithContext(t.Context(), NewContext("rtinode://root").
		WithFederation("ExampleFederation", 3).
		WithOperation("JoinFederationExecutionRequest"))

	l.InfoCtx(ctx, "handling request")

	out := buf.String()
	require.True(t, strings.Contains(out, "federation=ExampleFederation"))
	require.True(t, strings.Contains(out, "op=JoinFederationExecutionRequest"))
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/server.log"

	l, err := New(Config{Output: path, Level: "DEBUG", Format: "text"})
	require.NoError(t, err)
	defer l.Close()

	l.Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello file")
}
