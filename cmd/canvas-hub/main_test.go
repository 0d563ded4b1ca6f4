package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/config"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

func TestLogLevel(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, slog.LevelInfo, logLevel(cfg, false))
	assert.Equal(t, slog.LevelDebug, logLevel(cfg, true))

	cfg.Observability.LogLevel = "WARN"
	assert.Equal(t, slog.LevelWarn, logLevel(cfg, false))

	cfg.App.Debug = true
	assert.Equal(t, slog.LevelDebug, logLevel(cfg, false))
}

func TestUseJSON(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer

	cfg.Observability.LogFormat = "json"
	assert.True(t, useJSON(cfg, &buf))

	cfg.Observability.LogFormat = "text"
	assert.False(t, useJSON(cfg, &buf))

	cfg.Observability.LogFormat = "auto"
	cfg.App.Environment = config.EnvDevelopment
	assert.False(t, useJSON(cfg, &buf))
}

func TestPrintSummary(t *testing.T) {
	s := homework.Summary{
		Students: map[homework.StudentID]homework.StudentSummary{
			"2": {Name: "Bob", Known: 1, Completed: 0, Pending: 1},
			"1": {Name: "Ada", Known: 3, Completed: 2, Pending: 1},
		},
		TotalKnown:     4,
		TotalCompleted: 2,
		TotalPending:   2,
		StudentCount:   2,
	}

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, s))

	out := buf.String()
	assert.Contains(t, out, "STUDENT")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Ada")), bytes.Index(buf.Bytes(), []byte("Bob")))
	assert.Regexp(t, `TOTAL\s+4\s+2\s+2`, out)
}

func TestResetState_RequiresConfirmation(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"reset-state"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "poll", "summary", "validate", "reset-state"})
}
