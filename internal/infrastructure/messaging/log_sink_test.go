package messaging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
)

func TestLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := LogHandler(logger)
	require.NoError(t, h(testEvent(homework.KindAppeared, "1")))
	require.NoError(t, h(testEvent(homework.KindCompleted, "1")))

	out := buf.String()
	assert.Contains(t, out, `msg="new homework appeared"`)
	assert.Contains(t, out, `msg="homework completed"`)
	assert.Contains(t, out, `student="Ada Lovelace"`)
	assert.Contains(t, out, "assignment=Essay")
}
