package config

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
canvas:
  base_url: https://school.instructure.com
  token: t
poll:
  interval: %s
state:
  backend: memory
`

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(validConfig, "10m"))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(c *Config) { reloaded <- c }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Invalid content is rejected without a callback.
	require.NoError(t, os.WriteFile(path, []byte("canvas: {}\n"), 0o600))
	select {
	case <-reloaded:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(validConfig, "3m")), 0o600))
	select {
	case cfg := <-reloaded:
		assert.Equal(t, 3*time.Minute, cfg.Poll.Interval)
	case <-time.After(2 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	_, err := NewWatcher("", 0, nil, nil)
	assert.Error(t, err)
}
