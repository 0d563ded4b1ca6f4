package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HOME ASSISTANT SINK
// Fires events through the Home Assistant REST API:
//
//	POST {base}/api/events/{event_type}
//	Authorization: Bearer {token}
// ══════════════════════════════════════════════════════════════════════════════

// HomeAssistantConfig contains configuration for HomeAssistantForwarder.
type HomeAssistantConfig struct {
	// BaseURL is the Home Assistant URL, e.g. http://homeassistant.local:8123
	BaseURL string

	// Token is a long-lived access token.
	Token string

	// Timeout bounds a single request.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultHomeAssistantConfig returns sensible defaults.
func DefaultHomeAssistantConfig() HomeAssistantConfig {
	return HomeAssistantConfig{
		Timeout: 10 * time.Second,
	}
}

// HomeAssistantForwarder posts domain events to Home Assistant's event bus.
type HomeAssistantForwarder struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHomeAssistantForwarder creates a new forwarder.
func NewHomeAssistantForwarder(config HomeAssistantConfig) (*HomeAssistantForwarder, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("%w: home assistant base URL is required", shared.ErrInvalidInput)
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &HomeAssistantForwarder{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		logger:     config.Logger.With("component", "homeassistant"),
	}, nil
}

// Handle implements shared.EventHandler. Failures are returned to the bus,
// which logs them; there is no retry.
func (f *HomeAssistantForwarder) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	return f.Fire(ctx, event.EventType(), event.Payload())
}

// Fire posts a single event with the given payload.
func (f *HomeAssistantForwarder) Fire(ctx context.Context, eventType shared.EventType, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/events/%s", f.baseURL, eventType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return shared.WrapError("homeassistant", "Fire", shared.ErrExternalService, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.WrapError("homeassistant", "Fire", shared.ErrExternalService,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(msg))))
	}

	f.logger.Debug("event fired", "event_type", eventType)
	return nil
}
