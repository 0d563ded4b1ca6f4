package messaging

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

func TestHomeAssistantForwarder_Handle(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Event canvas_homework_appeared fired."}`))
	}))
	defer srv.Close()

	cfg := DefaultHomeAssistantConfig()
	cfg.BaseURL = srv.URL + "/"
	cfg.Token = "ha-token"
	f, err := NewHomeAssistantForwarder(cfg)
	require.NoError(t, err)

	require.NoError(t, f.Handle(testEvent(homework.KindAppeared, "7")))

	assert.Equal(t, "/api/events/"+string(shared.EventHomeworkAppeared), gotPath)
	assert.Equal(t, "Bearer ha-token", gotAuth)
	assert.Equal(t, "7", gotBody["assignment_id"])
	assert.Equal(t, "Ada Lovelace", gotBody["student_name"])
	assert.Equal(t, "History", gotBody["course_name"])
}

func TestHomeAssistantForwarder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "401: Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := DefaultHomeAssistantConfig()
	cfg.BaseURL = srv.URL
	f, err := NewHomeAssistantForwarder(cfg)
	require.NoError(t, err)

	err = f.Handle(testEvent(homework.KindCompleted, "7"))
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
	assert.Contains(t, err.Error(), "unexpected status 401")
}

func TestHomeAssistantForwarder_RequiresURL(t *testing.T) {
	_, err := NewHomeAssistantForwarder(DefaultHomeAssistantConfig())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
