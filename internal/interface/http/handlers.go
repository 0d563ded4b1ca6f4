package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/canvas-hub/canvas-homework-hub/internal/application/sensor"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/scheduler"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		status := s.deps.Health.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.deps.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// SummaryResponse is the payload of GET /api/v1/summary.
type SummaryResponse struct {
	homework.Summary
	PollState string           `json:"poll_state"`
	LastCycle *jobs.CycleStats `json:"last_cycle,omitempty"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Poller == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Poller is not configured")
		return
	}

	resp := SummaryResponse{
		Summary:   s.deps.Poller.Summary(r.Context()),
		PollState: s.deps.Poller.State().String(),
	}
	if stats, ok := s.deps.Poller.LastStats(); ok {
		resp.LastCycle = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// SENSORS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sensors == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Sensors are not configured")
		return
	}
	sensors := s.deps.Sensors.All(r.Context())
	writeJSONWithMeta(w, http.StatusOK, sensors, &ResponseMeta{TotalCount: len(sensors)})
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sensors == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Sensors are not configured")
		return
	}

	key := chi.URLParam(r, "key")
	result, err := s.deps.Sensors.Get(r.Context(), key)
	if err != nil {
		if sensor.IsUnknown(err) {
			writeJSONError(w, http.StatusNotFound, "sensor_not_found", "Unknown sensor: "+key)
			return
		}
		writeJSONErrorWithDetails(w, http.StatusInternalServerError, "sensor_failed", "Failed to compute sensor", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOBS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Scheduler is not configured")
		return
	}
	list := s.deps.Jobs.ListJobs()
	writeJSONWithMeta(w, http.StatusOK, list, &ResponseMeta{TotalCount: len(list)})
}

// handleJobHistory returns recent job results, newest last.
func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Scheduler is not configured")
		return
	}
	history := s.deps.Jobs.GetHistory(getQueryParamInt(r, "limit", 20))
	writeJSONWithMeta(w, http.StatusOK, history, &ResponseMeta{TotalCount: len(history)})
}

// handleTriggerPoll starts a poll cycle. By default the cycle runs in the
// background and 202 is returned; ?wait=true blocks until it completes.
func (s *Server) handleTriggerPoll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Scheduler is not configured")
		return
	}

	name := s.deps.PollJobName
	if s.pollInFlight(name) {
		writeJSONError(w, http.StatusConflict, "poll_in_flight", "A poll cycle is already running")
		return
	}

	if getQueryParamBool(r, "wait") {
		result, err := s.deps.Jobs.RunNow(r.Context(), name)
		switch {
		case isInFlight(err):
			writeJSONError(w, http.StatusConflict, "poll_in_flight", "A poll cycle is already running")
		case errors.Is(err, scheduler.ErrJobNotFound):
			writeJSONError(w, http.StatusNotFound, "job_not_found", "Poll job is not registered")
		case err != nil:
			writeJSONErrorWithDetails(w, http.StatusBadGateway, "poll_failed", "Poll cycle failed", err.Error())
		default:
			writeJSON(w, http.StatusOK, result)
		}
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.deps.Jobs.RunNow(s.baseCtx, name); err != nil && !isInFlight(err) {
			s.logger.Warn("triggered poll failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}

func (s *Server) pollInFlight(name string) bool {
	if s.deps.Poller != nil && s.deps.Poller.State() != jobs.PollIdle {
		return true
	}
	for _, info := range s.deps.Jobs.ListJobs() {
		if info.Name == name && info.Running {
			return true
		}
	}
	return false
}

func isInFlight(err error) bool {
	return errors.Is(err, scheduler.ErrJobRunning) || errors.Is(err, shared.ErrCycleInFlight)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeJSONError(w, http.StatusNotFound, "event_log_disabled", "Event log is not enabled")
		return
	}

	events, err := s.deps.Events.Recent(r.Context(), getQueryParamInt(r, "limit", 50))
	if err != nil {
		writeJSONErrorWithDetails(w, http.StatusInternalServerError, "event_log_failed", "Failed to read event log", err.Error())
		return
	}
	writeJSONWithMeta(w, http.StatusOK, events, &ResponseMeta{TotalCount: len(events)})
}
