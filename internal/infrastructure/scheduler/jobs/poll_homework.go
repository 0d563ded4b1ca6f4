// Package jobs contains the scheduled jobs of the homework hub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/application/tracking"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
)

// PollHomeworkJobName is the scheduler name of the poll job.
const PollHomeworkJobName = "poll_homework"

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// PollState is the phase of the current poll cycle.
type PollState int32

const (
	PollIdle PollState = iota
	PollFetching
	PollDiffing
	PollEmitting
	PollPersisting
)

// String returns the phase name.
func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollFetching:
		return "fetching"
	case PollDiffing:
		return "diffing"
	case PollEmitting:
		return "emitting"
	case PollPersisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// CycleStats describes the last completed cycle.
type CycleStats struct {
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	Duration      time.Duration `json:"duration"`
	Students      int           `json:"students"`
	Assignments   int           `json:"assignments"`
	Appeared      int           `json:"appeared"`
	Completed     int           `json:"completed"`
	Published     int           `json:"published"`
	PublishFailed int           `json:"publish_failed"`
	Skipped       int           `json:"skipped"`
}

// SnapshotCache stores the latest snapshot outside the process.
type SnapshotCache interface {
	StoreSnapshot(ctx context.Context, snap homework.Snapshot) error
}

// ══════════════════════════════════════════════════════════════════════════════
// POLL HOMEWORK JOB
// ══════════════════════════════════════════════════════════════════════════════

// PollHomeworkConfig contains the collaborators and settings of the job.
type PollHomeworkConfig struct {
	Source  homework.SnapshotSource
	Store   *tracking.Store
	Emitter *tracking.Emitter

	// Publisher receives a PollCompletedEvent after each cycle (optional).
	Publisher shared.EventPublisher

	// Cache keeps the raw snapshot for other processes (optional).
	Cache SnapshotCache

	// Roster keeps student names across restarts (optional).
	Roster homework.RosterRepository

	// FetchTimeout bounds the Canvas read of one cycle.
	FetchTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// PollHomeworkJob runs one fetch → diff → emit → persist cycle per Run.
// At most one cycle is in flight; an overlapping Run returns
// ErrCycleInFlight immediately and nothing is queued.
type PollHomeworkJob struct {
	source    homework.SnapshotSource
	store     *tracking.Store
	emitter   *tracking.Emitter
	publisher shared.EventPublisher
	cache     SnapshotCache
	roster    homework.RosterRepository
	timeout   time.Duration
	logger    *slog.Logger

	busy  atomic.Bool
	phase atomic.Int32

	mu           sync.RWMutex
	state        *homework.PersistedState
	lastSnapshot *homework.Snapshot
	lastStats    *CycleStats
	savedRoster  []homework.Student
}

// NewPollHomeworkJob creates a new poll job.
func NewPollHomeworkJob(config PollHomeworkConfig) *PollHomeworkJob {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Store == nil {
		config.Store = tracking.NewStore(tracking.StoreConfig{Logger: config.Logger})
	}
	if config.Emitter == nil {
		config.Emitter = tracking.NewEmitter(tracking.EmitterConfig{Publisher: config.Publisher, Logger: config.Logger})
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 5 * time.Minute
	}

	return &PollHomeworkJob{
		source:    config.Source,
		store:     config.Store,
		emitter:   config.Emitter,
		publisher: config.Publisher,
		cache:     config.Cache,
		roster:    config.Roster,
		timeout:   config.FetchTimeout,
		logger:    config.Logger.With("job", PollHomeworkJobName),
	}
}

// Name returns the job name.
func (j *PollHomeworkJob) Name() string {
	return PollHomeworkJobName
}

// Description returns a human-readable description.
func (j *PollHomeworkJob) Description() string {
	return "Polls Canvas and emits homework appeared/completed events"
}

// State returns the phase of the cycle in flight.
func (j *PollHomeworkJob) State() PollState {
	return PollState(j.phase.Load())
}

func (j *PollHomeworkJob) setPhase(s PollState) {
	j.phase.Store(int32(s))
}

// Run executes one poll cycle.
func (j *PollHomeworkJob) Run(ctx context.Context) error {
	if !j.busy.CompareAndSwap(false, true) {
		j.logger.Debug("poll cycle already in flight, dropping tick")
		return shared.ErrCycleInFlight
	}
	defer j.busy.Store(false)
	defer j.setPhase(PollIdle)

	startedAt := time.Now()
	prior := j.ensureLoaded(ctx)

	// Fetching
	j.setPhase(PollFetching)
	fetchCtx, cancel := context.WithTimeout(ctx, j.timeout)
	snap, err := j.source.FetchSnapshot(fetchCtx)
	cancel()
	if err != nil {
		j.logger.Warn("snapshot fetch failed, state unchanged", "error", err)
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		j.logger.Info("poll cycle cancelled after fetch")
		return err
	}

	// Diffing
	j.setPhase(PollDiffing)
	result := homework.Diff(prior, snap)
	if result.Skipped > 0 {
		j.logger.Warn("skipped malformed snapshot records", "count", result.Skipped)
	}
	if err := ctx.Err(); err != nil {
		j.logger.Info("poll cycle cancelled after diff")
		return err
	}

	// Emitting. From here on the cycle runs to completion so that every
	// emitted transition is also persisted.
	j.setPhase(PollEmitting)
	var emitted tracking.EmitStats
	if result.HasChanges() {
		emitted = j.emitter.EmitAll(result)
	} else {
		j.logger.Debug("no homework transitions")
	}

	// Persisting
	j.setPhase(PollPersisting)
	persistCtx := context.WithoutCancel(ctx)
	j.store.Save(persistCtx, result.Next)

	completedAt := time.Now()
	stats := CycleStats{
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		Duration:      completedAt.Sub(startedAt),
		Students:      len(snap.Students),
		Assignments:   snap.AssignmentCount(),
		Appeared:      len(result.Appeared),
		Completed:     len(result.Completed),
		Published:     emitted.Published,
		PublishFailed: emitted.Failed,
		Skipped:       result.Skipped,
	}

	j.mu.Lock()
	j.state = result.Next
	j.lastSnapshot = &snap
	j.lastStats = &stats
	j.mu.Unlock()

	if j.roster != nil {
		if err := j.roster.SaveRoster(persistCtx, snap.Roster()); err != nil {
			j.logger.Warn("failed to save roster", "error", err)
		}
	}

	if j.cache != nil {
		if err := j.cache.StoreSnapshot(persistCtx, snap); err != nil {
			j.logger.Warn("failed to cache snapshot", "error", err)
		}
	}

	if j.publisher != nil {
		event := shared.NewPollCompletedEvent(stats.Students, stats.Appeared, stats.Completed, stats.Skipped, stats.Duration)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish poll completed event", "error", err)
		}
	}

	j.logger.Info("poll cycle completed",
		"duration", stats.Duration.String(),
		"students", stats.Students,
		"assignments", stats.Assignments,
		"appeared", stats.Appeared,
		"completed", stats.Completed,
		"publish_failed", stats.PublishFailed,
	)

	return nil
}

// ensureLoaded returns the owned state, loading it from the store on first use.
func (j *PollHomeworkJob) ensureLoaded(ctx context.Context) *homework.PersistedState {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == nil {
		j.state = j.store.Load(ctx)
		if j.roster != nil && j.lastSnapshot == nil {
			roster, err := j.roster.LoadRoster(ctx)
			if err != nil {
				j.logger.Warn("failed to load roster", "error", err)
			}
			j.savedRoster = roster
		}
	}
	return j.state
}

// ══════════════════════════════════════════════════════════════════════════════
// READ ACCESS
// ══════════════════════════════════════════════════════════════════════════════

// CurrentState returns a copy of the tracking state, loading it if needed.
func (j *PollHomeworkJob) CurrentState(ctx context.Context) *homework.PersistedState {
	return j.ensureLoaded(ctx).Clone()
}

// LastSnapshot returns the snapshot of the last successful cycle.
func (j *PollHomeworkJob) LastSnapshot() (homework.Snapshot, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.lastSnapshot == nil {
		return homework.Snapshot{}, false
	}
	return *j.lastSnapshot, true
}

// LastStats returns the statistics of the last successful cycle.
func (j *PollHomeworkJob) LastStats() (CycleStats, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.lastStats == nil {
		return CycleStats{}, false
	}
	return *j.lastStats, true
}

// Summary computes the per-student summary from the current state and the
// latest roster.
func (j *PollHomeworkJob) Summary(ctx context.Context) homework.Summary {
	state := j.ensureLoaded(ctx)

	j.mu.RLock()
	defer j.mu.RUnlock()

	roster := j.savedRoster
	if j.lastSnapshot != nil {
		roster = j.lastSnapshot.Roster()
	}
	return homework.Summarize(state, roster)
}

// Reset clears the tracking state in memory and in storage. It fails with
// ErrCycleInFlight while a cycle runs.
func (j *PollHomeworkJob) Reset(ctx context.Context) error {
	if !j.busy.CompareAndSwap(false, true) {
		return shared.ErrCycleInFlight
	}
	defer j.busy.Store(false)

	if err := j.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}

	j.mu.Lock()
	j.state = homework.NewPersistedState()
	j.mu.Unlock()

	j.logger.Info("tracking state reset")
	return nil
}

// IsInFlight reports whether err means a cycle was already running.
func IsInFlight(err error) bool {
	return errors.Is(err, shared.ErrCycleInFlight)
}
