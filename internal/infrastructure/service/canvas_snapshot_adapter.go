// Package service adapts infrastructure clients to domain contracts.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/external/canvas"
)

// CanvasFetcher is the part of canvas.Client the adapter needs.
type CanvasFetcher interface {
	FetchAll(ctx context.Context) ([]canvas.StudentData, error)
}

// CanvasSnapshotAdapter adapts the Canvas client to homework.SnapshotSource.
type CanvasSnapshotAdapter struct {
	client CanvasFetcher
	mapper *canvas.Mapper
	now    func() time.Time
	logger *slog.Logger
}

// NewCanvasSnapshotAdapter creates a new adapter. A nil logger uses slog.Default().
func NewCanvasSnapshotAdapter(client CanvasFetcher, logger *slog.Logger) *CanvasSnapshotAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CanvasSnapshotAdapter{
		client: client,
		mapper: canvas.NewMapper(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "canvas_snapshot"),
	}
}

// FetchSnapshot implements homework.SnapshotSource. The snapshot is all or
// nothing: a failure for any student fails the whole read.
func (a *CanvasSnapshotAdapter) FetchSnapshot(ctx context.Context) (homework.Snapshot, error) {
	data, err := a.client.FetchAll(ctx)
	if err != nil {
		return homework.Snapshot{}, fmt.Errorf("fetch canvas snapshot: %w", err)
	}

	snap := homework.Snapshot{
		Students:  make([]homework.StudentSnapshot, 0, len(data)),
		FetchedAt: a.now(),
	}
	for _, sd := range data {
		snap.Students = append(snap.Students, a.mapper.StudentSnapshotFromData(sd))
	}

	a.logger.Debug("snapshot built",
		"students", len(snap.Students),
		"assignments", snap.AssignmentCount(),
	)

	return snap, nil
}
