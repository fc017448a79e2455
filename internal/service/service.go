package service

import (
	"context"
	"fmt"
	"log"

	"vcattend/internal/attendance"
	"vcattend/internal/queue"
	"vcattend/internal/report"
	"vcattend/internal/tracker"
)

// Store is the persistence surface the service needs beyond what the
// registry and scheduler already own.
type Store interface {
	UpsertGroup(ctx context.Context, groupID int64, title string) error
	ListGroups(ctx context.Context) ([]attendance.Group, error)
	GroupTitle(ctx context.Context, groupID int64) (string, error)
	ListRecentSessions(ctx context.Context, limit int) ([]attendance.Session, error)
	List(ctx context.Context, sessionID int64) ([]attendance.Record, error)
}

// Directory resolves chat titles on the communication platform.
type Directory interface {
	GroupTitle(ctx context.Context, groupID int64) (string, error)
}

// Tracker glues the attendance engine together for the admin surfaces: the
// Telegram bot and the HTTP API drive the same operations through it.
type Tracker struct {
	store     Store
	registry  *tracker.Registry
	scheduler *tracker.Scheduler
	reports   *report.Generator
	directory Directory
	jobs      queue.Queue
}

// New wires a tracker service.
func New(store Store, registry *tracker.Registry, scheduler *tracker.Scheduler, reports *report.Generator, directory Directory, jobs queue.Queue) *Tracker {
	return &Tracker{
		store:     store,
		registry:  registry,
		scheduler: scheduler,
		reports:   reports,
		directory: directory,
		jobs:      jobs,
	}
}

// RegisterGroup resolves the chat's title on the platform and upserts the
// group. Re-registering refreshes the title.
func (t *Tracker) RegisterGroup(ctx context.Context, groupID int64) (string, error) {
	title, err := t.directory.GroupTitle(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("resolving group %d: %w", groupID, err)
	}
	if err := t.store.UpsertGroup(ctx, groupID, title); err != nil {
		return "", fmt.Errorf("saving group %d: %w", groupID, err)
	}
	return title, nil
}

// SaveGroup upserts a group with an explicit title, for callers that already
// know it.
func (t *Tracker) SaveGroup(ctx context.Context, groupID int64, title string) error {
	return t.store.UpsertGroup(ctx, groupID, title)
}

// Groups lists all registered groups.
func (t *Tracker) Groups(ctx context.Context) ([]attendance.Group, error) {
	return t.store.ListGroups(ctx)
}

// GroupName returns the stored title, falling back to the numeric id.
func (t *Tracker) GroupName(ctx context.Context, groupID int64) string {
	title, err := t.store.GroupTitle(ctx, groupID)
	if err != nil {
		return fmt.Sprintf("%d", groupID)
	}
	return title
}

// StartTracking opens a session for the group and spawns its polling loop.
// Fails with tracker.ErrAlreadyActive when one is running.
func (t *Tracker) StartTracking(ctx context.Context, groupID int64, name string) (int64, error) {
	sessionID, done, err := t.registry.Start(ctx, groupID, name)
	if err != nil {
		return 0, err
	}
	t.scheduler.Spawn(sessionID, groupID, done)
	return sessionID, nil
}

// StopTracking ends the group's session, signals its loop and queues the
// report delivery. Fails with tracker.ErrNotActive when nothing is running.
func (t *Tracker) StopTracking(ctx context.Context, groupID int64) (int64, error) {
	sessionID, err := t.registry.Stop(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if t.jobs != nil {
		if err := t.jobs.Publish(ctx, queue.NewReportJob(sessionID)); err != nil {
			log.Printf("service: queueing report for session %d: %v", sessionID, err)
		}
	}
	return sessionID, nil
}

// IsActive reports whether the group is currently tracked.
func (t *Tracker) IsActive(groupID int64) bool {
	return t.registry.IsActive(groupID)
}

// ActiveSessions maps group id to running session id.
func (t *Tracker) ActiveSessions() map[int64]int64 {
	return t.registry.ListActive()
}

// RecentSessions returns the newest sessions for the archive menu.
func (t *Tracker) RecentSessions(ctx context.Context, limit int) ([]attendance.Session, error) {
	return t.store.ListRecentSessions(ctx, limit)
}

// Records returns a session's attendance rows, longest duration first.
func (t *Tracker) Records(ctx context.Context, sessionID int64) ([]attendance.Record, error) {
	return t.store.List(ctx, sessionID)
}

// TableReport renders the CSV export for a session.
func (t *Tracker) TableReport(ctx context.Context, sessionID int64) ([]byte, string, error) {
	return t.reports.RenderTable(ctx, sessionID)
}

// TextReport renders the paged text listing for a session.
func (t *Tracker) TextReport(ctx context.Context, sessionID int64) ([]string, error) {
	return t.reports.RenderPagedText(ctx, sessionID)
}
