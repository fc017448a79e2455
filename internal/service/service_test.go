package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"vcattend/internal/attendance"
	"vcattend/internal/queue"
	"vcattend/internal/report"
	"vcattend/internal/tracker"
)

// fakeStore backs every persistence interface the service graph needs.
type fakeStore struct {
	groups   map[int64]string
	nextID   int64
	closed   []int64
	records  map[int64][]attendance.Record
	titleErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  make(map[int64]string),
		records: make(map[int64][]attendance.Record),
	}
}

func (f *fakeStore) UpsertGroup(ctx context.Context, groupID int64, title string) error {
	f.groups[groupID] = title
	return nil
}

func (f *fakeStore) ListGroups(ctx context.Context) ([]attendance.Group, error) {
	var out []attendance.Group
	for id, title := range f.groups {
		out = append(out, attendance.Group{ID: id, Title: title})
	}
	return out, nil
}

func (f *fakeStore) GroupTitle(ctx context.Context, groupID int64) (string, error) {
	title, ok := f.groups[groupID]
	if !ok {
		return "", attendance.ErrNotFound
	}
	return title, nil
}

func (f *fakeStore) ListRecentSessions(ctx context.Context, limit int) ([]attendance.Session, error) {
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context, sessionID int64) ([]attendance.Record, error) {
	return f.records[sessionID], nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID int64) (attendance.Session, error) {
	return attendance.Session{ID: sessionID, Name: "test"}, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, groupID int64, name string, start time.Time) (int64, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeStore) CloseSession(ctx context.Context, sessionID int64) error {
	f.closed = append(f.closed, sessionID)
	return nil
}

func (f *fakeStore) Accumulate(ctx context.Context, sessionID int64, obs []attendance.Observation, step int64) error {
	return nil
}

type fakeDirectory struct {
	titles map[int64]string
	err    error
}

func (f *fakeDirectory) GroupTitle(ctx context.Context, groupID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.titles[groupID], nil
}

type nobodyResolver struct{}

func (nobodyResolver) Fetch(ctx context.Context, groupID int64) []attendance.Observation {
	return nil
}

func newService(store *fakeStore, dir *fakeDirectory, jobs queue.Queue) *Tracker {
	registry := tracker.NewRegistry(store)
	scheduler := tracker.NewScheduler(nobodyResolver{}, store, time.Hour)
	reports := report.NewGenerator(store)
	return New(store, registry, scheduler, reports, dir, jobs)
}

func TestRegisterGroup(t *testing.T) {
	store := newFakeStore()
	dir := &fakeDirectory{titles: map[int64]string{-100: "Math Club"}}
	svc := newService(store, dir, queue.NewInMemory(1))

	title, err := svc.RegisterGroup(context.Background(), -100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Math Club" {
		t.Fatalf("unexpected title %q", title)
	}
	if store.groups[-100] != "Math Club" {
		t.Fatal("group was not persisted")
	}
}

func TestRegisterGroup_DirectoryFailure(t *testing.T) {
	store := newFakeStore()
	dir := &fakeDirectory{err: errors.New("peer not found")}
	svc := newService(store, dir, queue.NewInMemory(1))

	if _, err := svc.RegisterGroup(context.Background(), -100); err == nil {
		t.Fatal("expected error when the platform cannot resolve the chat")
	}
	if len(store.groups) != 0 {
		t.Fatal("failed registration must not persist a group")
	}
}

func TestStartStopTracking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeStore()
	jobs := queue.NewInMemory(1)
	svc := newService(store, &fakeDirectory{}, jobs)

	sid, err := svc.StartTracking(ctx, 5, "algebra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !svc.IsActive(5) {
		t.Fatal("expected group to be active")
	}
	if _, err := svc.StartTracking(ctx, 5, "again"); !errors.Is(err, tracker.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	stopped, err := svc.StopTracking(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stopped != sid {
		t.Fatalf("expected session %d, got %d", sid, stopped)
	}
	if svc.IsActive(5) {
		t.Fatal("expected group inactive after stop")
	}

	// a report job for the stopped session was queued
	ch, err := jobs.Consume(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case job := <-ch:
		if job.Type != queue.TypeReport || job.SessionID != sid {
			t.Fatalf("unexpected job %+v", job)
		}
	case <-time.After(time.Second):
		t.Fatal("no report job queued")
	}
}

func TestGroupNameFallsBackToID(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, &fakeDirectory{}, queue.NewInMemory(1))

	if got := svc.GroupName(context.Background(), 77); got != "77" {
		t.Fatalf("expected numeric fallback, got %q", got)
	}
	store.groups[77] = "Known"
	if got := svc.GroupName(context.Background(), 77); got != "Known" {
		t.Fatalf("expected stored title, got %q", got)
	}
}
