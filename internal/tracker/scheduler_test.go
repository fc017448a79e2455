package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vcattend/internal/attendance"
)

type fakeResolver struct {
	mu  sync.Mutex
	obs []attendance.Observation
	n   int
}

func (f *fakeResolver) Fetch(ctx context.Context, groupID int64) []attendance.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return f.obs
}

func (f *fakeResolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// fakeAccumStore applies the insert-or-increment contract in memory.
type fakeAccumStore struct {
	mu        sync.Mutex
	durations map[int64]int64
	names     map[int64]string
	batches   int
	err       error
}

func newFakeAccumStore() *fakeAccumStore {
	return &fakeAccumStore{
		durations: make(map[int64]int64),
		names:     make(map[int64]string),
	}
}

func (f *fakeAccumStore) Accumulate(ctx context.Context, sessionID int64, obs []attendance.Observation, step int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.err != nil {
		return f.err
	}
	for _, o := range obs {
		f.durations[o.UserID] += step
		f.names[o.UserID] = o.Name
	}
	return nil
}

func TestScheduler_TickAccumulatesPollInterval(t *testing.T) {
	resolver := &fakeResolver{obs: []attendance.Observation{{UserID: 1, Name: "U"}}}
	store := newFakeAccumStore()
	s := NewScheduler(resolver, store, 10*time.Second)

	for i := 0; i < 3; i++ {
		s.tick(55, 100)
	}

	if got := store.durations[1]; got != 30 {
		t.Fatalf("expected 30 seconds after three ticks, got %d", got)
	}
	if store.batches != 3 {
		t.Fatalf("expected 3 accumulate batches, got %d", store.batches)
	}
}

func TestScheduler_EmptyFetchSkipsStore(t *testing.T) {
	resolver := &fakeResolver{}
	store := newFakeAccumStore()
	s := NewScheduler(resolver, store, 10*time.Second)

	s.tick(1, 2)

	if store.batches != 0 {
		t.Fatal("an empty tick must not touch the store")
	}
}

func TestScheduler_StoreFailureDoesNotPanicOrStop(t *testing.T) {
	resolver := &fakeResolver{obs: []attendance.Observation{{UserID: 1, Name: "U"}}}
	store := newFakeAccumStore()
	store.err = errors.New("disk full")
	s := NewScheduler(resolver, store, 10*time.Second)

	s.tick(1, 2)
	s.tick(1, 2)

	if store.batches != 2 {
		t.Fatalf("expected both ticks to reach the store, got %d", store.batches)
	}
}

func TestScheduler_SpawnStopsOnDone(t *testing.T) {
	resolver := &fakeResolver{obs: []attendance.Observation{{UserID: 9, Name: "X"}}}
	store := newFakeAccumStore()
	s := NewScheduler(resolver, store, 5*time.Millisecond)

	done := make(chan struct{})
	s.Spawn(1, 2, done)

	deadline := time.After(time.Second)
	for resolver.calls() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop never ticked")
		case <-time.After(time.Millisecond):
		}
	}

	close(done)
	time.Sleep(20 * time.Millisecond)
	settled := resolver.calls()
	time.Sleep(30 * time.Millisecond)
	if resolver.calls() != settled {
		t.Fatal("loop kept ticking after done was closed")
	}
}

func TestScheduler_NameIsLastWriteWins(t *testing.T) {
	resolver := &fakeResolver{obs: []attendance.Observation{{UserID: 3, Name: "Old"}}}
	store := newFakeAccumStore()
	s := NewScheduler(resolver, store, 10*time.Second)

	s.tick(1, 2)
	resolver.mu.Lock()
	resolver.obs = []attendance.Observation{{UserID: 3, Name: "New"}}
	resolver.mu.Unlock()
	s.tick(1, 2)

	if store.names[3] != "New" {
		t.Fatalf("expected latest name to win, got %q", store.names[3])
	}
	if store.durations[3] != 20 {
		t.Fatalf("expected 20 seconds, got %d", store.durations[3])
	}
}
