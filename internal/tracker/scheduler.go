package tracker

import (
	"context"
	"log"
	"time"

	"vcattend/internal/attendance"
)

// Resolver yields the participants currently present in a group's voice chat.
// An empty result means nobody observed; it carries no error by contract.
type Resolver interface {
	Fetch(ctx context.Context, groupID int64) []attendance.Observation
}

// AccumulateStore merges one tick's observations into durable records.
type AccumulateStore interface {
	Accumulate(ctx context.Context, sessionID int64, obs []attendance.Observation, step int64) error
}

// Scheduler drives one polling loop per active session. A loop ticks at the
// fixed interval, fetches the roster and accumulates it; every per-tick
// failure is logged and absorbed so tracking survives transient platform or
// storage trouble for the whole session lifetime. Only the done channel,
// closed by Registry.Stop, ends a loop.
type Scheduler struct {
	resolver Resolver
	store    AccumulateStore
	interval time.Duration
}

// NewScheduler creates a scheduler polling at the given interval.
func NewScheduler(resolver Resolver, store AccumulateStore, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Scheduler{resolver: resolver, store: store, interval: interval}
}

// Interval returns the poll interval, which is also the per-tick duration
// step credited to each observed participant.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Spawn starts the session's polling loop in its own goroutine. Ticks within
// a loop are strictly sequential; the next fetch starts only after the
// previous accumulate finished. Cancellation is cooperative through done, so
// an in-flight tick always completes before the loop exits.
func (s *Scheduler) Spawn(sessionID, groupID int64, done <-chan struct{}) {
	go s.run(sessionID, groupID, done)
}

func (s *Scheduler) run(sessionID, groupID int64, done <-chan struct{}) {
	log.Printf("tracker: session %d started for group %d", sessionID, groupID)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("tracker: session %d stopped", sessionID)
			return
		case <-ticker.C:
			s.tick(sessionID, groupID)
		}
	}
}

func (s *Scheduler) tick(sessionID, groupID int64) {
	ticksTotal.Inc()
	ctx := context.Background()

	obs := s.resolver.Fetch(ctx, groupID)
	if len(obs) == 0 {
		emptyTicksTotal.Inc()
		return
	}
	observationsTotal.Add(float64(len(obs)))

	step := int64(s.interval / time.Second)
	if err := s.store.Accumulate(ctx, sessionID, obs, step); err != nil {
		accumulateFailures.Inc()
		log.Printf("tracker: accumulate for session %d: %v", sessionID, err)
	}
}
