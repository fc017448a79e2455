package queue

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TypeReport asks the worker to render and deliver a session report.
const TypeReport = "report"

// Job is one unit of deferred work, usually "deliver the report for this
// session". The id makes deliveries traceable across bot, api and worker.
type Job struct {
	ID        string
	Type      string
	SessionID int64
}

// NewReportJob builds a report job for the given session.
func NewReportJob(sessionID int64) Job {
	return Job{ID: uuid.NewString(), Type: TypeReport, SessionID: sessionID}
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	Consume(ctx context.Context) (<-chan Job, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Job
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Job, size)}
}

// Publish enqueues a job.
func (q *InMemory) Publish(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case job := <-q.ch:
				out <- job
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "vcattend:reports"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a job.
func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	return q.client.LPush(ctx, q.key, serialize(job)).Err()
}

// Consume streams jobs using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				if job, ok := deserialize(res[1]); ok {
					out <- job
				}
			}
		}
	}()
	return out, nil
}

// serialize stores jobs as id|type|session.
func serialize(job Job) string {
	return job.ID + "|" + job.Type + "|" + strconv.FormatInt(job.SessionID, 10)
}

func deserialize(s string) (Job, bool) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return Job{}, false
	}
	sid, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Job{}, false
	}
	return Job{ID: parts[0], Type: parts[1], SessionID: sid}, true
}
