package jobs

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the job's partition has no room.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrQueueClosed is returned when the queue was never started or has stopped.
	ErrQueueClosed = errors.New("jobs: queue closed")
)

// Job is one unit of background work. Jobs sharing a Key land on the same
// partition and are handled in the order they were enqueued.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures the partitioned worker pool.
type QueueConfig struct {
	// Workers is the number of partitions, each drained by one goroutine.
	Workers int
	// BufferSize is the capacity of each partition.
	BufferSize int
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay time.Duration
	// OnDrop is called when a job exhausts its retries.
	OnDrop func(Job, error)
	Logger *zap.Logger
}

// Queue is an in-memory job pool partitioned by job key. A failing job is
// retried in place, so it holds back later jobs of its own partition.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig

	partitions []chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	running    bool
}

// NewQueue builds a queue that feeds jobs to handler once started.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	partitions := make([]chan Job, cfg.Workers)
	for i := range partitions {
		partitions[i] = make(chan Job, cfg.BufferSize)
	}
	return &Queue{name: name, handler: handler, cfg: cfg, partitions: partitions}
}

// Start launches one worker per partition. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i, partition := range q.partitions {
		q.wg.Add(1)
		go q.drain(i, partition)
	}
	q.running = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("partitions", len(q.partitions)))
}

// Stop cancels the workers and waits for them. Buffered jobs are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
}

// TryEnqueue hands job to its partition without waiting for room.
func (q *Queue) TryEnqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.partitions[q.partitionOf(job.Key)] <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of buffered jobs across partitions.
func (q *Queue) Len() int {
	n := 0
	for _, partition := range q.partitions {
		n += len(partition)
	}
	return n
}

func (q *Queue) partitionOf(key string) int {
	if len(q.partitions) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.partitions)))
}

func (q *Queue) drain(index int, partition <-chan Job) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-partition:
			q.process(index, job)
		}
	}
}

func (q *Queue) process(index int, job Job) {
	for {
		err := q.handler(q.ctx, job)
		if err == nil {
			return
		}
		if job.Attempt >= q.cfg.MaxRetries || q.ctx.Err() != nil {
			q.cfg.Logger.Error("job dropped",
				zap.String("queue", q.name),
				zap.String("job_id", job.ID),
				zap.String("type", job.Type),
				zap.Int("attempts", job.Attempt+1),
				zap.Error(err),
			)
			if q.cfg.OnDrop != nil {
				q.cfg.OnDrop(job, err)
			}
			return
		}

		job.Attempt++
		q.cfg.Logger.Warn("job failed, retrying",
			zap.String("queue", q.name),
			zap.Int("partition", index),
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(time.Duration(job.Attempt) * q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
