package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nexus-chain/nexus/internal/intent"
	"github.com/nexus-chain/nexus/internal/logging"
	"github.com/nexus-chain/nexus/internal/notification"
)

var (
	// ErrQueueFull is returned when the backlog is at capacity.
	ErrQueueFull = errors.New("executor queue is full")
	// ErrQueueClosed is returned after Stop.
	ErrQueueClosed = errors.New("executor queue is closed")
	// ErrBatchNotFound is returned for an unknown batch id.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrEmptyBatch rejects a submission without intents.
	ErrEmptyBatch = errors.New("batch has no intents")
)

// BatchStatus tracks a batch through the queue.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// DefaultQueueCapacity bounds the number of waiting batches.
const DefaultQueueCapacity = 64

type job struct {
	id      string
	intents []intent.Intent
}

// Queue feeds batches to a single worker goroutine so at most one executor
// transfer is in flight at any time.
type Queue struct {
	exec     *Executor
	notifier notification.Notifier
	logger   *slog.Logger

	jobs     chan job
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
	reports map[string]Report
}

// NewQueue creates a queue in front of exec. Call Start to begin processing.
func NewQueue(exec *Executor, capacity int, notifier notification.Notifier, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Queue{
		exec:     exec,
		notifier: notifier,
		logger:   logging.Component(logger, "executor.queue"),
		jobs:     make(chan job, capacity),
		stop:     make(chan struct{}),
		reports:  make(map[string]Report),
	}
}

// Start launches the worker. It returns after the first call.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		q.work(ctx)
	}()
	go func() {
		select {
		case <-q.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	q.logger.Info("executor worker started")
}

// Submit enqueues a batch and returns its id.
func (q *Queue) Submit(intents []intent.Intent) (string, error) {
	if len(intents) == 0 {
		return "", ErrEmptyBatch
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	j := job{id: uuid.NewString(), intents: slices.Clone(intents)}
	select {
	case q.jobs <- j:
	default:
		return "", ErrQueueFull
	}
	q.reports[j.id] = Report{BatchID: j.id, Status: BatchQueued, QueuedAt: q.exec.opts.Now()}
	q.logger.Info("batch queued", slog.String("batch_id", j.id), slog.Int("steps", len(intents)))
	return j.id, nil
}

// Report returns the latest report for a batch.
func (q *Queue) Report(id string) (Report, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	r, ok := q.reports[id]
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	r.Steps = slices.Clone(r.Steps)
	return r, nil
}

// Stop refuses new batches, cancels the running one and waits for the worker.
// Batches still waiting in the backlog are reported as skipped.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
		close(q.stop)
	})
	q.wg.Wait()
}

func (q *Queue) work(ctx context.Context) {
	for j := range q.jobs {
		q.run(ctx, j)
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("batch panicked", slog.String("batch_id", j.id), slog.Any("panic", r))
			q.fail(j, fmt.Sprintf("batch panicked: %v", r))
		}
	}()

	q.mu.Lock()
	r := q.reports[j.id]
	r.Status = BatchRunning
	r.StartedAt = q.exec.opts.Now()
	q.reports[j.id] = r
	q.mu.Unlock()

	report := q.exec.Run(ctx, j.id, j.intents)
	report.QueuedAt = r.QueuedAt

	q.mu.Lock()
	q.reports[j.id] = report
	q.mu.Unlock()

	msg := notification.Message{
		Kind:        notification.KindBatchCompleted,
		Destination: q.exec.opts.Source,
		Body:        fmt.Sprintf("batch completed: %d of %d steps succeeded", report.Succeeded(), len(report.Steps)),
		Attributes:  map[string]string{"batch_id": j.id},
		At:          report.FinishedAt,
	}
	if err := q.notifier.Send(context.WithoutCancel(ctx), msg); err != nil {
		q.logger.Warn("batch notification failed", slog.String("batch_id", j.id), slog.Any("error", err))
	}
}

// fail completes a batch whose run aborted. Steps without a recorded outcome
// are reported as failed.
func (q *Queue) fail(j job, reason string) {
	q.exec.setActive(nil)
	q.mu.Lock()
	defer q.mu.Unlock()
	r := q.reports[j.id]
	done := make(map[int]bool, len(r.Steps))
	for _, s := range r.Steps {
		done[s.Index] = true
	}
	for i, in := range j.intents {
		if done[i] {
			continue
		}
		r.Steps = append(r.Steps, StepResult{
			Index:   i,
			Intent:  in,
			Target:  intent.Resolve(in),
			Outcome: OutcomeFailed,
			Error:   reason,
		})
	}
	r.BatchID = j.id
	r.Status = BatchCompleted
	r.FinishedAt = q.exec.opts.Now()
	q.reports[j.id] = r
}
