// Package pipeline feeds text into the synthesis service one turn at a time
// and coordinates interruption between the front door and the streaming
// client.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to enqueue to a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrDuplicateJob is returned when a job with the same dedupe key exists.
	ErrDuplicateJob = errors.New("duplicate job")
)

// TurnHandler is called by the worker to synthesize one job. The context is
// cancelled when the job is interrupted.
type TurnHandler func(ctx context.Context, job *SpeakJob) error

// InterruptFunc is called when the queue is interrupted, after the current
// job's context has been cancelled. It propagates the interruption to the
// synthesis service so server-side buffered audio is cleared.
type InterruptFunc func()

// IdleCallback is called when the queue stays empty past the idle timeout.
type IdleCallback func()

// ShutdownCallback is called once when the queue is stopped.
type ShutdownCallback func()

// JobCompletedCallback is called after each job finishes, whether it
// succeeded, failed, or was interrupted.
type JobCompletedCallback func(job *SpeakJob)

// Queue is a bounded speak queue with a single synthesis worker. Turns run
// strictly sequentially; a new turn begins only after the previous one has
// completed or been interrupted.
type Queue struct {
	mu            sync.Mutex
	jobs          []*SpeakJob
	capacity      int
	dedupeKeys    map[string]bool
	logger        *slog.Logger
	closed        bool
	idleTimeout   time.Duration
	idleCallback  IdleCallback
	shutdownFunc  ShutdownCallback
	interruptFunc InterruptFunc
	handler       TurnHandler
	jobDoneFunc   JobCompletedCallback
	cancelCurrent context.CancelFunc
	wg            sync.WaitGroup
	stopCh        chan struct{}
	enqueueCh     chan struct{}
}

// NewQueue creates a new bounded speak queue.
func NewQueue(capacity int, idleTimeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		jobs:        make([]*SpeakJob, 0, capacity),
		capacity:    capacity,
		dedupeKeys:  make(map[string]bool),
		logger:      logger,
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
		enqueueCh:   make(chan struct{}, 1),
	}
}

// SetTurnHandler sets the function called to synthesize each job.
func (q *Queue) SetTurnHandler(fn TurnHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = fn
}

// SetInterruptFunc sets the function called to propagate interruptions.
func (q *Queue) SetInterruptFunc(fn InterruptFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interruptFunc = fn
}

// SetIdleCallback sets the function called when the queue becomes idle.
func (q *Queue) SetIdleCallback(fn IdleCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idleCallback = fn
}

// SetShutdownCallback sets the function called when the queue is stopped.
func (q *Queue) SetShutdownCallback(fn ShutdownCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdownFunc = fn
}

// SetJobCompletedCallback sets the function called after each job finishes.
func (q *Queue) SetJobCompletedCallback(fn JobCompletedCallback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobDoneFunc = fn
}

// Enqueue adds a job to the queue.
func (q *Queue) Enqueue(job *SpeakJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if len(q.jobs) >= q.capacity {
		return ErrQueueFull
	}

	if job.DedupeKey != "" && q.dedupeKeys[job.DedupeKey] {
		return ErrDuplicateJob
	}

	q.jobs = append(q.jobs, job)
	if job.DedupeKey != "" {
		q.dedupeKeys[job.DedupeKey] = true
	}

	q.logger.Debug("job enqueued", "job_id", job.ID, "queue_depth", len(q.jobs))

	// Signal the worker
	select {
	case q.enqueueCh <- struct{}{}:
	default:
	}

	return nil
}

// Interrupt cancels the current turn, clears the queue, and propagates the
// interruption to the synthesis service.
func (q *Queue) Interrupt() {
	q.mu.Lock()

	if q.cancelCurrent != nil {
		q.cancelCurrent()
		q.cancelCurrent = nil
	}

	cleared := len(q.jobs)
	q.jobs = q.jobs[:0]
	q.dedupeKeys = make(map[string]bool)
	interruptFunc := q.interruptFunc
	q.mu.Unlock()

	if interruptFunc != nil {
		interruptFunc()
	}

	q.logger.Info("queue interrupted", "jobs_cleared", cleared)
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Start begins the synthesis worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop gracefully stops the worker and runs the shutdown callback.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	if q.cancelCurrent != nil {
		q.cancelCurrent()
	}
	shutdownFunc := q.shutdownFunc
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()

	if shutdownFunc != nil {
		shutdownFunc()
	}
}

// worker is the single synthesis goroutine.
func (q *Queue) worker() {
	defer q.wg.Done()

	var idleTimer *time.Timer
	var idleTimerCh <-chan time.Time

	resetIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
		}
		if q.idleTimeout > 0 {
			idleTimer = time.NewTimer(q.idleTimeout)
			idleTimerCh = idleTimer.C
		}
	}

	stopIdleTimer := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimerCh = nil
		}
	}

	for {
		job := q.dequeue()

		if job != nil {
			stopIdleTimer()
			q.processJob(job)
			continue
		}

		if idleTimerCh == nil && q.idleTimeout > 0 {
			resetIdleTimer()
		}

		select {
		case <-q.stopCh:
			stopIdleTimer()
			return
		case <-q.enqueueCh:
			continue
		case <-idleTimerCh:
			q.mu.Lock()
			callback := q.idleCallback
			q.mu.Unlock()

			if callback != nil {
				q.logger.Info("idle timeout reached")
				callback()
			}
			idleTimerCh = nil
		}
	}
}

// dequeue removes and returns the next unexpired job from the queue.
func (q *Queue) dequeue() *SpeakJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]

		if job.DedupeKey != "" {
			delete(q.dedupeKeys, job.DedupeKey)
		}

		if job.IsExpired() {
			q.logger.Debug("skipping expired job", "job_id", job.ID)
			continue
		}

		return job
	}

	return nil
}

// processJob runs a single turn with cancellation support.
func (q *Queue) processJob(job *SpeakJob) {
	q.mu.Lock()
	handler := q.handler
	jobDone := q.jobDoneFunc
	ctx, cancel := context.WithCancel(context.Background())
	q.cancelCurrent = cancel
	q.mu.Unlock()

	defer func() {
		cancel()
		q.mu.Lock()
		q.cancelCurrent = nil
		q.mu.Unlock()
		if jobDone != nil {
			jobDone(job)
		}
	}()

	if handler == nil {
		q.logger.Warn("no turn handler set, skipping job", "job_id", job.ID)
		return
	}

	q.logger.Info("processing turn", "job_id", job.ID, "text_length", len(job.Text))

	if err := handler(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			q.logger.Info("turn interrupted", "job_id", job.ID)
		} else {
			q.logger.Error("turn failed", "job_id", job.ID, "error", err)
		}
	} else {
		q.logger.Info("turn completed", "job_id", job.ID)
	}
}
