package triage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sparshcare/wellness-platform/internal/events"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	locker           SessionLocker
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithSessionLocker replaces the default in-process locker. Workers sharing
// a queue across processes must also share a cross-process locker, otherwise
// the per-session serialization guarantee only holds within one process.
func WithSessionLocker(locker SessionLocker) WorkerOption {
	return func(cfg *workerConfig) {
		if locker != nil {
			cfg.locker = locker
		}
	}
}

// SessionLocker serializes triage cycles per (student, session) key. Acquire
// blocks until the lock is held or ctx is done; the returned func releases it.
type SessionLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// processLocks is the default SessionLocker: a mutex per key, valid only
// within a single process.
type processLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProcessLocks() *processLocks {
	return &processLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *processLocks) Acquire(_ context.Context, key string) (func(), error) {
	p.mu.Lock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

// Worker consumes triage cycles from the queue and runs the pipeline.
//
// Cycles for the same (student, session) pair are serialized: a new cycle
// queues behind the in-flight one so two cycles can never interleave their
// side effects. Cycles for different pairs run concurrently across the
// worker goroutines. The guarantee spans exactly as far as the configured
// SessionLocker does: worker replicas sharing a queue must share a
// cross-process locker such as RedisSessionLock.
type Worker struct {
	pipeline *Pipeline
	queue    queueClient
	locks    SessionLocker
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer around the pipeline.
func NewWorker(pipeline *Pipeline, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if pipeline == nil {
		panic("triage: pipeline cannot be nil")
	}
	if queue == nil {
		panic("triage: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		locker:           newProcessLocks(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		pipeline: pipeline,
		queue:    queue,
		locks:    cfg.locker,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("triage worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("triage worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive triage cycles", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode triage cycle", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	key := payload.Cycle.StudentID + "/" + payload.Cycle.SessionID
	release, err := w.locks.Acquire(ctx, key)
	if err != nil {
		// Shutting down mid-wait; put the cycle back so another consumer
		// (or a restart) picks it up.
		w.logger.Warn("could not acquire session lock, requeueing cycle", "error", err, "job_id", payload.ID)
		if sendErr := w.queue.Send(context.Background(), msg.Body); sendErr != nil {
			w.logger.Error("failed to requeue cycle", "error", sendErr, "job_id", payload.ID)
		}
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	defer release()

	outcome, err := w.pipeline.RunCycle(ctx, payload.Cycle)
	if err != nil {
		// RunCycle degrades internally; an error here means misconfiguration.
		w.logger.Error("triage cycle failed", "error", err, "job_id", payload.ID)
	} else {
		w.logger.Info("triage cycle completed", "event", completionEvent(payload, outcome))
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// completionEvent builds the audit record for a finished cycle.
func completionEvent(payload queuePayload, outcome Outcome) events.TriageCompletedV1 {
	evt := events.TriageCompletedV1{
		EventID:     payload.ID,
		StudentID:   payload.Cycle.StudentID,
		SessionID:   payload.Cycle.SessionID,
		Outcome:     string(outcome.Status),
		CompletedAt: time.Now().UTC(),
	}
	if outcome.Assessment != nil {
		evt.RiskTier = string(outcome.Assessment.RiskTier)
	}
	if outcome.Decision != nil {
		evt.Action = string(outcome.Decision.Action)
	}
	return evt
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete triage cycle", "error", err)
	}
}
