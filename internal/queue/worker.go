package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StalledReason = "job stalled more than allowable limit"

	fetchBackoff = time.Second
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeRetry     = "retry"
)

// Handler processes one delivery of a job. token identifies the delivery
// and owns the job lock.
type Handler func(ctx context.Context, job *Job, token string) error

type WorkerOptions struct {
	Concurrency     int
	LockDuration    time.Duration
	StalledInterval time.Duration
	MaxStalledCount int
	DrainDelay      time.Duration
}

func (o *WorkerOptions) defaults() {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.LockDuration <= 0 {
		o.LockDuration = 30 * time.Second
	}
	if o.StalledInterval <= 0 {
		o.StalledInterval = 30 * time.Second
	}
	if o.MaxStalledCount < 0 {
		o.MaxStalledCount = 1
	}
	if o.DrainDelay < time.Second {
		// the broker counts the blocking timeout in whole seconds
		o.DrainDelay = time.Second
	}
}

type Worker struct {
	client  *Client
	handler Handler
	opts    WorkerOptions
	log     *zap.SugaredLogger
	jobs    sync.WaitGroup
}

func NewWorker(client *Client, handler Handler, opts WorkerOptions) *Worker {
	opts.defaults()
	return &Worker{
		client:  client,
		handler: handler,
		opts:    opts,
		log:     zap.S().Named("queue_worker"),
	}
}

// Run consumes jobs until ctx is cancelled. In-flight jobs are not
// interrupted: Run waits for them before returning.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.client.Ping(ctx); err != nil {
		return err
	}

	w.log.Infow("worker started", "queue", w.client.Queue(), "concurrency", w.opts.Concurrency)

	stalledCtx, stopStalled := context.WithCancel(context.WithoutCancel(ctx))
	stalledDone := make(chan struct{})
	go func() {
		defer close(stalledDone)
		w.runStalledChecker(stalledCtx)
	}()

	slots := make(chan struct{}, w.opts.Concurrency)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case slots <- struct{}{}:
		}

		if ctx.Err() != nil {
			<-slots
			break loop
		}

		// a job moved to active must not be lost to cancellation
		job, token, err := w.fetch(context.WithoutCancel(ctx))
		if err != nil {
			<-slots
			w.log.Errorw("failed to fetch job", "queue", w.client.Queue(), "error", err)
			select {
			case <-ctx.Done():
				break loop
			case <-time.After(fetchBackoff):
			}
			continue
		}
		if job == nil {
			<-slots
			continue
		}
		if ctx.Err() != nil {
			// arrived while shutting down
			w.requeue(job, token)
			<-slots
			break loop
		}

		w.jobs.Add(1)
		go func() {
			defer w.jobs.Done()
			defer func() { <-slots }()
			w.process(context.WithoutCancel(ctx), job, token)
		}()
	}

	w.log.Infow("worker stopping, waiting for in-flight jobs", "queue", w.client.Queue())
	w.jobs.Wait()

	stopStalled()
	<-stalledDone

	w.log.Infow("worker stopped", "queue", w.client.Queue())
	return nil
}

// Close releases the broker connection. It is safe to call more than once.
func (w *Worker) Close() error {
	return w.client.Close()
}

// fetch waits up to DrainDelay for a job and locks it. A nil job means the
// queue stayed empty.
func (w *Worker) fetch(ctx context.Context) (*Job, string, error) {
	k := w.client.keys
	rdb := w.client.rdb

	id, err := rdb.BLMove(ctx, k.wait(), k.active(), "RIGHT", "LEFT", w.opts.DrainDelay).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	token := uuid.NewString()
	locked, err := takeLockScript.Run(ctx, rdb,
		[]string{k.lock(id), k.stalled()},
		token, w.opts.LockDuration.Milliseconds(), id,
	).Int()
	if err != nil {
		return nil, "", fmt.Errorf("failed to lock job %s: %w", id, err)
	}
	if locked == 0 {
		// someone else owns it; the stalled checker sorts it out if needed
		w.log.Infow("job already locked", "id", id)
		return nil, "", nil
	}

	fields, err := rdb.HGetAll(ctx, k.job(id)).Result()
	if err != nil {
		return nil, "", err
	}
	if len(fields) == 0 {
		w.log.Errorw("job data missing, dropping job", "id", id)
		rdb.LRem(ctx, k.active(), -1, id)
		releaseLockScript.Run(ctx, rdb, []string{k.lock(id)}, token)
		return nil, "", nil
	}

	job, err := jobFromHash(id, fields)
	if err != nil {
		w.log.Errorw("malformed job, failing it", "id", id, "error", err)
		w.finish(ctx, &Job{ID: id}, token, err)
		return nil, "", nil
	}

	now := time.Now().UnixMilli()
	rdb.HSet(ctx, k.job(id), "processedOn", now)
	job.ProcessedOn = time.UnixMilli(now)

	return job, token, nil
}

// requeue puts a job that was fetched but never started back at the head of
// the wait list.
func (w *Worker) requeue(job *Job, token string) {
	k := w.client.keys
	res, err := moveToWaitScript.Run(context.Background(), w.client.rdb,
		[]string{k.active(), k.wait(), k.lock(job.ID), k.job(job.ID)},
		job.ID, token,
	).Int()
	switch {
	case err != nil:
		w.log.Errorw("failed to return job to wait", "id", job.ID, "error", err)
	case res != 0:
		w.log.Errorw("job not returned to wait", "id", job.ID, "result", res)
	default:
		w.log.Infow("job returned to wait on shutdown", "id", job.ID)
	}
}

func (w *Worker) process(ctx context.Context, job *Job, token string) {
	renewCtx, stopRenew := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		w.renewLock(renewCtx, job.ID, token)
	}()

	err := w.invoke(ctx, job, token)

	stopRenew()
	<-renewDone

	w.finish(ctx, job, token, err)
}

func (w *Worker) invoke(ctx context.Context, job *Job, token string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorw("job handler panicked", "id", job.ID, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job, token)
}

func (w *Worker) renewLock(ctx context.Context, id, token string) {
	ticker := jitterbug.New(w.opts.LockDuration/2, &jitterbug.Norm{Stdev: w.opts.LockDuration / 20})
	defer ticker.Stop()

	k := w.client.keys
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ok, err := extendLockScript.Run(ctx, w.client.rdb, []string{k.lock(id)}, token, w.opts.LockDuration.Milliseconds()).Int()
		if err != nil {
			w.log.Errorw("failed to extend job lock", "id", id, "error", err)
			continue
		}
		if ok == 0 {
			w.log.Errorw("job lock lost", "id", id, "token", token)
		}
	}
}

// finish reports the outcome of a delivery to the broker.
func (w *Worker) finish(ctx context.Context, job *Job, token string, jobErr error) {
	k := w.client.keys
	attempts := job.AttemptsMade + 1

	outcome, reason := outcomeCompleted, ""
	if jobErr != nil {
		reason = jobErr.Error()
		outcome = outcomeFailed
		if attempts < job.Opts.attempts() {
			outcome = outcomeRetry
		}
	}

	res, err := moveToFinishedScript.Run(ctx, w.client.rdb,
		[]string{k.active(), k.wait(), k.completed(), k.failed(), k.job(job.ID), k.lock(job.ID)},
		job.ID, token, time.Now().UnixMilli(), outcome, attempts, reason,
	).Int()
	switch {
	case err != nil:
		w.log.Errorw("failed to record job outcome", "id", job.ID, "outcome", outcome, "error", err)
	case res == -1:
		w.log.Errorw("job lock lost before completion", "id", job.ID, "token", token, "outcome", outcome)
	case res == -2:
		w.log.Errorw("job no longer active", "id", job.ID, "outcome", outcome)
	case jobErr != nil:
		w.log.Errorw("job failed", "id", job.ID, "name", job.Name, "attempt", attempts, "retry", outcome == outcomeRetry, "error", jobErr)
	default:
		w.log.Debugw("job moved to completed", "id", job.ID)
	}
}

func (w *Worker) runStalledChecker(ctx context.Context) {
	w.checkStalled(ctx)

	ticker := jitterbug.New(w.opts.StalledInterval, &jitterbug.Norm{Stdev: w.opts.StalledInterval / 20})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkStalled(ctx)
		}
	}
}

func (w *Worker) checkStalled(ctx context.Context) {
	k := w.client.keys
	res, err := moveStalledScript.Run(ctx, w.client.rdb,
		[]string{k.stalled(), k.wait(), k.active(), k.failed()},
		k.base, w.opts.MaxStalledCount, time.Now().UnixMilli(), StalledReason,
	).Slice()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("stalled job check failed", "queue", w.client.Queue(), "error", err)
		}
		return
	}

	if len(res) != 2 {
		return
	}
	for _, id := range toStrings(res[0]) {
		w.log.Errorw("job stalled too many times, failed", "id", id)
	}
	for _, id := range toStrings(res[1]) {
		w.log.Infow("stalled job moved back to wait", "id", id)
	}
}

func toStrings(v any) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case int64:
			out = append(out, strconv.FormatInt(s, 10))
		}
	}
	return out
}
