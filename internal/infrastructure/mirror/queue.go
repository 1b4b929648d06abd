// Package mirror drains cart mirror writes in the background so cart mutations never
// wait on the remote store.
package mirror

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"github.com/itsneelabh/gomind/core"
	"github.com/itsneelabh/gomind/resilience"
)

const (
	componentMirror = "cart_mirror"
	peerMirror      = "cart_mirror"
	attemptTimeout  = 2 * time.Second
)

var (
	ErrQueueFull    = errors.New("mirror: queue full")
	ErrQueueStopped = errors.New("mirror: queue stopped")
)

type RetryConfig = resilience.RetryConfig

func DefaultRetryConfig() *RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 4
	return cfg
}

// FailureHandler is told about every task that was dropped or ran out of retries.
type FailureHandler func(ctx context.Context, f *cart.MirrorFailure)

// Queue applies mirror tasks one at a time in enqueue order, which keeps each
// user's writes ordered.
type Queue struct {
	mirror cart.Mirror
	retry  *RetryConfig

	mu        sync.RWMutex
	closed    bool
	queue     chan cart.MirrorTask
	onFailure FailureHandler

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	log          observability.Logger
	failures     observability.Counter
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewQueue(m cart.Mirror, size int, retry *RetryConfig, tel observability.Observability) *Queue {
	if size <= 0 {
		size = 1024
	}
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	cfg := *retry
	retry = &cfg
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffFactor < 1 {
		retry.BackoffFactor = 1
	}
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Queue{
		mirror:       m,
		retry:        retry,
		queue:        make(chan cart.MirrorTask, size),
		done:         make(chan struct{}),
		log:          tel.Logger().With(observability.F("component", componentMirror)),
		failures:     metrics.Counter(observability.MCartMirrorFailures),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// OnFailure installs the failure callback. Call it before Start.
func (q *Queue) OnFailure(h FailureHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFailure = h
}

func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		q.cancel = cancel
		go q.loop(bg)
		logctx.FromOr(ctx, q.log).Info("cart_mirror_started")
	})
}

// Stop refuses new tasks, lets the loop drain what is queued and waits until it
// finishes or ctx expires. Tasks still pending at that point are abandoned.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.queue)
		q.mu.Unlock()

		if q.cancel == nil {
			return
		}
		select {
		case <-q.done:
		case <-ctx.Done():
			logctx.FromOr(ctx, q.log).Warn("cart_mirror_drain_timeout",
				observability.F("pending", len(q.queue)),
			)
		}
		q.cancel()
		logctx.FromOr(ctx, q.log).Info("cart_mirror_stopped")
	})
}

// Enqueue never blocks. A full or stopped queue reports the task as failed right away.
func (q *Queue) Enqueue(ctx context.Context, task cart.MirrorTask) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.fail(ctx, &cart.MirrorFailure{Task: task, Err: ErrQueueStopped})
		return
	}
	select {
	case q.queue <- task:
		q.mu.RUnlock()
		logctx.FromOr(ctx, q.log).Debug("cart_mirror_enqueued",
			observability.F("op", string(task.Op)),
			observability.F("user_id", task.UserID),
		)
	default:
		q.mu.RUnlock()
		q.fail(ctx, &cart.MirrorFailure{Task: task, Err: ErrQueueFull})
	}
}

// Len reports how many tasks are waiting.
func (q *Queue) Len() int { return len(q.queue) }

func (q *Queue) loop(ctx context.Context) {
	defer close(q.done)
	for task := range q.queue {
		q.process(ctx, task)
	}
}

func (q *Queue) process(ctx context.Context, task cart.MirrorTask) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("cart_mirror_panic",
				observability.F("op", string(task.Op)),
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			q.fail(ctx, &cart.MirrorFailure{Task: task, Err: errors.New("mirror: panic while applying task")})
		}
	}()

	attempts, err := q.apply(ctx, task)
	if err != nil {
		q.fail(ctx, &cart.MirrorFailure{Task: task, Attempts: attempts, Err: err})
	}
}

// apply runs the task under resilience.Retry. The returned error is the last
// attempt's error, or the context error when the loop was cut short.
func (q *Queue) apply(ctx context.Context, task cart.MirrorTask) (int, error) {
	var (
		attempts int
		lastErr  error
	)
	err := resilience.Retry(ctx, q.retry, func() error {
		attempts++
		if attempts > 1 {
			q.log.Debug("cart_mirror_retry",
				observability.F("op", string(task.Op)),
				observability.F("user_id", task.UserID),
				observability.F("attempt", attempts),
				observability.F("error", lastErr.Error()),
			)
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		lastErr = task.Apply(attemptCtx, q.mirror)
		cancel()

		outcome := "success"
		if lastErr != nil {
			outcome = "error"
		}
		q.extCounter.Add(1,
			observability.L("peer", peerMirror),
			observability.L("endpoint", string(task.Op)),
			observability.L("outcome", outcome),
		)
		q.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peerMirror),
			observability.L("endpoint", string(task.Op)),
		)
		return lastErr
	})
	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(err, core.ErrMaxRetriesExceeded) && lastErr != nil:
		return attempts, lastErr
	default:
		return attempts, err
	}
}

func (q *Queue) fail(ctx context.Context, f *cart.MirrorFailure) {
	q.failures.Add(1, observability.L("op", string(f.Task.Op)))
	logctx.FromOr(ctx, q.log).Warn("cart_mirror_failed",
		observability.F("op", string(f.Task.Op)),
		observability.F("user_id", f.Task.UserID),
		observability.F("product_id", f.Task.ProductID),
		observability.F("attempts", f.Attempts),
		observability.F("error", f.Err.Error()),
	)

	q.mu.RLock()
	h := q.onFailure
	q.mu.RUnlock()
	if h != nil {
		h(ctx, f)
	}
}
