package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// flakyMirror fails the first n calls, then delegates.
type flakyMirror struct {
	failFirst int32
	calls     atomic.Int32
	next      cart.Mirror
}

func (f *flakyMirror) fail() error {
	if f.calls.Add(1) <= f.failFirst {
		return errRefused
	}
	return nil
}

func (f *flakyMirror) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.next.UpsertLine(ctx, userID, productID, quantity)
}

func (f *flakyMirror) DeleteLine(ctx context.Context, userID, productID string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.next.DeleteLine(ctx, userID, productID)
}

func (f *flakyMirror) Clear(ctx context.Context, userID string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.next.Clear(ctx, userID)
}

type failureSink struct {
	mu  sync.Mutex
	got []*cart.MirrorFailure
}

func (s *failureSink) handle(_ context.Context, f *cart.MirrorFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, f)
}

func (s *failureSink) all() []*cart.MirrorFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*cart.MirrorFailure(nil), s.got...)
}

func TestQueueAppliesInOrder(t *testing.T) {
	remote := memory.NewCartMirror()
	q := NewQueue(remote, 16, fastRetry(1), nil)
	ctx := context.Background()
	q.Start(ctx)

	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorUpsert, UserID: "u-1", ProductID: "p-1", Quantity: 2})
	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorUpsert, UserID: "u-1", ProductID: "p-2", Quantity: 1})
	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorDelete, UserID: "u-1", ProductID: "p-1"})

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	q.Stop(stopCtx)

	assert.Equal(t, map[string]int{"p-2": 1}, remote.Snapshot("u-1"))
}

func TestQueueRetriesTransientErrors(t *testing.T) {
	remote := memory.NewCartMirror()
	flaky := &flakyMirror{failFirst: 2, next: remote}
	sink := &failureSink{}

	q := NewQueue(flaky, 4, fastRetry(3), nil)
	q.OnFailure(sink.handle)
	ctx := context.Background()
	q.Start(ctx)

	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorUpsert, UserID: "u-1", ProductID: "p-1", Quantity: 4})

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	q.Stop(stopCtx)

	assert.Empty(t, sink.all())
	assert.EqualValues(t, 3, flaky.calls.Load())
	assert.Equal(t, map[string]int{"p-1": 4}, remote.Snapshot("u-1"))
}

func TestQueueReportsExhaustedRetries(t *testing.T) {
	flaky := &flakyMirror{failFirst: 100, next: memory.NewCartMirror()}
	sink := &failureSink{}

	q := NewQueue(flaky, 4, fastRetry(2), nil)
	q.OnFailure(sink.handle)
	ctx := context.Background()
	q.Start(ctx)

	task := cart.MirrorTask{Op: cart.MirrorClear, UserID: "u-1"}
	q.Enqueue(ctx, task)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	q.Stop(stopCtx)

	failures := sink.all()
	require.Len(t, failures, 1)
	assert.Equal(t, task, failures[0].Task)
	assert.Equal(t, 2, failures[0].Attempts)
	assert.ErrorIs(t, failures[0], cart.ErrRemoteMirror)
	assert.ErrorIs(t, failures[0], errRefused)
	assert.EqualValues(t, 2, flaky.calls.Load())
}

func TestQueueStopsRetryingWhenCancelled(t *testing.T) {
	flaky := &flakyMirror{failFirst: 100, next: memory.NewCartMirror()}
	sink := &failureSink{}

	retry := fastRetry(10)
	retry.InitialDelay = time.Hour
	retry.MaxDelay = time.Hour
	q := NewQueue(flaky, 4, retry, nil)
	q.OnFailure(sink.handle)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, func() bool { return flaky.calls.Load() == 1 }, time.Second, time.Millisecond)
		cancel()
	}()
	attempts, err := q.apply(ctx, cart.MirrorTask{Op: cart.MirrorClear, UserID: "u-1"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sink.all())
}

func TestNewQueueCopiesRetryConfig(t *testing.T) {
	retry := fastRetry(0)
	q := NewQueue(memory.NewCartMirror(), 1, retry, nil)

	assert.Equal(t, 1, q.retry.MaxAttempts)
	assert.Equal(t, 0, retry.MaxAttempts)
}

func TestQueueFullDropsTask(t *testing.T) {
	sink := &failureSink{}
	// not started, so nothing drains the single slot
	q := NewQueue(memory.NewCartMirror(), 1, fastRetry(1), nil)
	q.OnFailure(sink.handle)
	ctx := context.Background()

	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorUpsert, UserID: "u-1", ProductID: "p-1", Quantity: 1})
	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorUpsert, UserID: "u-1", ProductID: "p-2", Quantity: 1})

	failures := sink.all()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrQueueFull)
	assert.Equal(t, "p-2", failures[0].Task.ProductID)
	assert.Equal(t, 1, q.Len())
}

func TestQueueRejectsAfterStop(t *testing.T) {
	sink := &failureSink{}
	q := NewQueue(memory.NewCartMirror(), 4, fastRetry(1), nil)
	q.OnFailure(sink.handle)
	ctx := context.Background()
	q.Start(ctx)
	q.Stop(ctx)

	q.Enqueue(ctx, cart.MirrorTask{Op: cart.MirrorClear, UserID: "u-1"})

	failures := sink.all()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrQueueStopped)
}
