package workerpresentation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	infraobs "github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubExpirer struct {
	calls atomic.Int32
	n     int
	err   error
}

func (s *stubExpirer) ExpireOverdue(context.Context) (int, error) {
	s.calls.Add(1)
	return s.n, s.err
}

func observed() (*zaplogger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zaplogger.Wrap(zap.New(core)), logs
}

func TestRunOnceLogsSweep(t *testing.T) {
	logger, logs := observed()
	sweeper := NewExpirySweeper(&stubExpirer{n: 3}, time.Minute, infraobs.New(nil, logger, nil))

	assert.Equal(t, 3, sweeper.RunOnce(context.Background()))

	entries := logs.FilterMessage("expiry_sweep_done").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "booking_expiry", fields["job"])
	assert.Equal(t, "expiry_sweeper", fields["component"])
	assert.NotEmpty(t, fields["event_id"])
}

func TestRunOnceReportsFailure(t *testing.T) {
	logger, logs := observed()
	sweeper := NewExpirySweeper(&stubExpirer{n: 1, err: errors.New("store down")}, time.Minute, infraobs.New(nil, logger, nil))

	assert.Equal(t, 1, sweeper.RunOnce(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("expiry_sweep_failed").Len())
}

func TestSweeperTicks(t *testing.T) {
	exp := &stubExpirer{}
	sweeper := NewExpirySweeper(exp, 5*time.Millisecond, nil)

	sweeper.Start(context.Background())
	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sweeper.Stop(stopCtx)

	after := exp.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, exp.calls.Load())
}

func TestSweeperDisabledByNonPositiveInterval(t *testing.T) {
	exp := &stubExpirer{}
	sweeper := NewExpirySweeper(exp, 0, nil)

	sweeper.Start(context.Background())
	sweeper.Stop(context.Background())
	assert.Zero(t, exp.calls.Load())
}

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

func TestWithEventLogging(t *testing.T) {
	logger, logs := observed()

	var handled domoutbox.Event
	h := WithEventLogging(logger, "amqp_relay", func(ctx context.Context, e domoutbox.Event) error {
		handled = e
		logctx.From(ctx).Info("relayed")
		return nil
	})

	require.NoError(t, h(context.Background(), namedEvent("booking.created")))
	assert.Equal(t, namedEvent("booking.created"), handled)

	entries := logs.FilterMessage("relayed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "booking.created", fields["event"])
	assert.Equal(t, "amqp_relay", fields["handler"])
}

func TestWithEventContextKeepsGivenEventID(t *testing.T) {
	logger, logs := observed()

	ctx := WithEventContext(context.Background(), logger, map[string]string{"event_id": "evt-1", "job": "x", "empty": ""})
	logctx.From(ctx).Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, "x", fields["job"])
	assert.NotContains(t, fields, "empty")
}
