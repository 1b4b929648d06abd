package workerpresentation

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"
)

// Expirer persists the expiry of overdue bookings.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// ExpirySweeper periodically persists lazy expiries so stored statuses and the seller
// dashboard catch up with the collection deadline.
type ExpirySweeper struct {
	expirer  Expirer
	interval time.Duration
	log      observability.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewExpirySweeper(expirer Expirer, interval time.Duration, tel observability.Observability) *ExpirySweeper {
	if tel == nil {
		tel = observability.Nop()
	}
	return &ExpirySweeper{
		expirer:  expirer,
		interval: interval,
		log:      tel.Logger().With(observability.F("component", "expiry_sweeper")),
		done:     make(chan struct{}),
	}
}

// Start is a no-op when the interval is not positive.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.startOnce.Do(func() {
		bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		go s.loop(bg)
		logctx.FromOr(ctx, s.log).Info("expiry_sweeper_started", observability.F("interval", s.interval.String()))
	})
}

func (s *ExpirySweeper) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
		}
		logctx.FromOr(ctx, s.log).Info("expiry_sweeper_stopped")
	})
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (s *ExpirySweeper) RunOnce(ctx context.Context) int {
	ctx = WithEventContext(ctx, s.log, map[string]string{"job": "booking_expiry"})
	n, err := s.expirer.ExpireOverdue(ctx)
	logger := logctx.FromOr(ctx, s.log)
	if err != nil {
		logger.Warn("expiry_sweep_failed",
			observability.F("expired", n),
			observability.F("error", err.Error()),
		)
		return n
	}
	if n > 0 {
		logger.Info("expiry_sweep_done", observability.F("expired", n))
	}
	return n
}
