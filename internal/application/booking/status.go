package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/application"
	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	expiryTriggerSweep  = "sweep"
	expiryTriggerSeller = "seller_action"

	// A stale status is re-read and re-applied at most this many times.
	maxTransitionAttempts = 3
)

// StatusService drives the collection lifecycle after confirmation and serves the
// booking lists.
type StatusService struct {
	repo      domain.Repository
	products  catalog.Repository
	publisher domoutbox.Publisher
	now       application.Clock
	in        application.Instruments
	expired   observability.Counter // bookings_expired_total{trigger}
}

func NewStatusService(repo domain.Repository, products catalog.Repository, publisher domoutbox.Publisher, tel observability.Observability) *StatusService {
	in := application.NewInstruments(tel, bookingService)
	return &StatusService{
		repo:      repo,
		products:  products,
		publisher: publisher,
		now:       time.Now,
		in:        in,
		expired:   in.Observability().Metrics().Counter(observability.MBookingsExpired),
	}
}

func (s *StatusService) WithClock(now application.Clock) *StatusService {
	s.now = now
	return s
}

// Confirm records the seller's acknowledgement of a pending booking.
func (s *StatusService) Confirm(ctx context.Context, actor *identity.User, id string) (*domain.Booking, error) {
	return s.sellerTransition(ctx, actor, id, "ConfirmCollection", "booking.seller_confirm", (*domain.Booking).Confirm)
}

// Collect marks the booking as collected in person.
func (s *StatusService) Collect(ctx context.Context, actor *identity.User, id string) (*domain.Booking, error) {
	return s.sellerTransition(ctx, actor, id, "CompleteCollection", "booking.seller_collect", (*domain.Booking).Collect)
}

func (s *StatusService) sellerTransition(
	ctx context.Context,
	actor *identity.User,
	id, spanName, useCase string,
	apply func(*domain.Booking, time.Time) error,
) (_ *domain.Booking, err error) {
	ctx, call := s.in.Begin(ctx, spanName, useCase, attribute.String("booking.id", id))
	defer func() { call.End(err) }()

	if err := requireSeller(actor); err != nil {
		call.Status("FORBIDDEN")
		return nil, err
	}

	var (
		b        *domain.Booking
		from     domain.Status
		applyErr error
	)
	for attempt := 1; ; attempt++ {
		b, err = s.repo.Get(ctx, id)
		if err != nil {
			call.Status("BOOKING_NOT_FOUND")
			return nil, err
		}

		from = b.Status
		applyErr = apply(b, s.now())
		if applyErr != nil && !errors.Is(applyErr, domain.ErrBookingExpired) {
			call.Status("STATE_TRANSITION_FAILED")
			return nil, applyErr
		}

		err = s.repo.UpdateStatus(ctx, b.ID, from, b.Status)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrStaleStatus) {
			call.Status("REPO_UPDATE_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		if attempt == maxTransitionAttempts {
			call.Status("STATUS_CONFLICT")
			return nil, err
		}
		call.Logger().Debug("booking_status_stale",
			observability.F("booking_id", id),
			observability.F("attempt", attempt),
		)
	}
	s.publishStatusChanged(ctx, b, from)
	call.Span().SetAttributes(attribute.String("booking.status", string(b.Status)))

	if applyErr != nil {
		s.expired.Add(1, observability.L("trigger", expiryTriggerSeller))
		call.Status("BOOKING_EXPIRED")
		return b, applyErr
	}
	return b, nil
}

// ExpireOverdue persists the expiry of every pending or confirmed booking whose
// deadline has passed and returns how many it moved.
func (s *StatusService) ExpireOverdue(ctx context.Context) (n int, err error) {
	ctx, call := s.in.Begin(ctx, "ExpireOverdue", "booking.expire_overdue")
	defer func() {
		call.With(observability.F("expired", n))
		call.End(err)
	}()

	all, err := s.repo.List(ctx)
	if err != nil {
		call.Status("REPO_LIST_FAILED")
		return 0, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	now := s.now()
	var errs []error
	for _, b := range all {
		if b.Status.Terminal() || !b.Overdue(now) {
			continue
		}
		from := b.Status
		if err := b.Expire(now); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.repo.UpdateStatus(ctx, b.ID, from, b.Status); err != nil {
			if errors.Is(err, domain.ErrStaleStatus) {
				// moved by a seller action since the list was read
				continue
			}
			errs = append(errs, fmt.Errorf("%w: %w", ErrRepository, err))
			continue
		}
		n++
		s.expired.Add(1, observability.L("trigger", expiryTriggerSweep))
		s.publishStatusChanged(ctx, b, from)
	}
	if len(errs) > 0 {
		call.Status("PARTIAL_EXPIRY")
		return n, errors.Join(errs...)
	}
	return n, nil
}

// ListMine returns the user's bookings newest first, each carrying its effective
// status at the time of the call.
func (s *StatusService) ListMine(ctx context.Context, actor *identity.User) ([]*domain.Booking, error) {
	if actor == nil || actor.ID == "" {
		return nil, identity.ErrUnauthenticated
	}
	bookings, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.effective(bookings), nil
}

// SellerList is the dashboard booking table, filtered by product name or booking ID.
func (s *StatusService) SellerList(ctx context.Context, actor *identity.User, query string) ([]*domain.Booking, error) {
	if err := requireSeller(actor); err != nil {
		return nil, err
	}
	bookings, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Search(s.effective(bookings), query), nil
}

type DashboardStats struct {
	Products int
	domain.Stats
}

func (s *StatusService) Stats(ctx context.Context, actor *identity.User) (DashboardStats, error) {
	if err := requireSeller(actor); err != nil {
		return DashboardStats{}, err
	}
	bookings, err := s.repo.List(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	return DashboardStats{
		Products: len(products),
		Stats:    domain.Summarize(bookings, s.now()),
	}, nil
}

func (s *StatusService) effective(bookings []*domain.Booking) []*domain.Booking {
	now := s.now()
	for _, b := range bookings {
		b.Status = b.EffectiveStatus(now)
	}
	domain.SortNewestFirst(bookings)
	return bookings
}

func (s *StatusService) publishStatusChanged(ctx context.Context, b *domain.Booking, from domain.Status) {
	if s.publisher == nil || from == b.Status {
		return
	}
	ev := domain.NewBookingStatusChangedEvent(b, from)
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		logctx.FromOr(ctx, s.in.Logger()).Warn("event_publish_failed",
			observability.F("event", ev.EventName()),
			observability.F("booking_id", b.ID),
			observability.F("error", err.Error()),
		)
	}
}

func requireSeller(u *identity.User) error {
	if u == nil || u.ID == "" {
		return identity.ErrUnauthenticated
	}
	if !u.IsSeller() {
		return identity.ErrForbidden
	}
	return nil
}
