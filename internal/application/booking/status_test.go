package booking

import (
	"context"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seller = &identity.User{ID: "s-1", Role: identity.RoleSeller}

type statusFixture struct {
	repo      *memory.BookingRepository
	products  *memory.CatalogRepository
	publisher *recordingPublisher
	now       time.Time
	svc       *StatusService
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	f := &statusFixture{
		repo:      memory.NewBookingRepository(),
		products:  memory.NewCatalogRepository(),
		publisher: &recordingPublisher{},
		now:       t0.Add(time.Hour),
	}
	seedProduct(t, f.products, "p-1", "Paddy seeds", "40.00", 10)
	f.svc = NewStatusService(f.repo, f.products, f.publisher, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *statusFixture) book(t *testing.T, id, userID, product string, at time.Time) {
	t.Helper()
	b, err := domain.New(domain.NewInput{
		ID:          id,
		UserID:      userID,
		ProductID:   "p-1",
		ProductName: product,
		UnitPrice:   decimal.NewFromInt(40),
		Quantity:    1,
		OfficeID:    testOffice.ID,
		BookedAt:    at,
	})
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), b))
}

func (f *statusFixture) stored(t *testing.T, id string) domain.Status {
	t.Helper()
	b, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func TestSellerConfirmThenCollect(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	ctx := context.Background()

	b, err := f.svc.Confirm(ctx, seller, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, b.Status)
	assert.Equal(t, domain.StatusConfirmed, f.stored(t, "bk-1"))

	b, err = f.svc.Collect(ctx, seller, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCollected, b.Status)

	_, err = f.svc.Collect(ctx, seller, "bk-1")
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	assert.Equal(t, []string{"booking.status_changed", "booking.status_changed"}, f.publisher.names())
}

func TestSellerActionsNeedSellerRole(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, customer, "bk-1")
	assert.ErrorIs(t, err, identity.ErrForbidden)
	_, err = f.svc.Collect(ctx, nil, "bk-1")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
	_, err = f.svc.Confirm(ctx, seller, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, domain.StatusPending, f.stored(t, "bk-1"))
}

func TestSellerActionOnOverdueBookingPersistsExpiry(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	f.now = t0.Add(domain.CollectionWindow + time.Second)

	b, err := f.svc.Collect(context.Background(), seller, "bk-1")
	require.ErrorIs(t, err, domain.ErrBookingExpired)
	require.NotNil(t, b)
	assert.Equal(t, domain.StatusExpired, b.Status)
	assert.Equal(t, domain.StatusExpired, f.stored(t, "bk-1"))
	assert.Equal(t, []string{"booking.status_changed"}, f.publisher.names())
}

// interleavedBookings runs a hook once, right after the first Get or List, so
// another action lands between a read and its status write.
type interleavedBookings struct {
	*memory.BookingRepository
	afterGet  func()
	afterList func()
}

func (r *interleavedBookings) Get(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := r.BookingRepository.Get(ctx, id)
	if hook := r.afterGet; hook != nil {
		r.afterGet = nil
		hook()
	}
	return b, err
}

func (r *interleavedBookings) List(ctx context.Context) ([]*domain.Booking, error) {
	all, err := r.BookingRepository.List(ctx)
	if hook := r.afterList; hook != nil {
		r.afterList = nil
		hook()
	}
	return all, err
}

func TestConfirmDoesNotOverwriteConcurrentCollect(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	repo := &interleavedBookings{BookingRepository: f.repo}
	svc := NewStatusService(repo, f.products, f.publisher, nil).
		WithClock(func() time.Time { return f.now })
	ctx := context.Background()

	repo.afterGet = func() {
		_, err := svc.Collect(ctx, seller, "bk-1")
		require.NoError(t, err)
	}
	_, err := svc.Confirm(ctx, seller, "bk-1")

	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.StatusCollected, f.stored(t, "bk-1"))
	assert.Equal(t, []string{"booking.status_changed"}, f.publisher.names())
}

func TestExpireOverdueSkipsBookingMovedSinceList(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	repo := &interleavedBookings{BookingRepository: f.repo}
	svc := NewStatusService(repo, f.products, f.publisher, nil).
		WithClock(func() time.Time { return f.now })
	ctx := context.Background()
	f.now = t0.Add(30 * time.Hour)

	repo.afterList = func() {
		_, err := svc.Confirm(ctx, seller, "bk-1")
		require.ErrorIs(t, err, domain.ErrBookingExpired)
	}
	n, err := svc.ExpireOverdue(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.StatusExpired, f.stored(t, "bk-1"))
	assert.Equal(t, []string{"booking.status_changed"}, f.publisher.names())
}

func TestExpireOverdue(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "old-pending", customer.ID, "Paddy seeds", t0)
	f.book(t, "old-confirmed", customer.ID, "Paddy seeds", t0)
	f.book(t, "old-collected", customer.ID, "Paddy seeds", t0)
	f.book(t, "fresh", customer.ID, "Paddy seeds", t0.Add(20*time.Hour))

	ctx := context.Background()
	_, err := f.svc.Confirm(ctx, seller, "old-confirmed")
	require.NoError(t, err)
	_, err = f.svc.Collect(ctx, seller, "old-collected")
	require.NoError(t, err)

	f.now = t0.Add(30 * time.Hour)
	n, err := f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, domain.StatusExpired, f.stored(t, "old-pending"))
	assert.Equal(t, domain.StatusExpired, f.stored(t, "old-confirmed"))
	assert.Equal(t, domain.StatusCollected, f.stored(t, "old-collected"))
	assert.Equal(t, domain.StatusPending, f.stored(t, "fresh"))

	n, err = f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep finds nothing")
}

func TestListMineShowsEffectiveStatusNewestFirst(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	f.book(t, "bk-2", customer.ID, "Neem oil", t0.Add(10*time.Hour))
	f.book(t, "bk-other", "u-2", "Neem oil", t0)
	f.now = t0.Add(25 * time.Hour)

	list, err := f.svc.ListMine(context.Background(), customer)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bk-2", list[0].ID)
	assert.Equal(t, domain.StatusPending, list[0].Status)
	assert.Equal(t, domain.StatusExpired, list[1].Status)
	assert.Equal(t, domain.StatusPending, f.stored(t, "bk-1"), "listing does not persist expiry")

	_, err = f.svc.ListMine(context.Background(), nil)
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestSellerListAndStats(t *testing.T) {
	f := newStatusFixture(t)
	f.book(t, "bk-1", customer.ID, "Paddy seeds", t0)
	f.book(t, "bk-2", "u-2", "Neem oil", t0.Add(time.Minute))
	f.book(t, "bk-3", "u-3", "Neem oil", t0.Add(2*time.Minute))
	ctx := context.Background()
	_, err := f.svc.Confirm(ctx, seller, "bk-2")
	require.NoError(t, err)

	list, err := f.svc.SellerList(ctx, seller, "neem")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bk-3", list[0].ID)

	_, err = f.svc.SellerList(ctx, customer, "")
	assert.ErrorIs(t, err, identity.ErrForbidden)

	stats, err := f.svc.Stats(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.ActiveBookings)
	assert.Equal(t, 2, stats.PendingCollections)
	assert.Zero(t, stats.Expired)
}
