package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
)

type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
	byUser   map[string][]string
	order    []string
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[string]*domain.Booking),
		byUser:   make(map[string][]string),
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	_ = ctx
	if b == nil || b.ID == "" {
		return fmt.Errorf("booking repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[b.ID]; exists {
		return domain.ErrConflict
	}
	r.bookings[b.ID] = b.Clone()
	r.byUser[b.UserID] = append(r.byUser[b.UserID], b.ID)
	r.order = append(r.order, b.ID)
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

// ListByUser returns the user's bookings in creation order.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	out := make([]*domain.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.bookings[id].Clone())
	}
	return out, nil
}

func (r *BookingRepository) List(ctx context.Context) ([]*domain.Booking, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Booking, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.bookings[id].Clone())
	}
	return out, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != from {
		return fmt.Errorf("%w: stored %s, expected %s", domain.ErrStaleStatus, b.Status, from)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return nil
}
