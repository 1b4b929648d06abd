package booking

import "context"

// Repository is the booking store. Bookings are never deleted.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	List(ctx context.Context) ([]*Booking, error)
	// UpdateStatus moves the booking from one status to another and fails with
	// ErrStaleStatus when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
