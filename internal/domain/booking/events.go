package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingCreatedEvent is emitted once per booking made at checkout.
type BookingCreatedEvent struct {
	BookingID  string
	UserID     string
	ProductID  string
	OfficeID   string
	Quantity   int
	Total      decimal.Decimal
	Deadline   time.Time
	OccurredAt time.Time
}

func (BookingCreatedEvent) EventName() string { return "booking.created" }

func NewBookingCreatedEvent(b *Booking) BookingCreatedEvent {
	return BookingCreatedEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		ProductID:  b.ProductID,
		OfficeID:   b.OfficeID,
		Quantity:   b.Quantity,
		Total:      b.Total,
		Deadline:   b.Deadline(),
		OccurredAt: time.Now().UTC(),
	}
}

// BookingStatusChangedEvent is emitted on every persisted collection status change.
type BookingStatusChangedEvent struct {
	BookingID  string
	UserID     string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (BookingStatusChangedEvent) EventName() string { return "booking.status_changed" }

func NewBookingStatusChangedEvent(b *Booking, from Status) BookingStatusChangedEvent {
	return BookingStatusChangedEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		From:       from,
		To:         b.Status,
		OccurredAt: time.Now().UTC(),
	}
}
