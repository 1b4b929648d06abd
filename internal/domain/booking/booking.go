package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CollectionWindow is how long a booking may be collected for after it is made.
const CollectionWindow = 24 * time.Hour

var (
	ErrNotFound               = errors.New("booking: not found")
	ErrConflict               = errors.New("booking: already exists")
	ErrInvalidQuantity        = errors.New("booking: quantity must be greater than zero")
	ErrInvalidPrice           = errors.New("booking: unit price must be greater than zero")
	ErrInvalidStateTransition = errors.New("booking: invalid status transition")
	ErrBookingExpired         = errors.New("booking: collection deadline has passed")
	ErrStaleStatus            = errors.New("booking: status changed concurrently")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCollected Status = "collected"
	StatusExpired   Status = "expired"
)

func (s Status) Terminal() bool {
	return s == StatusCollected || s == StatusExpired
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCollected, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("booking: unknown status %q", s)
}

// Booking is one pre-booked product line. Everything except Status is frozen at
// confirmation time.
type Booking struct {
	ID          string
	UserID      string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	OfficeID    string
	OfficeName  string
	Total       decimal.Decimal
	Status      Status
	BookedAt    time.Time
	UpdatedAt   time.Time
}

type NewInput struct {
	ID          string
	UserID      string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	OfficeID    string
	OfficeName  string
	BookedAt    time.Time
}

func New(in NewInput) (*Booking, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !in.UnitPrice.IsPositive() {
		return nil, ErrInvalidPrice
	}
	bookedAt := in.BookedAt
	if bookedAt.IsZero() {
		bookedAt = time.Now()
	}
	bookedAt = bookedAt.UTC()

	return &Booking{
		ID:          in.ID,
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		UnitPrice:   in.UnitPrice,
		Quantity:    in.Quantity,
		OfficeID:    in.OfficeID,
		OfficeName:  in.OfficeName,
		Total:       in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:      StatusPending,
		BookedAt:    bookedAt,
		UpdatedAt:   bookedAt,
	}, nil
}

// Deadline is the last instant the booking can be collected.
func (b *Booking) Deadline() time.Time {
	return b.BookedAt.Add(CollectionWindow)
}

func (b *Booking) Overdue(now time.Time) bool {
	return now.After(b.Deadline())
}

// EffectiveStatus evaluates expiry lazily: a pending or confirmed booking whose
// deadline has passed reads as expired even if no sweep has persisted it yet.
func (b *Booking) EffectiveStatus(now time.Time) Status {
	if !b.Status.Terminal() && b.Overdue(now) {
		return StatusExpired
	}
	return b.Status
}

// Confirm marks the booking as acknowledged by the seller.
func (b *Booking) Confirm(now time.Time) error {
	if err := b.expireIfOverdue(now); err != nil {
		return err
	}
	return b.transition(now, stateFor(b.Status).OnConfirm)
}

// Collect records the in-person collection. Allowed from pending or confirmed.
func (b *Booking) Collect(now time.Time) error {
	if err := b.expireIfOverdue(now); err != nil {
		return err
	}
	return b.transition(now, stateFor(b.Status).OnCollect)
}

// Expire moves an overdue booking into the expired state.
func (b *Booking) Expire(now time.Time) error {
	if !b.Overdue(now) {
		return fmt.Errorf("%w: deadline not reached", ErrInvalidStateTransition)
	}
	return b.transition(now, stateFor(b.Status).OnExpire)
}

func (b *Booking) expireIfOverdue(now time.Time) error {
	if b.Status.Terminal() || !b.Overdue(now) {
		return nil
	}
	if err := b.transition(now, stateFor(b.Status).OnExpire); err != nil {
		return err
	}
	return ErrBookingExpired
}

func (b *Booking) transition(now time.Time, fn func() (State, error)) error {
	next, err := fn()
	if err != nil {
		return fmt.Errorf("%w: from %s", err, b.Status)
	}
	b.Status = next.Status()
	b.UpdatedAt = now.UTC()
	return nil
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}
