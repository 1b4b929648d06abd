package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	testOffice = catalog.Office{ID: "kb-1", Name: "Krishi Bhavan Thrissur"}
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return fmt.Sprintf("bk-%03d", s.n.Add(1)) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

// failingBookings rejects every Create.
type failingBookings struct {
	*memory.BookingRepository
}

var errStoreDown = errors.New("store unavailable")

func (failingBookings) Create(context.Context, *domain.Booking) error { return errStoreDown }

func seedProduct(t *testing.T, repo *memory.CatalogRepository, id, name, price string, stock int) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &catalog.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: catalog.CategorySeeds,
		OfficeID: testOffice.ID,
		Stock:    stock,
	}))
}

func mustProduct(t *testing.T, repo *memory.CatalogRepository, id string) *catalog.Product {
	t.Helper()
	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
