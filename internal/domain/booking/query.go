package booking

import (
	"sort"
	"strings"
	"time"
)

// Search matches query against the product name or booking ID, ignoring case.
func Search(bookings []*Booking, query string) []*Booking {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return bookings
	}
	out := make([]*Booking, 0, len(bookings))
	for _, b := range bookings {
		if strings.Contains(strings.ToLower(b.ProductName), q) ||
			strings.Contains(strings.ToLower(b.ID), q) {
			out = append(out, b)
		}
	}
	return out
}

// SortNewestFirst orders bookings by booking time, most recent first.
func SortNewestFirst(bookings []*Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].BookedAt.After(bookings[j].BookedAt)
	})
}

type Stats struct {
	Total              int
	ActiveBookings     int
	PendingCollections int
	Collected          int
	Expired            int
}

// Summarize counts bookings by their effective status at now.
func Summarize(bookings []*Booking, now time.Time) Stats {
	var s Stats
	for _, b := range bookings {
		s.Total++
		switch b.EffectiveStatus(now) {
		case StatusPending:
			s.ActiveBookings++
			s.PendingCollections++
		case StatusConfirmed:
			s.ActiveBookings++
		case StatusCollected:
			s.Collected++
		case StatusExpired:
			s.Expired++
		}
	}
	return s
}
