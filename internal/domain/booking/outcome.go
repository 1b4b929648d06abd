package booking

import (
	"fmt"
	"strings"
)

type LineStatus string

const (
	// LineBooked means the full requested quantity was booked.
	LineBooked LineStatus = "booked"
	// LineAdjusted means stock had dropped and a reduced quantity was booked.
	LineAdjusted LineStatus = "adjusted"
	// LineRejected means nothing was booked and no collaborator was written.
	LineRejected LineStatus = "rejected"
	// LineFailed means a collaborator write failed part way through the line.
	LineFailed LineStatus = "failed"
)

// LineOutcome reports what confirmation did with one cart line.
type LineOutcome struct {
	ProductID string
	Requested int
	Booked    int
	Status    LineStatus
	BookingID string
	Err       error
}

func (o LineOutcome) Succeeded() bool {
	return o.Status == LineBooked || o.Status == LineAdjusted
}

// PartialBookingError lists the lines that did not book so the caller can retry
// only that subset.
type PartialBookingError struct {
	Lines []LineOutcome
}

func (e *PartialBookingError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", l.ProductID, l.Status, l.Err))
	}
	return fmt.Sprintf("booking: %d line(s) not booked: %s", len(e.Lines), strings.Join(parts, "; "))
}

func (e *PartialBookingError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines))
	for _, l := range e.Lines {
		if l.Err != nil {
			errs = append(errs, l.Err)
		}
	}
	return errs
}
