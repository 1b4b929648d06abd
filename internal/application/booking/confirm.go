package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/application"
	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	domcart "github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	domoutbox "github.com/Zhima-Mochi/krishi-prebook/internal/domain/outbox"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	bookingService     = "booking-service"
	useCaseConfirm     = "booking.confirm"
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
	stockReadFanout    = 8
	statusPartial      = "PARTIAL_BOOKING"
	statusUnauthorized = "UNAUTHENTICATED"
)

var (
	ErrProductNotFound = catalog.ErrNotFound
	ErrRepository      = errors.New("booking: repository failure")
)

// ConfirmBookingUseCase turns a user's cart into bookings, one per line.
type ConfirmBookingUseCase struct {
	catalog   catalog.Repository
	offices   catalog.OfficeDirectory
	repo      domain.Repository
	ids       application.IDGenerator
	publisher domoutbox.Publisher
	now       application.Clock
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{usecase,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{usecase}
	created      observability.Counter   // bookings_created_total{office}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewConfirmBookingUseCase(
	products catalog.Repository,
	offices catalog.OfficeDirectory,
	repo domain.Repository,
	ids application.IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *ConfirmBookingUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &ConfirmBookingUseCase{
		catalog:      products,
		offices:      offices,
		repo:         repo,
		ids:          ids,
		publisher:    publisher,
		now:          time.Now,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", bookingService)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		created:      m.Counter(observability.MBookingsCreated),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// WithClock pins the confirmation instant; used by tests.
func (uc *ConfirmBookingUseCase) WithClock(now application.Clock) *ConfirmBookingUseCase {
	uc.now = now
	return uc
}

type ConfirmInput struct {
	User *identity.User
	// Cart is mutated: booked lines are removed, lines that did not book stay.
	Cart *domcart.Cart
}

type ConfirmResult struct {
	Bookings []*domain.Booking
	Lines    []domain.LineOutcome
}

// Execute books every cart line independently. Any line that did not book makes the
// call return a *booking.PartialBookingError alongside the full result.
func (uc *ConfirmBookingUseCase) Execute(ctx context.Context, cmd ConfirmInput) (_ *ConfirmResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseConfirm))

	var userID string
	if cmd.User != nil {
		userID = cmd.User.ID
	}
	ctx, span := uc.tel.Tracer().Start(ctx, application.SpanPrefix+"ConfirmBooking",
		attribute.String("use_case", useCaseConfirm),
		attribute.String("booking.user_id", userID),
	)
	ctx = logctx.With(ctx, logger)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var result *ConfirmResult

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("usecase", useCaseConfirm),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("usecase", useCaseConfirm))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if result != nil {
			fields = append(fields,
				observability.F("lines", len(result.Lines)),
				observability.F("bookings", len(result.Bookings)),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if cmd.User == nil || cmd.User.ID == "" {
		outcome, statusText = "error", statusUnauthorized
		return nil, identity.ErrUnauthenticated
	}
	if cmd.Cart == nil || cmd.Cart.IsEmpty() {
		statusText = "EMPTY_CART"
		result = &ConfirmResult{}
		return result, nil
	}

	lines := cmd.Cart.Lines()
	products, readErrs, err := uc.readProducts(ctx, lines)
	if err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	now := uc.now()
	result = &ConfirmResult{Lines: make([]domain.LineOutcome, 0, len(lines))}
	var failed []domain.LineOutcome

	for i, line := range lines {
		out, b := uc.bookLine(ctx, cmd.User.ID, line, products[i], readErrs[i], now)
		result.Lines = append(result.Lines, out)

		span.AddEvent("booking.line",
			trace.WithAttributes(
				attribute.String("product.id", out.ProductID),
				attribute.String("line.status", string(out.Status)),
				attribute.Int("line.booked", out.Booked),
			),
		)

		if !out.Succeeded() {
			failed = append(failed, out)
			continue
		}
		result.Bookings = append(result.Bookings, b)
		cmd.Cart.Remove(out.ProductID)
		uc.publishCreated(ctx, b)
	}

	span.SetAttributes(
		attribute.Int("booking.lines", len(lines)),
		attribute.Int("booking.created", len(result.Bookings)),
	)

	if len(failed) > 0 {
		outcome, statusText = "error", statusPartial
		if len(result.Bookings) > 0 {
			outcome = "partial"
		}
		return result, &domain.PartialBookingError{Lines: failed}
	}
	cmd.Cart.Clear()
	return result, nil
}

// readProducts fetches current stock for every line concurrently. Per-line lookup
// errors are returned positionally; only a cancelled context aborts the read.
func (uc *ConfirmBookingUseCase) readProducts(ctx context.Context, lines []domcart.Line) ([]*catalog.Product, []error, error) {
	products := make([]*catalog.Product, len(lines))
	errs := make([]error, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stockReadFanout)
	for i, line := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			products[i], errs[i] = uc.catalog.Get(gctx, line.Product.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, errs, nil
}

func (uc *ConfirmBookingUseCase) bookLine(
	ctx context.Context,
	userID string,
	line domcart.Line,
	product *catalog.Product,
	readErr error,
	now time.Time,
) (domain.LineOutcome, *domain.Booking) {
	out := domain.LineOutcome{
		ProductID: line.Product.ID,
		Requested: line.Quantity,
		Status:    domain.LineBooked,
	}
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("product_id", out.ProductID))

	switch {
	case errors.Is(readErr, catalog.ErrNotFound):
		return reject(out, ErrProductNotFound), nil
	case readErr != nil:
		return reject(out, fmt.Errorf("%w: %w", ErrRepository, readErr)), nil
	case product.Stock <= 0:
		return reject(out, catalog.ErrInsufficientStock), nil
	}

	quantity := line.Quantity
	if quantity > product.Stock {
		quantity = product.Stock
		out.Status = domain.LineAdjusted
		out.Err = catalog.ErrInsufficientStock
	}

	if _, err := uc.catalog.DecrementStock(ctx, product.ID, quantity); err != nil {
		if errors.Is(err, catalog.ErrInsufficientStock) || errors.Is(err, catalog.ErrNotFound) {
			return reject(out, err), nil
		}
		out.Status, out.Err = domain.LineFailed, fmt.Errorf("%w: %w", ErrRepository, err)
		return out, nil
	}

	officeID, officeName := uc.officeFor(ctx, line, product)
	b, err := domain.New(domain.NewInput{
		ID:          uc.ids.NewID(),
		UserID:      userID,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		OfficeID:    officeID,
		OfficeName:  officeName,
		BookedAt:    now,
	})
	if err == nil {
		err = uc.repo.Create(ctx, b)
	}
	if err != nil {
		out.Status = domain.LineFailed
		out.Err = fmt.Errorf("%w: %w", ErrRepository, err)
		if _, restoreErr := uc.catalog.RestoreStock(ctx, product.ID, quantity); restoreErr != nil {
			out.Err = errors.Join(out.Err, fmt.Errorf("booking: restore stock: %w", restoreErr))
			logger.Error("stock_restore_failed",
				observability.F("quantity", quantity),
				observability.F("error", restoreErr.Error()),
			)
		}
		return out, nil
	}

	out.Booked = quantity
	out.BookingID = b.ID
	uc.created.Add(1, observability.L("office", officeID))
	return out, b
}

// officeFor prefers the office chosen when the line was added.
func (uc *ConfirmBookingUseCase) officeFor(ctx context.Context, line domcart.Line, product *catalog.Product) (string, string) {
	if line.Office.ID != "" {
		return line.Office.ID, line.Office.Name
	}
	if uc.offices != nil {
		if office, err := uc.offices.Get(ctx, product.OfficeID); err == nil {
			return office.ID, office.Name
		}
	}
	return product.OfficeID, product.OfficeID
}

func (uc *ConfirmBookingUseCase) publishCreated(ctx context.Context, b *domain.Booking) {
	if uc.publisher == nil {
		return
	}
	ev := domain.NewBookingCreatedEvent(b)
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"
	if err := uc.publisher.Publish(pubCtx, ev); err != nil {
		pubOutcome = "error"
		logctx.FromOr(ctx, uc.log).Warn("event_publish_failed",
			observability.F("event", ev.EventName()),
			observability.F("booking_id", b.ID),
			observability.F("error", err.Error()),
		)
	}
	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", ev.EventName()),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", ev.EventName()),
	)
}

func reject(out domain.LineOutcome, err error) domain.LineOutcome {
	out.Status = domain.LineRejected
	out.Err = err
	out.Booked = 0
	return out
}
