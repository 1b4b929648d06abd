package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	appbooking "github.com/Zhima-Mochi/krishi-prebook/internal/application/booking"
	appcart "github.com/Zhima-Mochi/krishi-prebook/internal/application/cart"
	appcatalog "github.com/Zhima-Mochi/krishi-prebook/internal/application/catalog"
	appidentity "github.com/Zhima-Mochi/krishi-prebook/internal/application/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

type Services struct {
	Identity *appidentity.Service
	Catalog  *appcatalog.Service
	Cart     *appcart.Service
	Confirm  *appbooking.ConfirmBookingUseCase
	Bookings *appbooking.StatusService
}

type Handler struct {
	svc     Services
	auth    Authenticator
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability

	httpCounter   observability.Counter
	httpHistogram observability.Histogram
}

// NewHandler wires the HTTP surface. metrics may be nil, in which case /metrics is not served.
func NewHandler(svc Services, metrics http.Handler, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		svc:           svc,
		auth:          svc.Identity,
		metrics:       metrics,
		log:           tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:           tel,
		httpCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		httpHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

type middleware = func(http.Handler) http.Handler

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	auth := []middleware{h.requireAuth}
	seller := []middleware{h.requireAuth, h.requireSeller}

	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	h.handle(r, http.MethodPost, "/register", h.handleRegister)
	h.handle(r, http.MethodPost, "/login", h.handleLogin)
	h.handle(r, http.MethodPost, "/logout", h.handleLogout, auth...)

	h.handle(r, http.MethodGet, "/offices", h.handleListOffices)
	h.handle(r, http.MethodGet, "/products", h.handleListProducts)
	h.handle(r, http.MethodGet, "/products/{id}", h.handleGetProduct)
	h.handle(r, http.MethodPost, "/products", h.handleCreateProduct, seller...)
	h.handle(r, http.MethodPut, "/products/{id}", h.handleUpdateProduct, seller...)
	h.handle(r, http.MethodDelete, "/products/{id}", h.handleDeleteProduct, seller...)

	h.handle(r, http.MethodGet, "/cart", h.handleViewCart, auth...)
	h.handle(r, http.MethodDelete, "/cart", h.handleClearCart, auth...)
	h.handle(r, http.MethodPost, "/cart/items", h.handleAddCartItem, auth...)
	h.handle(r, http.MethodPut, "/cart/items/{productID}", h.handleUpdateCartItem, auth...)
	h.handle(r, http.MethodDelete, "/cart/items/{productID}", h.handleRemoveCartItem, auth...)

	h.handle(r, http.MethodPost, "/bookings", h.handleConfirmBooking, auth...)
	h.handle(r, http.MethodGet, "/bookings", h.handleListMyBookings, auth...)

	h.handle(r, http.MethodGet, "/seller/bookings", h.handleSellerBookings, seller...)
	h.handle(r, http.MethodGet, "/seller/stats", h.handleSellerStats, seller...)
	h.handle(r, http.MethodPost, "/seller/bookings/{id}/confirm", h.handleSellerConfirm, seller...)
	h.handle(r, http.MethodPost, "/seller/bookings/{id}/collect", h.handleSellerCollect, seller...)

	return r
}

// handle wires one route as Route → Trace → request logger → access log → HTTP
// metrics → route middlewares → handler.
func (h *Handler) handle(r chi.Router, method, route string, handler http.HandlerFunc, mws ...middleware) {
	var next http.Handler = handler
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](next)
	}

	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
		)(
			h.withAccessLog(
				h.withHTTPMetrics(next),
			),
		),
	)

	template := method + " " + route
	r.Method(method, route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), template)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("krishi.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		ctx, span := tracer.Start(parentCtx,
			route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED metrics on the injected instruments.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.httpCounter.Add(1, labels...)
		h.httpHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest(errEmptyBody)
		}
		return badRequest(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// badRequestError marks transport-level input problems (malformed JSON, bad query values).
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return fmt.Sprintf("bad request: %v", e.err) }
func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &badRequestError{err: err} }
