package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/Zhima-Mochi/krishi-prebook/internal/application"
	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const cartService = "cart-service"

// MirrorQueue accepts mirror writes without blocking the caller.
type MirrorQueue interface {
	Enqueue(ctx context.Context, task domain.MirrorTask)
}

type session struct {
	mu   sync.Mutex
	cart *domain.Cart
}

// Service owns every user's cart. Each user has one session whose lock serialises
// that user's cart operations, confirmation included.
type Service struct {
	catalog catalog.Repository
	offices catalog.OfficeDirectory
	mirror  MirrorQueue

	mu       sync.RWMutex
	sessions map[string]*session

	failMu   sync.Mutex
	failures map[string]error

	in application.Instruments
}

func NewService(products catalog.Repository, offices catalog.OfficeDirectory, mirror MirrorQueue, tel observability.Observability) *Service {
	return &Service{
		catalog:  products,
		offices:  offices,
		mirror:   mirror,
		sessions: make(map[string]*session),
		failures: make(map[string]error),
		in:       application.NewInstruments(tel, cartService),
	}
}

func (s *Service) session(userID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess = &session{cart: domain.New(userID)}
	s.sessions[userID] = sess
	return sess
}

// AddItem merges quantity of productID into the cart. The office defaults to the
// product's own office when officeID is empty; a quantity below one counts as one.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, officeID string) (_ domain.Line, err error) {
	ctx, call := s.in.Begin(ctx, "AddCartItem", "cart.add_item",
		attribute.String("cart.product_id", productID),
		attribute.Int("cart.quantity", quantity),
	)
	defer func() { call.End(err) }()

	if userID == "" {
		call.Status("USER_REQUIRED")
		return domain.Line{}, domain.ErrUserRequired
	}
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		call.Status("PRODUCT_LOOKUP_FAILED")
		return domain.Line{}, err
	}
	if officeID == "" {
		officeID = product.OfficeID
	}
	office, err := s.offices.Get(ctx, officeID)
	if err != nil {
		call.Status("OFFICE_LOOKUP_FAILED")
		return domain.Line{}, err
	}

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	line, err := sess.cart.Add(*product, quantity, office)
	if err != nil {
		call.Status("OUT_OF_STOCK")
		return domain.Line{}, err
	}
	s.mirror.Enqueue(ctx, domain.MirrorTask{
		Op:        domain.MirrorUpsert,
		UserID:    userID,
		ProductID: productID,
		Quantity:  line.Quantity,
	})
	call.Span().SetAttributes(attribute.Int("cart.line_quantity", line.Quantity))
	return line, nil
}

// RemoveItem is idempotent; removing an absent product is not an error.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cart.Remove(productID) {
		s.mirror.Enqueue(ctx, domain.MirrorTask{Op: domain.MirrorDelete, UserID: userID, ProductID: productID})
	}
	return nil
}

// UpdateQuantity re-reads the product and clamps quantity into [1, current stock].
// It reports false when the product is not in the cart, in which case nothing
// changes. A product that is gone or sold out is refused the same way AddItem
// refuses it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (_ domain.Line, _ bool, err error) {
	ctx, call := s.in.Begin(ctx, "UpdateCartQuantity", "cart.update_quantity",
		attribute.String("cart.product_id", productID),
		attribute.Int("cart.quantity", quantity),
	)
	defer func() { call.End(err) }()

	if userID == "" {
		call.Status("USER_REQUIRED")
		return domain.Line{}, false, domain.ErrUserRequired
	}
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, ok := sess.cart.Line(productID); !ok {
		call.Status("NOT_IN_CART")
		return domain.Line{}, false, nil
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		call.Status("PRODUCT_LOOKUP_FAILED")
		return domain.Line{}, true, err
	}

	line, ok, err := sess.cart.UpdateQuantity(*product, quantity)
	if err != nil {
		call.Status("OUT_OF_STOCK")
		return line, ok, err
	}
	s.mirror.Enqueue(ctx, domain.MirrorTask{
		Op:        domain.MirrorUpsert,
		UserID:    userID,
		ProductID: productID,
		Quantity:  line.Quantity,
	})
	call.Span().SetAttributes(attribute.Int("cart.line_quantity", line.Quantity))
	return line, true, nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cart.Clear()
	s.mirror.Enqueue(ctx, domain.MirrorTask{Op: domain.MirrorClear, UserID: userID})
	return nil
}

// View is a read of the cart. SyncError reports mirror failures since the last read.
type View struct {
	Lines     []domain.Line
	Total     decimal.Decimal
	SyncError error
}

func (s *Service) View(ctx context.Context, userID string) (View, error) {
	if userID == "" {
		return View{}, domain.ErrUserRequired
	}
	_, span := s.in.Observability().Tracer().Start(ctx, "cart.view",
		attribute.String("cart.user_id", userID),
	)
	defer span.End()

	sess := s.session(userID)
	sess.mu.Lock()
	v := View{Lines: sess.cart.Lines(), Total: sess.cart.Total()}
	sess.mu.Unlock()

	s.failMu.Lock()
	v.SyncError = s.failures[userID]
	delete(s.failures, userID)
	s.failMu.Unlock()

	span.SetAttributes(attribute.Int("cart.lines", len(v.Lines)))
	if v.SyncError != nil {
		span.RecordError(v.SyncError)
	}
	return v, nil
}

// WithCart runs fn with exclusive access to the user's cart and mirrors whatever
// fn changed once it returns.
func (s *Service) WithCart(ctx context.Context, userID string, fn func(c *domain.Cart) error) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	before := quantities(sess.cart)
	err := fn(sess.cart)
	s.mirrorDiff(ctx, userID, before, quantities(sess.cart))
	return err
}

// HandleMirrorFailure records a failed mirror write so the next View reports it.
// Failures for the same user are joined.
func (s *Service) HandleMirrorFailure(ctx context.Context, f *domain.MirrorFailure) {
	logctx.FromOr(ctx, s.in.Logger()).Debug("cart_sync_error_recorded",
		observability.F("user_id", f.Task.UserID),
		observability.F("op", string(f.Task.Op)),
	)

	s.failMu.Lock()
	defer s.failMu.Unlock()
	if prev, ok := s.failures[f.Task.UserID]; ok {
		s.failures[f.Task.UserID] = errors.Join(prev, f)
		return
	}
	s.failures[f.Task.UserID] = f
}

func quantities(c *domain.Cart) map[string]int {
	out := make(map[string]int, c.Len())
	for _, l := range c.Lines() {
		out[l.Product.ID] = l.Quantity
	}
	return out
}

func (s *Service) mirrorDiff(ctx context.Context, userID string, before, after map[string]int) {
	if len(after) == 0 {
		if len(before) > 0 {
			s.mirror.Enqueue(ctx, domain.MirrorTask{Op: domain.MirrorClear, UserID: userID})
		}
		return
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			s.mirror.Enqueue(ctx, domain.MirrorTask{Op: domain.MirrorDelete, UserID: userID, ProductID: id})
		}
	}
	for id, q := range after {
		if prev, ok := before[id]; !ok || prev != q {
			s.mirror.Enqueue(ctx, domain.MirrorTask{Op: domain.MirrorUpsert, UserID: userID, ProductID: id, Quantity: q})
		}
	}
}
