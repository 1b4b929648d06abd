package httppresentation

import (
	"errors"
	"net/http"

	appbooking "github.com/Zhima-Mochi/krishi-prebook/internal/application/booking"
	appcatalog "github.com/Zhima-Mochi/krishi-prebook/internal/application/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := h.svc.Identity.Register(r.Context(), identity.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Pincode:  req.Pincode,
		Password: req.Password,
		Role:     identity.Role(req.Role),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSession(sess))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := h.svc.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Identity.Logout(r.Context(), bearerToken(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOffices(w http.ResponseWriter, r *http.Request) {
	offices, err := h.svc.Catalog.Offices(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offices)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := appcatalog.ListQuery{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("q"),
	}
	switch r.URL.Query().Get("group") {
	case "":
		products, err := h.svc.Catalog.List(r.Context(), q)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProducts(products))
	case "office":
		groups, err := h.svc.Catalog.ListGrouped(r.Context(), q)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroups(groups))
	default:
		writeDomainError(w, badRequest(errors.New("group must be empty or office")))
	}
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.svc.Catalog.Create(r.Context(), userFromContext(r.Context()), appcatalog.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		OfficeID:    req.OfficeID,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProduct(p))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.svc.Catalog.Update(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"), appcatalog.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		OfficeID:    req.OfficeID,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Catalog.Delete(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleViewCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Cart.View(r.Context(), userFromContext(r.Context()).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(v))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.Clear(r.Context(), userFromContext(r.Context()).ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if req.ProductID == "" {
		writeDomainError(w, badRequest(errors.New("product_id is required")))
		return
	}
	line, err := h.svc.Cart.AddItem(r.Context(), userFromContext(r.Context()).ID, req.ProductID, req.Quantity, req.OfficeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartLine(line))
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	line, ok, err := h.svc.Cart.UpdateQuantity(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		// absent lines are left alone
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toCartLine(line))
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.RemoveItem(r.Context(), userFromContext(r.Context()).ID, chi.URLParam(r, "productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConfirmBooking books the caller's cart while holding their cart session.
// A partial result answers 207 with per-line outcomes.
func (h *Handler) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var result *appbooking.ConfirmResult
	var confirmErr error
	err := h.svc.Cart.WithCart(r.Context(), user.ID, func(c *cart.Cart) error {
		result, confirmErr = h.svc.Confirm.Execute(r.Context(), appbooking.ConfirmInput{User: user, Cart: c})
		return nil
	})
	if err == nil {
		err = confirmErr
	}

	var partial *booking.PartialBookingError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toConfirm(result))
	case errors.As(err, &partial) && result != nil:
		writeJSON(w, http.StatusMultiStatus, toConfirm(result))
	default:
		writeDomainError(w, err)
	}
}

func (h *Handler) handleListMyBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.Bookings.ListMine(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookings(bookings))
}

func (h *Handler) handleSellerBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.Bookings.SellerList(r.Context(), userFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookings(bookings))
}

func (h *Handler) handleSellerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Bookings.Stats(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStats(stats))
}

func (h *Handler) handleSellerConfirm(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Bookings.Confirm(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}

func (h *Handler) handleSellerCollect(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Bookings.Collect(r.Context(), userFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBooking(b))
}
