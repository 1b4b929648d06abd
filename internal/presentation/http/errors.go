package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
)

func writeDomainError(w http.ResponseWriter, err error) {
	var validation *identity.ValidationError
	var bad *badRequestError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Fields: validation.Fields})
	case errors.As(err, &bad),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidCategory),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, booking.ErrInvalidQuantity),
		errors.Is(err, booking.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, cart.ErrUserRequired):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, identity.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrOfficeNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, booking.ErrInvalidStateTransition),
		errors.Is(err, booking.ErrBookingExpired),
		errors.Is(err, booking.ErrConflict),
		errors.Is(err, booking.ErrStaleStatus),
		errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
