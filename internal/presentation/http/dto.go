package httppresentation

import (
	"time"

	appbooking "github.com/Zhima-Mochi/krishi-prebook/internal/application/booking"
	appcart "github.com/Zhima-Mochi/krishi-prebook/internal/application/cart"
	appidentity "github.com/Zhima-Mochi/krishi-prebook/internal/application/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/booking"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/cart"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	"github.com/shopspring/decimal"
)

// money renders amounts with two decimals so clients never see float artefacts.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	OfficeID    string    `json:"office_id"`
	ImageURL    string    `json:"image_url,omitempty"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProduct(p *catalog.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Category:    string(p.Category),
		OfficeID:    p.OfficeID,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}
}

func toProducts(ps []*catalog.Product) []productResponse {
	out := make([]productResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProduct(p))
	}
	return out
}

type officeGroupResponse struct {
	OfficeID   string            `json:"office_id"`
	OfficeName string            `json:"office_name"`
	Products   []productResponse `json:"products"`
}

func toGroups(gs []catalog.OfficeGroup) []officeGroupResponse {
	out := make([]officeGroupResponse, 0, len(gs))
	for _, g := range gs {
		out = append(out, officeGroupResponse{
			OfficeID:   g.OfficeID,
			OfficeName: g.OfficeName,
			Products:   toProducts(g.Products),
		})
	}
	return out
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	OfficeID    string          `json:"office_id"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}

type productPatchRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	OfficeID    *string          `json:"office_id"`
	ImageURL    *string          `json:"image_url"`
	Stock       *int             `json:"stock"`
}

type cartLineResponse struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
	Stock      int    `json:"stock"`
	OfficeID   string `json:"office_id"`
	OfficeName string `json:"office_name"`
	Subtotal   string `json:"subtotal"`
}

func toCartLine(l cart.Line) cartLineResponse {
	return cartLineResponse{
		ProductID:  l.Product.ID,
		Name:       l.Product.Name,
		Category:   string(l.Product.Category),
		Price:      money(l.Product.Price),
		Quantity:   l.Quantity,
		Stock:      l.Product.Stock,
		OfficeID:   l.Office.ID,
		OfficeName: l.Office.Name,
		Subtotal:   money(l.Subtotal()),
	}
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	Total     string             `json:"total"`
	SyncError string             `json:"sync_error,omitempty"`
}

func toCart(v appcart.View) cartResponse {
	out := cartResponse{
		Lines: make([]cartLineResponse, 0, len(v.Lines)),
		Total: money(v.Total),
	}
	for _, l := range v.Lines {
		out.Lines = append(out.Lines, toCartLine(l))
	}
	if v.SyncError != nil {
		out.SyncError = v.SyncError.Error()
	}
	return out
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	OfficeID  string `json:"office_id"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type bookingResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	OfficeID    string    `json:"office_id"`
	OfficeName  string    `json:"office_name"`
	Total       string    `json:"total"`
	Status      string    `json:"status"`
	BookedAt    time.Time `json:"booked_at"`
	Deadline    time.Time `json:"deadline"`
}

func toBooking(b *booking.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		ProductID:   b.ProductID,
		ProductName: b.ProductName,
		UnitPrice:   money(b.UnitPrice),
		Quantity:    b.Quantity,
		OfficeID:    b.OfficeID,
		OfficeName:  b.OfficeName,
		Total:       money(b.Total),
		Status:      string(b.Status),
		BookedAt:    b.BookedAt,
		Deadline:    b.Deadline(),
	}
}

func toBookings(bs []*booking.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBooking(b))
	}
	return out
}

type lineOutcomeResponse struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Booked    int    `json:"booked"`
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type confirmResponse struct {
	Bookings []bookingResponse    `json:"bookings"`
	Lines    []lineOutcomeResponse `json:"lines"`
}

func toConfirm(r *appbooking.ConfirmResult) confirmResponse {
	out := confirmResponse{
		Bookings: toBookings(r.Bookings),
		Lines:    make([]lineOutcomeResponse, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		lr := lineOutcomeResponse{
			ProductID: l.ProductID,
			Requested: l.Requested,
			Booked:    l.Booked,
			Status:    string(l.Status),
			BookingID: l.BookingID,
		}
		if l.Err != nil {
			lr.Error = l.Err.Error()
		}
		out.Lines = append(out.Lines, lr)
	}
	return out
}

type statsResponse struct {
	Products           int `json:"total_products"`
	Bookings           int `json:"total_bookings"`
	ActiveBookings     int `json:"active_bookings"`
	PendingCollections int `json:"pending_collections"`
	Collected          int `json:"collected"`
	Expired            int `json:"expired"`
}

func toStats(s appbooking.DashboardStats) statsResponse {
	return statsResponse{
		Products:           s.Products,
		Bookings:           s.Total,
		ActiveBookings:     s.ActiveBookings,
		PendingCollections: s.PendingCollections,
		Collected:          s.Collected,
		Expired:            s.Expired,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Pincode  string `json:"pincode"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Pincode string `json:"pincode,omitempty"`
	Role    string `json:"role"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toSession(s *appidentity.Session) sessionResponse {
	return sessionResponse{Token: s.Token, User: toUser(s.User)}
}

func toUser(u *identity.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Address: u.Address,
		Pincode: u.Pincode,
		Role:    string(u.Role),
	}
}
