package cart

import (
	"errors"
	"time"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

var (
	// ErrOutOfStock is returned when adding a product whose stock is zero.
	// A quantity-1 line against zero stock is never created.
	ErrOutOfStock = errors.New("cart: product is out of stock")

	ErrUserRequired = errors.New("cart: user id is required")
)

// Line is one product in the cart. Product is the snapshot taken when the line was
// last added to; the booking engine re-reads stock before confirming.
type Line struct {
	Product  catalog.Product
	Quantity int
	Office   catalog.Office
	AddedAt  time.Time
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per product, in insertion order.
type Cart struct {
	UserID string
	lines  []Line
}

func New(userID string) *Cart {
	return &Cart{UserID: userID}
}

// Clamp bounds a requested quantity to [1, stock]. Callers must reject stock <= 0 first.
func Clamp(quantity, stock int) int {
	if quantity > stock {
		quantity = stock
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}

// Add merges quantity into the product's existing line or appends a new one.
// Over-requests are capped silently; only an out-of-stock product is refused.
func (c *Cart) Add(product catalog.Product, quantity int, office catalog.Office) (Line, error) {
	if product.Stock <= 0 {
		return Line{}, ErrOutOfStock
	}
	if i := c.index(product.ID); i >= 0 {
		line := &c.lines[i]
		line.Product = product
		line.Quantity = Clamp(line.Quantity+quantity, product.Stock)
		return *line, nil
	}
	line := Line{
		Product:  product,
		Quantity: Clamp(quantity, product.Stock),
		Office:   office,
		AddedAt:  time.Now().UTC(),
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// Remove deletes the product's line. It reports whether a line was present.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// UpdateQuantity refreshes the line's product snapshot from product and sets the
// quantity to max(1, min(quantity, stock)). It reports false when the product has
// no line. An out-of-stock product keeps the old quantity and yields ErrOutOfStock.
func (c *Cart) UpdateQuantity(product catalog.Product, quantity int) (Line, bool, error) {
	i := c.index(product.ID)
	if i < 0 {
		return Line{}, false, nil
	}
	line := &c.lines[i]
	line.Product = product
	if product.Stock <= 0 {
		return *line, true, ErrOutOfStock
	}
	line.Quantity = Clamp(quantity, product.Stock)
	return *line, true, nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Line(productID string) (Line, bool) {
	i := c.index(productID)
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}
