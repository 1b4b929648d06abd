package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrOfficeNotFound    = errors.New("catalog: office not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrInvalidProduct    = errors.New("catalog: invalid product")
	ErrInvalidCategory   = errors.New("catalog: unknown category")
)

type Category string

const (
	CategorySeeds       Category = "Seeds"
	CategorySaplings    Category = "Saplings"
	CategoryPesticides  Category = "Pesticides"
	CategoryFertilizers Category = "Fertilizers"

	// CategoryAll is the listing filter that matches every product.
	CategoryAll = "All"
)

var categories = []Category{CategorySeeds, CategorySaplings, CategoryPesticides, CategoryFertilizers}

// Categories returns the known product categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory matches s against the known categories ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    Category
	OfficeID    string
	ImageURL    string
	Stock       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProduct validates the seller supplied fields the same way the listing form does:
// name, a positive price and a known category are required, stock may not be negative.
func NewProduct(id, name, description string, price decimal.Decimal, category Category, officeID string, stock int) (*Product, error) {
	p := &Product{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: description,
		Price:       price,
		Category:    category,
		OfficeID:    officeID,
		Stock:       stock,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must be zero or greater", ErrInvalidProduct)
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	return nil
}

// Decrement removes quantity units from stock, refusing to go below zero.
func (p *Product) Decrement(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

// Restore returns quantity units to stock.
func (p *Product) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	p.touch()
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Patch carries a partial seller update; nil fields are left untouched.
type Patch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *Category
	OfficeID    *string
	ImageURL    *string
	Stock       *int
}

// Apply writes the supplied fields onto p and re-validates the result.
func (p *Product) Apply(patch Patch) error {
	next := *p
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Price != nil {
		next.Price = *patch.Price
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.OfficeID != nil {
		next.OfficeID = *patch.OfficeID
	}
	if patch.ImageURL != nil {
		next.ImageURL = *patch.ImageURL
	}
	if patch.Stock != nil {
		next.Stock = *patch.Stock
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.touch()
	*p = next
	return nil
}
