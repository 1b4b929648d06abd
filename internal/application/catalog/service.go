package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/krishi-prebook/internal/application"
	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/identity"
	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const catalogService = "catalog-service"

var ErrRepository = errors.New("catalog: repository failure")

// Service serves the storefront listing and the seller's product management.
type Service struct {
	repo    domain.Repository
	offices domain.OfficeDirectory
	ids     application.IDGenerator
	in      application.Instruments
}

func NewService(repo domain.Repository, offices domain.OfficeDirectory, ids application.IDGenerator, tel observability.Observability) *Service {
	return &Service{
		repo:    repo,
		offices: offices,
		ids:     ids,
		in:      application.NewInstruments(tel, catalogService),
	}
}

// ListQuery narrows the storefront listing. Empty fields match everything.
type ListQuery struct {
	Category string
	Search   string
}

func (s *Service) List(ctx context.Context, q ListQuery) (_ []*domain.Product, err error) {
	ctx, call := s.in.Begin(ctx, "ListProducts", "catalog.list",
		attribute.String("catalog.category", q.Category),
	)
	defer func() { call.End(err) }()

	products, err := s.repo.List(ctx)
	if err != nil {
		call.Status("REPO_LIST_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	products = domain.FilterByCategory(products, q.Category)
	products = domain.Search(products, q.Search)
	call.With(observability.F("results", len(products)))
	return products, nil
}

// ListGrouped is List arranged by office for the storefront's per-office view.
func (s *Service) ListGrouped(ctx context.Context, q ListQuery) ([]domain.OfficeGroup, error) {
	products, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	offices, err := s.offices.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.GroupByOffice(products, offices), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Offices(ctx context.Context) ([]domain.Office, error) {
	return s.offices.List(ctx)
}

type CreateInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	OfficeID    string
	ImageURL    string
	Stock       int
}

func (s *Service) Create(ctx context.Context, actor *identity.User, in CreateInput) (_ *domain.Product, err error) {
	ctx, call := s.in.Begin(ctx, "CreateProduct", "catalog.create",
		attribute.String("catalog.office_id", in.OfficeID),
	)
	defer func() { call.End(err) }()

	if err := requireSeller(actor); err != nil {
		call.Status("FORBIDDEN")
		return nil, err
	}
	category, err := domain.ParseCategory(in.Category)
	if err != nil {
		call.Status("CATEGORY_INVALID")
		return nil, err
	}
	if _, err := s.offices.Get(ctx, in.OfficeID); err != nil {
		call.Status("OFFICE_NOT_FOUND")
		return nil, err
	}

	p, err := domain.NewProduct(s.ids.NewID(), in.Name, in.Description, in.Price, category, in.OfficeID, in.Stock)
	if err != nil {
		call.Status("PRODUCT_INVALID")
		return nil, err
	}
	p.ImageURL = in.ImageURL

	if err := s.repo.Create(ctx, p); err != nil {
		call.Status("REPO_CREATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	call.With(observability.F("product_id", p.ID))
	return p, nil
}

// UpdateInput mirrors the seller edit form; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	OfficeID    *string
	ImageURL    *string
	Stock       *int
}

func (s *Service) Update(ctx context.Context, actor *identity.User, id string, in UpdateInput) (_ *domain.Product, err error) {
	ctx, call := s.in.Begin(ctx, "UpdateProduct", "catalog.update",
		attribute.String("catalog.product_id", id),
	)
	defer func() { call.End(err) }()

	if err := requireSeller(actor); err != nil {
		call.Status("FORBIDDEN")
		return nil, err
	}

	patch := domain.Patch{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		OfficeID:    in.OfficeID,
		ImageURL:    in.ImageURL,
		Stock:       in.Stock,
	}
	if in.Category != nil {
		c, err := domain.ParseCategory(*in.Category)
		if err != nil {
			call.Status("CATEGORY_INVALID")
			return nil, err
		}
		patch.Category = &c
	}
	if in.OfficeID != nil {
		if _, err := s.offices.Get(ctx, *in.OfficeID); err != nil {
			call.Status("OFFICE_NOT_FOUND")
			return nil, err
		}
	}

	p, err := s.repo.Patch(ctx, id, patch)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		call.Status("PRODUCT_NOT_FOUND")
		return nil, err
	case err != nil:
		call.Status("PRODUCT_INVALID")
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor *identity.User, id string) (err error) {
	ctx, call := s.in.Begin(ctx, "DeleteProduct", "catalog.delete",
		attribute.String("catalog.product_id", id),
	)
	defer func() { call.End(err) }()

	if err := requireSeller(actor); err != nil {
		call.Status("FORBIDDEN")
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		call.Status("REPO_DELETE_FAILED")
		return err
	}
	return nil
}

func requireSeller(u *identity.User) error {
	if u == nil {
		return identity.ErrUnauthenticated
	}
	if !u.IsSeller() {
		return identity.ErrForbidden
	}
	return nil
}
