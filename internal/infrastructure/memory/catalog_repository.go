package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
)

type CatalogRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p.Clone(), nil
}

// List returns every product ordered by name, then ID.
func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *CatalogRepository) Create(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("catalog repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[p.ID]; exists {
		return fmt.Errorf("catalog repository: product %s already exists", p.ID)
	}
	r.products[p.ID] = p.Clone()
	return nil
}

func (r *CatalogRepository) Patch(ctx context.Context, id string, patch domain.Patch) (*domain.Product, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := p.Clone()
	if err := next.Apply(patch); err != nil {
		return nil, err
	}
	r.products[id] = next
	return next.Clone(), nil
}

func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[id]; !exists {
		return domain.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

// DecrementStock checks and deducts under the write lock so two concurrent
// confirmations can never both take the last unit.
func (r *CatalogRepository) DecrementStock(ctx context.Context, id string, amount int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if err := p.Decrement(amount); err != nil {
		return p.Stock, err
	}
	return p.Stock, nil
}

func (r *CatalogRepository) RestoreStock(ctx context.Context, id string, amount int) (int, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if err := p.Restore(amount); err != nil {
		return p.Stock, err
	}
	return p.Stock, nil
}
