package catalog

import "context"

// Repository is the catalog collaborator. Stock changes go through DecrementStock and
// RestoreStock, and seller edits through Patch, so every read-check-write happens
// under one lock.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	// Patch applies the edit to the stored product; fields absent from the patch,
	// stock included, keep their current stored value.
	Patch(ctx context.Context, id string, patch Patch) (*Product, error)
	Delete(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, id string, amount int) (remaining int, err error)
	RestoreStock(ctx context.Context, id string, amount int) (remaining int, err error)
}

type OfficeDirectory interface {
	List(ctx context.Context) ([]Office, error)
	Get(ctx context.Context, id string) (Office, error)
}
