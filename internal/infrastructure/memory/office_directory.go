package memory

import (
	"context"
	"sort"

	domain "github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
)

// OfficeDirectory serves the static office list. It is read-only after construction.
type OfficeDirectory struct {
	offices []domain.Office
	byID    map[string]domain.Office
}

func NewOfficeDirectory(offices []domain.Office) *OfficeDirectory {
	sorted := append([]domain.Office(nil), offices...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	byID := make(map[string]domain.Office, len(sorted))
	for _, o := range sorted {
		byID[o.ID] = o
	}
	return &OfficeDirectory{offices: sorted, byID: byID}
}

func (d *OfficeDirectory) List(ctx context.Context) ([]domain.Office, error) {
	_ = ctx
	return append([]domain.Office(nil), d.offices...), nil
}

func (d *OfficeDirectory) Get(ctx context.Context, id string) (domain.Office, error) {
	_ = ctx
	o, ok := d.byID[id]
	if !ok {
		return domain.Office{}, domain.ErrOfficeNotFound
	}
	return o, nil
}
