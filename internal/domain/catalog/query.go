package catalog

import (
	"sort"
	"strings"
)

// FilterByCategory keeps products whose category equals category ignoring case.
// An empty category or "All" returns the input unchanged.
func FilterByCategory(products []*Product, category string) []*Product {
	category = strings.TrimSpace(category)
	if category == "" || strings.EqualFold(category, CategoryAll) {
		return products
	}
	out := make([]*Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(string(p.Category), category) {
			out = append(out, p)
		}
	}
	return out
}

// Search matches query as a case-insensitive substring of name, description or category.
func Search(products []*Product, query string) []*Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return products
	}
	out := make([]*Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q) ||
			strings.Contains(strings.ToLower(string(p.Category)), q) {
			out = append(out, p)
		}
	}
	return out
}

type OfficeGroup struct {
	OfficeID   string
	OfficeName string
	Products   []*Product
}

// GroupByOffice partitions products by office, ordered by office name.
// Products pointing at an unknown office are grouped under their raw office ID.
func GroupByOffice(products []*Product, offices []Office) []OfficeGroup {
	names := make(map[string]string, len(offices))
	for _, o := range offices {
		names[o.ID] = o.Name
	}

	index := make(map[string]int)
	var groups []OfficeGroup
	for _, p := range products {
		i, ok := index[p.OfficeID]
		if !ok {
			name, known := names[p.OfficeID]
			if !known {
				name = p.OfficeID
			}
			groups = append(groups, OfficeGroup{OfficeID: p.OfficeID, OfficeName: name})
			i = len(groups) - 1
			index[p.OfficeID] = i
		}
		groups[i].Products = append(groups[i].Products, p)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].OfficeName == groups[b].OfficeName {
			return groups[a].OfficeID < groups[b].OfficeID
		}
		return groups[a].OfficeName < groups[b].OfficeName
	})
	return groups
}
