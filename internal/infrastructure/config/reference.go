package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/Zhima-Mochi/krishi-prebook/internal/domain/catalog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed offices.yaml
var defaultOffices []byte

type officesFile struct {
	Offices []catalog.Office `yaml:"offices"`
}

// LoadOffices reads the office directory from path, or the built-in list when path is empty.
func LoadOffices(path string) ([]catalog.Office, error) {
	raw := defaultOffices
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read offices: %w", err)
		}
		raw = b
	}
	return ParseOffices(raw)
}

func ParseOffices(raw []byte) ([]catalog.Office, error) {
	var f officesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse offices: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Offices))
	for _, o := range f.Offices {
		if o.ID == "" || o.Name == "" {
			return nil, fmt.Errorf("config: office entries need id and name")
		}
		if _, dup := seen[o.ID]; dup {
			return nil, fmt.Errorf("config: duplicate office id %q", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return f.Offices, nil
}

// SeedProduct is one product entry of a seed file.
type SeedProduct struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	OfficeID    string `yaml:"office_id"`
	ImageURL    string `yaml:"image_url"`
	Stock       int    `yaml:"stock"`
}

type seedFile struct {
	Products []SeedProduct `yaml:"products"`
}

// LoadSeed reads products to preload into the catalog. An empty path yields none.
func LoadSeed(path string) ([]*catalog.Product, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read seed: %w", err)
	}
	return ParseSeed(b)
}

func ParseSeed(raw []byte) ([]*catalog.Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse seed: %w", err)
	}
	out := make([]*catalog.Product, 0, len(f.Products))
	for _, sp := range f.Products {
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, fmt.Errorf("config: seed product %q price: %w", sp.ID, err)
		}
		category, err := catalog.ParseCategory(sp.Category)
		if err != nil {
			return nil, fmt.Errorf("config: seed product %q: %w", sp.ID, err)
		}
		p, err := catalog.NewProduct(sp.ID, sp.Name, sp.Description, price, category, sp.OfficeID, sp.Stock)
		if err != nil {
			return nil, fmt.Errorf("config: seed product %q: %w", sp.ID, err)
		}
		p.ImageURL = sp.ImageURL
		out = append(out, p)
	}
	return out, nil
}
