// Package catalog is the read-only Catalog Source: vendors and the inventory
// they are asked to restock, loaded once per procurement run.
package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go-temporal-procurement/procurement/types"
)

// Source loads the catalog snapshot for one run
type Source interface {
	Load(ctx context.Context) (types.Catalog, error)
}

// InventoryEntry is one stocked item as kept in the catalog file
type InventoryEntry struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Unit            string  `yaml:"unit"`
	CurrentStock    int     `yaml:"current_stock"`
	MinThreshold    int     `yaml:"min_threshold"`
	ReorderQuantity int     `yaml:"reorder_quantity"`
	UnitCost        float64 `yaml:"unit_cost"`
}

// NeedsReorder reports whether stock fell to or below the threshold
func (e InventoryEntry) NeedsReorder() bool {
	return e.CurrentStock <= e.MinThreshold
}

// File is the on-disk catalog layout
type File struct {
	Inventory []InventoryEntry `yaml:"inventory"`
	Vendors   []types.Vendor   `yaml:"vendors"`
}

// FileSource reads a YAML catalog file on every Load
type FileSource struct {
	Path string
}

// Load parses the file and returns the understocked items plus every vendor
func (s FileSource) Load(ctx context.Context) (types.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return types.Catalog{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (types.Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return types.Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return types.Catalog{}, err
	}
	return types.Catalog{Items: f.Understocked(), Vendors: f.Vendors}, nil
}

// Validate rejects duplicate ids and out-of-range vendor fields
func (f File) Validate() error {
	items := make(map[string]bool, len(f.Inventory))
	for _, e := range f.Inventory {
		if e.ID == "" {
			return fmt.Errorf("inventory entry %q has no id", e.Name)
		}
		if items[e.ID] {
			return fmt.Errorf("duplicate inventory id %s", e.ID)
		}
		items[e.ID] = true
	}

	vendors := make(map[string]bool, len(f.Vendors))
	for _, v := range f.Vendors {
		if v.ID == "" {
			return fmt.Errorf("vendor %q has no id", v.Name)
		}
		if vendors[v.ID] {
			return fmt.Errorf("duplicate vendor id %s", v.ID)
		}
		if v.Rating < 0 || v.Rating > 5 {
			return fmt.Errorf("vendor %s rating %.2f outside 0-5", v.ID, v.Rating)
		}
		if v.LeadTimeDays < 0 {
			return fmt.Errorf("vendor %s has negative lead time", v.ID)
		}
		vendors[v.ID] = true
	}
	return nil
}

// Understocked returns the items to procure, sized by their reorder quantity
func (f File) Understocked() []types.Item {
	var items []types.Item
	for _, e := range f.Inventory {
		if !e.NeedsReorder() || e.ReorderQuantity <= 0 {
			continue
		}
		items = append(items, types.Item{
			ID:       e.ID,
			Name:     e.Name,
			Quantity: e.ReorderQuantity,
			UnitCost: e.UnitCost,
		})
	}
	return items
}

// Static serves a fixed catalog
type Static types.Catalog

// Load returns the fixed catalog
func (s Static) Load(ctx context.Context) (types.Catalog, error) {
	return types.Catalog(s), ctx.Err()
}
