package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"go-temporal-procurement/procurement/catalog"
	"go-temporal-procurement/procurement/types"
)

// CatalogActivities reads the catalog snapshot a run works from
type CatalogActivities struct {
	Source catalog.Source
}

// LoadCatalog returns the understocked items and all vendors
func (a *CatalogActivities) LoadCatalog(ctx context.Context) (types.Catalog, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Loading catalog")

	cat, err := a.Source.Load(ctx)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}

	logger.Info("Catalog loaded", "items", len(cat.Items), "vendors", len(cat.Vendors))
	return cat, nil
}
