// Package sourcing holds the deterministic core of a procurement run: which
// vendors to call, how their asynchronous quotes are reconciled, and which
// vendor wins. Nothing here blocks or reads the clock, so the workflow can
// call it directly.
package sourcing

import (
	"sort"

	"go-temporal-procurement/procurement/types"
)

// ResolveCandidates maps every contactable vendor to the required items it
// supplies. Vendors supplying none of them are left out. The result is sorted
// by vendor id and may be empty.
func ResolveCandidates(items []types.Item, vendors []types.Vendor) []types.Candidate {
	required := make(map[string]bool, len(items))
	for _, item := range items {
		required[item.ID] = true
	}

	var candidates []types.Candidate
	for _, vendor := range vendors {
		if !vendor.Contactable() {
			continue
		}
		supplies := make(map[string]bool, len(vendor.Supplies))
		for _, id := range vendor.Supplies {
			if required[id] {
				supplies[id] = true
			}
		}
		if len(supplies) == 0 {
			continue
		}
		// keep the run's item order
		itemIDs := make([]string, 0, len(supplies))
		for _, item := range items {
			if supplies[item.ID] {
				itemIDs = append(itemIDs, item.ID)
				delete(supplies, item.ID)
			}
		}
		candidates = append(candidates, types.Candidate{VendorID: vendor.ID, ItemIDs: itemIDs})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].VendorID < candidates[j].VendorID
	})
	return candidates
}
