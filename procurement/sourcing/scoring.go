package sourcing

import (
	"math"
	"sort"
	"time"

	"go-temporal-procurement/procurement/types"
)

const costEpsilon = 1e-9

// Select scores every vendor that produced at least one quote and ranks them.
// It must only be called once every session is terminal. The ranking puts
// coverage-eligible vendors first, cheapest first, then higher score, then the
// earliest session; the head of the ranking wins and the rest are the runner-ups.
func Select(items []types.Item, vendors []types.Vendor, sessions []types.QuoteSession, records []types.QuoteRecord, cfg types.RunConfig) (types.SelectionResult, error) {
	vendorByID := make(map[string]types.Vendor, len(vendors))
	for _, v := range vendors {
		vendorByID[v.ID] = v
	}
	createdAt := make(map[string]time.Time, len(sessions))
	for _, s := range sessions {
		if s.State != types.SessionFailedDispatch {
			createdAt[s.VendorID] = s.CreatedAt
		}
	}

	// latest record per vendor and item
	latest := make(map[string]map[string]types.QuoteRecord)
	for _, r := range records {
		if latest[r.VendorID] == nil {
			latest[r.VendorID] = make(map[string]types.QuoteRecord)
		}
		if prev, ok := latest[r.VendorID][r.ItemID]; !ok || r.Seq > prev.Seq {
			latest[r.VendorID][r.ItemID] = r
		}
	}
	if len(latest) == 0 {
		return types.SelectionResult{}, types.ErrNoQuotesCollected
	}

	vendorIDs := make([]string, 0, len(latest))
	for id := range latest {
		vendorIDs = append(vendorIDs, id)
	}
	sort.Strings(vendorIDs)

	quotes := make([]types.VendorQuote, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		quotes = append(quotes, buildQuote(items, vendorByID[id], id, latest[id], createdAt[id]))
	}

	scoreQuotes(quotes, vendorByID, cfg.Weights)
	markEligible(quotes, cfg.MinCoverage)

	sort.SliceStable(quotes, func(i, j int) bool {
		return ranksBefore(quotes[i], quotes[j])
	})

	winner := quotes[0]
	result := types.SelectionResult{
		WinnerID:  winner.VendorID,
		TotalCost: winner.TotalCost,
		Lines:     winner.Lines,
		Ranking:   quotes,
	}
	for _, q := range quotes[1:] {
		result.RunnerUps = append(result.RunnerUps, q.VendorID)
	}
	return result, nil
}

func buildQuote(items []types.Item, vendor types.Vendor, vendorID string, quoted map[string]types.QuoteRecord, createdAt time.Time) types.VendorQuote {
	q := types.VendorQuote{
		VendorID:         vendorID,
		VendorName:       vendor.Name,
		SessionCreatedAt: createdAt,
	}
	for _, item := range items {
		r, ok := quoted[item.ID]
		if !ok {
			q.Gaps = append(q.Gaps, item.ID)
			continue
		}
		line := types.OrderLine{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Quantity:  item.Quantity,
			UnitPrice: r.UnitPrice,
			LineTotal: r.UnitPrice * float64(item.Quantity),
		}
		q.Lines = append(q.Lines, line)
		q.TotalCost += line.LineTotal
	}
	if len(items) > 0 {
		q.Coverage = float64(len(q.Lines)) / float64(len(items))
	}
	return q
}

// scoreQuotes fills Score using price and delivery normalized against the
// pool, so the cheapest total and the fastest lead time both score 1.0.
func scoreQuotes(quotes []types.VendorQuote, vendors map[string]types.Vendor, w types.ScoreWeights) {
	minCost := math.Inf(1)
	minLead := math.MaxInt
	for _, q := range quotes {
		minCost = math.Min(minCost, q.TotalCost)
		minLead = min(minLead, max(vendors[q.VendorID].LeadTimeDays, 0))
	}

	for i := range quotes {
		v := vendors[quotes[i].VendorID]

		priceNorm := 1.0
		if quotes[i].TotalCost > 0 {
			priceNorm = minCost / quotes[i].TotalCost
		}
		deliveryNorm := 1.0
		if v.LeadTimeDays > 0 {
			deliveryNorm = float64(minLead) / float64(v.LeadTimeDays)
		}
		rating := math.Max(0, math.Min(v.Rating, 5))
		service := 0.0
		if v.Service {
			service = 1.0
		}

		quotes[i].Score = w.Price*priceNorm +
			w.Rating*(rating/5) +
			w.Delivery*deliveryNorm +
			w.Service*service
	}
}

// markEligible applies the coverage floor, falling back to the best coverage
// in the pool when nobody reaches it.
func markEligible(quotes []types.VendorQuote, minCoverage float64) {
	best := 0.0
	found := false
	for i := range quotes {
		quotes[i].Eligible = quotes[i].Coverage+costEpsilon >= minCoverage
		found = found || quotes[i].Eligible
		best = math.Max(best, quotes[i].Coverage)
	}
	if found {
		return
	}
	for i := range quotes {
		quotes[i].Eligible = math.Abs(quotes[i].Coverage-best) < costEpsilon
	}
}

func ranksBefore(a, b types.VendorQuote) bool {
	if a.Eligible != b.Eligible {
		return a.Eligible
	}
	if !a.Eligible && math.Abs(a.Coverage-b.Coverage) >= costEpsilon {
		return a.Coverage > b.Coverage
	}
	if math.Abs(a.TotalCost-b.TotalCost) >= costEpsilon {
		return a.TotalCost < b.TotalCost
	}
	if math.Abs(a.Score-b.Score) >= costEpsilon {
		return a.Score > b.Score
	}
	if !a.SessionCreatedAt.Equal(b.SessionCreatedAt) {
		return a.SessionCreatedAt.Before(b.SessionCreatedAt)
	}
	return a.VendorID < b.VendorID
}
