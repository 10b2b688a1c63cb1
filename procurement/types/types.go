package types

import "time"

// Item is an understocked catalog item that must be procured in one run
type Item struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Quantity int     `json:"quantity" yaml:"quantity"`
	UnitCost float64 `json:"unit_cost" yaml:"unit_cost"`
}

// VendorStatusActive marks a vendor that is still trading
const VendorStatusActive = "Active"

// Vendor is a supplier that may be called for quotes
type Vendor struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Contact      string   `json:"contact" yaml:"contact"`
	Email        string   `json:"email,omitempty" yaml:"email"`
	Rating       float64  `json:"rating" yaml:"rating"`
	LeadTimeDays int      `json:"lead_time_days" yaml:"lead_time_days"`
	Service      bool     `json:"service" yaml:"service"`
	Authorized   bool     `json:"authorized" yaml:"authorized"`
	Status       string   `json:"status" yaml:"status"`
	Supplies     []string `json:"supplies" yaml:"supplies"`
}

// Contactable reports whether the vendor may be called at all. Only vendors
// explicitly marked Active qualify; a missing status is not Active.
func (v Vendor) Contactable() bool {
	return v.Authorized && v.Status == VendorStatusActive
}

// Catalog is the read-only snapshot loaded once per run
type Catalog struct {
	Items   []Item   `json:"items"`
	Vendors []Vendor `json:"vendors"`
}

// Candidate is a vendor eligible to quote on a subset of the required items
type Candidate struct {
	VendorID string   `json:"vendor_id"`
	ItemIDs  []string `json:"item_ids"`
}

// SessionState is the lifecycle state of a quote session
type SessionState string

const (
	SessionPending        SessionState = "PENDING"
	SessionSettled        SessionState = "SETTLED"
	SessionExpired        SessionState = "EXPIRED"
	SessionFailedDispatch SessionState = "FAILED_DISPATCH"
)

// Terminal reports whether the session no longer accepts events
func (s SessionState) Terminal() bool {
	return s == SessionSettled || s == SessionExpired || s == SessionFailedDispatch
}

// QuoteSession correlates one outbound quote call to one vendor and its items
type QuoteSession struct {
	ID            string       `json:"id"`
	VendorID      string       `json:"vendor_id"`
	ItemIDs       []string     `json:"item_ids"`
	State         SessionState `json:"state"`
	CreatedAt     time.Time    `json:"created_at"`
	Deadline      time.Time    `json:"deadline"`
	ClosedAt      time.Time    `json:"closed_at,omitempty"`
	FailureReason string       `json:"failure_reason,omitempty"`
}

// QuoteRecord is one accepted (vendor, item, price) quote
type QuoteRecord struct {
	Seq        int       `json:"seq"`
	SessionID  string    `json:"session_id"`
	VendorID   string    `json:"vendor_id"`
	ItemID     string    `json:"item_id"`
	UnitPrice  float64   `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	ReceivedAt time.Time `json:"received_at"`
}

// QuotePair is a single item price carried by a quote event
type QuotePair struct {
	ItemID   string   `json:"item_id"`
	Price    *float64 `json:"price,omitempty"`
	Quantity int      `json:"quantity,omitempty"`
}

// QuoteEvent is the payload of the quote-event signal. The single-item
// ItemID/Price shorthand and the Quotes list may be combined.
type QuoteEvent struct {
	SessionID string      `json:"session_id"`
	ItemID    string      `json:"item_id,omitempty"`
	Price     *float64    `json:"price,omitempty"`
	Quantity  int         `json:"quantity,omitempty"`
	Quotes    []QuotePair `json:"quotes,omitempty"`
	Complete  bool        `json:"complete,omitempty"`
}

// Pairs flattens the shorthand fields and the Quotes list
func (e QuoteEvent) Pairs() []QuotePair {
	pairs := make([]QuotePair, 0, len(e.Quotes)+1)
	if e.ItemID != "" || e.Price != nil {
		pairs = append(pairs, QuotePair{ItemID: e.ItemID, Price: e.Price, Quantity: e.Quantity})
	}
	return append(pairs, e.Quotes...)
}

// ConfirmationEvent is the payload of the confirmation-event signal
type ConfirmationEvent struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
	Note      string `json:"note,omitempty"`
}

// OrderLine is one priced line of a vendor's quote or final order
type OrderLine struct {
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// VendorQuote is the scored view of one vendor's collected quotes
type VendorQuote struct {
	VendorID         string      `json:"vendor_id"`
	VendorName       string      `json:"vendor_name"`
	TotalCost        float64     `json:"total_cost"`
	Coverage         float64     `json:"coverage"`
	Score            float64     `json:"score"`
	Eligible         bool        `json:"eligible"`
	Lines            []OrderLine `json:"lines"`
	Gaps             []string    `json:"gaps,omitempty"`
	SessionCreatedAt time.Time   `json:"session_created_at"`
}

// SelectionResult is the immutable outcome of scoring
type SelectionResult struct {
	WinnerID  string        `json:"winner_id"`
	TotalCost float64       `json:"total_cost"`
	Lines     []OrderLine   `json:"lines"`
	RunnerUps []string      `json:"runner_ups"`
	Ranking   []VendorQuote `json:"ranking"`
}

// Quote returns the ranked entry for a vendor
func (r SelectionResult) Quote(vendorID string) (VendorQuote, bool) {
	for _, q := range r.Ranking {
		if q.VendorID == vendorID {
			return q, true
		}
	}
	return VendorQuote{}, false
}

// ConfirmationState is the state of one confirmation call attempt
type ConfirmationState string

const (
	ConfirmationRequested      ConfirmationState = "REQUESTED"
	ConfirmationConfirmed      ConfirmationState = "CONFIRMED"
	ConfirmationDeclined       ConfirmationState = "DECLINED"
	ConfirmationDispatchFailed ConfirmationState = "DISPATCH_FAILED"
)

// ConfirmationAttempt records one confirmation call attempt
type ConfirmationAttempt struct {
	VendorID  string            `json:"vendor_id"`
	SessionID string            `json:"session_id,omitempty"`
	Attempt   int               `json:"attempt"`
	State     ConfirmationState `json:"state"`
	Reason    string            `json:"reason,omitempty"`
	At        time.Time         `json:"at"`
}

// Outcome is the terminal outcome of a procurement run
type Outcome string

const (
	OutcomeConfirmed         Outcome = "CONFIRMED"
	OutcomeNoEligibleVendors Outcome = "NO_ELIGIBLE_VENDORS"
	OutcomeNoQuotesCollected Outcome = "NO_QUOTES_COLLECTED"
	OutcomeFailed            Outcome = "PROCUREMENT_FAILED"
	OutcomeNothingToProcure  Outcome = "NOTHING_TO_PROCURE"
)

// ProcurementRecord is the audit artifact of one run
type ProcurementRecord struct {
	RecordID              string                `json:"record_id"`
	OrderNumber           string                `json:"order_number,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	RequestedItems        []string              `json:"requested_items"`
	SelectedVendorID      string                `json:"selected_vendor_id,omitempty"`
	SelectedVendorName    string                `json:"selected_vendor_name,omitempty"`
	TotalCost             float64               `json:"total_cost"`
	TotalItems            int                   `json:"total_items"`
	Outcome               Outcome               `json:"outcome"`
	Reason                string                `json:"reason,omitempty"`
	RequiresApproval      bool                  `json:"requires_approval"`
	ConfirmationSessionID string                `json:"confirmation_session_id,omitempty"`
	Lines                 []OrderLine           `json:"lines,omitempty"`
	Attempts              []ConfirmationAttempt `json:"attempts,omitempty"`
}

// ProcurementRequest is the input of ProcurementWorkflow
type ProcurementRequest struct {
	// ItemIDs restricts the run to these understocked items; empty means all of them
	ItemIDs []string  `json:"item_ids,omitempty"`
	Config  RunConfig `json:"config"`
}

// ProcurementResult is everything a run produced, for reporting and audit
type ProcurementResult struct {
	Record    ProcurementRecord `json:"record"`
	Selection *SelectionResult  `json:"selection,omitempty"`
	Sessions  []QuoteSession    `json:"sessions"`
	Quotes    []QuoteRecord     `json:"quotes"`
}

// ProcurementStatus is returned by the get-status query
type ProcurementStatus struct {
	Stage     string `json:"stage"`
	Pending   int    `json:"pending"`
	Settled   int    `json:"settled"`
	Expired   int    `json:"expired"`
	Failed    int    `json:"failed"`
	Quotes    int    `json:"quotes"`
	Orphaned  int    `json:"orphaned"`
	Late      int    `json:"late"`
	Malformed int    `json:"malformed"`
	WinnerID  string `json:"winner_id,omitempty"`
	VendorID  string `json:"confirming_vendor_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// SessionSnapshot is returned by the get-sessions query
type SessionSnapshot struct {
	Sessions []QuoteSession `json:"sessions"`
	Quotes   []QuoteRecord  `json:"quotes"`
}

// CallItem is an item a vendor is asked to quote
type CallItem struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// QuoteCallRequest is the input of the OpenQuoteSession activity
type QuoteCallRequest struct {
	VendorID   string     `json:"vendor_id"`
	VendorName string     `json:"vendor_name"`
	Contact    string     `json:"contact"`
	Items      []CallItem `json:"items"`
}

// ConfirmationCallRequest is the input of the OpenConfirmationSession activity
type ConfirmationCallRequest struct {
	VendorID    string      `json:"vendor_id"`
	VendorName  string      `json:"vendor_name"`
	Contact     string      `json:"contact"`
	OrderNumber string      `json:"order_number"`
	Lines       []OrderLine `json:"lines"`
	TotalCost   float64     `json:"total_cost"`
}
