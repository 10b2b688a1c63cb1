package sourcing

import (
	"fmt"
	"math"
	"time"

	"go-temporal-procurement/procurement/types"
)

// FailedDispatchPrefix prefixes the synthetic id of a session that never reached the provider
const FailedDispatchPrefix = "dispatch-failed-"

// Stats counts discarded input
type Stats struct {
	Orphaned  int `json:"orphaned"`
	Late      int `json:"late"`
	Malformed int `json:"malformed"`
}

// ApplyResult describes what one quote event changed
type ApplyResult struct {
	Accepted []types.QuoteRecord
	Dropped  []*types.MalformedQuoteError
	Settled  bool
}

type sessionEntry struct {
	session types.QuoteSession
	items   map[string]bool
	quoted  map[string]bool
}

// Book is the reconciliation state of one collection phase. It is owned by a
// single writer (the workflow coroutine), which serializes every session
// transition; it takes no locks.
type Book struct {
	required map[string]types.Item
	sessions map[string]*sessionEntry
	order    []string
	byVendor map[string]string
	records  []types.QuoteRecord
	stats    Stats
}

// NewBook creates an empty book for the run's required items
func NewBook(required []types.Item) *Book {
	b := &Book{
		required: make(map[string]types.Item, len(required)),
		sessions: make(map[string]*sessionEntry),
		byVendor: make(map[string]string),
	}
	for _, item := range required {
		b.required[item.ID] = item
	}
	return b
}

// Open registers a dispatched session in PENDING state with deadline createdAt+window
func (b *Book) Open(id, vendorID string, itemIDs []string, createdAt time.Time, window time.Duration) (types.QuoteSession, error) {
	if id == "" {
		return types.QuoteSession{}, fmt.Errorf("session for vendor %s has empty id", vendorID)
	}
	session := types.QuoteSession{
		ID:        id,
		VendorID:  vendorID,
		State:     types.SessionPending,
		CreatedAt: createdAt,
		Deadline:  createdAt.Add(window),
	}
	if err := b.add(session, itemIDs); err != nil {
		return types.QuoteSession{}, err
	}
	opened, _ := b.Session(id)
	return opened, nil
}

// FailDispatch records a vendor whose session could not be opened
func (b *Book) FailDispatch(vendorID string, itemIDs []string, at time.Time, reason string) (types.QuoteSession, error) {
	id := FailedDispatchPrefix + vendorID
	session := types.QuoteSession{
		ID:            id,
		VendorID:      vendorID,
		State:         types.SessionFailedDispatch,
		CreatedAt:     at,
		Deadline:      at,
		ClosedAt:      at,
		FailureReason: reason,
	}
	if err := b.add(session, itemIDs); err != nil {
		return types.QuoteSession{}, err
	}
	opened, _ := b.Session(id)
	return opened, nil
}

func (b *Book) add(session types.QuoteSession, itemIDs []string) error {
	if _, exists := b.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already registered", session.ID)
	}
	if existing, exists := b.byVendor[session.VendorID]; exists {
		return fmt.Errorf("vendor %s already has session %s", session.VendorID, existing)
	}
	if len(itemIDs) == 0 {
		return fmt.Errorf("session %s has no items", session.ID)
	}
	items := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := b.required[id]; !ok {
			return fmt.Errorf("session %s references item %s outside the run", session.ID, id)
		}
		items[id] = true
	}
	session.ItemIDs = append([]string(nil), itemIDs...)

	b.sessions[session.ID] = &sessionEntry{
		session: session,
		items:   items,
		quoted:  make(map[string]bool, len(items)),
	}
	b.order = append(b.order, session.ID)
	b.byVendor[session.VendorID] = session.ID
	return nil
}

// Apply reconciles one quote event. Orphan and late events return an error
// and change nothing but the discard counters; malformed pairs are dropped
// one by one without rejecting the rest of the event.
func (b *Book) Apply(event types.QuoteEvent, now time.Time) (ApplyResult, error) {
	entry, ok := b.sessions[event.SessionID]
	if !ok {
		b.stats.Orphaned++
		return ApplyResult{}, &types.OrphanEventError{SessionID: event.SessionID}
	}
	if entry.session.State == types.SessionPending && !now.Before(entry.session.Deadline) {
		b.close(entry, types.SessionExpired, now)
	}
	if entry.session.State.Terminal() {
		b.stats.Late++
		return ApplyResult{}, &types.LateEventError{SessionID: event.SessionID, State: entry.session.State}
	}

	var result ApplyResult
	for _, pair := range event.Pairs() {
		record, dropErr := b.validate(entry, pair)
		if dropErr != nil {
			b.stats.Malformed++
			result.Dropped = append(result.Dropped, dropErr)
			continue
		}
		record.Seq = len(b.records) + 1
		record.ReceivedAt = now
		b.records = append(b.records, record)
		entry.quoted[record.ItemID] = true
		result.Accepted = append(result.Accepted, record)
	}

	if event.Complete || len(entry.quoted) == len(entry.items) {
		b.close(entry, types.SessionSettled, now)
		result.Settled = true
	}
	return result, nil
}

func (b *Book) validate(entry *sessionEntry, pair types.QuotePair) (types.QuoteRecord, *types.MalformedQuoteError) {
	drop := func(reason string) *types.MalformedQuoteError {
		return &types.MalformedQuoteError{SessionID: entry.session.ID, ItemID: pair.ItemID, Reason: reason}
	}
	switch {
	case pair.ItemID == "":
		return types.QuoteRecord{}, drop("missing item")
	case !entry.items[pair.ItemID]:
		return types.QuoteRecord{}, drop("item not requested in this session")
	case pair.Price == nil:
		return types.QuoteRecord{}, drop("missing price")
	case math.IsNaN(*pair.Price) || math.IsInf(*pair.Price, 0):
		return types.QuoteRecord{}, drop("price is not finite")
	case *pair.Price < 0:
		return types.QuoteRecord{}, drop("negative price")
	case pair.Quantity < 0:
		return types.QuoteRecord{}, drop("negative quantity")
	}

	quantity := pair.Quantity
	if quantity == 0 {
		quantity = b.required[pair.ItemID].Quantity
	}
	return types.QuoteRecord{
		SessionID: entry.session.ID,
		VendorID:  entry.session.VendorID,
		ItemID:    pair.ItemID,
		UnitPrice: *pair.Price,
		Quantity:  quantity,
	}, nil
}

func (b *Book) close(entry *sessionEntry, state types.SessionState, at time.Time) {
	entry.session.State = state
	entry.session.ClosedAt = at
}

// Expire moves a PENDING session to EXPIRED. It reports whether anything changed.
func (b *Book) Expire(id string, now time.Time) bool {
	entry, ok := b.sessions[id]
	if !ok || entry.session.State != types.SessionPending {
		return false
	}
	b.close(entry, types.SessionExpired, now)
	return true
}

// ExpireAll expires every PENDING session and returns their ids in open order
func (b *Book) ExpireAll(now time.Time) []string {
	var expired []string
	for _, id := range b.order {
		if b.Expire(id, now) {
			expired = append(expired, id)
		}
	}
	return expired
}

// AllTerminal reports whether no session is still PENDING
func (b *Book) AllTerminal() bool {
	for _, entry := range b.sessions {
		if !entry.session.State.Terminal() {
			return false
		}
	}
	return true
}

// Session returns a copy of one session
func (b *Book) Session(id string) (types.QuoteSession, bool) {
	entry, ok := b.sessions[id]
	if !ok {
		return types.QuoteSession{}, false
	}
	return copySession(entry.session), true
}

// Sessions returns copies of all sessions in the order they were registered
func (b *Book) Sessions() []types.QuoteSession {
	sessions := make([]types.QuoteSession, 0, len(b.order))
	for _, id := range b.order {
		sessions = append(sessions, copySession(b.sessions[id].session))
	}
	return sessions
}

// Pending returns copies of the sessions still accepting events
func (b *Book) Pending() []types.QuoteSession {
	var pending []types.QuoteSession
	for _, id := range b.order {
		if entry := b.sessions[id]; entry.session.State == types.SessionPending {
			pending = append(pending, copySession(entry.session))
		}
	}
	return pending
}

// Records returns a copy of every accepted quote in arrival order
func (b *Book) Records() []types.QuoteRecord {
	return append([]types.QuoteRecord(nil), b.records...)
}

// Stats returns the discard counters
func (b *Book) Stats() Stats {
	return b.stats
}

// Status summarizes the book for the get-status query
func (b *Book) Status(stage string) types.ProcurementStatus {
	status := types.ProcurementStatus{
		Stage:     stage,
		Quotes:    len(b.records),
		Orphaned:  b.stats.Orphaned,
		Late:      b.stats.Late,
		Malformed: b.stats.Malformed,
	}
	for _, entry := range b.sessions {
		switch entry.session.State {
		case types.SessionPending:
			status.Pending++
		case types.SessionSettled:
			status.Settled++
		case types.SessionExpired:
			status.Expired++
		case types.SessionFailedDispatch:
			status.Failed++
		}
	}
	return status
}

func copySession(s types.QuoteSession) types.QuoteSession {
	s.ItemIDs = append([]string(nil), s.ItemIDs...)
	return s
}
