package workflows

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-temporal-procurement/procurement/callback"
	"go-temporal-procurement/procurement/sourcing"
	"go-temporal-procurement/procurement/types"
)

const (
	StatusQuery   = "get-status"
	SessionsQuery = "get-sessions"
)

var nonRetryableErrorTypes = []string{"InvalidContactError"}

// procurementRun is the state owned by one workflow execution. Only the
// workflow coroutine touches it, so none of it needs locking.
type procurementRun struct {
	cfg    types.RunConfig
	logger log.Logger

	items   []types.Item
	vendors map[string]types.Vendor
	book    *sourcing.Book

	stage            string
	winnerID         string
	confirmingVendor string
	lastError        string
	attempts         []types.ConfirmationAttempt
}

// ProcurementWorkflow runs one procurement cycle:
// - Catalog snapshot and candidate resolution
// - Parallel quote dispatch and signal-driven collection
// - Deterministic scoring and selection
// - Sequential confirmation with escalation to runner-ups
// - Audit of the resulting ProcurementRecord
//
// Business failures (no vendors, no quotes, escalation exhausted) end the run
// normally with the matching Outcome; only catalog errors and cancellation
// fail the workflow.
func ProcurementWorkflow(ctx workflow.Context, req types.ProcurementRequest) (*types.ProcurementResult, error) {
	r := &procurementRun{
		cfg:    req.Config.Resolve(),
		logger: workflow.GetLogger(ctx),
		stage:  "start",
	}

	err := workflow.SetQueryHandler(ctx, StatusQuery, func() (types.ProcurementStatus, error) {
		return r.status(), nil
	})
	if err != nil {
		return nil, err
	}

	err = workflow.SetQueryHandler(ctx, SessionsQuery, func() (types.SessionSnapshot, error) {
		return r.snapshot(), nil
	})
	if err != nil {
		return nil, err
	}

	quoteCh := workflow.GetSignalChannel(ctx, callback.QuoteEventSignal)
	confirmCh := workflow.GetSignalChannel(ctx, callback.ConfirmationEventSignal)

	// Step 1: Catalog snapshot
	r.stage = "loading-catalog"
	var cat types.Catalog
	err = workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, defaultActivityOptions()), "LoadCatalog").Get(ctx, &cat)
	if err != nil {
		r.lastError = fmt.Sprintf("catalog load failed: %v", err)
		r.logger.Error("Catalog load failed", "error", err)
		return nil, err
	}

	r.items = requiredItems(cat.Items, req.ItemIDs)
	r.vendors = make(map[string]types.Vendor, len(cat.Vendors))
	for _, v := range cat.Vendors {
		r.vendors[v.ID] = v
	}
	r.book = sourcing.NewBook(r.items)

	var recordID string
	encoded := workflow.SideEffect(ctx, func(ctx workflow.Context) interface{} {
		return uuid.NewString()
	})
	if err := encoded.Get(&recordID); err != nil {
		return nil, err
	}
	record := types.ProcurementRecord{
		RecordID:       recordID,
		CreatedAt:      workflow.Now(ctx),
		RequestedItems: itemIDs(r.items),
	}

	if len(r.items) == 0 {
		r.logger.Info("Nothing to procure")
		return r.finish(ctx, record, nil, types.OutcomeNothingToProcure, "no understocked items requested")
	}

	// Step 2: Candidate resolution
	r.stage = "resolving"
	candidates := sourcing.ResolveCandidates(r.items, cat.Vendors)
	if len(candidates) == 0 {
		r.logger.Warn("No eligible vendors", "items", record.RequestedItems)
		return r.finish(ctx, record, nil, types.OutcomeNoEligibleVendors, types.ErrNoEligibleVendors.Error())
	}

	// Step 3: Dispatch and collection
	r.stage = "collecting"
	if err := r.collect(ctx, candidates, quoteCh); err != nil {
		r.stage = "cancelled"
		r.lastError = err.Error()
		return nil, err
	}

	// Step 4: Selection
	r.stage = "selecting"
	selection, err := sourcing.Select(r.items, cat.Vendors, r.book.Sessions(), r.book.Records(), r.cfg)
	if errors.Is(err, types.ErrNoQuotesCollected) {
		r.logger.Warn("No quotes collected", "sessions", len(r.book.Sessions()))
		return r.finish(ctx, record, nil, types.OutcomeNoQuotesCollected, err.Error())
	}
	if err != nil {
		return nil, err
	}
	r.winnerID = selection.WinnerID
	r.logger.Info("Vendor selected", "winner", selection.WinnerID, "total", selection.TotalCost, "runnerUps", selection.RunnerUps)

	// Step 5: Confirmation with escalation
	r.stage = "confirming"
	confirmed, err := r.confirm(ctx, selection, confirmCh)
	var exhausted *types.EscalationExhaustedError
	if errors.As(err, &exhausted) {
		r.logger.Error("Procurement failed", "error", err)
		return r.finish(ctx, record, &selection, types.OutcomeFailed, err.Error())
	}
	if err != nil {
		r.stage = "cancelled"
		r.lastError = err.Error()
		return nil, err
	}

	vendor := r.vendors[confirmed.quote.VendorID]
	record.SelectedVendorID = vendor.ID
	record.SelectedVendorName = vendor.Name
	record.OrderNumber = confirmed.orderNumber
	record.ConfirmationSessionID = confirmed.sessionID
	record.TotalCost = confirmed.quote.TotalCost
	record.Lines = confirmed.quote.Lines
	for _, line := range record.Lines {
		record.TotalItems += line.Quantity
	}
	record.RequiresApproval = record.TotalCost > r.cfg.AutoApproveThreshold
	if vendor.ID != selection.WinnerID {
		record.Reason = fmt.Sprintf("escalated from %s", selection.WinnerID)
	}

	return r.finish(ctx, record, &selection, types.OutcomeConfirmed, record.Reason)
}

// finish stamps the outcome, writes the audit record and builds the result
func (r *procurementRun) finish(ctx workflow.Context, record types.ProcurementRecord, selection *types.SelectionResult, outcome types.Outcome, reason string) (*types.ProcurementResult, error) {
	record.Outcome = outcome
	record.Reason = reason
	record.Attempts = r.attempts

	result := &types.ProcurementResult{
		Record:    record,
		Selection: selection,
		Sessions:  r.book.Sessions(),
		Quotes:    r.book.Records(),
	}

	r.stage = "recording"
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, defaultActivityOptions()), "RecordProcurement", *result).Get(ctx, nil)
	if err != nil {
		// The result itself is still returned; the history holds the record
		r.lastError = fmt.Sprintf("audit failed: %v", err)
		r.logger.Error("Audit record failed", "record", record.RecordID, "error", err)
	}

	r.stage = "completed"
	r.logger.Info("Procurement completed", "record", record.RecordID, "outcome", outcome, "vendor", record.SelectedVendorID)
	return result, nil
}

func (r *procurementRun) status() types.ProcurementStatus {
	var status types.ProcurementStatus
	if r.book != nil {
		status = r.book.Status(r.stage)
	} else {
		status.Stage = r.stage
	}
	status.WinnerID = r.winnerID
	status.VendorID = r.confirmingVendor
	status.LastError = r.lastError
	return status
}

func (r *procurementRun) snapshot() types.SessionSnapshot {
	if r.book == nil {
		return types.SessionSnapshot{}
	}
	return types.SessionSnapshot{Sessions: r.book.Sessions(), Quotes: r.book.Records()}
}

// hangUp terminates call sessions and waits for every attempt; failures are only logged
func (r *procurementRun) hangUp(ctx workflow.Context, sessionIDs []string) {
	if len(sessionIDs) == 0 {
		return
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: r.cfg.HangUpTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 2,
		},
	})

	futures := make([]workflow.Future, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		futures = append(futures, workflow.ExecuteActivity(ctx, "HangUpSession", id))
	}
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			r.logger.Warn("Hang up failed", "session", sessionIDs[i], "error", err)
		}
	}
}

func defaultActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        1 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: nonRetryableErrorTypes,
		},
	}
}

// requiredItems keeps catalog order; an empty filter selects every item
func requiredItems(items []types.Item, ids []string) []types.Item {
	if len(ids) == 0 {
		return items
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []types.Item
	for _, item := range items {
		if wanted[item.ID] {
			out = append(out, item)
		}
	}
	return out
}

func itemIDs(items []types.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func orderNumber(at time.Time, vendorID string) string {
	return fmt.Sprintf("PO-%s-%s", at.UTC().Format("20060102"), vendorID)
}
