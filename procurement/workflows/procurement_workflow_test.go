package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"go-temporal-procurement/procurement/activities"
	"go-temporal-procurement/procurement/callback"
	"go-temporal-procurement/procurement/types"
)

type ProcurementWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment

	mu           sync.Mutex
	quoteCalls   map[string]int
	confirmCalls map[string]int
	hungUp       []string
	audited      []types.ProcurementResult
}

func TestProcurementWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(ProcurementWorkflowTestSuite))
}

func (s *ProcurementWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&activities.CatalogActivities{})
	s.env.RegisterActivity(&activities.CallActivities{})
	s.env.RegisterActivity(&activities.AuditActivities{})

	s.quoteCalls = map[string]int{}
	s.confirmCalls = map[string]int{}
	s.hungUp = nil
	s.audited = nil

	s.env.OnActivity("HangUpSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, sessionID string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hungUp = append(s.hungUp, sessionID)
		return nil
	})
	s.env.OnActivity("RecordProcurement", mock.Anything, mock.Anything).Return(func(ctx context.Context, result types.ProcurementResult) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.audited = append(s.audited, result)
		return nil
	})
}

func price(v float64) *float64 {
	return &v
}

func testVendor(id string, rating float64, supplies ...string) types.Vendor {
	return types.Vendor{
		ID:           id,
		Name:         "Vendor " + id,
		Contact:      "+1555000" + id,
		Rating:       rating,
		LeadTimeDays: 5,
		Authorized:   true,
		Status:       "Active",
		Supplies:     supplies,
	}
}

// scenarioCatalog is items {X:10, Y:5}; V1 supplies both, V2 only X
func scenarioCatalog() types.Catalog {
	return types.Catalog{
		Items: []types.Item{
			{ID: "X", Name: "Widget", Quantity: 10, UnitCost: 2},
			{ID: "Y", Name: "Gadget", Quantity: 5, UnitCost: 3},
		},
		Vendors: []types.Vendor{
			testVendor("V1", 4, "X", "Y"),
			testVendor("V2", 5, "X"),
		},
	}
}

func (s *ProcurementWorkflowTestSuite) mockCatalog(cat types.Catalog) {
	s.env.OnActivity("LoadCatalog", mock.Anything).Return(cat, nil)
}

// mockQuoteSessions opens "CA-<vendor>" for every vendor except the failing ones
func (s *ProcurementWorkflowTestSuite) mockQuoteSessions(failing ...string) {
	s.env.OnActivity("OpenQuoteSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.QuoteCallRequest) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.quoteCalls[req.VendorID]++
		for _, id := range failing {
			if id == req.VendorID {
				return "", &types.DispatchError{VendorID: id, StatusCode: 503, Msg: "provider busy"}
			}
		}
		return "CA-" + req.VendorID, nil
	})
}

// mockConfirmSessions opens "CF-<vendor>-<n>" for the n-th attempt, failing for the given vendors
func (s *ProcurementWorkflowTestSuite) mockConfirmSessions(failing ...string) {
	s.env.OnActivity("OpenConfirmationSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.ConfirmationCallRequest) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.confirmCalls[req.VendorID]++
		for _, id := range failing {
			if id == req.VendorID {
				return "", errors.New("provider busy")
			}
		}
		return fmt.Sprintf("CF-%s-%d", req.VendorID, s.confirmCalls[req.VendorID]), nil
	})
}

func (s *ProcurementWorkflowTestSuite) signalQuote(after time.Duration, event types.QuoteEvent) {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(callback.QuoteEventSignal, event)
	}, after)
}

func (s *ProcurementWorkflowTestSuite) signalConfirmation(after time.Duration, event types.ConfirmationEvent) {
	s.env.RegisterDelayedCallback(func() {
		s.env.SignalWorkflow(callback.ConfirmationEventSignal, event)
	}, after)
}

func (s *ProcurementWorkflowTestSuite) result() *types.ProcurementResult {
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var result types.ProcurementResult
	s.NoError(s.env.GetWorkflowResult(&result))
	return &result
}

func (s *ProcurementWorkflowTestSuite) sessionState(result *types.ProcurementResult, vendorID string) types.SessionState {
	for _, session := range result.Sessions {
		if session.VendorID == vendorID {
			return session.State
		}
	}
	return ""
}

func (s *ProcurementWorkflowTestSuite) Test_FullCoverageBeatsCheaperPartialQuote() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{
		SessionID: "CA-V1",
		Quotes: []types.QuotePair{
			{ItemID: "X", Price: price(2)},
			{ItemID: "Y", Price: price(3)},
		},
	})
	s.signalQuote(2*time.Second, types.QuoteEvent{SessionID: "CA-V2", ItemID: "X", Price: price(1), Complete: true})
	s.signalConfirmation(3*time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	rec := result.Record
	s.Equal(types.OutcomeConfirmed, rec.Outcome)
	s.Equal("V1", rec.SelectedVendorID)
	s.InDelta(35.0, rec.TotalCost, 1e-9)
	s.Equal(15, rec.TotalItems)
	s.False(rec.RequiresApproval)
	s.Equal("CF-V1-1", rec.ConfirmationSessionID)
	s.True(strings.HasPrefix(rec.OrderNumber, "PO-"))
	s.True(strings.HasSuffix(rec.OrderNumber, "-V1"))
	s.NotEmpty(rec.RecordID)
	s.Equal([]string{"X", "Y"}, rec.RequestedItems)

	s.Require().NotNil(result.Selection)
	s.Equal("V1", result.Selection.WinnerID)
	s.Equal([]string{"V2"}, result.Selection.RunnerUps)
	s.Equal(types.SessionSettled, s.sessionState(result, "V1"))
	s.Equal(types.SessionSettled, s.sessionState(result, "V2"))
	s.Len(result.Quotes, 3)

	s.Len(s.audited, 1)
	s.Equal(rec.RecordID, s.audited[0].Record.RecordID)
	s.Empty(s.hungUp)
}

func (s *ProcurementWorkflowTestSuite) Test_NoQuotesCollected() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(types.OutcomeNoQuotesCollected, result.Record.Outcome)
	s.Nil(result.Selection)
	s.Equal(types.SessionExpired, s.sessionState(result, "V1"))
	s.Equal(types.SessionExpired, s.sessionState(result, "V2"))
	s.ElementsMatch([]string{"CA-V1", "CA-V2"}, s.hungUp)
	s.Len(s.audited, 1)
}

func (s *ProcurementWorkflowTestSuite) Test_ConfirmationDispatchFailuresEscalateToRunnerUp() {
	cat := scenarioCatalog()
	cat.Vendors = append(cat.Vendors, testVendor("V3", 3, "X", "Y"))
	s.mockCatalog(cat)
	s.mockQuoteSessions()
	s.mockConfirmSessions("V1")

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", ItemID: "X", Price: price(1), Complete: true})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V3", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2.5)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V3-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	rec := result.Record
	s.Equal(types.OutcomeConfirmed, rec.Outcome)
	s.Equal("V1", result.Selection.WinnerID)
	s.Equal("V3", rec.SelectedVendorID)
	s.InDelta(40.0, rec.TotalCost, 1e-9)
	s.Equal("CF-V3-1", rec.ConfirmationSessionID)
	s.Contains(rec.Reason, "escalated from V1")

	s.Equal(3, s.confirmCalls["V1"])
	s.Equal(1, s.confirmCalls["V3"])
	s.Require().Len(rec.Attempts, 4)
	for _, a := range rec.Attempts[:3] {
		s.Equal("V1", a.VendorID)
		s.Equal(types.ConfirmationDispatchFailed, a.State)
	}
	s.Equal(types.ConfirmationConfirmed, rec.Attempts[3].State)
}

func (s *ProcurementWorkflowTestSuite) Test_DeclineThenConfirmOnRetry() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", Complete: true})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: false, Note: "out of stock today"})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-2", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	rec := s.result().Record
	s.Equal(types.OutcomeConfirmed, rec.Outcome)
	s.Equal("V1", rec.SelectedVendorID)
	s.Require().Len(rec.Attempts, 2)
	s.Equal(types.ConfirmationDeclined, rec.Attempts[0].State)
	s.Contains(rec.Attempts[0].Reason, "out of stock today")
	s.Equal(types.ConfirmationConfirmed, rec.Attempts[1].State)
	s.Empty(rec.Reason)
}

func (s *ProcurementWorkflowTestSuite) Test_EscalationExhausted() {
	cat := scenarioCatalog()
	cat.Vendors = cat.Vendors[:1]
	s.mockCatalog(cat)
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	rec := result.Record
	s.Equal(types.OutcomeFailed, rec.Outcome)
	s.Contains(rec.Reason, "escalation exhausted")
	s.Empty(rec.SelectedVendorID)
	s.Len(rec.Attempts, 3)
	for _, a := range rec.Attempts {
		s.Equal(types.ConfirmationDeclined, a.State)
	}
	s.ElementsMatch([]string{"CF-V1-1", "CF-V1-2", "CF-V1-3"}, s.hungUp)
	s.Len(s.audited, 1)
}

func (s *ProcurementWorkflowTestSuite) Test_OrphanEventIsIgnored() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-UNKNOWN", ItemID: "X", Price: price(0.01), Complete: true})
	s.signalQuote(2*time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(StatusQuery)
		s.NoError(err)
		var status types.ProcurementStatus
		s.NoError(val.Get(&status))
		s.Equal("collecting", status.Stage)
		s.Equal(1, status.Orphaned)
		s.Equal(1, status.Settled)
		s.Equal(1, status.Pending)
	}, 3*time.Second)
	s.signalQuote(4*time.Second, types.QuoteEvent{SessionID: "CA-V2", ItemID: "X", Price: price(1), Complete: true})
	s.signalConfirmation(5*time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal("V1", result.Record.SelectedVendorID)
	for _, q := range result.Quotes {
		s.NotEqual("CA-UNKNOWN", q.SessionID)
	}
	s.Len(result.Quotes, 3)
}

func (s *ProcurementWorkflowTestSuite) Test_DispatchFailureIsRetriedThenRecorded() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions("V2")
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(types.OutcomeConfirmed, result.Record.Outcome)
	s.Equal(3, s.quoteCalls["V2"])
	s.Equal(1, s.quoteCalls["V1"])
	s.Equal(types.SessionFailedDispatch, s.sessionState(result, "V2"))
	for _, session := range result.Sessions {
		if session.VendorID == "V2" {
			s.Equal("dispatch-failed-V2", session.ID)
			s.Contains(session.FailureReason, "provider busy")
		}
	}
	s.Empty(result.Selection.RunnerUps)
}

func (s *ProcurementWorkflowTestSuite) Test_ZeroDispatchRetriesDispatchesOnce() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions("V2")
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	cfg := types.DefaultRunConfig()
	cfg.DispatchRetries = 0
	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{Config: cfg})

	result := s.result()
	s.Equal(types.OutcomeConfirmed, result.Record.Outcome)
	s.Equal(1, s.quoteCalls["V2"])
	s.Equal(types.SessionFailedDispatch, s.sessionState(result, "V2"))
}

func (s *ProcurementWorkflowTestSuite) Test_ZeroConfirmRetriesEscalatesAfterOneAttempt() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions("V1")

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", ItemID: "X", Price: price(1), Complete: true})
	s.signalConfirmation(2*time.Second, types.ConfirmationEvent{SessionID: "CF-V2-1", Accepted: true})

	cfg := types.DefaultRunConfig()
	cfg.ConfirmRetries = 0
	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{Config: cfg})

	result := s.result()
	s.Equal(types.OutcomeConfirmed, result.Record.Outcome)
	s.Equal("V2", result.Record.SelectedVendorID)
	s.Equal(1, s.confirmCalls["V1"])
	s.Equal("escalated from V1", result.Record.Reason)
}

func (s *ProcurementWorkflowTestSuite) Test_CollectionCeilingClosesSlowDispatches() {
	s.mockCatalog(scenarioCatalog())
	s.env.OnActivity("OpenQuoteSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.QuoteCallRequest) (string, error) {
		return "CA-" + req.VendorID, nil
	}).After(15 * time.Minute)

	cfg := types.DefaultRunConfig()
	cfg.DispatchTimeout = time.Hour
	start := s.env.Now()
	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{Config: cfg})

	result := s.result()
	s.Equal(types.OutcomeNoQuotesCollected, result.Record.Outcome)
	s.Len(result.Sessions, 2)
	for _, session := range result.Sessions {
		s.Equal(types.SessionFailedDispatch, session.State)
		s.Equal("dispatch-failed-"+session.VendorID, session.ID)
		s.Equal("collection closed before dispatch completed", session.FailureReason)
		s.Equal(cfg.EffectiveCeiling(), session.ClosedAt.Sub(start))
	}
	s.Empty(result.Quotes)
}

func (s *ProcurementWorkflowTestSuite) Test_InvalidContactIsNotRetried() {
	cat := scenarioCatalog()
	cat.Vendors[1].Contact = ""
	s.mockCatalog(cat)
	s.env.OnActivity("OpenQuoteSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.QuoteCallRequest) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.quoteCalls[req.VendorID]++
		if req.Contact == "" {
			return "", temporal.NewNonRetryableApplicationError("empty contact", "InvalidContactError", nil)
		}
		return "CA-" + req.VendorID, nil
	})
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(1, s.quoteCalls["V2"])
	s.Equal(types.SessionFailedDispatch, s.sessionState(result, "V2"))
}

func (s *ProcurementWorkflowTestSuite) Test_QuoteBeforeDispatchCompletesIsReplayed() {
	s.mockCatalog(scenarioCatalog())
	s.env.OnActivity("OpenQuoteSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.QuoteCallRequest) (string, error) {
		return "CA-" + req.VendorID, nil
	}).After(5 * time.Second)
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(2)},
		{ItemID: "Y", Price: price(3)},
	}})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", Complete: true})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(types.OutcomeConfirmed, result.Record.Outcome)
	s.Equal("V1", result.Record.SelectedVendorID)
	s.Len(result.Quotes, 2)
}

func (s *ProcurementWorkflowTestSuite) Test_EarlyEventOverflowIsOrphaned() {
	s.mockCatalog(scenarioCatalog())
	s.env.OnActivity("OpenQuoteSession", mock.Anything, mock.Anything).Return(func(ctx context.Context, req types.QuoteCallRequest) (string, error) {
		return "CA-" + req.VendorID, nil
	}).After(5 * time.Second)

	// two candidates buffer at most 8 events before their dispatches resolve
	for i := 0; i < 10; i++ {
		s.signalQuote(time.Second, types.QuoteEvent{SessionID: fmt.Sprintf("CA-GHOST-%d", i), ItemID: "X", Price: price(1)})
	}
	s.env.RegisterDelayedCallback(func() {
		val, err := s.env.QueryWorkflow(StatusQuery)
		s.NoError(err)
		var status types.ProcurementStatus
		s.NoError(val.Get(&status))
		s.Equal("collecting", status.Stage)
		s.Equal(2, status.Orphaned)
	}, 2*time.Second)
	s.signalQuote(6*time.Second, types.QuoteEvent{SessionID: "CA-V1", Complete: true})
	s.signalQuote(6*time.Second, types.QuoteEvent{SessionID: "CA-V2", Complete: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(types.OutcomeNoQuotesCollected, result.Record.Outcome)
	s.Empty(result.Quotes)
}

func (s *ProcurementWorkflowTestSuite) Test_NoEligibleVendors() {
	cat := scenarioCatalog()
	cat.Vendors[0].Authorized = false
	cat.Vendors[1].Status = "Suspended"
	s.mockCatalog(cat)

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	result := s.result()
	s.Equal(types.OutcomeNoEligibleVendors, result.Record.Outcome)
	s.Empty(result.Sessions)
	s.Empty(s.quoteCalls)
	s.Len(s.audited, 1)
}

func (s *ProcurementWorkflowTestSuite) Test_NothingToProcure() {
	cat := scenarioCatalog()
	s.mockCatalog(cat)

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{ItemIDs: []string{"Z"}})

	result := s.result()
	s.Equal(types.OutcomeNothingToProcure, result.Record.Outcome)
	s.Empty(result.Record.RequestedItems)
}

func (s *ProcurementWorkflowTestSuite) Test_ItemFilterRestrictsRun() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	// with only X required, V2 is the cheaper full-coverage vendor
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", ItemID: "X", Price: price(2)})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", ItemID: "X", Price: price(1)})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V2-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{ItemIDs: []string{"X"}})

	rec := s.result().Record
	s.Equal([]string{"X"}, rec.RequestedItems)
	s.Equal("V2", rec.SelectedVendorID)
	s.InDelta(10.0, rec.TotalCost, 1e-9)
}

func (s *ProcurementWorkflowTestSuite) Test_LargeOrderRequiresApproval() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()
	s.mockConfirmSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", Quotes: []types.QuotePair{
		{ItemID: "X", Price: price(80)},
		{ItemID: "Y", Price: price(90)},
	}})
	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V2", Complete: true})
	s.signalConfirmation(time.Second, types.ConfirmationEvent{SessionID: "CF-V1-1", Accepted: true})

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	rec := s.result().Record
	s.InDelta(1250.0, rec.TotalCost, 1e-9)
	s.True(rec.RequiresApproval)
}

func (s *ProcurementWorkflowTestSuite) Test_CancellationExpiresAndHangsUp() {
	s.mockCatalog(scenarioCatalog())
	s.mockQuoteSessions()

	s.signalQuote(time.Second, types.QuoteEvent{SessionID: "CA-V1", ItemID: "X", Price: price(2)})
	s.env.RegisterDelayedCallback(s.env.CancelWorkflow, 10*time.Second)

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Error(err)
	s.True(temporal.IsCanceledError(err))
	s.ElementsMatch([]string{"CA-V1", "CA-V2"}, s.hungUp)
	s.Empty(s.audited)
}

func (s *ProcurementWorkflowTestSuite) Test_CatalogFailureFailsRun() {
	s.env.OnActivity("LoadCatalog", mock.Anything).Return(types.Catalog{}, errors.New("catalog unreadable"))

	s.env.ExecuteWorkflow(ProcurementWorkflow, types.ProcurementRequest{})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}
