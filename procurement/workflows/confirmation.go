package workflows

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-temporal-procurement/procurement/types"
)

type confirmedOrder struct {
	quote       types.VendorQuote
	sessionID   string
	orderNumber string
}

// confirm asks the winner, then each runner-up in order, to confirm its order.
// Vendors are tried strictly one at a time.
func (r *procurementRun) confirm(ctx workflow.Context, selection types.SelectionResult, confirmCh workflow.ReceiveChannel) (confirmedOrder, error) {
	order := append([]string{selection.WinnerID}, selection.RunnerUps...)
	activityCtx := workflow.WithActivityOptions(ctx, r.confirmOptions())

	for i, vendorID := range order {
		quote, ok := selection.Quote(vendorID)
		if !ok {
			continue
		}
		if i > 0 {
			r.logger.Warn("Escalating confirmation", "vendor", vendorID, "previous", order[i-1])
		}
		r.confirmingVendor = vendorID

		vendor := r.vendors[vendorID]
		req := types.ConfirmationCallRequest{
			VendorID:    vendor.ID,
			VendorName:  vendor.Name,
			Contact:     vendor.Contact,
			OrderNumber: orderNumber(workflow.Now(ctx), vendorID),
			Lines:       quote.Lines,
			TotalCost:   quote.TotalCost,
		}

		var last types.ConfirmationAttempt
		for n := 1; n <= 1+r.cfg.ConfirmRetries; n++ {
			if n > 1 {
				if err := workflow.Sleep(ctx, r.cfg.ConfirmBackoff<<(n-2)); err != nil {
					return confirmedOrder{}, err
				}
			}

			attempt, permanent, err := r.confirmOnce(ctx, activityCtx, confirmCh, req, n)
			if err != nil {
				return confirmedOrder{}, err
			}
			r.attempts = append(r.attempts, attempt)
			last = attempt

			if attempt.State == types.ConfirmationConfirmed {
				r.logger.Info("Order confirmed", "vendor", vendorID, "order", req.OrderNumber, "session", attempt.SessionID)
				return confirmedOrder{quote: quote, sessionID: attempt.SessionID, orderNumber: req.OrderNumber}, nil
			}
			r.lastError = fmt.Sprintf("confirmation %s: %s", attempt.State, attempt.Reason)
			if permanent {
				break
			}
		}
		r.logger.Warn("Vendor did not confirm", "vendor", vendorID, "error", &types.ConfirmationFailedError{
			VendorID: vendorID,
			Attempts: last.Attempt,
			Last:     last.State,
		})
	}

	r.confirmingVendor = ""
	return confirmedOrder{}, &types.EscalationExhaustedError{Vendors: order}
}

// confirmOnce opens one confirmation session and waits for its answer. The
// returned flag is set when retrying the same vendor cannot help.
func (r *procurementRun) confirmOnce(ctx, activityCtx workflow.Context, confirmCh workflow.ReceiveChannel, req types.ConfirmationCallRequest, n int) (types.ConfirmationAttempt, bool, error) {
	attempt := types.ConfirmationAttempt{
		VendorID: req.VendorID,
		Attempt:  n,
		State:    types.ConfirmationRequested,
	}

	var sessionID string
	err := workflow.ExecuteActivity(activityCtx, "OpenConfirmationSession", req).Get(ctx, &sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return attempt, false, ctx.Err()
		}
		attempt.State = types.ConfirmationDispatchFailed
		attempt.Reason = err.Error()
		attempt.At = workflow.Now(ctx)
		r.logger.Warn("Confirmation dispatch failed", "vendor", req.VendorID, "attempt", n, "error", err)

		var appErr *temporal.ApplicationError
		permanent := errors.As(err, &appErr) && appErr.Type() == "InvalidContactError"
		return attempt, permanent, nil
	}
	attempt.SessionID = sessionID
	r.logger.Info("Awaiting confirmation", "vendor", req.VendorID, "attempt", n, "session", sessionID)

	waitCtx, stopWaiting := workflow.WithCancel(ctx)
	defer stopWaiting()
	timer := workflow.NewTimer(waitCtx, r.cfg.ConfirmTimeout)

	decided, timedOut := false, false
	for !decided && ctx.Err() == nil {
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(confirmCh, func(ch workflow.ReceiveChannel, more bool) {
			var event types.ConfirmationEvent
			ch.Receive(ctx, &event)
			if event.SessionID != sessionID {
				r.logger.Warn("Discarded confirmation event", "session", event.SessionID, "expected", sessionID)
				return
			}
			decided = true
			if event.Accepted {
				attempt.State = types.ConfirmationConfirmed
				return
			}
			attempt.State = types.ConfirmationDeclined
			attempt.Reason = "declined"
			if event.Note != "" {
				attempt.Reason += ": " + event.Note
			}
		})
		selector.AddFuture(timer, func(f workflow.Future) {
			if f.Get(ctx, nil) != nil {
				return
			}
			decided, timedOut = true, true
			attempt.State = types.ConfirmationDeclined
			attempt.Reason = fmt.Sprintf("no answer within %s", r.cfg.ConfirmTimeout)
		})
		selector.AddReceive(ctx.Done(), func(ch workflow.ReceiveChannel, more bool) {})
		selector.Select(ctx)
	}
	attempt.At = workflow.Now(ctx)

	if ctx.Err() != nil {
		disconnected, _ := workflow.NewDisconnectedContext(ctx)
		r.hangUp(disconnected, []string{sessionID})
		return attempt, false, ctx.Err()
	}
	if timedOut {
		r.hangUp(ctx, []string{sessionID})
	}
	return attempt, false, nil
}

// confirmOptions disables activity retries; attempts are counted by confirm
func (r *procurementRun) confirmOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: r.cfg.DispatchTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
}
