package workflows

import (
	"errors"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-temporal-procurement/procurement/types"
)

// earlyEventsPerCandidate bounds how many events may wait for their dispatch
// to resolve; overflow is discarded as orphaned right away.
const earlyEventsPerCandidate = 4

// collect dispatches one quote session per candidate and applies quote
// signals until every session is terminal or the ceiling fires. It returns an
// error only when the workflow was cancelled.
func (r *procurementRun) collect(ctx workflow.Context, candidates []types.Candidate, quoteCh workflow.ReceiveChannel) error {
	collectCtx, stopCollecting := workflow.WithCancel(ctx)
	defer stopCollecting()
	dispatchCtx := workflow.WithActivityOptions(collectCtx, r.dispatchOptions())

	selector := workflow.NewSelector(ctx)
	outstanding := make(map[string]bool, len(candidates))
	// events for sessions whose dispatch has not resolved yet
	var early []types.QuoteEvent
	maxEarly := earlyEventsPerCandidate * len(candidates)
	ceilingReached := false

	for _, c := range candidates {
		c := c
		vendor := r.vendors[c.VendorID]
		fut := workflow.ExecuteActivity(dispatchCtx, "OpenQuoteSession", r.quoteRequest(vendor, c))
		outstanding[c.VendorID] = true

		selector.AddFuture(fut, func(f workflow.Future) {
			delete(outstanding, c.VendorID)
			now := workflow.Now(ctx)

			var sessionID string
			if err := f.Get(ctx, &sessionID); err != nil {
				r.logger.Warn("Quote dispatch failed", "vendor", c.VendorID, "error", err)
				_, _ = r.book.FailDispatch(c.VendorID, c.ItemIDs, now, err.Error())
				return
			}

			session, err := r.book.Open(sessionID, c.VendorID, c.ItemIDs, now, r.cfg.CollectionWindow)
			if err != nil {
				r.logger.Error("Quote session rejected", "vendor", c.VendorID, "session", sessionID, "error", err)
				_, _ = r.book.FailDispatch(c.VendorID, c.ItemIDs, now, err.Error())
				return
			}
			r.logger.Info("Quote session opened", "vendor", c.VendorID, "session", session.ID, "deadline", session.Deadline)

			timer := workflow.NewTimer(collectCtx, session.Deadline.Sub(now))
			selector.AddFuture(timer, func(f workflow.Future) {
				if f.Get(ctx, nil) != nil {
					return
				}
				if r.book.Expire(session.ID, workflow.Now(ctx)) {
					r.logger.Info("Quote session expired", "vendor", session.VendorID, "session", session.ID)
				}
			})

			early = r.replay(ctx, early, session.ID)
		})
	}

	ceiling := workflow.NewTimer(collectCtx, r.cfg.EffectiveCeiling())
	selector.AddFuture(ceiling, func(f workflow.Future) {
		ceilingReached = true
		if f.Get(ctx, nil) == nil {
			r.logger.Warn("Collection ceiling reached", "pending", len(r.book.Pending()), "undispatched", len(outstanding))
		}
	})

	selector.AddReceive(quoteCh, func(ch workflow.ReceiveChannel, more bool) {
		var event types.QuoteEvent
		ch.Receive(ctx, &event)
		if _, known := r.book.Session(event.SessionID); !known && len(outstanding) > 0 {
			if len(early) < maxEarly {
				early = append(early, event)
				return
			}
			r.logger.Warn("Early quote event buffer full", "session", event.SessionID, "buffered", len(early))
		}
		r.apply(ctx, event)
	})

	selector.AddReceive(ctx.Done(), func(ch workflow.ReceiveChannel, more bool) {
		r.logger.Warn("Collection cancelled", "pending", len(r.book.Pending()))
	})

	for !ceilingReached && ctx.Err() == nil && (len(outstanding) > 0 || !r.book.AllTerminal()) {
		selector.Select(ctx)
	}

	now := workflow.Now(ctx)
	for _, c := range candidates {
		if outstanding[c.VendorID] {
			_, _ = r.book.FailDispatch(c.VendorID, c.ItemIDs, now, "collection closed before dispatch completed")
		}
	}
	for _, event := range early {
		r.apply(ctx, event)
	}
	r.book.ExpireAll(now)
	stopCollecting()

	var expired []string
	for _, s := range r.book.Sessions() {
		if s.State == types.SessionExpired {
			expired = append(expired, s.ID)
		}
	}

	if ctx.Err() != nil {
		disconnected, _ := workflow.NewDisconnectedContext(ctx)
		r.hangUp(disconnected, expired)
		return ctx.Err()
	}
	r.hangUp(ctx, expired)

	stats := r.book.Stats()
	r.logger.Info("Collection closed", "quotes", len(r.book.Records()), "orphaned", stats.Orphaned, "late", stats.Late, "malformed", stats.Malformed)
	return nil
}

// apply feeds one quote event into the book; discarded events are only logged
func (r *procurementRun) apply(ctx workflow.Context, event types.QuoteEvent) {
	result, err := r.book.Apply(event, workflow.Now(ctx))

	var orphan *types.OrphanEventError
	var late *types.LateEventError
	switch {
	case errors.As(err, &orphan):
		r.logger.Warn("Discarded orphan quote event", "session", orphan.SessionID)
		return
	case errors.As(err, &late):
		r.logger.Warn("Discarded late quote event", "session", late.SessionID, "state", late.State)
		return
	case err != nil:
		r.logger.Warn("Discarded quote event", "session", event.SessionID, "error", err)
		return
	}

	for _, dropped := range result.Dropped {
		r.logger.Warn("Dropped malformed quote", "session", dropped.SessionID, "item", dropped.ItemID, "reason", dropped.Reason)
	}
	r.logger.Info("Quote event applied", "session", event.SessionID, "accepted", len(result.Accepted), "settled", result.Settled)
}

// replay applies buffered events of a just-opened session and keeps the rest
func (r *procurementRun) replay(ctx workflow.Context, early []types.QuoteEvent, sessionID string) []types.QuoteEvent {
	kept := early[:0]
	for _, event := range early {
		if event.SessionID == sessionID {
			r.apply(ctx, event)
			continue
		}
		kept = append(kept, event)
	}
	return kept
}

func (r *procurementRun) quoteRequest(vendor types.Vendor, c types.Candidate) types.QuoteCallRequest {
	quantities := make(map[string]types.Item, len(r.items))
	for _, item := range r.items {
		quantities[item.ID] = item
	}
	req := types.QuoteCallRequest{
		VendorID:   vendor.ID,
		VendorName: vendor.Name,
		Contact:    vendor.Contact,
	}
	for _, id := range c.ItemIDs {
		item := quantities[id]
		req.Items = append(req.Items, types.CallItem{ItemID: id, Name: item.Name, Quantity: item.Quantity})
	}
	return req
}

func (r *procurementRun) dispatchOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: r.cfg.DispatchTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        r.cfg.DispatchBackoff,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        int32(1 + r.cfg.DispatchRetries),
			NonRetryableErrorTypes: nonRetryableErrorTypes,
		},
	}
}
