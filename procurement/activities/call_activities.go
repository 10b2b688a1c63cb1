package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"go-temporal-procurement/procurement/callback"
	"go-temporal-procurement/procurement/callprovider"
	"go-temporal-procurement/procurement/types"
)

// CallActivities opens and terminates vendor call sessions
type CallActivities struct {
	Provider        callprovider.Provider
	CallbackBaseURL string
}

// OpenQuoteSession asks a vendor to quote the given items and returns the session id
func (a *CallActivities) OpenQuoteSession(ctx context.Context, req types.QuoteCallRequest) (string, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	logger.Info("Opening quote session", "vendor", req.VendorID, "items", len(req.Items), "attempt", info.Attempt)

	id, err := a.Provider.Open(ctx, req.Contact, callprovider.Payload{
		Purpose:     callprovider.PurposeQuote,
		VendorID:    req.VendorID,
		VendorName:  req.VendorName,
		Items:       req.Items,
		CallbackURL: callback.QuoteURL(a.CallbackBaseURL, info.WorkflowExecution.ID),
	})
	if err != nil {
		logger.Warn("Quote session dispatch failed", "vendor", req.VendorID, "error", err)
		return "", classify(err)
	}

	logger.Info("Quote session opened", "vendor", req.VendorID, "session", id)
	return id, nil
}

// OpenConfirmationSession asks the selected vendor to confirm the order
func (a *CallActivities) OpenConfirmationSession(ctx context.Context, req types.ConfirmationCallRequest) (string, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	logger.Info("Opening confirmation session", "vendor", req.VendorID, "order", req.OrderNumber)

	id, err := a.Provider.Open(ctx, req.Contact, callprovider.Payload{
		Purpose:     callprovider.PurposeConfirmation,
		VendorID:    req.VendorID,
		VendorName:  req.VendorName,
		OrderNumber: req.OrderNumber,
		Lines:       req.Lines,
		TotalCost:   req.TotalCost,
		CallbackURL: callback.ConfirmationURL(a.CallbackBaseURL, info.WorkflowExecution.ID),
	})
	if err != nil {
		logger.Warn("Confirmation session dispatch failed", "vendor", req.VendorID, "error", err)
		return "", classify(err)
	}

	logger.Info("Confirmation session opened", "vendor", req.VendorID, "session", id)
	return id, nil
}

// HangUpSession terminates a session that will no longer be listened to
func (a *CallActivities) HangUpSession(ctx context.Context, sessionID string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Hanging up session", "session", sessionID)

	if err := a.Provider.HangUp(ctx, sessionID); err != nil {
		logger.Warn("Hang up failed", "session", sessionID, "error", err)
		return err
	}
	return nil
}

// classify marks errors that no retry can fix
func classify(err error) error {
	var invalid *types.InvalidContactError
	if errors.As(err, &invalid) {
		return temporal.NewNonRetryableApplicationError(invalid.Error(), "InvalidContactError", invalid)
	}
	return err
}
