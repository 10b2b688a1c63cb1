package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"go-temporal-procurement/procurement/types"
)

// RecordSink persists finished runs
type RecordSink interface {
	SaveResult(ctx context.Context, result types.ProcurementResult) error
}

// AuditActivities writes the procurement record of a finished run
type AuditActivities struct {
	Store RecordSink
}

// RecordProcurement persists the record, sessions, quotes and attempts of a run
func (a *AuditActivities) RecordProcurement(ctx context.Context, result types.ProcurementResult) error {
	logger := activity.GetLogger(ctx)
	rec := result.Record
	logger.Info("Recording procurement", "record", rec.RecordID, "outcome", rec.Outcome, "vendor", rec.SelectedVendorID)

	if a.Store == nil {
		logger.Warn("No audit store configured, record not persisted", "record", rec.RecordID)
		return nil
	}
	if err := a.Store.SaveResult(ctx, result); err != nil {
		logger.Error("Failed to persist procurement record", "record", rec.RecordID, "error", err)
		return err
	}

	logger.Info("Procurement recorded", "record", rec.RecordID, "order", rec.OrderNumber)
	return nil
}
