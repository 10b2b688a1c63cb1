// Package callprovider is the Call Session Provider port: open an outbound
// call session for a vendor and get back the provider's session id. Quote and
// confirmation answers arrive later through the callback server, never here.
package callprovider

import (
	"context"

	"go-temporal-procurement/procurement/types"
)

// Purpose tells the provider which conversation script to run
type Purpose string

const (
	PurposeQuote        Purpose = "quote"
	PurposeConfirmation Purpose = "confirmation"
)

// Payload is the conversation content handed to the provider
type Payload struct {
	Purpose     Purpose           `json:"purpose"`
	VendorID    string            `json:"vendor_id"`
	VendorName  string            `json:"vendor_name"`
	Items       []types.CallItem  `json:"items,omitempty"`
	OrderNumber string            `json:"order_number,omitempty"`
	Lines       []types.OrderLine `json:"lines,omitempty"`
	TotalCost   float64           `json:"total_cost,omitempty"`
	CallbackURL string            `json:"callback_url"`
}

// Provider places and terminates outbound call sessions
type Provider interface {
	Open(ctx context.Context, contact string, payload Payload) (string, error)
	HangUp(ctx context.Context, sessionID string) error
}
