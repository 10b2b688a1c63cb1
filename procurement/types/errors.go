package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoQuotesCollected is returned by selection when no vendor produced a quote
var ErrNoQuotesCollected = errors.New("no quotes collected")

// ErrNoEligibleVendors is reported when no contactable vendor supplies any required item
var ErrNoEligibleVendors = errors.New("no eligible vendors")

// DispatchError represents a transient failure to open a call session
type DispatchError struct {
	VendorID   string
	StatusCode int
	Msg        string
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch to %s failed (status %d): %s", e.VendorID, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("dispatch to %s failed: %s", e.VendorID, e.Msg)
}

// InvalidContactError represents a vendor that cannot be called and should not be retried
type InvalidContactError struct {
	VendorID string
	Msg      string
}

func (e *InvalidContactError) Error() string {
	return fmt.Sprintf("vendor %s has no usable contact: %s", e.VendorID, e.Msg)
}

// OrphanEventError is returned for an event whose session id is unknown
type OrphanEventError struct {
	SessionID string
}

func (e *OrphanEventError) Error() string {
	return fmt.Sprintf("orphan quote event for unknown session %q", e.SessionID)
}

// LateEventError is returned for an event addressed to a terminal session
type LateEventError struct {
	SessionID string
	State     SessionState
}

func (e *LateEventError) Error() string {
	return fmt.Sprintf("late quote event for session %s in state %s", e.SessionID, e.State)
}

// MalformedQuoteError describes one dropped (item, price) pair
type MalformedQuoteError struct {
	SessionID string
	ItemID    string
	Reason    string
}

func (e *MalformedQuoteError) Error() string {
	return fmt.Sprintf("malformed quote for item %q in session %s: %s", e.ItemID, e.SessionID, e.Reason)
}

// ConfirmationFailedError records that a vendor could not confirm the order
type ConfirmationFailedError struct {
	VendorID string
	Attempts int
	Last     ConfirmationState
}

func (e *ConfirmationFailedError) Error() string {
	return fmt.Sprintf("vendor %s did not confirm after %d attempts (last: %s)", e.VendorID, e.Attempts, e.Last)
}

// EscalationExhaustedError is the terminal failure after every ranked vendor failed to confirm
type EscalationExhaustedError struct {
	Vendors []string
}

func (e *EscalationExhaustedError) Error() string {
	return fmt.Sprintf("escalation exhausted after vendors %s", strings.Join(e.Vendors, ", "))
}
