package enums

import "fmt"

// PurchaseStatus tracks the durable lifecycle of a purchase record.
type PurchaseStatus string

const (
	PurchaseStatusProcessing PurchaseStatus = "processing"
	PurchaseStatusReady      PurchaseStatus = "ready"
	PurchaseStatusCompleted  PurchaseStatus = "completed"
	PurchaseStatusFailed     PurchaseStatus = "failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusProcessing,
	PurchaseStatusReady,
	PurchaseStatusCompleted,
	PurchaseStatusFailed,
}

// String implements fmt.Stringer.
func (s PurchaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusFailed
}

// CanTransitionTo enforces processing → ready → completed and processing → failed.
func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	switch s {
	case PurchaseStatusProcessing:
		return next == PurchaseStatusReady || next == PurchaseStatusCompleted || next == PurchaseStatusFailed
	case PurchaseStatusReady:
		return next == PurchaseStatusCompleted
	default:
		return false
	}
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
