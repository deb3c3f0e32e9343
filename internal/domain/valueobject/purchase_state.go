package valueobject

import (
	"fmt"
)

// PurchaseState mirrors the purchaseState field of a receipt.
type PurchaseState int

const (
	StatePurchased PurchaseState = 0
	StateCanceled  PurchaseState = 1
	StateRefunded  PurchaseState = 2
	StatePending   PurchaseState = 4
)

// String returns the string representation of the state
func (s PurchaseState) String() string {
	switch s {
	case StatePurchased:
		return "purchased"
	case StateCanceled:
		return "canceled"
	case StateRefunded:
		return "refunded"
	case StatePending:
		return "pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsPurchased returns true if the purchase is complete and valid
func (s PurchaseState) IsPurchased() bool {
	return s == StatePurchased
}

// IsTerminated returns true if the purchase was canceled or refunded
func (s PurchaseState) IsTerminated() bool {
	return s == StateCanceled || s == StateRefunded
}
