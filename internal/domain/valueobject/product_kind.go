package valueobject

import (
	"errors"
)

var (
	ErrInvalidProductKind = errors.New("invalid product kind")
)

// ProductKind is the item type understood by the billing service.
type ProductKind string

const (
	KindInApp        ProductKind = "inapp"
	KindSubscription ProductKind = "subs"
)

// Request codes tag a purchase hand-off so its result can be correlated.
const (
	RequestCodeOneTime   = 1001
	RequestCodeRecurring = 1002
)

// NewProductKind creates a new ProductKind value object
func NewProductKind(kind string) (ProductKind, error) {
	k := ProductKind(kind)
	if !k.IsValid() {
		return "", ErrInvalidProductKind
	}
	return k, nil
}

// String returns the wire representation of the kind
func (k ProductKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is known
func (k ProductKind) IsValid() bool {
	switch k {
	case KindInApp, KindSubscription:
		return true
	default:
		return false
	}
}

// IsRecurring returns true for subscriptions
func (k ProductKind) IsRecurring() bool {
	return k == KindSubscription
}

// RequestCode returns the hand-off tag for purchases of this kind
func (k ProductKind) RequestCode() int {
	if k.IsRecurring() {
		return RequestCodeRecurring
	}
	return RequestCodeOneTime
}
