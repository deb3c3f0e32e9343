package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Purchase is a verified purchase receipt. Build it with ParsePurchase only
// after the receipt's signature has been checked.
type Purchase struct {
	OriginalJSON     string
	Signature        string
	OrderID          string
	PackageName      string
	Sku              string
	PurchaseTime     time.Time
	State            valueobject.PurchaseState
	DeveloperPayload string
	Token            string
	AutoRenewing     bool
}

type purchaseJSON struct {
	OrderID          string `json:"orderId"`
	PackageName      string `json:"packageName"`
	ProductID        string `json:"productId"`
	PurchaseTime     int64  `json:"purchaseTime"`
	PurchaseState    int    `json:"purchaseState"`
	DeveloperPayload string `json:"developerPayload"`
	PurchaseToken    string `json:"purchaseToken"`
	AutoRenewing     bool   `json:"autoRenewing"`
}

// ParsePurchase decodes a receipt payload into a Purchase
func ParsePurchase(originalJSON, signature string) (*Purchase, error) {
	var raw purchaseJSON
	if err := json.Unmarshal([]byte(originalJSON), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse purchase data: %w", err)
	}

	return &Purchase{
		OriginalJSON:     originalJSON,
		Signature:        signature,
		OrderID:          raw.OrderID,
		PackageName:      raw.PackageName,
		Sku:              raw.ProductID,
		PurchaseTime:     time.UnixMilli(raw.PurchaseTime),
		State:            valueobject.PurchaseState(raw.PurchaseState),
		DeveloperPayload: raw.DeveloperPayload,
		Token:            raw.PurchaseToken,
		AutoRenewing:     raw.AutoRenewing,
	}, nil
}

// Key returns the sku the purchase is indexed by
func (p *Purchase) Key() string {
	return p.Sku
}

// IsPurchased returns true if the purchase is in the purchased state
func (p *Purchase) IsPurchased() bool {
	return p.State.IsPurchased()
}
