package entity

import (
	"encoding/json"
	"fmt"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Product is one entry of a product listing.
type Product struct {
	OriginalJSON       string
	Sku                string
	Kind               valueobject.ProductKind
	Title              string
	Description        string
	Price              valueobject.Price
	SubscriptionPeriod string
	FreeTrialPeriod    string
	IntroductoryPrice  valueobject.Price
	IntroductoryPeriod string
	IntroductoryCycles int
}

type productJSON struct {
	ProductID                    string `json:"productId"`
	Type                         string `json:"type"`
	Title                        string `json:"title"`
	Description                  string `json:"description"`
	PriceCurrencyCode            string `json:"price_currency_code"`
	Price                        string `json:"price"`
	PriceAmountMicros            int64  `json:"price_amount_micros"`
	SubscriptionPeriod           string `json:"subscriptionPeriod"`
	FreeTrialPeriod              string `json:"freeTrialPeriod"`
	IntroductoryPrice            string `json:"introductoryPrice"`
	IntroductoryPriceAmountMicro int64  `json:"introductoryPriceAmountMicros"`
	IntroductoryPricePeriod      string `json:"introductoryPricePeriod"`
	IntroductoryPriceCycles      int    `json:"introductoryPriceCycles"`
}

// ParseProduct decodes one listing entry
func ParseProduct(originalJSON string) (*Product, error) {
	var raw productJSON
	if err := json.Unmarshal([]byte(originalJSON), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse product details: %w", err)
	}

	price, err := valueobject.NewPrice(raw.Price, raw.PriceAmountMicros, raw.PriceCurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid price for %s: %w", raw.ProductID, err)
	}
	intro, err := valueobject.NewPrice(raw.IntroductoryPrice, raw.IntroductoryPriceAmountMicro, raw.PriceCurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid introductory price for %s: %w", raw.ProductID, err)
	}

	return &Product{
		OriginalJSON:       originalJSON,
		Sku:                raw.ProductID,
		Kind:               valueobject.ProductKind(raw.Type),
		Title:              raw.Title,
		Description:        raw.Description,
		Price:              price,
		SubscriptionPeriod: raw.SubscriptionPeriod,
		FreeTrialPeriod:    raw.FreeTrialPeriod,
		IntroductoryPrice:  intro,
		IntroductoryPeriod: raw.IntroductoryPricePeriod,
		IntroductoryCycles: raw.IntroductoryPriceCycles,
	}, nil
}

// Key returns the sku the product is indexed by
func (p *Product) Key() string {
	return p.Sku
}

// HasIntroductoryPrice returns true if an introductory offer is listed
func (p *Product) HasIntroductoryPrice() bool {
	return !p.IntroductoryPrice.IsZero()
}
