package dto

import (
	"errors"
	"time"

	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/entity"
)

// ========== PURCHASE DTOs ==========

// PurchaseResponse represents a verified purchase
type PurchaseResponse struct {
	OrderID          string    `json:"order_id"`
	PackageName      string    `json:"package_name"`
	ProductID        string    `json:"product_id"`
	PurchaseTime     time.Time `json:"purchase_time"`
	State            string    `json:"state"`
	DeveloperPayload string    `json:"developer_payload,omitempty"`
	PurchaseToken    string    `json:"purchase_token"`
	AutoRenewing     bool      `json:"auto_renewing"`
}

// PurchasesResponse represents a purchase listing
type PurchasesResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
	Total     int                `json:"total"`
}

// NewPurchaseResponse converts a purchase
func NewPurchaseResponse(p *entity.Purchase) PurchaseResponse {
	return PurchaseResponse{
		OrderID:          p.OrderID,
		PackageName:      p.PackageName,
		ProductID:        p.Sku,
		PurchaseTime:     p.PurchaseTime.UTC(),
		State:            p.State.String(),
		DeveloperPayload: p.DeveloperPayload,
		PurchaseToken:    p.Token,
		AutoRenewing:     p.AutoRenewing,
	}
}

// NewPurchasesResponse converts a purchase collection, keeping its order
func NewPurchasesResponse(purchases *entity.Purchases) PurchasesResponse {
	resp := PurchasesResponse{Purchases: []PurchaseResponse{}}
	for _, p := range purchases.All() {
		resp.Purchases = append(resp.Purchases, NewPurchaseResponse(p))
	}
	resp.Total = len(resp.Purchases)
	return resp
}

// ========== PRODUCT DTOs ==========

// PriceResponse represents a listed price
type PriceResponse struct {
	Display  string `json:"display"`
	Micros   int64  `json:"micros"`
	Currency string `json:"currency"`
}

// ProductResponse represents a product listing entry
type ProductResponse struct {
	ProductID          string         `json:"product_id"`
	Type               string         `json:"type"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Price              PriceResponse  `json:"price"`
	SubscriptionPeriod string         `json:"subscription_period,omitempty"`
	FreeTrialPeriod    string         `json:"free_trial_period,omitempty"`
	IntroductoryPrice  *PriceResponse `json:"introductory_price,omitempty"`
	IntroductoryPeriod string         `json:"introductory_period,omitempty"`
	IntroductoryCycles int            `json:"introductory_cycles,omitempty"`
}

// ProductsResponse represents a product listing
type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

// NewProductResponse converts a product
func NewProductResponse(p *entity.Product) ProductResponse {
	resp := ProductResponse{
		ProductID:          p.Sku,
		Type:               p.Kind.String(),
		Title:              p.Title,
		Description:        p.Description,
		Price:              PriceResponse{Display: p.Price.Display, Micros: p.Price.Micros, Currency: p.Price.Currency},
		SubscriptionPeriod: p.SubscriptionPeriod,
		FreeTrialPeriod:    p.FreeTrialPeriod,
	}
	if p.HasIntroductoryPrice() {
		resp.IntroductoryPrice = &PriceResponse{
			Display:  p.IntroductoryPrice.Display,
			Micros:   p.IntroductoryPrice.Micros,
			Currency: p.IntroductoryPrice.Currency,
		}
		resp.IntroductoryPeriod = p.IntroductoryPeriod
		resp.IntroductoryCycles = p.IntroductoryCycles
	}
	return resp
}

// NewProductsResponse converts a product collection, keeping its order
func NewProductsResponse(products *entity.Products) ProductsResponse {
	resp := ProductsResponse{Products: []ProductResponse{}}
	for _, p := range products.All() {
		resp.Products = append(resp.Products, NewProductResponse(p))
	}
	resp.Total = len(resp.Products)
	return resp
}

// ========== STATUS DTOs ==========

// StatusResponse reports the outcome of a command without a payload
type StatusResponse struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
}

// ErrorResponse represents a failed command
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse converts an error. Billing errors keep their kind and
// code; anything else is reported as unknown.
func NewErrorResponse(err error) ErrorResponse {
	var be *domainErrors.BillingError
	if errors.As(err, &be) {
		return ErrorResponse{Error: be.Kind.String(), Code: be.Code, Message: be.Message}
	}
	return ErrorResponse{Error: domainErrors.KindUnknown.String(), Message: err.Error()}
}
