package valueobject

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount   = errors.New("amount must be non-negative")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

const microsPerUnit = 1_000_000

// Price is a listed price as the store formats it plus its micro-unit amount.
type Price struct {
	Display  string
	Micros   int64
	Currency string // ISO 4217 currency code (e.g., "USD", "EUR")
}

// NewPrice creates a new Price value object
func NewPrice(display string, micros int64, currency string) (Price, error) {
	if micros < 0 {
		return Price{}, fmt.Errorf("%w: %d", ErrInvalidAmount, micros)
	}
	if currency != "" && !isValidCurrency(currency) {
		return Price{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	return Price{Display: display, Micros: micros, Currency: currency}, nil
}

// Amount returns the price in currency units
func (p Price) Amount() float64 {
	return float64(p.Micros) / microsPerUnit
}

// IsZero reports whether no price was listed
func (p Price) IsZero() bool {
	return p.Display == "" && p.Micros == 0
}

// isValidCurrency checks if the currency code is valid (3 letters)
func isValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range currency {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}
