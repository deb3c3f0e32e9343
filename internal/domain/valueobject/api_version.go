package valueobject

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAPIVersion = errors.New("unsupported billing api version")
)

// APIVersion is the billing service protocol version.
type APIVersion int

const (
	APIVersion3 APIVersion = 3
	APIVersion5 APIVersion = 5

	// ReplaceProductsAPIVersion must be used for subscription upgrades and
	// downgrades whatever version the processor is configured with.
	ReplaceProductsAPIVersion = APIVersion5
)

// NewAPIVersion validates a configured protocol version
func NewAPIVersion(v int) (APIVersion, error) {
	version := APIVersion(v)
	switch version {
	case APIVersion3, APIVersion5:
		return version, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidAPIVersion, v)
	}
}

// Int returns the numeric version sent on the wire
func (v APIVersion) Int() int {
	return int(v)
}
