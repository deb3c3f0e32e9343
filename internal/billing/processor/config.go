package processor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/connection"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// Acknowledger confirms a purchase with the store backend.
type Acknowledger interface {
	Acknowledge(ctx context.Context, kind valueobject.ProductKind, sku, purchaseToken, developerPayload string) error
}

// Reporter receives failures worth surfacing to an error tracker.
type Reporter interface {
	Report(err error, tags map[string]string)
}

// Config configures a Processor.
type Config struct {
	PackageName     string
	PublicKeyBase64 string
	APIVersion      int
	BindTimeout     time.Duration

	Logger       *zap.Logger
	Reporter     Reporter
	Acknowledger Acknowledger

	// AllowTestProducts skips verification for the reserved test products.
	// Ignored unless the binary is built with the iabtest tag.
	AllowTestProducts bool
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.PackageName == "" {
		return domainErrors.NewValidationError("package_name", domainErrors.ErrRequiredField)
	}
	if c.PublicKeyBase64 == "" {
		return domainErrors.NewValidationError("public_key", domainErrors.ErrRequiredField)
	}
	if c.APIVersion == 0 {
		c.APIVersion = int(valueobject.APIVersion3)
	}
	if _, err := valueobject.NewAPIVersion(c.APIVersion); err != nil {
		return domainErrors.NewValidationError("api_version", err)
	}
	if c.BindTimeout < 0 {
		return domainErrors.NewValidationError("bind_timeout", domainErrors.ErrOutOfRange)
	}
	if c.BindTimeout == 0 {
		c.BindTimeout = connection.DefaultBindTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}
